package hostguard

import "testing"

func TestGuard_BlockedAfterBlock(t *testing.T) {
	g := New()
	if g.Blocked("example.com") {
		t.Fatal("expected fresh guard to have nothing blocked")
	}
	if err := g.Block("example.com"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !g.Blocked("example.com") {
		t.Error("expected example.com to be blocked after Block")
	}
	if g.Blocked("other.com") {
		t.Error("expected unrelated host to remain unblocked")
	}
}
