package aggregator

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"searchgate/internal/browser"
)

func drain(t *testing.T, ch <-chan []*browser.Snapshot, cancel context.CancelFunc) [][]*browser.Snapshot {
	t.Helper()
	defer cancel()

	var batches [][]*browser.Snapshot
	timeout := time.After(2 * time.Second)
	for {
		select {
		case batch, ok := <-ch:
			if !ok {
				return batches
			}
			batches = append(batches, batch)
		case <-timeout:
			t.Fatal("timed out waiting for aggregator to finish")
		}
	}
}

func TestScrapeMany_EmitsInitialNilBatchThenFinal(t *testing.T) {
	stub := browser.NewStub()
	stub.Script("https://a.example", []*browser.Snapshot{{Href: "https://a.example", Title: "A"}}, nil)
	stub.Script("https://b.example", []*browser.Snapshot{{Href: "https://b.example", Title: "B"}}, nil)

	ch, cancel := ScrapeMany(context.Background(), stub, []string{"https://a.example", "https://b.example"}, browser.ScrapeOptions{}, zap.NewNop())
	batches := drain(t, ch, cancel)

	if len(batches) < 2 {
		t.Fatalf("expected at least an initial and a final batch, got %d", len(batches))
	}
	first := batches[0]
	if first[0] != nil || first[1] != nil {
		t.Errorf("expected initial batch to be nil-filled, got %+v", first)
	}
	last := batches[len(batches)-1]
	if last[0] == nil || last[0].Title != "A" {
		t.Errorf("expected slot 0 populated with A's snapshot in final batch, got %+v", last[0])
	}
	if last[1] == nil || last[1].Title != "B" {
		t.Errorf("expected slot 1 populated with B's snapshot in final batch, got %+v", last[1])
	}
}

func TestScrapeMany_LaterSnapshotSupersedesEarlierInSameSlot(t *testing.T) {
	stub := browser.NewStub()
	stub.Script("https://a.example", []*browser.Snapshot{
		{Href: "https://a.example", Title: "dom-ready"},
		{Href: "https://a.example", Title: "settled"},
	}, nil)

	ch, cancel := ScrapeMany(context.Background(), stub, []string{"https://a.example"}, browser.ScrapeOptions{}, zap.NewNop())
	batches := drain(t, ch, cancel)

	last := batches[len(batches)-1]
	if last[0] == nil || last[0].Title != "settled" {
		t.Errorf("expected final slot to hold the later snapshot, got %+v", last[0])
	}
}

func TestScrapeMany_OneStreamErrorDoesNotAbortPeers(t *testing.T) {
	stub := browser.NewStub()
	stub.Script("https://a.example", nil, context.Canceled)
	stub.Script("https://b.example", []*browser.Snapshot{{Href: "https://b.example", Title: "B"}}, nil)

	ch, cancel := ScrapeMany(context.Background(), stub, []string{"https://a.example", "https://b.example"}, browser.ScrapeOptions{}, zap.NewNop())
	batches := drain(t, ch, cancel)

	last := batches[len(batches)-1]
	if last[0] != nil {
		t.Errorf("expected failed slot 0 to remain nil, got %+v", last[0])
	}
	if last[1] == nil || last[1].Title != "B" {
		t.Errorf("expected peer slot 1 to succeed despite slot 0's error, got %+v", last[1])
	}
}
