// Package pipeline implements C6 (Search Pipeline) and C7 (Crawl Pipeline):
// the orchestration layer that drives C1-C5 to answer a single request.
package pipeline

import (
	"fmt"
	"strings"
)

// Entry is one position in a search batch: either a fully formatted page
// (Body set) or a stub built straight from an UpstreamResult.
type Entry struct {
	URL                string
	Title              string
	Description        string
	Body               string
	HasBody            bool
	TextRepresentation string
	Qualified          bool
}

// ToString renders entry i (1-based) per spec §4.6's batch string form.
func (e Entry) ToString(i int) string {
	if e.HasBody {
		return fmt.Sprintf("[%d] %s", i, e.Body)
	}
	if e.Title == "" && e.Description == "" {
		return fmt.Sprintf("[%d] No content available for %s", i, e.URL)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] Title: %s\n", i, e.Title)
	fmt.Fprintf(&b, "URL Source: %s\n", e.URL)
	fmt.Fprintf(&b, "Description: %s", e.Description)
	if e.TextRepresentation != "" {
		b.WriteString("\nContent:\n" + e.TextRepresentation)
	}
	return b.String()
}

// Batch is an ordered list of Entry, one per result slot.
type Batch []Entry

// String joins every entry's rendered form, per spec §4.6.
func (b Batch) String() string {
	parts := make([]string, len(b))
	for i, e := range b {
		parts[i] = e.ToString(i + 1)
	}
	return strings.TrimRight(strings.Join(parts, "\n\n"), "\n") + "\n"
}

func anyQualified(b Batch) bool {
	for _, e := range b {
		if e.Qualified {
			return true
		}
	}
	return false
}

func allQualified(b Batch) bool {
	for _, e := range b {
		if !e.Qualified {
			return false
		}
	}
	return true
}

// reorganize implements spec §4.6's reorganization: qualified slots first,
// filled out with unqualified slots in original order until count is
// reached, then the selected set is restored to original slot order and
// truncated to count.
func reorganize(batch Batch, count int) Batch {
	selected := make(map[int]bool, len(batch))
	qualifiedN := 0
	for i, e := range batch {
		if e.Qualified {
			selected[i] = true
			qualifiedN++
		}
	}

	needed := count - qualifiedN
	for i, e := range batch {
		if needed <= 0 {
			break
		}
		if !e.Qualified {
			selected[i] = true
			needed--
		}
	}

	out := make(Batch, 0, len(batch))
	for i, e := range batch {
		if selected[i] {
			out = append(out, e)
		}
	}
	if len(out) > count {
		out = out[:count]
	}
	return out
}
