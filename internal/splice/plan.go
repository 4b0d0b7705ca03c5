// Package splice combines a fixed multi-page template with generated
// content pages. Plan is the pure page arithmetic; PDF applies a plan to
// real documents.
package splice

import (
	"fmt"
	"sort"

	"github.com/pedrodavics/PGR/internal/reporterr"
)

// Layout maps template page indices to the content page that replaces
// them. Content pages that no template index refers to are inserted after
// template page InsertAfter, or after the highest mapped index when
// InsertAfter is nil. InsertAfter -1 inserts before the first page.
// All indices are zero-based.
type Layout struct {
	Pages       map[int]int
	InsertAfter *int
}

// Source identifies which document a planned page comes from.
type Source int

const (
	FromTemplate Source = iota
	FromContent
)

func (s Source) String() string {
	if s == FromContent {
		return "content"
	}
	return "template"
}

// PageRef is one page of the output document.
type PageRef struct {
	Source Source
	Index  int
}

// Inserted returns the content page indices that no template page maps
// to, in ascending order.
func (l Layout) Inserted(contentPages int) []int {
	used := make(map[int]bool, len(l.Pages))
	for _, c := range l.Pages {
		used[c] = true
	}
	var out []int
	for i := 0; i < contentPages; i++ {
		if !used[i] {
			out = append(out, i)
		}
	}
	return out
}

// insertionPoint resolves InsertAfter.
func (l Layout) insertionPoint(templatePages int) int {
	if l.InsertAfter != nil {
		return *l.InsertAfter
	}
	at := templatePages - 1
	if len(l.Pages) > 0 {
		at = -1
		for tpl := range l.Pages {
			if tpl > at {
				at = tpl
			}
		}
	}
	return at
}

// Plan computes the output page sequence for a template of n pages and a
// content document of m pages. The result has n + len(Inserted(m)) pages.
func Plan(n, m int, l Layout) ([]PageRef, error) {
	if n <= 0 {
		return nil, reporterr.New(reporterr.KindSplice, "splice", "template has no pages", nil)
	}
	if m <= 0 {
		return nil, reporterr.New(reporterr.KindSplice, "splice", "content document has no pages", nil)
	}

	keys := make([]int, 0, len(l.Pages))
	for tpl := range l.Pages {
		keys = append(keys, tpl)
	}
	sort.Ints(keys)
	for _, tpl := range keys {
		c := l.Pages[tpl]
		if tpl < 0 || tpl >= n {
			return nil, reporterr.New(reporterr.KindSplice, "splice",
				fmt.Sprintf("template page %d out of range: template has %d pages", tpl, n), nil)
		}
		if c < 0 || c >= m {
			return nil, reporterr.New(reporterr.KindSplice, "splice",
				fmt.Sprintf("content page %d mapped to template page %d out of range: content has %d pages", c, tpl, m), nil)
		}
	}

	at := l.insertionPoint(n)
	if at < -1 || at >= n {
		return nil, reporterr.New(reporterr.KindSplice, "splice",
			fmt.Sprintf("insertion point %d out of range: template has %d pages", at, n), nil)
	}

	inserted := l.Inserted(m)
	out := make([]PageRef, 0, n+len(inserted))
	appendInserted := func() {
		for _, c := range inserted {
			out = append(out, PageRef{Source: FromContent, Index: c})
		}
	}
	if at == -1 {
		appendInserted()
	}
	for i := 0; i < n; i++ {
		if c, ok := l.Pages[i]; ok {
			out = append(out, PageRef{Source: FromContent, Index: c})
		} else {
			out = append(out, PageRef{Source: FromTemplate, Index: i})
		}
		if i == at {
			appendInserted()
		}
	}
	return out, nil
}

// Apply splices in-memory pages.
func Apply[T any](template, content []T, l Layout) ([]T, error) {
	plan, err := Plan(len(template), len(content), l)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(plan))
	for i, ref := range plan {
		if ref.Source == FromContent {
			out[i] = content[ref.Index]
		} else {
			out[i] = template[ref.Index]
		}
	}
	return out, nil
}
