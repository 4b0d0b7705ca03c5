package splice

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrodavics/PGR/internal/reporterr"
)

func pages(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestApply_DefaultReportLayout(t *testing.T) {
	tpl := pages("T", 14)
	content := pages("C", 5)
	l := Layout{Pages: map[int]int{3: 0, 9: 1, 10: 2, 11: 3}}

	out, err := Apply(tpl, content, l)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"T0", "T1", "T2", "C0", "T4", "T5", "T6", "T7", "T8",
		"C1", "C2", "C3", "C4", "T12", "T13",
	}, out)
}

func TestApply_ExplicitInsertionPoint(t *testing.T) {
	out, err := Apply(pages("T", 4), pages("C", 3), Layout{Pages: map[int]int{0: 2}, InsertAfter: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"C2", "T1", "C0", "C1", "T2", "T3"}, out)
}

func TestApply_InsertBeforeFirstPage(t *testing.T) {
	out, err := Apply(pages("T", 2), pages("C", 1), Layout{InsertAfter: intPtr(-1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"C0", "T0", "T1"}, out)
}

func TestApply_NoMapAppendsContent(t *testing.T) {
	out, err := Apply(pages("T", 2), pages("C", 2), Layout{})
	require.NoError(t, err)
	assert.Equal(t, []string{"T0", "T1", "C0", "C1"}, out)
}

func TestPlan_PageCountAndUntouchedTemplatePages(t *testing.T) {
	layouts := []Layout{
		{Pages: map[int]int{3: 0, 9: 1, 10: 2, 11: 3}},
		{Pages: map[int]int{0: 0}, InsertAfter: intPtr(5)},
		{Pages: map[int]int{13: 4, 2: 1}},
		{InsertAfter: intPtr(-1)},
	}
	const n, m = 14, 5
	for i, l := range layouts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			plan, err := Plan(n, m, l)
			require.NoError(t, err)
			assert.Len(t, plan, n+len(l.Inserted(m)))

			var seen []int
			for _, ref := range plan {
				if ref.Source == FromTemplate {
					_, mapped := l.Pages[ref.Index]
					assert.False(t, mapped, "mapped template page %d copied", ref.Index)
					seen = append(seen, ref.Index)
				}
			}
			var want []int
			for i := 0; i < n; i++ {
				if _, mapped := l.Pages[i]; !mapped {
					want = append(want, i)
				}
			}
			assert.Equal(t, want, seen)
		})
	}
}

func TestPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		n, m int
		l    Layout
	}{
		{"empty template", 0, 1, Layout{}},
		{"empty content", 3, 0, Layout{}},
		{"template index out of range", 3, 1, Layout{Pages: map[int]int{3: 0}}},
		{"content index out of range", 3, 1, Layout{Pages: map[int]int{0: 1}}},
		{"insertion point out of range", 3, 2, Layout{InsertAfter: intPtr(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.n, tt.m, tt.l)
			require.Error(t, err)
			assert.True(t, reporterr.Is(err, reporterr.KindSplice))
		})
	}
}
