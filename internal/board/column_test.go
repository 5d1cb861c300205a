package board

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestOrderColumns(t *testing.T) {
	tests := []struct {
		name string
		in   []Column
		want []string
	}{
		{
			name: "empty input yields defaults",
			in:   nil,
			want: []string{DefaultTodoID, DefaultProgressID, DefaultReviewID, DefaultDoneID},
		},
		{
			name: "sorted by position",
			in: []Column{
				{ID: "c", Position: 2},
				{ID: "a", Position: 0},
				{ID: "b", Position: 1},
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "ties keep input order",
			in: []Column{
				{ID: "x", Position: 1},
				{ID: "y", Position: 0},
				{ID: "z", Position: 1},
				{ID: "w", Position: 0},
			},
			want: []string{"y", "w", "x", "z"},
		},
		{
			name: "negative positions sort first",
			in: []Column{
				{ID: "later", Position: 5},
				{ID: "early", Position: -3},
			},
			want: []string{"early", "later"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OrderColumns(tt.in)
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.ID
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("OrderColumns() ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrderColumnsDoesNotReorderInput(t *testing.T) {
	in := []Column{{ID: "b", Position: 1}, {ID: "a", Position: 0}}
	_ = OrderColumns(in)
	if in[0].ID != "b" || in[1].ID != "a" {
		t.Errorf("input reordered: %+v", in)
	}
}

func TestDefaultColumns(t *testing.T) {
	got := DefaultColumns()
	want := []Column{
		{ID: "default-todo", Name: "To Do", Position: 0},
		{ID: "default-progress", Name: "In Progress", Position: 1},
		{ID: "default-review", Name: "Review", Position: 2},
		{ID: "default-done", Name: "Done", Position: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DefaultColumns() mismatch (-want +got):\n%s", diff)
	}
	for _, c := range got {
		if !IsDefault(c.ID) {
			t.Errorf("IsDefault(%q) = false", c.ID)
		}
	}
	if IsDefault("col-1") {
		t.Error("IsDefault(col-1) = true")
	}
}

func TestColumnLimit(t *testing.T) {
	if _, ok := (Column{}).Limit(); ok {
		t.Error("expected no limit")
	}
	if n, ok := (Column{WIPLimit: intPtr(3)}).Limit(); !ok || n != 3 {
		t.Errorf("Limit() = %d, %v", n, ok)
	}
}
