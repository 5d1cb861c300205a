// Package board maps issues onto ordered workflow columns and turns card
// drag gestures into column-change intents.
package board

import "sort"

// Column is one workflow stage. Columns are supplied wholesale on every
// render; the board never creates or edits them.
type Column struct {
	ID       string
	Name     string
	Position int
	Color    *string
	WIPLimit *int
}

// Stable ids for the built-in columns used when a project has no workflow.
const (
	DefaultTodoID     = "default-todo"
	DefaultProgressID = "default-progress"
	DefaultReviewID   = "default-review"
	DefaultDoneID     = "default-done"
)

// DefaultColumns returns the fallback column set in display order.
func DefaultColumns() []Column {
	return []Column{
		{ID: DefaultTodoID, Name: "To Do", Position: 0},
		{ID: DefaultProgressID, Name: "In Progress", Position: 1},
		{ID: DefaultReviewID, Name: "Review", Position: 2},
		{ID: DefaultDoneID, Name: "Done", Position: 3},
	}
}

// OrderColumns returns the columns sorted ascending by Position. Columns
// sharing a position keep their input order. An empty input yields
// DefaultColumns. The input slice is left untouched.
func OrderColumns(cols []Column) []Column {
	if len(cols) == 0 {
		return DefaultColumns()
	}
	ordered := make([]Column, len(cols))
	copy(ordered, cols)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return ordered
}

// IsDefault reports whether id names one of the built-in columns.
func IsDefault(id string) bool {
	switch id {
	case DefaultTodoID, DefaultProgressID, DefaultReviewID, DefaultDoneID:
		return true
	}
	return false
}

// Limit returns the column's WIP limit and whether one is set.
func (c Column) Limit() (int, bool) {
	if c.WIPLimit == nil {
		return 0, false
	}
	return *c.WIPLimit, true
}
