package board

// Issue is the render-scoped copy of a tracked work item. A nil ColumnID
// means the issue has not been placed on the workflow yet.
type Issue struct {
	ID           string
	Key          string
	Title        string
	Type         string
	Priority     string
	AssigneeID   *string
	AssigneeName string
	ColumnID     *string
}

// Location is a slot on the board: a column and an index within its list.
type Location struct {
	ColumnID string
	Index    int
}

// Grouping is the partition of issues into column buckets. It is derived
// from (columns, issues) and never mutated on its own.
type Grouping struct {
	// Order holds column ids in display order.
	Order   []string
	Buckets map[string][]Issue
	// Dropped counts issues whose column id matched no known column.
	Dropped int
}

// Group partitions issues over already ordered columns. Issues without a
// column land in the first column; issues that reference an unknown column
// are left out. Input order is preserved inside every bucket.
func Group(ordered []Column, issues []Issue) Grouping {
	g := Grouping{
		Order:   make([]string, 0, len(ordered)),
		Buckets: make(map[string][]Issue, len(ordered)),
	}
	for _, c := range ordered {
		if _, seen := g.Buckets[c.ID]; seen {
			continue
		}
		g.Order = append(g.Order, c.ID)
		g.Buckets[c.ID] = []Issue{}
	}
	if len(g.Order) == 0 {
		g.Dropped = len(issues)
		return g
	}
	first := g.Order[0]
	for _, is := range issues {
		target := first
		if is.ColumnID != nil {
			target = *is.ColumnID
		}
		bucket, ok := g.Buckets[target]
		if !ok {
			g.Dropped++
			continue
		}
		g.Buckets[target] = append(bucket, is)
	}
	return g
}

// Bucket returns the issues grouped under the column id.
func (g Grouping) Bucket(columnID string) []Issue {
	return g.Buckets[columnID]
}

// Len returns the number of issues in the column.
func (g Grouping) Len(columnID string) int {
	return len(g.Buckets[columnID])
}

// Locate finds the slot currently holding the issue.
func (g Grouping) Locate(issueID string) (Location, bool) {
	for _, col := range g.Order {
		for i, is := range g.Buckets[col] {
			if is.ID == issueID {
				return Location{ColumnID: col, Index: i}, true
			}
		}
	}
	return Location{}, false
}

// Total returns the number of grouped issues.
func (g Grouping) Total() int {
	n := 0
	for _, b := range g.Buckets {
		n += len(b)
	}
	return n
}
