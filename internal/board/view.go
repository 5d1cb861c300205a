package board

// ColumnView is one rendered column.
type ColumnView struct {
	Column Column
	Issues []Issue
	Cards  []Card
	Count  int
	// OverLimit is informational; it never blocks a drop.
	OverLimit bool
}

// View is the full board as rendered.
type View struct {
	Columns  []ColumnView
	Grouping Grouping
}

// Build orders columns, groups issues and projects cards.
func Build(columns []Column, issues []Issue) View {
	ordered := OrderColumns(columns)
	g := Group(ordered, issues)
	v := View{Grouping: g, Columns: make([]ColumnView, 0, len(g.Order))}
	seen := make(map[string]bool, len(ordered))
	for _, col := range ordered {
		if seen[col.ID] {
			continue
		}
		seen[col.ID] = true
		bucket := g.Bucket(col.ID)
		cv := ColumnView{
			Column: col,
			Issues: bucket,
			Cards:  Cards(bucket),
			Count:  len(bucket),
		}
		if limit, ok := col.Limit(); ok && cv.Count > limit {
			cv.OverLimit = true
		}
		v.Columns = append(v.Columns, cv)
	}
	return v
}

// Index returns the position of the column id in the view.
func (v View) Index(columnID string) int {
	for i, cv := range v.Columns {
		if cv.Column.ID == columnID {
			return i
		}
	}
	return -1
}
