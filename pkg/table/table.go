package table

import (
	"sort"
	"time"
)

// DateFormat renders parsed date columns in exports.
const DateFormat = "2006-01-02 15:04:05"

// Row is one flattened submission. Values holds every present column cell
// except the date columns, which live in Dates as UTC instants.
type Row struct {
	ID     int64
	Values map[string]string
	Dates  map[string]time.Time
}

func (r Row) clone() Row {
	out := Row{ID: r.ID, Values: make(map[string]string, len(r.Values))}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	if r.Dates != nil {
		out.Dates = make(map[string]time.Time, len(r.Dates))
		for k, v := range r.Dates {
			out.Dates[k] = v
		}
	}
	return out
}

// Cell returns the display text for a column, formatting date columns in
// the table's location. The bool reports column presence in the row.
func (t *Table) Cell(row Row, col string) (string, bool) {
	if instant, ok := row.Dates[col]; ok {
		loc := t.Location
		if loc == nil {
			loc = time.UTC
		}
		return instant.In(loc).Format(DateFormat), true
	}
	val, ok := row.Values[col]
	return val, ok
}

// Table is an ordered projection of submission rows to columns.
// Date instants stay UTC; Location only affects display.
type Table struct {
	Columns  []string
	Rows     []Row
	Location *time.Location
}

// SortByIDDesc orders rows by descending reference number.
func (t *Table) SortByIDDesc() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].ID > t.Rows[j].ID
	})
}

// Head truncates the table to its first n rows.
func (t *Table) Head(n int) {
	if n >= 0 && n < len(t.Rows) {
		t.Rows = t.Rows[:n]
	}
}

// LatestID returns the highest reference number, or 0 for an empty table.
func (t *Table) LatestID() int64 {
	var max int64
	for i := range t.Rows {
		if t.Rows[i].ID > max {
			max = t.Rows[i].ID
		}
	}
	return max
}

// MergeKeepFirst combines freshly fetched rows with previously cached ones.
// Fresh rows come first; on a duplicate reference number the first
// occurrence wins, so a re-fetched submission replaces its cached version.
// Columns are the fresh order with unseen cached columns appended.
func MergeKeepFirst(fresh, cached *Table) *Table {
	out := &Table{Location: fresh.Location}

	seen := make(map[string]struct{}, len(fresh.Columns))
	for _, col := range fresh.Columns {
		seen[col] = struct{}{}
		out.Columns = append(out.Columns, col)
	}
	for _, col := range cached.Columns {
		if _, ok := seen[col]; !ok {
			seen[col] = struct{}{}
			out.Columns = append(out.Columns, col)
		}
	}

	ids := make(map[int64]struct{}, len(fresh.Rows)+len(cached.Rows))
	for _, rows := range [][]Row{fresh.Rows, cached.Rows} {
		for i := range rows {
			if _, ok := ids[rows[i].ID]; ok {
				continue
			}
			ids[rows[i].ID] = struct{}{}
			out.Rows = append(out.Rows, rows[i])
		}
	}

	return out
}

// Rename replaces column keys in the column list and every row. Keys
// without a mapping keep their id.
func (t *Table) Rename(mapping map[string]string) {
	for i, col := range t.Columns {
		if label, ok := mapping[col]; ok {
			t.Columns[i] = label
		}
	}
	for i := range t.Rows {
		row := &t.Rows[i]
		for key, label := range mapping {
			if val, ok := row.Values[key]; ok && key != label {
				delete(row.Values, key)
				row.Values[label] = val
			}
			if instant, ok := row.Dates[key]; ok && key != label {
				delete(row.Dates, key)
				row.Dates[label] = instant
			}
		}
	}
}
