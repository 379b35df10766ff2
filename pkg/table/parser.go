package table

import (
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// compositeIDPat matches matrix/grid cell ids of the form question-row-col.
var compositeIDPat = regexp.MustCompile(`^(\d+)-(\d+)-(\d+)$`)

// TimestampError indicates a date column that could not be parsed as a
// UTC instant. Raw strings are never silently kept.
type TimestampError struct {
	Column string
	Value  string
	Err    error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("unparsable timestamp in column %q: %q: %v", e.Column, e.Value, e.Err)
}

func (e *TimestampError) Unwrap() error {
	return e.Err
}

// Parser accumulates submission records page by page and materializes the
// final ordered table. Column order is first-seen across the whole session,
// so feeding the same pages in the same order always yields the same
// columns.
type Parser struct {
	rows     []Row
	itemCols []string
	itemSeen map[string]struct{}
	metaSeen map[string]struct{}
	logger   zerolog.Logger
}

// NewParser creates an empty parser.
func NewParser() *Parser {
	return &Parser{
		itemSeen: make(map[string]struct{}),
		metaSeen: make(map[string]struct{}),
		logger:   log.With().Str("component", "parser").Logger(),
	}
}

// Feed flattens one page of records and appends the resulting rows.
func (p *Parser) Feed(page *ResultsPage) {
	for i := range page.Results {
		p.feedRecord(&page.Results[i])
	}
	p.logger.Debug().
		Int("records", len(page.Results)).
		Int("rows_total", len(p.rows)).
		Msg("Page flattened")
}

// Count returns the number of rows accumulated so far.
func (p *Parser) Count() int {
	return len(p.rows)
}

func (p *Parser) feedRecord(rec *Record) {
	row := Row{
		ID:     rec.ID,
		Values: make(map[string]string, len(rec.Meta)+len(rec.Items)),
	}

	for key, val := range rec.Meta {
		row.Values[key] = val
		p.metaSeen[key] = struct{}{}
	}

	for i := range rec.Items {
		item := &rec.Items[i]
		key := item.ID
		val := item.FlatValue()

		// Matrix cells sharing (question, column) fold into one column
		// keyed question-col, concatenated in row-append order.
		if m := compositeIDPat.FindStringSubmatch(key); m != nil {
			key = m[1] + "-" + m[3]
			if prev, ok := row.Values[key]; ok {
				row.Values[key] = prev + ValueSeparator + val
				continue
			}
		}

		row.Values[key] = val
		if _, ok := p.itemSeen[key]; !ok {
			p.itemSeen[key] = struct{}{}
			p.itemCols = append(p.itemCols, key)
		}
	}

	p.rows = append(p.rows, row)
}

// Materialize orders the accumulated columns into the standard export
// layout and parses the date columns as UTC instants. The parser can keep
// feeding afterwards; Materialize snapshots the current state.
func (p *Parser) Materialize() (*Table, error) {
	columns := make([]string, 0, len(leftColumns)+len(p.itemCols)+len(metadataColumns))
	for _, col := range leftColumns {
		if _, ok := p.metaSeen[col]; ok {
			columns = append(columns, col)
		}
	}
	columns = append(columns, p.itemCols...)
	for _, col := range metadataColumns[len(leftColumns):] {
		if _, ok := p.metaSeen[col]; ok {
			columns = append(columns, col)
		}
	}

	rows := make([]Row, len(p.rows))
	for i := range p.rows {
		row := p.rows[i].clone()
		for _, col := range dateColumns {
			raw, ok := row.Values[col]
			if !ok {
				continue
			}
			instant, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, &TimestampError{Column: col, Value: raw, Err: err}
			}
			if row.Dates == nil {
				row.Dates = make(map[string]time.Time, len(dateColumns))
			}
			row.Dates[col] = instant.UTC()
			delete(row.Values, col)
		}
		rows[i] = row
	}

	p.logger.Debug().
		Int("rows", len(rows)).
		Int("columns", len(columns)).
		Msg("Table materialized")

	return &Table{
		Columns:  columns,
		Rows:     rows,
		Location: time.UTC,
	}, nil
}
