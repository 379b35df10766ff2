package fetch

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// MaxPageLimit is the largest results-per-page value the API accepts.
const MaxPageLimit = 500

// Accepted input date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// Params narrows which results a fetch session retrieves and how the
// finished table is displayed.
type Params struct {
	// Last keeps only the newest N rows, applied after the full table is
	// assembled and sorted by descending reference number. Zero keeps all.
	Last int

	// AfterID / BeforeID bound results by reference number.
	AfterID  int64
	BeforeID int64

	// AfterDate / BeforeDate bound results by submission date. Accepted
	// layouts: ISO 8601 (Z), yyyy-mm-dd, yyyy-mm-dd HH:MM:SS. Values
	// without an explicit zone are read in Timezone and sent as UTC.
	AfterDate  string
	BeforeDate string

	// Timezone names the display zone for date columns, e.g.
	// "America/Chicago". Empty means UTC.
	Timezone string

	// ResultsView selects the server-side results view. 11 is the
	// all-items-plus-statistics view.
	ResultsView int

	// ResultsLabels selects which label set the items fetch returns.
	ResultsLabels int

	// Sort orders results by reference number, "asc" or "desc".
	Sort string

	// PageLimit is the results-per-page size, capped at MaxPageLimit.
	PageLimit int
}

// DefaultParams returns the standard export parameters.
func DefaultParams() Params {
	return Params{
		ResultsView: 11,
		Sort:        "desc",
		PageLimit:   MaxPageLimit,
	}
}

// Location resolves the display timezone.
func (p Params) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// ResultsQuery builds the query string for one results page request.
func (p Params) ResultsQuery(page int) (url.Values, error) {
	limit := p.PageLimit
	if limit <= 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if p.AfterID > 0 {
		q.Set("after_id", strconv.FormatInt(p.AfterID, 10))
	}
	if p.BeforeID > 0 {
		q.Set("before_id", strconv.FormatInt(p.BeforeID, 10))
	}
	if p.AfterDate != "" {
		date, err := p.parseInputDate(p.AfterDate)
		if err != nil {
			return nil, err
		}
		q.Set("after_date", date)
	}
	if p.BeforeDate != "" {
		date, err := p.parseInputDate(p.BeforeDate)
		if err != nil {
			return nil, err
		}
		q.Set("before_date", date)
	}
	if p.ResultsView > 0 {
		q.Set("results_view", strconv.Itoa(p.ResultsView))
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	return q, nil
}

// ItemsQuery builds the query string for the items metadata request.
func (p Params) ItemsQuery() url.Values {
	q := url.Values{}
	if p.ResultsLabels > 0 {
		q.Set("results_labels", strconv.Itoa(p.ResultsLabels))
	}
	return q
}

// parseInputDate reads a caller-supplied bound in any accepted layout and
// renders it as a UTC instant for the API.
func (p Params) parseInputDate(input string) (string, error) {
	loc, err := p.Location()
	if err != nil {
		return "", err
	}
	for _, layout := range dateLayouts {
		parsed, err := time.ParseInLocation(layout, input, loc)
		if err == nil {
			return parsed.UTC().Format("2006-01-02T15:04:05Z"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q (want ISO 8601, yyyy-mm-dd, or yyyy-mm-dd HH:MM:SS)", input)
}
