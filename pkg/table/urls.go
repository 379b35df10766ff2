package table

import (
	"regexp"
	"sort"
	"strings"
)

// ExtractURLs collects distinct file URLs from the table. Cells are split
// on the value separator so multi-file upload answers yield every URL.
// urlPat identifies upload URLs (one full-cell match per candidate);
// filterPat optionally narrows the result and may be nil.
func (t *Table) ExtractURLs(urlPat, filterPat *regexp.Regexp) []string {
	found := make(map[string]struct{})
	for i := range t.Rows {
		for _, cell := range t.Rows[i].Values {
			for _, part := range strings.Split(cell, ValueSeparator) {
				candidate := strings.TrimSpace(part)
				if candidate == "" {
					continue
				}
				if m := urlPat.FindString(candidate); m != candidate {
					continue
				}
				if filterPat != nil && !filterPat.MatchString(candidate) {
					continue
				}
				found[candidate] = struct{}{}
			}
		}
	}

	urls := make([]string, 0, len(found))
	for url := range found {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// UploadURLPattern builds the URL shape of files uploaded to a form on the
// given server and directory.
func UploadURLPattern(server, directory string) *regexp.Regexp {
	return regexp.MustCompile(
		`https://` + regexp.QuoteMeta(server) + `\.formsite\.com/` +
			regexp.QuoteMeta(directory) + `/files/.*`)
}
