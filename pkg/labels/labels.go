// Package labels resolves form item ids to human-readable column labels
// using the one-time items metadata fetch.
package labels

import (
	"strconv"
	"strings"
)

// Item is one entry of the form items metadata: a question/control with
// its label, export position, and optional child item ids (matrix rows
// and columns reference their parent through Children).
type Item struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Position int      `json:"position"`
	Children []string `json:"children,omitempty"`
}

// Payload is the response shape of the items endpoint.
type Payload struct {
	Items []Item `json:"items"`
}

// Metadata column labels used in exports, matching the Formsite UI.
var metadataLabels = map[string]string{
	"id":             "Reference #",
	"result_status":  "Status",
	"login_username": "Username",
	"login_email":    "Email Address",
	"payment_status": "Payment Status",
	"payment_amount": "Payment Amount Paid",
	"score":          "Score",
	"date_update":    "Date",
	"date_start":     "Start Time",
	"date_finish":    "Finish Time",
	"user_ip":        "User",
	"user_browser":   "Browser",
	"user_device":    "Device",
	"user_referrer":  "Referrer",
}

// Resolve builds the column-id to label mapping.
//
// A leaf field maps to its own label. A field referenced as a child of a
// parent maps to "<own label> (<parent label>)". Composite column keys
// carry a trailing column index that selects the child label of the field
// itself; an out-of-range index falls back to the field's own label rather
// than dropping the column.
func Resolve(items []Item) map[string]string {
	labelByID := make(map[string]string, len(items))
	parentLabel := make(map[string]string)
	for _, item := range items {
		labelByID[item.ID] = item.Label
		for _, child := range item.Children {
			parentLabel[child] = item.Label
		}
	}

	mapping := make(map[string]string, len(items)+len(metadataLabels))
	for _, item := range items {
		parent, isChild := parentLabel[item.ID]
		if !isChild {
			mapping[item.ID] = item.Label
			continue
		}

		if len(item.Children) > 0 {
			if child, ok := childAtKeyIndex(item); ok {
				mapping[item.ID] = labelByID[child] + " (" + parent + ")"
				continue
			}
		}
		mapping[item.ID] = item.Label + " (" + parent + ")"
	}

	for key, label := range metadataLabels {
		mapping[key] = label
	}
	return mapping
}

// childAtKeyIndex resolves the child id selected by the trailing index
// segment of a composite item id.
func childAtKeyIndex(item Item) (string, bool) {
	segments := strings.Split(item.ID, "-")
	idx, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil || idx < 0 || idx >= len(item.Children) {
		return "", false
	}
	return item.Children[idx], true
}
