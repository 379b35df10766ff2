// Package table implements the submission data model: decoding raw result
// pages, flattening nested field values into columns, and the ordered
// table produced from them.
package table

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Metadata columns appear outside the "items" object of a result record.
// The slice order is the canonical export order of the right-hand block.
var metadataColumns = []string{
	"id",
	"result_status",
	"login_username",
	"login_email",
	"payment_status",
	"payment_amount",
	"score",
	"date_update",
	"date_start",
	"date_finish",
	"user_ip",
	"user_browser",
	"user_device",
	"user_referrer",
}

// Left-hand metadata block of the final column order.
var leftColumns = []string{"id", "result_status", "login_username", "login_email"}

// Date columns parsed into UTC instants at materialization.
var dateColumns = []string{"date_update", "date_start", "date_finish"}

// ValueSeparator joins multi-value answers and matrix cells.
const ValueSeparator = " | "

// ResultsPage is one server page of submission records.
type ResultsPage struct {
	Results []Record `json:"results"`
}

// Record is a single form submission: the fixed metadata key set plus the
// ordered list of answered items. Only metadata keys present in the JSON
// appear in Meta, so optional fields never produce phantom columns.
type Record struct {
	ID    int64
	Meta  map[string]string
	Items []Item
}

// UnmarshalJSON partitions the record into known metadata fields and the
// items list.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Meta = make(map[string]string)
	for _, key := range metadataColumns {
		rawVal, ok := raw[key]
		if !ok {
			continue
		}
		val, err := scalarToString(rawVal)
		if err != nil {
			return fmt.Errorf("metadata field %q: %w", key, err)
		}
		r.Meta[key] = val
	}

	if rawID, ok := raw["id"]; ok {
		if err := json.Unmarshal(rawID, &r.ID); err != nil {
			// Some result views serialize the reference number as a string.
			var s string
			if err2 := json.Unmarshal(rawID, &s); err2 != nil {
				return fmt.Errorf("record id: %w", err)
			}
			if _, err2 := fmt.Sscanf(s, "%d", &r.ID); err2 != nil {
				return fmt.Errorf("record id %q: %w", s, err2)
			}
		}
	}

	if rawItems, ok := raw["items"]; ok {
		if err := json.Unmarshal(rawItems, &r.Items); err != nil {
			return fmt.Errorf("record items: %w", err)
		}
	}

	return nil
}

// Item is one answered form control. A scalar answer carries Value, a
// multi-value answer (checkboxes, rankings) carries Values. The variant is
// fixed at decode time.
type Item struct {
	ID     string
	Value  string
	Values []PositionedValue

	multi bool
}

// PositionedValue is one choice of a multi-value answer.
type PositionedValue struct {
	Position int    `json:"position"`
	Value    string `json:"value"`
}

// UnmarshalJSON decodes either item variant.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     flexibleID        `json:"id"`
		Value  *string           `json:"value"`
		Values []PositionedValue `json:"values"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	it.ID = string(raw.ID)
	if raw.Value != nil {
		it.Value = *raw.Value
		it.multi = false
		return nil
	}
	it.Values = raw.Values
	it.multi = true
	return nil
}

// FlatValue renders the item as a single cell. Multi-value answers are
// ordered by position and joined with the value separator.
func (it *Item) FlatValue() string {
	if !it.multi {
		return it.Value
	}
	values := make([]PositionedValue, len(it.Values))
	copy(values, it.Values)
	sort.SliceStable(values, func(i, j int) bool {
		return values[i].Position < values[j].Position
	})
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Value
	}
	return strings.Join(parts, ValueSeparator)
}

// flexibleID accepts item ids serialized as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item id: %s", string(data))
	}
	*f = flexibleID(n.String())
	return nil
}

// scalarToString renders a metadata JSON value as its cell text.
func scalarToString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return fmt.Sprintf("%t", b), nil
	}
	if string(raw) == "null" {
		return "", nil
	}
	return "", fmt.Errorf("unsupported scalar %s", string(raw))
}
