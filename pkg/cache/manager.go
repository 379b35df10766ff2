package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/formsite-tools/formsite-export/pkg/table"
)

// Metadata summarizes a cached table. LatestResultID feeds the after_id
// filter of the next fetch session.
type Metadata struct {
	FormID         string    `json:"form_id"`
	UpdatedAt      time.Time `json:"update_date_utc"`
	RowsCount      int       `json:"rows_count"`
	ColumnsCount   int       `json:"columns_count"`
	LatestResultID int64     `json:"latest_result_id"`
}

// snapshot is the serialized table payload.
type snapshot struct {
	Columns []string      `json:"columns"`
	Rows    []rowSnapshot `json:"rows"`
}

type rowSnapshot struct {
	ID     int64                `json:"id"`
	Values map[string]string    `json:"values"`
	Dates  map[string]time.Time `json:"dates,omitempty"`
}

// Manager stores, loads, and merges cached tables over a Store backend.
// Cached tables keep raw column ids; labeled tables are display artifacts
// and are never persisted.
type Manager struct {
	store  Store
	logger zerolog.Logger
}

// NewManager creates a cache manager.
func NewManager(store Store) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Manager{
		store:  store,
		logger: log.With().Str("component", "cache").Logger(),
	}
}

// Save persists the table and its metadata.
func (m *Manager) Save(ctx context.Context, formID string, tbl *table.Table) error {
	snap := snapshot{Columns: tbl.Columns, Rows: make([]rowSnapshot, len(tbl.Rows))}
	for i, row := range tbl.Rows {
		snap.Rows[i] = rowSnapshot{ID: row.ID, Values: row.Values, Dates: row.Dates}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		cacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal table: %w", err)
	}

	meta, err := json.Marshal(Metadata{
		FormID:         formID,
		UpdatedAt:      time.Now().UTC(),
		RowsCount:      len(tbl.Rows),
		ColumnsCount:   len(tbl.Columns),
		LatestResultID: tbl.LatestID(),
	})
	if err != nil {
		cacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := m.store.Put(ctx, formID, data, meta); err != nil {
		cacheErrors.WithLabelValues("save").Inc()
		return err
	}

	m.logger.Debug().
		Str("form_id", formID).
		Int("rows", len(tbl.Rows)).
		Msg("Cached table saved")
	return nil
}

// Load returns the cached table, or ErrCacheMiss.
func (m *Manager) Load(ctx context.Context, formID string) (*table.Table, error) {
	data, _, err := m.store.Get(ctx, formID)
	if err != nil {
		if err == ErrCacheMiss {
			cacheMisses.Inc()
		} else {
			cacheErrors.WithLabelValues("load").Inc()
		}
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		cacheErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	tbl := &table.Table{Columns: snap.Columns, Location: time.UTC}
	tbl.Rows = make([]table.Row, len(snap.Rows))
	for i, row := range snap.Rows {
		tbl.Rows[i] = table.Row{ID: row.ID, Values: row.Values, Dates: row.Dates}
	}

	cacheHits.Inc()
	m.logger.Debug().
		Str("form_id", formID).
		Int("rows", len(tbl.Rows)).
		Msg("Cached table loaded")
	return tbl, nil
}

// Metadata returns the stored metadata document, or ErrCacheMiss.
func (m *Manager) Metadata(ctx context.Context, formID string) (*Metadata, error) {
	_, meta, err := m.store.Get(ctx, formID)
	if err != nil {
		return nil, err
	}
	var out Metadata
	if err := json.Unmarshal(meta, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &out, nil
}

// AfterID returns the reference number new fetches should start after.
// A cache miss yields 0, meaning fetch everything.
func (m *Manager) AfterID(ctx context.Context, formID string) (int64, error) {
	meta, err := m.Metadata(ctx, formID)
	if err != nil {
		if err == ErrCacheMiss {
			return 0, nil
		}
		return 0, err
	}
	return meta.LatestResultID, nil
}

// Update merges freshly fetched rows with the cached table (fresh rows
// first, duplicate reference numbers keep the first occurrence), persists
// the merged table, and returns it.
func (m *Manager) Update(ctx context.Context, formID string, fresh *table.Table) (*table.Table, error) {
	merged := fresh
	cached, err := m.Load(ctx, formID)
	switch err {
	case nil:
		merged = table.MergeKeepFirst(fresh, cached)
	case ErrCacheMiss:
	default:
		return nil, err
	}

	if err := m.Save(ctx, formID, merged); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("form_id", formID).
		Int("fresh_rows", len(fresh.Rows)).
		Int("merged_rows", len(merged.Rows)).
		Msg("Cache updated")
	return merged, nil
}
