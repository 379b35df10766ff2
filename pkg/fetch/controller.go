// Package fetch drives the sequential paginated walk of a form's results
// and the one-time items metadata request.
//
// The controller keeps exactly one request in flight: the results endpoint
// is rate limited server-side and parallel page fetches would burn the
// budget. Rate-limit responses suspend the walk for a fixed cooldown and
// the same page is retried; connection failures back off briefly and also
// retry the same page. Any other API error aborts the session.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/formsite-tools/formsite-export/pkg/client"
	"github.com/formsite-tools/formsite-export/pkg/labels"
	"github.com/formsite-tools/formsite-export/pkg/table"
)

// PageCountHeader communicates the last page number on the first results
// response of a session.
const PageCountHeader = "Pagination-Page-Last"

// Prometheus metrics for fetch sessions.
var (
	fetchPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formsite_fetch_pages_total",
		Help: "Total result pages fetched",
	})

	fetchRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formsite_fetch_rate_limit_waits_total",
		Help: "Total rate-limit cooldowns during fetch sessions",
	})

	fetchNetworkRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formsite_fetch_network_retries_total",
		Help: "Total connection-failure retries during fetch sessions",
	})
)

// Config holds the controller's pacing knobs.
type Config struct {
	// RateLimitCooldown is the fixed suspension after a 429 before the
	// same page is retried.
	RateLimitCooldown time.Duration

	// NetworkBackoff is the fixed pause after a connection-level failure
	// before the same page is retried.
	NetworkBackoff time.Duration

	// PageDelay is the pause between successive page requests.
	PageDelay time.Duration
}

// DefaultConfig returns the standard pacing configuration.
func DefaultConfig() Config {
	return Config{
		RateLimitCooldown: 60 * time.Second,
		NetworkBackoff:    5 * time.Second,
		PageDelay:         3 * time.Second,
	}
}

// Controller walks the paginated results of one form. Pagination state is
// per-session: a controller is single-use and not restartable after the
// walk completes.
type Controller struct {
	client *client.Client
	formID string
	params Params
	config Config
	logger zerolog.Logger

	currentPage    int
	totalPages     int
	pageCountKnown bool
}

// NewController creates a fetch controller for one form.
func NewController(c *client.Client, formID string, params Params, cfg Config) *Controller {
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = 60 * time.Second
	}
	if cfg.NetworkBackoff <= 0 {
		cfg.NetworkBackoff = 5 * time.Second
	}

	return &Controller{
		client: c,
		formID: formID,
		params: params,
		config: cfg,
		logger: log.With().
			Str("component", "fetch-controller").
			Str("form_id", formID).
			Logger(),
		currentPage: 1,
		totalPages:  1,
	}
}

// CurrentPage returns the page the controller will request next.
func (s *Controller) CurrentPage() int { return s.currentPage }

// TotalPages returns the session page count, valid once the first page
// has been fetched.
func (s *Controller) TotalPages() int { return s.totalPages }

// FetchAll walks every page in order and hands each decoded payload to
// feed. The walk is finite: the page count comes from the first response
// and is never re-derived.
func (s *Controller) FetchAll(ctx context.Context, feed func(*table.ResultsPage) error) error {
	for s.currentPage <= s.totalPages {
		page, err := s.fetchPage(ctx, s.currentPage)
		if err != nil {
			return err
		}

		if len(page.Results) == 0 {
			return client.ErrNoResults
		}

		fetchPagesTotal.Inc()
		s.logger.Debug().
			Int("page", s.currentPage).
			Int("total_pages", s.totalPages).
			Int("results", len(page.Results)).
			Msg("Fetched results page")

		if err := feed(page); err != nil {
			return err
		}

		s.currentPage++
		if s.currentPage <= s.totalPages && s.config.PageDelay > 0 {
			if err := s.wait(ctx, s.config.PageDelay); err != nil {
				return err
			}
		}
	}

	s.logger.Info().
		Int("pages", s.totalPages).
		Msg("Fetch session complete")
	return nil
}

// fetchPage requests one page, waiting out rate limits and connection
// failures until the page succeeds or a fatal error surfaces.
func (s *Controller) fetchPage(ctx context.Context, page int) (*table.ResultsPage, error) {
	query, err := s.params.ResultsQuery(page)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/forms/%s/results", s.formID)

	for {
		resp, err := s.client.Get(ctx, path, query)
		if err == nil {
			err = s.client.CheckStatus(resp)
		}

		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && client.Retryable(apiErr.Kind) {
				if waitErr := s.suspend(ctx, apiErr.Kind, page); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}

		s.notePageCount(resp)

		var payload table.ResultsPage
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decode results page %d: %w", page, decodeErr)
		}
		return &payload, nil
	}
}

// notePageCount caches the session page count from the first successful
// response; later responses never change it.
func (s *Controller) notePageCount(resp *http.Response) {
	if s.pageCountKnown {
		return
	}
	s.pageCountKnown = true

	header := resp.Header.Get(PageCountHeader)
	if header == "" {
		s.logger.Warn().Msg("Page count header missing, assuming single page")
		return
	}
	total, err := strconv.Atoi(header)
	if err != nil || total < 1 {
		s.logger.Warn().Str("header", header).Msg("Unparsable page count header, assuming single page")
		return
	}
	s.totalPages = total
	s.logger.Debug().Int("total_pages", total).Msg("Session page count discovered")
}

// suspend sleeps out the cooldown appropriate for a retryable error kind.
func (s *Controller) suspend(ctx context.Context, kind client.Kind, page int) error {
	var wait time.Duration
	switch kind {
	case client.KindRateLimit:
		wait = s.config.RateLimitCooldown
		fetchRateLimitWaitsTotal.Inc()
		s.logger.Warn().
			Int("page", page).
			Dur("cooldown", wait).
			Msg("Rate limited, suspending fetch")
	default:
		wait = s.config.NetworkBackoff
		fetchNetworkRetriesTotal.Inc()
		s.logger.Warn().
			Int("page", page).
			Dur("backoff", wait).
			Msg("Connection failure, retrying page")
	}
	return s.wait(ctx, wait)
}

// wait sleeps with context cancellation support. The timer is stopped on
// cancellation so a long cooldown does not linger.
func (s *Controller) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", client.ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Items performs the one-time items metadata fetch, under the same retry
// policy as result pages.
func (s *Controller) Items(ctx context.Context) ([]labels.Item, error) {
	path := fmt.Sprintf("/forms/%s/items", s.formID)
	query := s.params.ItemsQuery()

	for {
		resp, err := s.client.Get(ctx, path, query)
		if err == nil {
			err = s.client.CheckStatus(resp)
		}

		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && client.Retryable(apiErr.Kind) {
				if waitErr := s.suspend(ctx, apiErr.Kind, 0); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}

		var payload labels.Payload
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decode items: %w", decodeErr)
		}

		s.logger.Debug().Int("items", len(payload.Items)).Msg("Fetched form items")
		return payload.Items, nil
	}
}

// FetchTable runs a full session: walks every page, flattens the records,
// and materializes the ordered table in the display timezone. Any "last N"
// limit is applied here, after the full table is assembled and sorted by
// descending reference number, never by truncating pagination early.
func (s *Controller) FetchTable(ctx context.Context) (*table.Table, error) {
	loc, err := s.params.Location()
	if err != nil {
		return nil, err
	}

	parser := table.NewParser()
	err = s.FetchAll(ctx, func(page *table.ResultsPage) error {
		parser.Feed(page)
		return nil
	})
	if err != nil {
		return nil, err
	}

	tbl, err := parser.Materialize()
	if err != nil {
		return nil, err
	}
	tbl.Location = loc

	if s.params.Last > 0 {
		tbl.SortByIDDesc()
		tbl.Head(s.params.Last)
	}
	return tbl, nil
}
