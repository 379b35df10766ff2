// Package forms lists the forms of a Formsite directory with their result
// and storage statistics.
package forms

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/formsite-tools/formsite-export/pkg/client"
)

// Form is one entry of the directory's forms listing.
type Form struct {
	Directory    string
	Name         string
	State        string
	ResultsCount int64
	FilesSize    int64
	PublishURL   string
}

// FilesSizeHuman renders the stored-files size with a binary unit.
func (f Form) FilesSizeHuman() string {
	return HumanSize(f.FilesSize)
}

// payload is the response shape of the forms endpoint.
type payload struct {
	Forms []struct {
		Directory string `json:"directory"`
		Name      string `json:"name"`
		State     string `json:"state"`
		Stats     struct {
			ResultsCount int64 `json:"resultsCount"`
			FilesSize    int64 `json:"filesSize"`
		} `json:"stats"`
		Publish struct {
			Link string `json:"link"`
		} `json:"publish"`
	} `json:"forms"`
}

// Config holds the pacing knobs for retryable listing failures.
type Config struct {
	// RateLimitCooldown is the fixed suspension after a 429.
	RateLimitCooldown time.Duration

	// NetworkBackoff is the fixed pause after a connection-level failure.
	NetworkBackoff time.Duration
}

// DefaultConfig returns the standard pacing configuration.
func DefaultConfig() Config {
	return Config{
		RateLimitCooldown: 60 * time.Second,
		NetworkBackoff:    5 * time.Second,
	}
}

// List fetches every form of the account directory, under the same retry
// policy as result pages: rate limits and connection failures wait out a
// fixed interval and retry, anything else is fatal.
func List(ctx context.Context, c *client.Client, cfg Config) ([]Form, error) {
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = 60 * time.Second
	}
	if cfg.NetworkBackoff <= 0 {
		cfg.NetworkBackoff = 5 * time.Second
	}
	logger := log.With().Str("component", "forms-list").Logger()

	for {
		resp, err := c.Get(ctx, "/forms", nil)
		if err == nil {
			err = c.CheckStatus(resp)
		}

		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && client.Retryable(apiErr.Kind) {
				wait := cfg.NetworkBackoff
				if apiErr.Kind == client.KindRateLimit {
					wait = cfg.RateLimitCooldown
				}
				logger.Warn().
					Str("kind", string(apiErr.Kind)).
					Dur("wait", wait).
					Msg("Forms listing failed, retrying")
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, fmt.Errorf("%w: %v", client.ErrContextCancelled, ctx.Err())
				case <-timer.C:
				}
				continue
			}
			return nil, err
		}

		var doc payload
		decodeErr := json.NewDecoder(resp.Body).Decode(&doc)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decode forms list: %w", decodeErr)
		}

		out := make([]Form, len(doc.Forms))
		for i, f := range doc.Forms {
			out[i] = Form{
				Directory:    f.Directory,
				Name:         f.Name,
				State:        f.State,
				ResultsCount: f.Stats.ResultsCount,
				FilesSize:    f.Stats.FilesSize,
				PublishURL:   f.Publish.Link,
			}
		}

		logger.Debug().Int("forms", len(out)).Msg("Fetched forms list")
		return out, nil
	}
}

// sizeUnits are the binary magnitude prefixes for HumanSize.
var sizeUnits = []string{"", "K", "M", "G", "T", "P", "E"}

// HumanSize converts a byte count to a readable size with units.
func HumanSize(bytes int64) string {
	size := float64(bytes)
	reductions := 0
	for size >= 1024 && reductions < len(sizeUnits)-1 {
		size /= 1024
		reductions++
	}
	return fmt.Sprintf("%0.2f %sB", size, sizeUnits[reductions])
}

// WriteCSV writes the forms listing with a header row.
func WriteCSV(w io.Writer, forms []Form) error {
	cw := csv.NewWriter(w)
	header := []string{"form_id", "name", "state", "results_count", "files_size", "files_size_human", "url"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, f := range forms {
		record := []string{
			f.Directory,
			f.Name,
			f.State,
			strconv.FormatInt(f.ResultsCount, 10),
			strconv.FormatInt(f.FilesSize, 10),
			f.FilesSizeHuman(),
			f.PublishURL,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the forms listing to a CSV file.
func SaveCSV(path string, forms []Form) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, forms); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
