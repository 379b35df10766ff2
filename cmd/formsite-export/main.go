// Command formsite-export fetches a form's results into a CSV file and
// optionally downloads the files uploaded to the form. Without a form id
// it writes a CSV listing of every form in the directory instead.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/formsite-tools/formsite-export/pkg/cache"
	"github.com/formsite-tools/formsite-export/pkg/client"
	"github.com/formsite-tools/formsite-export/pkg/download"
	"github.com/formsite-tools/formsite-export/pkg/export"
	"github.com/formsite-tools/formsite-export/pkg/fetch"
	"github.com/formsite-tools/formsite-export/pkg/forms"
	"github.com/formsite-tools/formsite-export/pkg/labels"
	"github.com/formsite-tools/formsite-export/pkg/logging"
	"github.com/formsite-tools/formsite-export/pkg/table"
)

func main() {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") != "",
		Output: os.Stderr,
	})

	// Connection parameters
	token := mustEnv("FORMSITE_TOKEN")
	server := mustEnv("FORMSITE_SERVER")
	directory := mustEnv("FORMSITE_DIRECTORY")
	formID := getEnv("FORMSITE_FORM", "")

	// Output
	downloadDir := getEnv("DOWNLOAD_DIR", "")
	cacheDir := getEnv("CACHE_DIR", "")
	redisURL := getEnv("REDIS_URL", "")

	apiClient, err := client.New(client.DefaultConfig(token, server, directory))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API client")
	}

	// Without a form id, list the directory's forms instead of exporting.
	if formID == "" {
		listing, err := forms.List(context.Background(), apiClient, forms.DefaultConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("Forms listing failed")
		}
		outPath := getEnv("OUTPUT_CSV", "forms.csv")
		if err := forms.SaveCSV(outPath, listing); err != nil {
			log.Fatal().Err(err).Msg("Forms list export failed")
		}
		log.Info().Str("path", outPath).Int("forms", len(listing)).Msg("Forms list written")
		return
	}

	outPath := getEnv("OUTPUT_CSV", formID+".csv")

	params := fetch.DefaultParams()
	params.Timezone = getEnv("TIMEZONE", "")
	params.Last = getEnvInt("LAST", 0)
	params.AfterID = int64(getEnvInt("AFTER_ID", 0))

	ctx := context.Background()

	// Cache wiring: Redis takes precedence, a directory works offline.
	var tableCache *cache.Manager
	switch {
	case redisURL != "":
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		tableCache = cache.NewManager(cache.NewRedisStore(redisClient))
	case cacheDir != "":
		store, err := cache.NewFileStore(cacheDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open cache dir")
		}
		tableCache = cache.NewManager(store)
	}

	if tableCache != nil && params.AfterID == 0 {
		afterID, err := tableCache.AfterID(ctx, formID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read cache metadata")
		}
		params.AfterID = afterID
	}

	controller := fetch.NewController(apiClient, formID, params, fetch.DefaultConfig())
	tbl, err := controller.FetchTable(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("form_id", formID).Msg("Fetch failed")
	}

	if tableCache != nil {
		tbl, err = tableCache.Update(ctx, formID, tbl)
		if err != nil {
			log.Fatal().Err(err).Msg("Cache update failed")
		}
	}

	if downloadDir != "" {
		runDownloads(ctx, tbl, server, directory, downloadDir)
	}

	// Labels are a display concern, applied after caching and URL
	// extraction so both keep raw column ids.
	items, err := controller.Items(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Items fetch failed")
	}
	tbl.Rename(labels.Resolve(items))

	if err := export.SaveCSV(outPath, tbl); err != nil {
		log.Fatal().Err(err).Msg("CSV export failed")
	}
	log.Info().
		Str("path", outPath).
		Int("rows", len(tbl.Rows)).
		Msg("Export complete")
}

func runDownloads(ctx context.Context, tbl *table.Table, server, directory, dir string) {
	urls := tbl.ExtractURLs(table.UploadURLPattern(server, directory), nil)
	tasks, err := download.BuildWorklist(urls, dir, download.WorklistOptions{
		OverwriteExisting: getEnv("OVERWRITE_EXISTING", "") != "",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Worklist build failed")
	}

	opts := download.DefaultOptions()
	opts.Workers = getEnvInt("DOWNLOAD_WORKERS", opts.Workers)
	opts.MaxAttempts = getEnvInt("DOWNLOAD_ATTEMPTS", opts.MaxAttempts)
	if secs := getEnvInt("DOWNLOAD_TIMEOUT", 0); secs > 0 {
		opts.Timeout = time.Duration(secs) * time.Second
	}

	report, err := download.NewOrchestrator(nil, opts).Run(ctx, tasks)
	if err != nil {
		log.Fatal().Err(err).Msg("Download batch failed")
	}
	if report.Failed > 0 {
		if err := report.WriteFailedFile("failed_downloads.txt"); err != nil {
			log.Error().Err(err).Msg("Failed to write failed-URL list")
		}
	}
	if getEnv("DOWNLOAD_REPORT", "") != "" {
		if err := report.WriteStatusFile("downloads_status.txt"); err != nil {
			log.Error().Err(err).Msg("Failed to write status report")
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", value).Msg("Invalid integer environment variable")
	}
	return n
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Str("key", key).Msg("Missing required environment variable")
	}
	return value
}
