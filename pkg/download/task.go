// Package download retrieves the files uploaded to a form: it turns
// distinct upload URLs into a deduplicated worklist and runs a bounded
// worker pool over it with per-task retry and atomic writes.
package download

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// uploadPrefixPat matches the f-xxx-xxx- / sig-xxx-xxx- prefix Formsite
// prepends to uploaded filenames.
var uploadPrefixPat = regexp.MustCompile(`^((f|sig)-(\d+-)+)`)

// Task is one download work item. Attempt counts completed attempts; a
// task re-enters the queue with Attempt incremented after a retryable
// failure.
type Task struct {
	URL     string
	Path    string
	Attempt int
}

// WorklistOptions controls filename shaping and skip-existing behavior.
type WorklistOptions struct {
	// StripPrefix removes the f-xxx-xxx- / sig-xxx-xxx- upload prefix.
	StripPrefix bool

	// SubstitutionPattern removes every match from the filename stem.
	SubstitutionPattern *regexp.Regexp

	// OverwriteExisting re-downloads files already present in the target
	// directory. When false, tasks whose destination filename exists are
	// dropped before enqueueing.
	OverwriteExisting bool
}

// BuildWorklist maps distinct URLs to destination paths under dir.
// Basename collisions between distinct URLs are resolved deterministically
// in worklist order: the first URL keeps the plain name, later ones get
// _1, _2, ... before the extension.
func BuildWorklist(urls []string, dir string, opts WorklistOptions) ([]Task, error) {
	existing := make(map[string]struct{})
	if !opts.OverwriteExisting {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("list download dir: %w", err)
		}
		for _, entry := range entries {
			existing[entry.Name()] = struct{}{}
		}
	}

	tasks := make([]Task, 0, len(urls))
	seenURL := make(map[string]struct{}, len(urls))
	usedNames := make(map[string]int)

	for _, rawURL := range urls {
		if _, ok := seenURL[rawURL]; ok {
			continue
		}
		seenURL[rawURL] = struct{}{}

		name, err := destinationName(rawURL, opts)
		if err != nil {
			return nil, err
		}

		// Suffixes are assigned before the skip-existing check so every
		// distinct URL maps to the same destination across runs; only
		// then can a later run skip exactly the files it already has.
		count := usedNames[name]
		usedNames[name] = count + 1
		if count > 0 {
			name = suffixName(name, count)
		}
		if _, ok := existing[name]; ok {
			continue
		}

		tasks = append(tasks, Task{URL: rawURL, Path: filepath.Join(dir, name)})
	}

	return tasks, nil
}

// destinationName derives the shaped basename for a URL.
func destinationName(rawURL string, opts WorklistOptions) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("malformed url %q: %w", rawURL, err)
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no filename", rawURL)
	}

	if opts.StripPrefix {
		name = uploadPrefixPat.ReplaceAllString(name, "")
	}
	if opts.SubstitutionPattern != nil {
		stem, ext := splitExt(name)
		name = opts.SubstitutionPattern.ReplaceAllString(stem, "") + ext
	}
	return name, nil
}

// suffixName appends _n before the extension.
func suffixName(name string, n int) string {
	stem, ext := splitExt(name)
	return fmt.Sprintf("%s_%d%s", stem, n, ext)
}

// splitExt splits on the final dot; extensionless names get an empty ext.
func splitExt(name string) (stem, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}
