package download

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// TaskStatus is the terminal outcome of one task.
type TaskStatus struct {
	URL    string
	Status string // "OK" or the failure description
}

// OK reports whether the task succeeded.
func (s TaskStatus) OK() bool {
	return s.Status == "OK"
}

// Report aggregates the outcomes of a download batch. Statuses are
// recorded in completion order, one entry per task.
type Report struct {
	mu sync.Mutex

	Success    int
	Failed     int
	FailedURLs []string
	Statuses   []TaskStatus
}

func newReport() *Report {
	return &Report{}
}

func (r *Report) markSuccess(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Success++
	r.Statuses = append(r.Statuses, TaskStatus{URL: url, Status: "OK"})
}

func (r *Report) markFail(url, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
	r.FailedURLs = append(r.FailedURLs, url)
	r.Statuses = append(r.Statuses, TaskStatus{URL: url, Status: status})
}

// WriteStatusFile writes the complete per-URL status list, one
// "url ; status" line per task.
func (r *Report) WriteStatusFile(path string) error {
	var b strings.Builder
	for _, s := range r.Statuses {
		fmt.Fprintf(&b, "%s ; %s\n", s.URL, s.Status)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// WriteFailedFile writes the permanently failed URLs, one per line, so a
// later run can re-try them.
func (r *Report) WriteFailedFile(path string) error {
	var b strings.Builder
	for _, url := range r.FailedURLs {
		fmt.Fprintf(&b, "%s\n", url)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
