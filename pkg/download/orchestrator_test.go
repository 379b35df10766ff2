package download

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/formsite-tools/formsite-export/internal/testutil"
)

func testOptions() Options {
	return Options{Workers: 3, Timeout: 5 * time.Second, MaxAttempts: 3}
}

func TestOrchestrator_Run(t *testing.T) {
	mock := testutil.NewMockFormsite()
	defer mock.Close()
	mock.SetFile("/files/a.png", "content-a")
	mock.SetFile("/files/b.pdf", "content-b")

	dir := t.TempDir()
	tasks := []Task{
		{URL: mock.URL() + "/files/a.png", Path: filepath.Join(dir, "a.png")},
		{URL: mock.URL() + "/files/b.pdf", Path: filepath.Join(dir, "b.pdf")},
	}

	report, err := NewOrchestrator(nil, testOptions()).Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.Success != 2 || report.Failed != 0 {
		t.Errorf("report = %d success, %d failed, want 2/0", report.Success, report.Failed)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a.png"))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != "content-a" {
		t.Errorf("a.png = %q, want %q", data, "content-a")
	}
}

func TestOrchestrator_RetryCeiling(t *testing.T) {
	mock := testutil.NewMockFormsite()
	defer mock.Close()
	mock.SetResponse("/files/broken.png", testutil.NewServerErrorResponse())

	dir := t.TempDir()
	tasks := []Task{{URL: mock.URL() + "/files/broken.png", Path: filepath.Join(dir, "broken.png")}}

	report, err := NewOrchestrator(nil, testOptions()).Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.Failed != 1 {
		t.Errorf("Failed = %d, want 1", report.Failed)
	}
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("attempts = %d, want exactly MaxAttempts (3)", got)
	}
}

func TestOrchestrator_PermanentFailureNoRetry(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{name: "403 forbidden", statusCode: http.StatusForbidden},
		{name: "404 not found", statusCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockFormsite()
			defer mock.Close()
			mock.SetResponse("/files/gone.png", testutil.MockResponse{StatusCode: tt.statusCode})

			dir := t.TempDir()
			tasks := []Task{{URL: mock.URL() + "/files/gone.png", Path: filepath.Join(dir, "gone.png")}}

			report, err := NewOrchestrator(nil, testOptions()).Run(context.Background(), tasks)
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}

			if report.Failed != 1 {
				t.Errorf("Failed = %d, want 1", report.Failed)
			}
			if got := mock.GetRequestCount(); got != 1 {
				t.Errorf("attempts = %d, want 1 (permanent failures never retry)", got)
			}
		})
	}
}

func TestOrchestrator_FailuresIsolated(t *testing.T) {
	// One permanently failing task must not stop siblings from finishing.
	mock := testutil.NewMockFormsite()
	defer mock.Close()
	mock.SetFile("/files/good.png", "good")
	mock.SetResponse("/files/bad.png", testutil.NewServerErrorResponse())

	dir := t.TempDir()
	tasks := []Task{
		{URL: mock.URL() + "/files/bad.png", Path: filepath.Join(dir, "bad.png")},
		{URL: mock.URL() + "/files/good.png", Path: filepath.Join(dir, "good.png")},
	}

	report, err := NewOrchestrator(nil, testOptions()).Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.Success != 1 || report.Failed != 1 {
		t.Errorf("report = %d success, %d failed, want 1/1", report.Success, report.Failed)
	}
	if len(report.FailedURLs) != 1 || !strings.HasSuffix(report.FailedURLs[0], "/files/bad.png") {
		t.Errorf("FailedURLs = %v, want the bad URL", report.FailedURLs)
	}
}

func TestOrchestrator_NoPartialFiles(t *testing.T) {
	mock := testutil.NewMockFormsite()
	defer mock.Close()
	mock.SetResponse("/files/bad.png", testutil.NewServerErrorResponse())

	dir := t.TempDir()
	tasks := []Task{{URL: mock.URL() + "/files/bad.png", Path: filepath.Join(dir, "bad.png")}}

	if _, err := NewOrchestrator(nil, testOptions()).Run(context.Background(), tasks); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("leftover files after failure: %v", names)
	}
}

func TestOrchestrator_SecondRunDownloadsNothing(t *testing.T) {
	mock := testutil.NewMockFormsite()
	defer mock.Close()
	mock.SetFile("/files/a.png", "content-a")
	mock.SetFile("/files/b.png", "content-b")

	dir := t.TempDir()
	urls := []string{mock.URL() + "/files/a.png", mock.URL() + "/files/b.png"}

	run := func() int {
		tasks, err := BuildWorklist(urls, dir, WorklistOptions{OverwriteExisting: false})
		if err != nil {
			t.Fatalf("BuildWorklist() error: %v", err)
		}
		if _, err := NewOrchestrator(nil, testOptions()).Run(context.Background(), tasks); err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		return len(tasks)
	}

	if got := run(); got != 2 {
		t.Fatalf("first run tasks = %d, want 2", got)
	}
	mock.Reset()
	if got := run(); got != 0 {
		t.Errorf("second run tasks = %d, want 0", got)
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("second run requests = %d, want 0", got)
	}
}

func TestOrchestrator_MalformedURL(t *testing.T) {
	dir := t.TempDir()
	tasks := []Task{{URL: "://not-a-url", Path: filepath.Join(dir, "x")}}

	report, err := NewOrchestrator(nil, testOptions()).Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("Failed = %d, want 1", report.Failed)
	}
}

func TestOrchestrator_EmptyWorklist(t *testing.T) {
	report, err := NewOrchestrator(nil, testOptions()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Success != 0 || report.Failed != 0 {
		t.Errorf("report = %d/%d, want 0/0", report.Success, report.Failed)
	}
}

func TestReport_Files(t *testing.T) {
	report := newReport()
	report.markSuccess("https://example.com/a.png")
	report.markFail("https://example.com/b.png", "HTTP 500")

	dir := t.TempDir()
	statusPath := filepath.Join(dir, "status.txt")
	failedPath := filepath.Join(dir, "failed.txt")

	if err := report.WriteStatusFile(statusPath); err != nil {
		t.Fatalf("WriteStatusFile() error: %v", err)
	}
	if err := report.WriteFailedFile(failedPath); err != nil {
		t.Fatalf("WriteFailedFile() error: %v", err)
	}

	status, _ := os.ReadFile(statusPath)
	wantStatus := "https://example.com/a.png ; OK\nhttps://example.com/b.png ; HTTP 500\n"
	if string(status) != wantStatus {
		t.Errorf("status file = %q, want %q", status, wantStatus)
	}

	failed, _ := os.ReadFile(failedPath)
	if string(failed) != "https://example.com/b.png\n" {
		t.Errorf("failed file = %q", failed)
	}
}
