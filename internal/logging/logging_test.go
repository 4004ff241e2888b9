package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	if filepath.Base(path) != LogFileName {
		t.Errorf("DefaultLogPath should end with %s, got: %s", LogFileName, path)
	}
	if !strings.Contains(path, ".leaselens") {
		t.Errorf("DefaultLogPath should live under .leaselens, got: %s", path)
	}
}

func TestConfigs(t *testing.T) {
	def := DefaultConfig()
	if def.Level != "warn" || def.FilePath != "" || !def.WriteToStderr {
		t.Errorf("unexpected default config: %+v", def)
	}

	dbg := DebugConfig()
	if dbg.Level != "debug" || dbg.FilePath != DefaultLogPath() {
		t.Errorf("unexpected debug config: %+v", dbg)
	}

	stdio := StdioConfig("info")
	if stdio.WriteToStderr {
		t.Error("stdio config must never write to stderr")
	}
	if stdio.FilePath == "" {
		t.Error("stdio config should log to a file")
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")
	cfg := Config{Level: "info", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 3}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Debug("filtered out")
	logger.Info("question_answered", slog.Int("citations", 2))
	cleanup()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	s := string(content)
	if strings.Contains(s, "filtered out") {
		t.Error("debug record should be below the configured level")
	}
	if !strings.Contains(s, `"msg":"question_answered"`) || !strings.Contains(s, `"citations":2`) {
		t.Errorf("expected JSON record, got: %s", s)
	}
}

func TestSetup_NoOutputs(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "debug"})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()
	logger.Info("goes nowhere")
}

func TestFanout_RespectsEachHandlerLevel(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	logger := slog.New(h).With(slog.String("session", "abc"))

	logger.Info("processing")
	logger.Error("failed")

	if !strings.Contains(debugBuf.String(), "processing") || !strings.Contains(debugBuf.String(), "failed") {
		t.Errorf("debug handler should see both records, got: %s", debugBuf.String())
	}
	if strings.Contains(errorBuf.String(), "processing") {
		t.Error("error handler should not see info records")
	}
	if !strings.Contains(errorBuf.String(), "session=abc") {
		t.Errorf("attrs should reach every handler, got: %s", errorBuf.String())
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := LevelFromString(tc.input); got != tc.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	if _, err := FindLogFile("/nonexistent/path/to/log.log"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	logPath := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(logPath, []byte("test"), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	found, err := FindLogFile(logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != logPath {
		t.Errorf("expected %s, got %s", logPath, found)
	}
}

// ============================================================================
// RotatingWriter
// ============================================================================

func TestRotatingWriter_ImmediateSync(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	data := []byte(`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"test"}` + "\n")
	n, err := w.Write(data)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected %d bytes written, got %d", len(data), n)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("expected %q, got %q", data, content)
	}
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(logPath, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	w.SetImmediateSync(false)
	_, _ = w.Write([]byte("new\n"))
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	content, _ := os.ReadFile(logPath)
	if string(content) != "old\nnew\n" {
		t.Errorf("expected appended content, got %q", content)
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "rotate.log")

	// 0 MB rotates before every write to a non-empty file.
	w, err := NewRotatingWriter(logPath, 0, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	for _, line := range []string{"first\n", "second\n", "third\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	expect := map[string]string{
		logPath:        "third\n",
		logPath + ".1": "second\n",
		logPath + ".2": "first\n",
	}
	for path, want := range expect {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", filepath.Base(path), got, want)
		}
	}
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "maxfiles.log")
	w, err := NewRotatingWriter(logPath, 0, 2)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	for i := 0; i < 6; i++ {
		_, _ = w.Write([]byte(fmt.Sprintf("line %d\n", i)))
	}

	if _, err := os.Stat(logPath + ".2"); err != nil {
		t.Errorf("rotated file .2 should exist: %v", err)
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("rotated file .3 should not exist (beyond maxFiles)")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "closed.log"), 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if _, err := w.Write([]byte("late\n")); err == nil {
		t.Error("write after close should fail")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")
	w, err := NewRotatingWriter(logPath, 10, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()
	w.SetImmediateSync(false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = fmt.Fprintf(w, `{"id":%d,"iter":%d}`+"\n", id, j)
			}
		}(i)
	}
	wg.Wait()
	_ = w.Sync()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if lines := strings.Count(string(content), "\n"); lines != 1000 {
		t.Errorf("expected 1000 lines, got %d", lines)
	}
}

// ============================================================================
// Viewer
// ============================================================================

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"chunked","chunks":12}
{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"document_processed","source":"lease.pdf"}
not json at all
{"time":"2026-03-01T10:00:02.500Z","level":"ERROR","msg":"generation failed","code":"ERR_301"}
`

func writeSampleLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), LogFileName)
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestViewer_Tail(t *testing.T) {
	path := writeSampleLog(t)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].IsValid || entries[0].Raw != "not json at all" {
		t.Errorf("expected raw invalid line first, got %+v", entries[0])
	}
	if entries[1].Msg != "generation failed" {
		t.Errorf("expected last entry, got %q", entries[1].Msg)
	}
}

func TestViewer_TailLevelAndPattern(t *testing.T) {
	path := writeSampleLog(t)

	v := NewViewer(ViewerConfig{Level: "info", NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	// Invalid lines are kept: the level filter cannot judge them.
	if len(entries) != 3 {
		t.Errorf("expected 3 entries at info and above, got %d", len(entries))
	}

	v = NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`lease\.pdf`)}, &bytes.Buffer{})
	entries, err = v.Tail(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Msg != "document_processed" {
		t.Errorf("expected only the matching entry, got %+v", entries)
	}
}

func TestViewer_TailMissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	if _, err := v.Tail(filepath.Join(t.TempDir(), "none.log"), 10); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entry := parseLine(`{"time":"2026-03-01T10:00:02.500Z","level":"WARNING","msg":"retrying","b":2,"a":"x"}`)

	got := v.FormatEntry(entry)

	want := "10:00:02.500 WARN  retrying a=x b=2"
	if got != want {
		t.Errorf("FormatEntry = %q, want %q", got, want)
	}
	if raw := v.FormatEntry(parseLine("plain")); raw != "plain" {
		t.Errorf("invalid entries should print raw, got %q", raw)
	}
}

func TestViewer_Print(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	v.Print([]LogEntry{parseLine(`{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"one"}`), parseLine("two")})

	if buf.String() != "10:00:00.000 INFO  one\ntwo\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestViewer_Follow(t *testing.T) {
	path := writeSampleLog(t)
	v := NewViewer(ViewerConfig{Level: "warn"}, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Give Follow time to seek past the existing content.
	time.Sleep(3 * followInterval)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"time":"2026-03-01T11:00:00Z","level":"INFO","msg":"skipped"}` + "\n")
	_, _ = f.WriteString(`{"time":"2026-03-01T11:00:01Z","level":"WARN","msg":"slow provider"}` + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "slow provider" {
			t.Errorf("expected the new warn entry, got %q", e.Msg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for followed entry")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned %v", err)
	}
}
