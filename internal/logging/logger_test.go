package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxtrace/internal/logging"
	"voxtrace/internal/services"
)

func TestConsoleFormatPrefixesComponent(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "poller")
	component.Info("scheduled next poll", logging.String(logging.FieldJobID, "job-1"), logging.Int(logging.FieldAttempt, 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO poller: scheduled next poll") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "job_id=job-1") || !strings.Contains(line, "attempt=3") {
		t.Fatalf("missing attrs in console line: %q", line)
	}
}

func TestConsoleLevelFiltering(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "filtered.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "warn",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("visible")

	content, _ := os.ReadFile(logPath)
	if strings.Contains(string(content), "hidden") {
		t.Fatalf("info line leaked past warn level: %q", content)
	}
	if !strings.Contains(string(content), "visible") {
		t.Fatalf("warn line missing: %q", content)
	}
}

func TestJSONFormatUsesCanonicalKeys(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "log.json")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("submitted", logging.String(logging.FieldJobID, "abc"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("parse json line: %v (%q)", err, content)
	}
	for _, key := range []string{"ts", "level", "msg", "job_id"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("json entry missing %q: %v", key, entry)
		}
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v, want info", entry["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsJobAndRequestFields(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "ctx.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-9")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Info("fetch complete")

	content, _ := os.ReadFile(logPath)
	line := string(content)
	if !strings.Contains(line, "job_id=job-9") || !strings.Contains(line, "correlation_id=req-1") {
		t.Fatalf("context fields missing: %q", line)
	}
}

func TestSharedOutputPathOpensOneSink(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "shared.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("once")

	content, _ := os.ReadFile(logPath)
	if got := strings.Count(string(content), "once"); got != 1 {
		t.Fatalf("line written %d times, want 1: %q", got, content)
	}
}

func TestConsoleFlattensGroups(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "groups.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "remote")
	component.WithGroup("request").Info("sent", logging.String("method", "GET"))

	content, _ := os.ReadFile(logPath)
	line := string(content)
	if !strings.Contains(line, "remote: sent") {
		t.Fatalf("component prefix missing: %q", line)
	}
	if !strings.Contains(line, "request.method=GET") {
		t.Fatalf("group key not flattened: %q", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("must not panic", logging.Error(nil))
}
