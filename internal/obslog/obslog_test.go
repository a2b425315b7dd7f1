package obslog

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"CRITICAL", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.level); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
		if got := New(tt.level, ""); got == nil {
			t.Errorf("New(%q, \"\") returned nil logger", tt.level)
		}
	}
}

func TestNew_StdoutOnlyWhenLoggingDirEmpty(t *testing.T) {
	logger := New("INFO", "")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNew_WritesDailyRotatingFileUnderLoggingDir(t *testing.T) {
	dir := t.TempDir()
	logger := New("INFO", dir)
	logger.Info("hello")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read logging dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log file, got %d", len(entries))
	}
	name := entries[0].Name()
	if filepath.Ext(name) != ".log" {
		t.Errorf("expected a .log file, got %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected the log file to contain the written record")
	}
}

func TestNew_UnusableLoggingDirFallsBackToStdout(t *testing.T) {
	// A file (not a directory) as the logging dir path makes MkdirAll fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write blocker file: %v", err)
	}

	logger := New("INFO", filepath.Join(blocker, "logs"))
	if logger == nil {
		t.Fatal("expected a fallback logger, not nil")
	}
}
