// Package obslog builds the structured logger every component is
// constructed with (constructor injection, never a package-level logger).
package obslog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// New builds a JSON slog.Logger at level, mirroring the teacher's
// NewLogger(). When loggingDir is non-empty, the same JSON stream is also
// written to a daily-rotating file under that directory; a directory that
// can't be created falls back to stdout-only, logged as a warning rather
// than failing startup.
func New(level string, loggingDir string) *slog.Logger {
	lvl := ParseLevel(level)
	var w io.Writer = os.Stdout

	if loggingDir != "" {
		if err := os.MkdirAll(loggingDir, 0o755); err != nil {
			fallback := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
			fallback.Warn("logging dir not usable, logging to stdout only", slog.String("dir", loggingDir), slog.Any("error", err))
		} else {
			w = io.MultiWriter(os.Stdout, newDailyFile(loggingDir))
		}
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// ParseLevel maps the spec's DEBUG|INFO|WARNING|ERROR|CRITICAL vocabulary
// onto slog.Level; anything unrecognized defaults to Info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// dailyFile is a thin lumberjack-free rotation: it reopens
// "<dir>/harvester-YYYY-MM-DD.log" via os.OpenFile whenever the date
// changes, rather than tracking size or retention.
type dailyFile struct {
	mu      sync.Mutex
	dir     string
	day     string
	file    *os.File
	openErr error
}

func newDailyFile(dir string) *dailyFile {
	return &dailyFile{dir: dir}
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if d.file == nil || d.day != today {
		if d.file != nil {
			_ = d.file.Close()
		}
		path := filepath.Join(d.dir, fmt.Sprintf("harvester-%s.log", today))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		d.file, d.day, d.openErr = f, today, err
		if err != nil {
			return 0, err
		}
	}
	if d.openErr != nil {
		return 0, d.openErr
	}
	return d.file.Write(p)
}
