// Package logging builds the process zerolog logger from configuration.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"hypnosd/internal/common/fsutil"
	"hypnosd/internal/config"
)

const (
	maxLogSizeMB  = 50
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// New returns a logger writing to out, or to a rotating file when
// cfg.LogFile is set. The returned closer flushes the file and is a no-op
// otherwise.
func New(cfg config.Config, out io.Writer) (zerolog.Logger, io.Closer, error) {
	w, closer, err := writer(cfg, out)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	l := zerolog.New(w).Level(ParseLevel(cfg.LogLevel)).With().Timestamp().Str("svc", "hypnosd").Logger()
	return l, closer, nil
}

func writer(cfg config.Config, out io.Writer) (io.Writer, io.Closer, error) {
	path := strings.TrimSpace(cfg.LogFile)
	if path == "" {
		if strings.EqualFold(cfg.LogFormat, "console") {
			return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}, nopCloser{}, nil
		}
		return out, nopCloser{}, nil
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}
	if strings.EqualFold(cfg.LogFormat, "console") {
		return zerolog.ConsoleWriter{Out: lj, NoColor: true, TimeFormat: time.RFC3339}, lj, nil
	}
	return lj, lj, nil
}

// ParseLevel maps a config level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
