package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gear6io/chprobe/pkg/errors"
	"github.com/rs/zerolog"
)

// Component is stamped on every log line
const Component = "chprobe"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogger creates a zerolog logger writing to out, plus the log file when
// cfg.FilePath is set. The returned closer releases the file.
func SetupLogger(cfg LogConfig, out io.Writer) (zerolog.Logger, io.Closer, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil || parsed == zerolog.NoLevel {
			return zerolog.Nop(), nil, errors.Newf(ErrLogLevelInvalid, "invalid log level %q, expected trace, debug, info, warn, error, fatal, panic or disabled", cfg.Level)
		}
		level = parsed
	}

	var base io.Writer
	switch cfg.Format {
	case "", "console":
		base = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	case "json":
		base = out
	default:
		return zerolog.Nop(), nil, errors.Newf(ErrLogFormatInvalid, "invalid log format %q, expected console or json", cfg.Format)
	}

	writer := base
	var closer io.Closer = nopCloser{}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return zerolog.Nop(), nil, errors.New(ErrLogDirectoryCreateFailed, "failed to create log directory", err).
				AddContext("path", cfg.FilePath)
		}

		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, errors.New(ErrLogFileOpenFailed, "failed to open log file", err).
				AddContext("path", cfg.FilePath)
		}

		writer = zerolog.MultiLevelWriter(base, file)
		closer = file
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("component", Component).
		Logger()

	return logger, closer, nil
}
