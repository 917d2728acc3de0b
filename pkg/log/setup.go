package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	scierrors "github.com/YuminosukeSato/tabforest/pkg/errors"
)

// Options configures Setup.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is "console" (human readable, default) or "json".
	Format string
	// File, when set, additionally writes JSON records to a rotating file.
	File string
	// Writer overrides the terminal destination. Defaults to os.Stderr.
	Writer io.Writer
}

// ParseLevel converts a textual level to Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, scierrors.NewValidationError("log.level", "must be one of debug, info, warn, error", s)
	}
}

// Setup builds the process-wide zerolog provider and routes library warnings
// (UndefinedMetricWarning, DataConversionWarning) to it.
// The returned io.Closer releases the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var terminal io.Writer
	switch strings.ToLower(opts.Format) {
	case "", "console":
		terminal = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
		terminal = out
	default:
		return nil, scierrors.NewValidationError("log.format", "must be console or json", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	writer := terminal
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		writer = zerolog.MultiLevelWriter(terminal, rotating)
		closer = rotating
	}

	base := zerolog.New(writer).With().Timestamp().Logger().Level(toZerologLevel(level))
	p := NewZerologProvider(base)
	SetProvider(p)

	warnLogger := base.With().Str(ComponentKey, "warnings").Logger()
	scierrors.SetZerologWarnFunc(func(w error) {
		ev := warnLogger.Warn()
		if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(obj)
		}
		ev.Msg(w.Error())
	})

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
