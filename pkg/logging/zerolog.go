package logging

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// zerologLogger implements Logger on top of zerolog. Loggers derived with
// WithFields share the level of their parent.
type zerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int32
}

// NewZerolog creates a zerolog backed Logger writing to w. When pretty is
// set, output goes through the console writer, colored on terminals.
func NewZerolog(w io.Writer, level Level, pretty bool) Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = consoleFor(w)
	}

	lvl := &atomic.Int32{}
	lvl.Store(int32(level))
	return &zerologLogger{
		zl:    zerolog.New(w).With().Timestamp().Logger(),
		level: lvl,
	}
}

func toZerologLevel(level Level) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}

func (l *zerologLogger) log(level Level, msg string, fields []Field) {
	if level < Level(l.level.Load()) {
		return
	}
	event := l.zl.WithLevel(toZerologLevel(level))
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

func addField(event *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case time.Time:
		return event.Time(f.Key, v)
	case error:
		return event.AnErr(f.Key, v)
	default:
		return event.Interface(f.Key, v)
	}
}

func addContextField(c zerolog.Context, f Field) zerolog.Context {
	switch v := f.Value.(type) {
	case string:
		return c.Str(f.Key, v)
	case int:
		return c.Int(f.Key, v)
	case bool:
		return c.Bool(f.Key, v)
	case time.Duration:
		return c.Dur(f.Key, v)
	case error:
		return c.AnErr(f.Key, v)
	default:
		return c.Interface(f.Key, v)
	}
}

func (l *zerologLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *zerologLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields)
	os.Exit(1)
}

func (l *zerologLogger) WithFields(fields ...Field) Logger {
	c := l.zl.With()
	for _, f := range fields {
		c = addContextField(c, f)
	}
	return &zerologLogger{zl: c.Logger(), level: l.level}
}

func (l *zerologLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(contextFields(ctx, "request_id")...)
}

func (l *zerologLogger) WithError(err error) Logger {
	return l.WithFields(ErrorFields(err)...)
}

func (l *zerologLogger) SetLevel(level Level) { l.level.Store(int32(level)) }
func (l *zerologLogger) GetLevel() Level      { return Level(l.level.Load()) }
