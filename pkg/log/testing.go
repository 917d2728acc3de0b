package log

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Entry is one record captured by a TestLogger.
type Entry struct {
	Level   Level
	Message string
	Fields  map[string]any
}

// Field returns the value recorded under key.
func (e Entry) Field(key string) (any, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

// recorder is shared by a TestLogger and every child created with With.
type recorder struct {
	mu      sync.Mutex
	level   Level
	entries []Entry
}

// TestLogger keeps records in memory so tests can assert on them.
// Values are stored as passed, except errors which are stored as their message.
type TestLogger struct {
	rec    *recorder
	fields map[string]any
}

// NewTestLogger returns a TestLogger capturing records at level and above.
//
//	logger := log.NewTestLogger(log.LevelDebug)
//	logger.Info("fitted", log.SamplesKey, 10)
//	entries := logger.Find("fitted")
func NewTestLogger(level Level) *TestLogger {
	return &TestLogger{rec: &recorder{level: level}, fields: map[string]any{}}
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.record(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.record(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.record(LevelWarn, msg, fields) }

// Error records a leading error value under "error", like the zerolog backend.
func (t *TestLogger) Error(msg string, fields ...any) { t.record(LevelError, msg, fields) }

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	merged := make(map[string]any, len(t.fields)+len(fields)/2)
	for k, v := range t.fields {
		merged[k] = v
	}
	putPairs(merged, fields)
	return &TestLogger{rec: t.rec, fields: merged}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	return level >= t.rec.level
}

func (t *TestLogger) record(level Level, msg string, fields []any) {
	if !t.Enabled(context.Background(), level) {
		return
	}
	e := Entry{Level: level, Message: msg, Fields: make(map[string]any, len(t.fields)+len(fields)/2)}
	for k, v := range t.fields {
		e.Fields[k] = v
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e.Fields["error"] = err.Error()
			fields = fields[1:]
		}
	}
	putPairs(e.Fields, fields)

	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.entries = append(t.rec.entries, e)
}

func putPairs(dst map[string]any, pairs []any) {
	for i := 0; i+1 < len(pairs); i += 2 {
		key := fmt.Sprint(pairs[i])
		if err, ok := pairs[i+1].(error); ok {
			dst[key] = err.Error()
			continue
		}
		dst[key] = pairs[i+1]
	}
}

// Entries returns a copy of everything captured so far.
func (t *TestLogger) Entries() []Entry {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	return append([]Entry(nil), t.rec.entries...)
}

// Find returns the entries whose message equals msg.
func (t *TestLogger) Find(msg string) []Entry {
	var out []Entry
	for _, e := range t.Entries() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether any message contains substr.
func (t *TestLogger) HasMessage(substr string) bool {
	for _, e := range t.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// HasField reports whether any entry carries key with exactly value.
func (t *TestLogger) HasField(key string, value any) bool {
	for _, e := range t.Entries() {
		if v, ok := e.Fields[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Reset drops the captured entries.
func (t *TestLogger) Reset() {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.entries = nil
}

// TestLoggerProvider hands out TestLoggers sharing one recorder.
type TestLoggerProvider struct {
	root *TestLogger
}

// NewTestLoggerProvider returns a provider capturing at level and above.
// Install it with SetProvider and inspect the records through Logger.
func NewTestLoggerProvider(level Level) *TestLoggerProvider {
	return &TestLoggerProvider{root: NewTestLogger(level)}
}

// Logger returns the root TestLogger, whose Entries include every named logger.
func (p *TestLoggerProvider) Logger() *TestLogger { return p.root }

func (p *TestLoggerProvider) GetLogger() Logger { return p.root }

func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

func (p *TestLoggerProvider) SetLevel(level Level) {
	p.root.rec.mu.Lock()
	defer p.root.rec.mu.Unlock()
	p.root.rec.level = level
}
