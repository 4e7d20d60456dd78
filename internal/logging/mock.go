package logging

import "sync"

// MockLogger captures log entries for assertions in tests. Loggers derived
// through WithError/WithField(s) record into the same entry list.
type MockLogger struct {
	sink   *entrySink
	err    error
	fields []Field
}

type entrySink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry is a single captured entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  []Field
	Error   error
}

// NewMockLogger returns an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{sink: &entrySink{}}
}

func (m *MockLogger) record(level, msg string, fields []Field) {
	if m.sink == nil {
		m.sink = &entrySink{}
	}
	all := make([]Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)

	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.entries = append(m.sink.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  all,
		Error:   m.err,
	})
}

func (m *MockLogger) Debug(msg string, fields ...Field) { m.record("DEBUG", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...Field)  { m.record("INFO", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...Field)  { m.record("WARN", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...Field) { m.record("ERROR", msg, fields) }

func (m *MockLogger) WithError(err error) Logger {
	if m.sink == nil {
		m.sink = &entrySink{}
	}
	return &MockLogger{sink: m.sink, err: err, fields: m.fields}
}

func (m *MockLogger) WithField(key string, value interface{}) Logger {
	return m.WithFields(Field{Key: key, Value: value})
}

func (m *MockLogger) WithFields(fields ...Field) Logger {
	if m.sink == nil {
		m.sink = &entrySink{}
	}
	all := make([]Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)
	return &MockLogger{sink: m.sink, err: m.err, fields: all}
}

// Entries returns a copy of every captured entry.
func (m *MockLogger) Entries() []LogEntry {
	if m.sink == nil {
		return nil
	}
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	out := make([]LogEntry, len(m.sink.entries))
	copy(out, m.sink.entries)
	return out
}

// EntriesByLevel returns captured entries of one level.
func (m *MockLogger) EntriesByLevel(level string) []LogEntry {
	var entries []LogEntry
	for _, entry := range m.Entries() {
		if entry.Level == level {
			entries = append(entries, entry)
		}
	}
	return entries
}

// HasEntry reports whether an entry with level and message was captured.
func (m *MockLogger) HasEntry(level, message string) bool {
	for _, entry := range m.Entries() {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}
