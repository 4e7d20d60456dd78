// Package logging provides the structured logging abstraction used by every
// service in the application. Components receive a Logger through their
// constructors; nothing logs through a package-level instance.
package logging

// Logger defines structured logging with key/value fields.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a logger that attaches err to every entry.
	WithError(err error) Logger

	// WithField returns a logger that attaches a single field to every entry.
	WithField(key string, value interface{}) Logger

	// WithFields returns a logger that attaches fields to every entry.
	WithFields(fields ...Field) Logger
}

// Field is a key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for building a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
