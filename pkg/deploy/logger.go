package deploy

import "github.com/sirupsen/logrus"

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NoopLogger discards everything.
type NoopLogger struct{}

// Debug implements Logger.
func (NoopLogger) Debug(string, map[string]interface{}) {}

// Info implements Logger.
func (NoopLogger) Info(string, map[string]interface{}) {}

// Warn implements Logger.
func (NoopLogger) Warn(string, map[string]interface{}) {}

// Error implements Logger.
func (NoopLogger) Error(string, map[string]interface{}) {}

// LogrusLogger adapts a logrus logger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l; a nil l uses the logrus standard logger.
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}

	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// Debug implements Logger.
func (l *LogrusLogger) Debug(msg string, fields map[string]interface{}) {
	l.entry.WithFields(fields).Debug(msg)
}

// Info implements Logger.
func (l *LogrusLogger) Info(msg string, fields map[string]interface{}) {
	l.entry.WithFields(fields).Info(msg)
}

// Warn implements Logger.
func (l *LogrusLogger) Warn(msg string, fields map[string]interface{}) {
	l.entry.WithFields(fields).Warn(msg)
}

// Error implements Logger.
func (l *LogrusLogger) Error(msg string, fields map[string]interface{}) {
	l.entry.WithFields(fields).Error(msg)
}
