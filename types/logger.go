package types

// Logger is the structured logger used throughout the backend. Fields added
// with WithField and WithFields are attached to every subsequent entry.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
}
