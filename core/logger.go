package core

// Logger is any leveled logger. Args are either an error, a map[string]interface{}
// of extra fields, or any value printed as-is.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
