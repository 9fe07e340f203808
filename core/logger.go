package core

// Logger reports app events; implementations decide where they land
// (stdout, Rollbar, ...). Extra args may carry errors or context values.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
