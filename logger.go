package nrf24node

// Logger defines the logging interface for simple string messages.
// Strings instead of format verbs keep TinyGo builds free of fmt on the
// interrupt path.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

var globalLogger Logger = nopLogger{}

// SetLogger replaces the package logger. Passing nil silences the package.
// Call it before creating devices; it is not synchronized with logging.
func SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	globalLogger = l
}

// component prefixes messages with the part of the node that emitted them.
// The package logger is looked up on every call, so SetLogger takes effect
// everywhere at once.
type component string

const (
	radioLog   component = "radio: "
	captureLog component = "capture: "
	nodeLog    component = "node: "
)

func (c component) Debug(msg string) { globalLogger.Debug(string(c) + msg) }
func (c component) Info(msg string)  { globalLogger.Info(string(c) + msg) }
func (c component) Warn(msg string)  { globalLogger.Warn(string(c) + msg) }
func (c component) Error(msg string) { globalLogger.Error(string(c) + msg) }

type nopLogger struct{}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string)  {}
func (nopLogger) Warn(string)  {}
func (nopLogger) Error(string) {}
