//go:build tinygo

package nrf24node

import (
	"machine"
)

func init() {
	globalLogger = &serialLogger{}
}

// LogDebug enables Debug output of the TinyGo serial logger.
// It is off by default because the same UART carries the payload echo.
var LogDebug bool

// serialLogger writes one line per message to machine.Serial, without fmt.
type serialLogger struct{}

func (l *serialLogger) line(tag, msg string) {
	machine.Serial.Write([]byte(tag))
	machine.Serial.Write([]byte(msg))
	machine.Serial.Write([]byte("\r\n"))
}

func (l *serialLogger) Debug(msg string) {
	if LogDebug {
		l.line("D nrf: ", msg)
	}
}
func (l *serialLogger) Info(msg string)  { l.line("I nrf: ", msg) }
func (l *serialLogger) Warn(msg string)  { l.line("W nrf: ", msg) }
func (l *serialLogger) Error(msg string) { l.line("E nrf: ", msg) }
