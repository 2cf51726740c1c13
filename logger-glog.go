//go:build !tinygo

package nrf24node

import (
	"github.com/golang/glog"
)

func init() {
	globalLogger = &glogLogger{}
}

// glogLogger is the default logger on hosted platforms.
// Debug messages are only emitted with -v=2 or higher.
type glogLogger struct{}

func (l *glogLogger) Debug(msg string) {
	glog.V(2).Info(msg)
}

func (l *glogLogger) Info(msg string) {
	glog.Info(msg)
}

func (l *glogLogger) Warn(msg string) {
	glog.Warning(msg)
}

func (l *glogLogger) Error(msg string) {
	glog.Error(msg)
}
