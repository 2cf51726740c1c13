package nrf24node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debug(msg string) { l.lines = append(l.lines, "D "+msg) }
func (l *recordingLogger) Info(msg string)  { l.lines = append(l.lines, "I "+msg) }
func (l *recordingLogger) Warn(msg string)  { l.lines = append(l.lines, "W "+msg) }
func (l *recordingLogger) Error(msg string) { l.lines = append(l.lines, "E "+msg) }

func TestComponentLoggers(t *testing.T) {
	saved := globalLogger
	t.Cleanup(func() { globalLogger = saved })

	rec := &recordingLogger{}
	SetLogger(rec)
	radioLog.Info("up")
	captureLog.Warn("echo failed")
	nodeLog.Debug("payload sent")
	nodeLog.Error("boom")

	assert.Equal(t, []string{
		"I radio: up",
		"W capture: echo failed",
		"D node: payload sent",
		"E node: boom",
	}, rec.lines)

	SetLogger(nil)
	radioLog.Error("dropped")
	assert.Len(t, rec.lines, 4)
}
