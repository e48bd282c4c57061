package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Alert is a log entry that should reach the operator notification channels.
type Alert struct {
	Level   zapcore.Level
	Message string
	Time    time.Time
}

// AlertBuffer accumulates log entries at or above a minimum level. It is
// filled concurrently by the zap hook and drained once per cycle.
type AlertBuffer struct {
	min zapcore.Level

	lock    sync.Mutex
	entries []Alert
}

// NewAlertBuffer returns an empty buffer capturing entries at level min and
// above.
func NewAlertBuffer(min zapcore.Level) *AlertBuffer {
	return &AlertBuffer{min: min}
}

// Capture is registered as a zap hook.
func (b *AlertBuffer) Capture(e zapcore.Entry) error {
	if e.Level < b.min {
		return nil
	}

	b.lock.Lock()
	b.entries = append(b.entries, Alert{Level: e.Level, Message: e.Message, Time: e.Time})
	b.lock.Unlock()
	return nil
}

// Drain returns every captured alert and empties the buffer.
func (b *AlertBuffer) Drain() []Alert {
	b.lock.Lock()
	defer b.lock.Unlock()

	out := b.entries
	b.entries = nil
	return out
}

// Len returns the number of buffered alerts.
func (b *AlertBuffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.entries)
}
