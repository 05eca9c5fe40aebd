package feedback

import (
	"fmt"
	"log/slog"
)

// ChannelNotifier delivers signals to a buffered channel and drops them when
// the buffer is full.
type ChannelNotifier struct {
	C chan RetrainSignal
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{C: make(chan RetrainSignal, max(buffer, 1))}
}

// Notify implements Notifier.
func (n *ChannelNotifier) Notify(s RetrainSignal) {
	select {
	case n.C <- s:
	default:
	}
}

// LogNotifier writes a reminder for each signal.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(s RetrainSignal) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(Reminder(s), "counter", s.Counter, "at", s.At)
}

// Reminder is the user-facing text for a signal.
func Reminder(s RetrainSignal) string {
	return fmt.Sprintf("누적 피드백 %d건: 임계값과 가중치 재검토를 권장합니다", s.Counter)
}
