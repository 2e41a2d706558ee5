package storefront

import "go.uber.org/zap"

// Notifier shows short messages to the user. Implementations must not block:
// the store calls them inline after a transition.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	lg *zap.Logger
}

// NewLogNotifier returns a Notifier that logs through lg.
func NewLogNotifier(lg *zap.Logger) *LogNotifier {
	return &LogNotifier{lg: lg.Named("notify")}
}

func (n *LogNotifier) Success(msg string) { n.lg.Info(msg) }

func (n *LogNotifier) Error(msg string) { n.lg.Warn(msg) }
