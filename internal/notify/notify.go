package notify

import "go.uber.org/zap"

// Notifier receives transient, non-blocking user-facing confirmations.
// Mutations never surface errors directly, they resolve into a reverted
// view plus one of these notifications.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the service log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(msg string) {
	n.logger.Info("notification", zap.String("kind", "success"), zap.String("message", msg))
}

func (n *LogNotifier) Error(msg string) {
	n.logger.Warn("notification", zap.String("kind", "error"), zap.String("message", msg))
}
