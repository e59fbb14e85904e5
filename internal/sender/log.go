package sender

import (
	"context"

	"go.uber.org/zap"
)

// Log writes notifications to the logger instead of sending them.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Deliver(_ context.Context, to Recipient, text string) {
	l.logger.Info("notification",
		zap.Stringer("kind", to.Kind),
		zap.String("to", to.ID),
		zap.String("text", text),
	)
}
