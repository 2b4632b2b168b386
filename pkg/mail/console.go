package mail

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleTransport logs messages instead of sending them. Used in development.
type ConsoleTransport struct {
	logger *zap.Logger
}

// NewConsoleTransport builds a log-only transport.
func NewConsoleTransport(logger *zap.Logger) *ConsoleTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleTransport{logger: logger}
}

// Send writes the message to the log.
func (t *ConsoleTransport) Send(_ context.Context, msg Message) error {
	t.logger.Info("outbound_mail",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
