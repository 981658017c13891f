package notify

import (
	"context"

	"go.uber.org/zap"
)

// Log writes events to a zap logger. It is the notifier used when no chat
// backend is configured.
type Log struct {
	Logger *zap.SugaredLogger
}

// Notify implements Notifier. It never fails.
func (l Log) Notify(_ context.Context, userID string, e Event) error {
	l.Logger.Infow("notify",
		"user", userID,
		"kind", e.Kind,
		"issue", e.IssueKey,
		"actor", e.ActorID,
		"summary", e.Summary,
	)
	return nil
}
