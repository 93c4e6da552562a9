// Package bot stubs the notification surface the Deposit/Activation Monitor
// calls through. The bot/chat UI itself is out of scope; this implementation
// only logs what would have been sent, satisfying depositmonitor.Notifier so
// the monitor can be wired end to end without a live bot integration.
package bot

import (
	"context"

	"github.com/solward/flywheel/pkg/logger"
)

// LoggingNotifier implements depositmonitor.Notifier by logging the notice.
type LoggingNotifier struct {
	log *logger.Logger
}

// NewLoggingNotifier builds a LoggingNotifier.
func NewLoggingNotifier() *LoggingNotifier {
	return &LoggingNotifier{log: logger.NewDefault("bot-notifier")}
}

func (n *LoggingNotifier) NotifyActivated(_ context.Context, ownerID, tokenID string) error {
	n.log.WithField("owner_id", ownerID).WithField("token_id", tokenID).Info("notify: token activated")
	return nil
}

func (n *LoggingNotifier) NotifyExpired(_ context.Context, ownerID, pendingID string) error {
	n.log.WithField("owner_id", ownerID).WithField("pending_id", pendingID).Info("notify: pending activation expired")
	return nil
}
