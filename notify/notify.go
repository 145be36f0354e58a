/*
notify.go - Notification emission boundary

PURPOSE:
  The engine emits notifications at approval milestones; delivery
  (mail, chat, push) lives elsewhere. Emission is fire-and-forget:
  a failed notification is logged and swallowed, never rolled back
  into the workflow that triggered it.

EMISSION POINTS:
  - Daily approval: one notification per affected member, not per entry
  - Daily rejection: the member, with the supervisor's comment
  - Monthly approval / rejection: the member, with the reason if any

SEE ALSO:
  - memory.go: Capturing fake for tests
*/
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind classifies a notification for downstream routing.
type Kind string

const (
	KindEntriesApproved Kind = "entries_approved"
	KindEntryRejected   Kind = "entry_rejected"
	KindMonthApproved   Kind = "month_approved"
	KindMonthRejected   Kind = "month_rejected"
)

// Notification is one message for one recipient.
type Notification struct {
	Recipient   string // member id
	Kind        Kind
	ReferenceID string // entry, approval or decision id
	Title       string
	Body        string
	At          time.Time
}

// Notifier hands a notification to the delivery layer.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// =============================================================================
// LOG NOTIFIER - Default delivery: structured log lines
// =============================================================================

// LogNotifier writes notifications to the log. The zero dependency
// default for deployments without a delivery integration.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.WithFields(logrus.Fields{
		"recipient": n.Recipient,
		"kind":      n.Kind,
		"reference": n.ReferenceID,
		"title":     n.Title,
	}).Info("notification emitted")
	return nil
}
