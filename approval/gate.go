/*
gate.go - Monthly lock with daily-rejection override

PURPOSE:
  The single place the "is this member-date locked?" question is
  answered. A SUBMITTED or APPROVED covering month locks the date;
  an active daily rejection releases it again, which is how targeted
  fixes get through a locked month.

SEE ALSO:
  - worklog/repository.go: The ApprovalGate contract this implements
  - daily_service.go: Writes the override records
*/
package approval

import (
	"context"
	"time"

	"github.com/warp/worklog-engine/worklog"
)

// Gate implements worklog.ApprovalGate over the monthly repository and
// the rejection log.
type Gate struct {
	approvals  MonthlyRepository
	rejections RejectionLog
}

var _ worklog.ApprovalGate = (*Gate)(nil)

func NewGate(approvals MonthlyRepository, rejections RejectionLog) *Gate {
	return &Gate{approvals: approvals, rejections: rejections}
}

// EntryLocked reports whether a member-date is gated. The returned
// status names the covering approval's status for error messages.
func (g *Gate) EntryLocked(ctx context.Context, member worklog.MemberID, date time.Time) (bool, string, error) {
	covering, err := g.approvals.ApprovalCovering(ctx, member, date)
	if err != nil {
		return false, "", err
	}
	if covering == nil || !covering.Status.Locks() {
		return false, "", nil
	}

	overridden, err := g.rejections.HasActiveRejection(ctx, member, date)
	if err != nil {
		return false, "", err
	}
	if overridden {
		return false, string(covering.Status), nil
	}
	return true, string(covering.Status), nil
}
