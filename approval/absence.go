/*
absence.go - Absence record boundary

PURPOSE:
  Month submission covers absence days (vacation, sick leave) alongside
  work-log entries so the reviewer sees the whole month. Absences are
  owned elsewhere; this boundary only reads them.

SEE ALSO:
  - service.go: Merges absence ids into the covered set at submission
*/
package approval

import (
	"context"
	"sync"
	"time"

	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/worklog"
)

// AbsenceRecord is one absence day for one member.
type AbsenceRecord struct {
	ID       string
	MemberID worklog.MemberID
	Date     time.Time
	Kind     string // e.g. "VACATION", "SICK"
}

// AbsenceSource reads absence records. Read-only; absences carry no
// status transitions in this engine.
type AbsenceSource interface {
	AbsencesInRange(ctx context.Context, member worklog.MemberID, from, to time.Time) ([]AbsenceRecord, error)
}

// =============================================================================
// IN-MEMORY SOURCE - For tests and demo seeds
// =============================================================================

// MemoryAbsences is a slice-backed AbsenceSource.
type MemoryAbsences struct {
	mu      sync.RWMutex
	records []AbsenceRecord
}

func NewMemoryAbsences() *MemoryAbsences {
	return &MemoryAbsences{}
}

func (m *MemoryAbsences) Add(rec AbsenceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Date = fiscal.DayOf(rec.Date)
	m.records = append(m.records, rec)
}

func (m *MemoryAbsences) AbsencesInRange(_ context.Context, member worklog.MemberID, from, to time.Time) ([]AbsenceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := fiscal.Period{Start: fiscal.DayOf(from), End: fiscal.DayOf(to)}
	var result []AbsenceRecord
	for _, rec := range m.records {
		if rec.MemberID == member && window.Contains(rec.Date) {
			result = append(result, rec)
		}
	}
	return result, nil
}
