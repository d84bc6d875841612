package cleanup

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pazarly/reaper/internal/audit"
	"github.com/pazarly/reaper/internal/ledger"
	"github.com/pazarly/reaper/internal/models"
	"github.com/pazarly/reaper/internal/snapshot"
)

// Raw audit rows are purged past this fixed horizon, independent of the
// ledger retention window.
const ActivityLogRetention = 90 * 24 * time.Hour

var (
	ErrInvalidRetention   = errors.New("cleanup: olderThanDays must be a positive integer")
	ErrUnknownProcessType = errors.New("cleanup: unknown process type")
)

type Report struct {
	DryRun             bool                         `json:"dryRun"`
	OlderThanDays      int                          `json:"olderThanDays"`
	ByType             map[models.ProcessType]int64 `json:"byType"`
	ProcessesDeleted   int64                        `json:"abandonedProcessesDeleted"`
	ActivityLogsPurged int64                        `json:"activityLogsArchived"`
	CleanedAt          time.Time                    `json:"cleanedAt"`
}

// Engine applies the retention policy: resolved ledger rows past the
// configured window, plus raw audit rows past the fixed 90-day horizon when
// activity_log is in scope. Non-terminal ledger rows are never touched.
type Engine struct {
	ledger *ledger.Ledger
	sink   *audit.Sink
	reader *snapshot.Reader
}

func New(l *ledger.Ledger, sink *audit.Sink, reader *snapshot.Reader) *Engine {
	return &Engine{ledger: l, sink: sink, reader: reader}
}

// Cleanup validates its inputs before any query runs, then sweeps the
// requested types best-effort: one type's failure is logged and skipped.
// In dry-run mode nothing is mutated and the report carries would-delete
// counts.
func (e *Engine) Cleanup(types []models.ProcessType, olderThanDays int, dryRun bool) (*Report, error) {
	if olderThanDays <= 0 {
		return nil, ErrInvalidRetention
	}
	if len(types) == 0 {
		types = models.AllProcessTypes()
	}
	for _, pt := range types {
		if !pt.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProcessType, pt)
		}
	}

	now := time.Now()
	cutoff := now.Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	report := &Report{
		DryRun:        dryRun,
		OlderThanDays: olderThanDays,
		ByType:        make(map[models.ProcessType]int64, len(types)),
		CleanedAt:     now,
	}

	for _, pt := range types {
		var n int64
		var err error
		if dryRun {
			n, err = e.ledger.CountResolvedBefore(pt, cutoff)
		} else {
			n, err = e.ledger.DeleteResolvedBefore(pt, cutoff)
		}
		if err != nil {
			slog.Error("Cleanup failed for process type", "process_type", pt, "error", err)
			continue
		}
		report.ByType[pt] = n
		report.ProcessesDeleted += n

		if pt == models.ProcessActivityLog {
			purged, err := e.sweepActivityLogs(now, dryRun)
			if err != nil {
				slog.Error("Activity log purge failed", "error", err)
				continue
			}
			report.ActivityLogsPurged = purged
		}
	}

	if !dryRun {
		e.sink.Append("cleanup_completed", "abandoned_process", uuid.Nil,
			fmt.Sprintf("Cleanup removed %d resolved abandonment(s) and %d aged activity log(s)",
				report.ProcessesDeleted, report.ActivityLogsPurged),
			map[string]interface{}{
				"older_than_days":   olderThanDays,
				"by_type":           report.ByType,
				"activity_logs":     report.ActivityLogsPurged,
				"processes_deleted": report.ProcessesDeleted,
			})
	}
	return report, nil
}

func (e *Engine) sweepActivityLogs(now time.Time, dryRun bool) (int64, error) {
	horizon := now.Add(-ActivityLogRetention)
	if dryRun {
		return e.reader.CountActivityLogsBefore(horizon)
	}
	return e.reader.DeleteActivityLogsBefore(horizon)
}
