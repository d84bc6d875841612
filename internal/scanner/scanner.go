package scanner

import (
	"errors"
	"log/slog"
	"time"

	"github.com/pazarly/reaper/internal/detector"
	"github.com/pazarly/reaper/internal/ledger"
	"github.com/pazarly/reaper/internal/models"
)

// TypeResult is one process type's share of a sweep. Error is populated when
// that type's detection failed; the rest of the sweep is unaffected.
type TypeResult struct {
	Found          int    `json:"found"`
	NewDetections  int    `json:"newDetections"`
	AlreadyTracked int    `json:"alreadyTracked"`
	Error          string `json:"error,omitempty"`
}

type Report struct {
	Results            map[models.ProcessType]TypeResult `json:"scanResults"`
	TotalFound         int                               `json:"totalFound"`
	TotalNewDetections int                               `json:"totalNewDetections"`
	DryRun             bool                              `json:"dryRun"`
	ScannedAt          time.Time                         `json:"scannedAt"`
}

// Scanner runs detection sweeps and upserts new abandonments into the ledger.
type Scanner struct {
	detectors map[models.ProcessType]detector.Detector
	ledger    *ledger.Ledger
}

func New(detectors map[models.ProcessType]detector.Detector, l *ledger.Ledger) *Scanner {
	return &Scanner{detectors: detectors, ledger: l}
}

// Scan sweeps the requested process types (all four when empty). Repeated
// scans are idempotent: entities with an open ledger row count as already
// tracked and nothing is written for them. One type's failure never aborts
// the others.
func (s *Scanner) Scan(types []models.ProcessType, dryRun bool) *Report {
	if len(types) == 0 {
		types = models.AllProcessTypes()
	}
	now := time.Now()
	report := &Report{
		Results:   make(map[models.ProcessType]TypeResult, len(types)),
		DryRun:    dryRun,
		ScannedAt: now,
	}

	for _, pt := range types {
		det, ok := s.detectors[pt]
		if !ok {
			continue
		}
		report.Results[pt] = s.scanType(det, now, dryRun)
	}

	for _, res := range report.Results {
		report.TotalFound += res.Found
		report.TotalNewDetections += res.NewDetections
	}
	return report
}

func (s *Scanner) scanType(det detector.Detector, now time.Time, dryRun bool) TypeResult {
	var res TypeResult

	candidates, err := det.Detect(now)
	if err != nil {
		slog.Error("detection failed", "process_type", det.Type(), "error", err)
		res.Error = err.Error()
		return res
	}
	res.Found = len(candidates)

	for _, cand := range candidates {
		if dryRun {
			tracked, err := s.ledger.IsTracked(det.Type(), cand.EntityID)
			if err != nil {
				slog.Error("tracked check failed", "process_type", det.Type(), "entity_id", cand.EntityID, "error", err)
				continue
			}
			if tracked {
				res.AlreadyTracked++
			} else {
				res.NewDetections++
			}
			continue
		}

		_, err := s.ledger.Track(det.Type(), cand.EntityID, cand.Metadata, now)
		switch {
		case errors.Is(err, ledger.ErrAlreadyTracked):
			res.AlreadyTracked++
		case err != nil:
			slog.Error("tracking failed", "process_type", det.Type(), "entity_id", cand.EntityID, "error", err)
		default:
			res.NewDetections++
		}
	}
	return res
}
