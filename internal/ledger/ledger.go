package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pazarly/reaper/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrAlreadyTracked     = errors.New("ledger: process already tracked")
	ErrNotFound           = errors.New("ledger: abandoned process not found")
	ErrInvalidTransition  = errors.New("ledger: invalid status transition")
	ErrEscalationNotDue   = errors.New("ledger: escalation threshold not yet elapsed")
	ErrResolutionRequired = errors.New("ledger: resolution action required")
)

// Ledger is the system of record for tracked abandonments and their
// remediation state.
type Ledger struct {
	db              *gorm.DB
	escalationAfter time.Duration
}

func New(db *gorm.DB, escalationAfter time.Duration) *Ledger {
	return &Ledger{db: db, escalationAfter: escalationAfter}
}

// IsTracked reports whether a non-terminal row exists for the pair. A
// resolved episode does not count; the entity can be re-detected.
func (l *Ledger) IsTracked(pt models.ProcessType, entityID uuid.UUID) (bool, error) {
	var count int64
	err := l.db.Model(&models.AbandonedProcess{}).
		Where("process_type = ? AND entity_id = ? AND status <> ?", pt, entityID, models.StatusResolved).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check tracked: %w", err)
	}
	return count > 0, nil
}

// Track inserts a new detected row for the pair. If a non-terminal row
// already exists it returns ErrAlreadyTracked; a duplicate-key conflict from
// a racing scan on the partial unique index is reported the same way.
func (l *Ledger) Track(pt models.ProcessType, entityID uuid.UUID, metadata map[string]interface{}, now time.Time) (*models.AbandonedProcess, error) {
	tracked, err := l.IsTracked(pt, entityID)
	if err != nil {
		return nil, err
	}
	if tracked {
		return nil, ErrAlreadyTracked
	}

	var metaJSON datatypes.JSON
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metaJSON = datatypes.JSON(b)
		}
	}

	row := models.AbandonedProcess{
		ProcessType: pt,
		EntityID:    entityID,
		Status:      models.StatusDetected,
		DetectedAt:  now,
		Metadata:    metaJSON,
	}
	if err := l.db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyTracked
		}
		return nil, fmt.Errorf("create abandoned process: %w", err)
	}
	return &row, nil
}

func (l *Ledger) Get(id uuid.UUID) (*models.AbandonedProcess, error) {
	var row models.AbandonedProcess
	if err := l.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get abandoned process: %w", err)
	}
	return &row, nil
}

// Transition applies the remediation state machine. Resolved rows are frozen;
// processType, entityId and detectedAt are never writable.
func (l *Ledger) Transition(id uuid.UUID, to models.Status, resolutionAction string, now time.Time) (*models.AbandonedProcess, error) {
	row, err := l.Get(id)
	if err != nil {
		return nil, err
	}

	if row.Status.Terminal() || !models.CanTransition(row.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, to)
	}

	switch to {
	case models.StatusNotified:
		row.Status = models.StatusNotified
		row.LastNotifiedAt = &now
	case models.StatusEscalated:
		if row.LastNotifiedAt == nil || now.Sub(*row.LastNotifiedAt) < l.escalationAfter {
			return nil, ErrEscalationNotDue
		}
		row.Status = models.StatusEscalated
	case models.StatusResolved:
		if resolutionAction == "" {
			return nil, ErrResolutionRequired
		}
		row.Status = models.StatusResolved
		row.ResolvedAt = &now
		row.ResolutionAction = resolutionAction
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, to)
	}

	if err := l.db.Save(row).Error; err != nil {
		return nil, fmt.Errorf("save abandoned process: %w", err)
	}
	return row, nil
}

// Filter narrows List and Summary. SortBy must be one of the whitelisted
// column names; the handlers map API sort keys onto them.
type Filter struct {
	ProcessType *models.ProcessType
	Status      *models.Status
	SortBy      string
	SortOrder   string // asc | desc
	Limit       int
	Offset      int
}

var sortColumns = map[string]bool{
	"detected_at":      true,
	"created_at":       true,
	"updated_at":       true,
	"last_notified_at": true,
	"resolved_at":      true,
}

// Summary holds the aggregate counts. Total honors both filters; each
// breakdown is computed with only the other filter applied, so the dashboard
// can show sibling statuses/types alongside the filtered view.
type Summary struct {
	Total    int64                        `json:"total"`
	ByStatus map[models.Status]int64      `json:"byStatus"`
	ByType   map[models.ProcessType]int64 `json:"byType"`
}

type Page struct {
	Items   []models.AbandonedProcess
	Summary Summary
	HasMore bool
}

func (l *Ledger) base() *gorm.DB {
	return l.db.Model(&models.AbandonedProcess{})
}

func applyType(q *gorm.DB, pt *models.ProcessType) *gorm.DB {
	if pt != nil {
		q = q.Where("process_type = ?", *pt)
	}
	return q
}

func applyStatus(q *gorm.DB, st *models.Status) *gorm.DB {
	if st != nil {
		q = q.Where("status = ?", *st)
	}
	return q
}

// Summarize computes the aggregate counts for a filter.
func (l *Ledger) Summarize(f Filter) (*Summary, error) {
	s := Summary{
		ByStatus: make(map[models.Status]int64),
		ByType:   make(map[models.ProcessType]int64),
	}

	if err := applyStatus(applyType(l.base(), f.ProcessType), f.Status).Count(&s.Total).Error; err != nil {
		return nil, fmt.Errorf("count total: %w", err)
	}

	var byStatus []struct {
		Status models.Status
		N      int64
	}
	err := applyType(l.base(), f.ProcessType).
		Select("status, count(*) as n").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, r := range byStatus {
		s.ByStatus[r.Status] = r.N
	}

	var byType []struct {
		ProcessType models.ProcessType
		N           int64
	}
	err = applyStatus(l.base(), f.Status).
		Select("process_type, count(*) as n").
		Group("process_type").
		Scan(&byType).Error
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	for _, r := range byType {
		s.ByType[r.ProcessType] = r.N
	}

	return &s, nil
}

// List returns one filtered, sorted page plus the aggregates. It fetches
// limit+1 rows to derive HasMore without a second count query.
func (l *Ledger) List(f Filter) (*Page, error) {
	col := f.SortBy
	if !sortColumns[col] {
		col = "detected_at"
	}
	dir := "DESC"
	if f.SortOrder == "asc" {
		dir = "ASC"
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	summary, err := l.Summarize(f)
	if err != nil {
		return nil, err
	}

	var items []models.AbandonedProcess
	err = applyStatus(applyType(l.base(), f.ProcessType), f.Status).
		Order(col + " " + dir).
		Offset(f.Offset).
		Limit(f.Limit + 1).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list abandoned processes: %w", err)
	}

	hasMore := len(items) > f.Limit
	if hasMore {
		items = items[:f.Limit]
	}

	return &Page{Items: items, Summary: *summary, HasMore: hasMore}, nil
}

// CountResolvedBefore counts resolved rows of one type whose resolvedAt is at
// or past the cutoff. The boundary is inclusive: a row resolved exactly at
// the cutoff is eligible.
func (l *Ledger) CountResolvedBefore(pt models.ProcessType, cutoff time.Time) (int64, error) {
	var n int64
	err := l.base().
		Where("process_type = ? AND status = ? AND resolved_at <= ?", pt, models.StatusResolved, cutoff).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count resolved: %w", err)
	}
	return n, nil
}

// DeleteResolvedBefore removes the same set CountResolvedBefore reports.
// The status predicate guarantees non-terminal rows are never reclaimed.
func (l *Ledger) DeleteResolvedBefore(pt models.ProcessType, cutoff time.Time) (int64, error) {
	res := l.db.
		Where("process_type = ? AND status = ? AND resolved_at <= ?", pt, models.StatusResolved, cutoff).
		Delete(&models.AbandonedProcess{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete resolved: %w", res.Error)
	}
	return res.RowsAffected, nil
}
