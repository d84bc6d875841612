package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProcessType string

const (
	ProcessOrder        ProcessType = "order"
	ProcessDeliveryTask ProcessType = "delivery_task"
	ProcessTransaction  ProcessType = "transaction"
	ProcessActivityLog  ProcessType = "activity_log"
)

func AllProcessTypes() []ProcessType {
	return []ProcessType{ProcessOrder, ProcessDeliveryTask, ProcessTransaction, ProcessActivityLog}
}

func (p ProcessType) Valid() bool {
	switch p {
	case ProcessOrder, ProcessDeliveryTask, ProcessTransaction, ProcessActivityLog:
		return true
	}
	return false
}

type Status string

const (
	StatusDetected  Status = "detected"
	StatusNotified  Status = "notified"
	StatusEscalated Status = "escalated"
	StatusResolved  Status = "resolved"
)

func AllStatuses() []Status {
	return []Status{StatusDetected, StatusNotified, StatusEscalated, StatusResolved}
}

func (s Status) Valid() bool {
	switch s {
	case StatusDetected, StatusNotified, StatusEscalated, StatusResolved:
		return true
	}
	return false
}

// Terminal reports whether a status freezes the row. Escalated rows can
// still be re-notified or resolved; only resolved is final.
func (s Status) Terminal() bool {
	return s == StatusResolved
}

// Escalation is always relative to an unanswered notification, so a detected
// row must be notified before it can escalate.
var transitions = map[Status]map[Status]bool{
	StatusDetected:  {StatusNotified: true, StatusResolved: true},
	StatusNotified:  {StatusEscalated: true, StatusResolved: true},
	StatusEscalated: {StatusNotified: true, StatusResolved: true},
}

func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// AbandonedProcess tracks one stalled workflow entity through remediation.
// The partial unique index keeps at most one open (non-resolved) row per
// (process_type, entity_id); a resolved episode does not block re-detection.
type AbandonedProcess struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProcessType      ProcessType    `gorm:"type:varchar(32);not null;index:idx_abandoned_open,unique,where:status <> 'resolved'" json:"process_type"`
	EntityID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_abandoned_open,unique" json:"entity_id"`
	Status           Status         `gorm:"type:varchar(16);not null;default:'detected';index" json:"status"`
	DetectedAt       time.Time      `gorm:"not null" json:"detected_at"`
	LastNotifiedAt   *time.Time     `json:"last_notified_at"`
	ResolvedAt       *time.Time     `json:"resolved_at"`
	ResolutionAction string         `gorm:"type:text" json:"resolution_action,omitempty"`
	Metadata         datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (p *AbandonedProcess) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
