package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLog is the platform-wide audit trail. Every backend writes to it;
// this service only appends cleanup summaries and purges rows past the raw
// retention horizon.
type ActivityLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityType string         `gorm:"size:64;not null;index" json:"activity_type"` // order_placed, delivery_started, cleanup_completed, etc.
	EntityType   string         `gorm:"size:32;not null;index:idx_activity_entity" json:"entity_type"`
	EntityID     uuid.UUID      `gorm:"type:uuid;index:idx_activity_entity" json:"entity_id"`
	Description  string         `gorm:"type:text" json:"description"`
	Metadata     datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
