package audit

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pazarly/reaper/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sink appends entries to the platform audit trail. Writes are fire and
// forget: a failed append is logged and swallowed, never surfaced to the
// caller.
type Sink struct {
	db *gorm.DB
}

func NewSink(db *gorm.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) Append(activityType, entityType string, entityID uuid.UUID, description string, metadata map[string]interface{}) {
	var metaJSON datatypes.JSON
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metaJSON = datatypes.JSON(b)
		}
	}

	entry := models.ActivityLog{
		ActivityType: activityType,
		EntityType:   entityType,
		EntityID:     entityID,
		Description:  description,
		Metadata:     metaJSON,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		slog.Error("Failed to append audit entry", "activity_type", activityType, "error", err)
	}
}
