package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pazarly/reaper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "reaper.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Order{}, &models.DeliveryTask{}, &models.Transaction{}, &models.ActivityLog{},
	))
	return db
}

func seedActivityLog(t *testing.T, db *gorm.DB, activityType string, age time.Duration) models.ActivityLog {
	t.Helper()
	entry := models.ActivityLog{
		ActivityType: activityType, EntityType: "order", EntityID: uuid.New(),
		CreatedAt: time.Now().Add(-age),
	}
	require.NoError(t, db.Create(&entry).Error)
	return entry
}

func TestCountAndDeleteActivityLogsBefore(t *testing.T) {
	db := newTestDB(t)
	r := NewReader(db)
	now := time.Now()

	seedActivityLog(t, db, "order_placed", 100*24*time.Hour)
	seedActivityLog(t, db, "order_shipped", 95*24*time.Hour)
	recent := seedActivityLog(t, db, "order_placed", 10*24*time.Hour)

	cutoff := now.Add(-90 * 24 * time.Hour)
	n, err := r.CountActivityLogsBefore(cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	deleted, err := r.DeleteActivityLogsBefore(cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, n, deleted, "purge removes exactly the counted set")

	var remaining []models.ActivityLog
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, recent.ID, remaining[0].ID)
}

func TestGetOrder_NotFound(t *testing.T) {
	r := NewReader(newTestDB(t))
	_, err := r.GetOrder(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
