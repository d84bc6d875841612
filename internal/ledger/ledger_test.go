package ledger

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
	require.NoError(t, db.AutoMigrate(&models.AbandonedProcess{}, &models.ActivityLog{}))
	return db
}

func TestTrack_CreatesDetectedRow(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	entityID := uuid.New()
	now := time.Now()

	row, err := l.Track(models.ProcessOrder, entityID, map[string]interface{}{"stale_status": "placed"}, now)
	require.NoError(t, err)

	assert.Equal(t, models.ProcessOrder, row.ProcessType)
	assert.Equal(t, entityID, row.EntityID)
	assert.Equal(t, models.StatusDetected, row.Status)
	assert.WithinDuration(t, now, row.DetectedAt, time.Second)
	assert.Nil(t, row.LastNotifiedAt)
	assert.Nil(t, row.ResolvedAt)
	assert.JSONEq(t, `{"stale_status":"placed"}`, string(row.Metadata))
}

func TestTrack_DuplicateIsAlreadyTracked(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	entityID := uuid.New()

	_, err := l.Track(models.ProcessOrder, entityID, nil, time.Now())
	require.NoError(t, err)

	_, err = l.Track(models.ProcessOrder, entityID, nil, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyTracked)

	// Same entity id under a different type is a distinct process.
	_, err = l.Track(models.ProcessTransaction, entityID, nil, time.Now())
	assert.NoError(t, err)
}

func TestTrack_ResolvedEpisodeDoesNotBlockRedetection(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	entityID := uuid.New()

	row, err := l.Track(models.ProcessOrder, entityID, nil, time.Now())
	require.NoError(t, err)
	_, err = l.Transition(row.ID, models.StatusResolved, "order cancelled", time.Now())
	require.NoError(t, err)

	again, err := l.Track(models.ProcessOrder, entityID, nil, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, row.ID, again.ID)
}

func TestTransition_NotifiedSetsTimestamp(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	row, err := l.Track(models.ProcessDeliveryTask, uuid.New(), nil, time.Now())
	require.NoError(t, err)

	now := time.Now()
	updated, err := l.Transition(row.ID, models.StatusNotified, "", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotified, updated.Status)
	require.NotNil(t, updated.LastNotifiedAt)
	assert.WithinDuration(t, now, *updated.LastNotifiedAt, time.Second)
}

func TestTransition_DetectedCannotEscalateDirectly(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	row, err := l.Track(models.ProcessOrder, uuid.New(), nil, time.Now())
	require.NoError(t, err)

	_, err = l.Transition(row.ID, models.StatusEscalated, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_EscalationThreshold(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	row, err := l.Track(models.ProcessOrder, uuid.New(), nil, time.Now())
	require.NoError(t, err)
	_, err = l.Transition(row.ID, models.StatusNotified, "", time.Now())
	require.NoError(t, err)

	// Too early: notified moments ago.
	_, err = l.Transition(row.ID, models.StatusEscalated, "", time.Now())
	assert.ErrorIs(t, err, ErrEscalationNotDue)

	// Age the notification past the threshold.
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, l.db.Model(&models.AbandonedProcess{}).
		Where("id = ?", row.ID).
		Update("last_notified_at", past).Error)

	updated, err := l.Transition(row.ID, models.StatusEscalated, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, updated.Status)

	// Escalated loops back to notified.
	updated, err = l.Transition(row.ID, models.StatusNotified, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotified, updated.Status)
}

func TestTransition_ResolveRequiresAction(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	row, err := l.Track(models.ProcessTransaction, uuid.New(), nil, time.Now())
	require.NoError(t, err)

	_, err = l.Transition(row.ID, models.StatusResolved, "", time.Now())
	assert.ErrorIs(t, err, ErrResolutionRequired)

	now := time.Now()
	updated, err := l.Transition(row.ID, models.StatusResolved, "refund issued", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)
	assert.Equal(t, "refund issued", updated.ResolutionAction)
	require.NotNil(t, updated.ResolvedAt)
	assert.WithinDuration(t, now, *updated.ResolvedAt, time.Second)

	// Resolved rows are frozen.
	_, err = l.Transition(row.ID, models.StatusNotified, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGet_Unknown(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	_, err := l.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedLedger(t *testing.T, l *Ledger) {
	t.Helper()
	// 3 order rows (2 detected, 1 resolved), 2 transaction rows (notified).
	for i := 0; i < 2; i++ {
		_, err := l.Track(models.ProcessOrder, uuid.New(), nil, time.Now())
		require.NoError(t, err)
	}
	row, err := l.Track(models.ProcessOrder, uuid.New(), nil, time.Now())
	require.NoError(t, err)
	_, err = l.Transition(row.ID, models.StatusResolved, "done", time.Now())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		row, err := l.Track(models.ProcessTransaction, uuid.New(), nil, time.Now())
		require.NoError(t, err)
		_, err = l.Transition(row.ID, models.StatusNotified, "", time.Now())
		require.NoError(t, err)
	}
}

func TestList_Pagination(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	seedLedger(t, l)

	page, err := l.List(Filter{SortBy: "detected_at", SortOrder: "asc", Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.EqualValues(t, 5, page.Summary.Total)

	page, err = l.List(Filter{SortBy: "detected_at", SortOrder: "asc", Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
}

func TestList_FilterAndSort(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	seedLedger(t, l)

	pt := models.ProcessOrder
	page, err := l.List(Filter{ProcessType: &pt, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	for _, item := range page.Items {
		assert.Equal(t, models.ProcessOrder, item.ProcessType)
	}

	st := models.StatusNotified
	page, err = l.List(Filter{Status: &st, SortBy: "updated_at", SortOrder: "desc", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestSummarize_AggregatesSumToTotal(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	seedLedger(t, l)

	s, err := l.Summarize(Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, s.Total)

	var byStatus, byType int64
	for _, n := range s.ByStatus {
		byStatus += n
	}
	for _, n := range s.ByType {
		byType += n
	}
	assert.Equal(t, s.Total, byStatus)
	assert.Equal(t, s.Total, byType)
}

func TestSummarize_BreakdownsRespectTheOtherFilter(t *testing.T) {
	l := New(newTestDB(t), time.Hour)
	seedLedger(t, l)

	pt := models.ProcessOrder
	st := models.StatusDetected
	s, err := l.Summarize(Filter{ProcessType: &pt, Status: &st})
	require.NoError(t, err)

	// Total honors both filters.
	assert.EqualValues(t, 2, s.Total)
	// Status breakdown honors only the type filter: the resolved order row
	// still shows up.
	assert.EqualValues(t, 2, s.ByStatus[models.StatusDetected])
	assert.EqualValues(t, 1, s.ByStatus[models.StatusResolved])
	// Type breakdown honors only the status filter.
	assert.EqualValues(t, 2, s.ByType[models.ProcessOrder])
	assert.Zero(t, s.ByType[models.ProcessTransaction])
}

func TestCountAndDeleteResolvedBefore(t *testing.T) {
	db := newTestDB(t)
	l := New(db, time.Hour)
	now := time.Now()

	old := now.Add(-31 * 24 * time.Hour)
	fresh := now.Add(-29 * 24 * time.Hour)
	rows := []models.AbandonedProcess{
		{ProcessType: models.ProcessOrder, EntityID: uuid.New(), Status: models.StatusResolved, DetectedAt: old, ResolvedAt: &old, ResolutionAction: "done"},
		{ProcessType: models.ProcessOrder, EntityID: uuid.New(), Status: models.StatusResolved, DetectedAt: fresh, ResolvedAt: &fresh, ResolutionAction: "done"},
		{ProcessType: models.ProcessOrder, EntityID: uuid.New(), Status: models.StatusEscalated, DetectedAt: old},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	cutoff := now.Add(-30 * 24 * time.Hour)
	n, err := l.CountResolvedBefore(models.ProcessOrder, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	deleted, err := l.DeleteResolvedBefore(models.ProcessOrder, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	// The fresh resolved row and the old escalated row survive.
	var remaining int64
	require.NoError(t, db.Model(&models.AbandonedProcess{}).Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining)
}
