package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pazarly/reaper/internal/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("snapshot: entity not found")

// Reader is the view over the marketplace's workflow tables. The platform
// backend owns those schemas and this service never writes them; the one
// mutation the Reader owns is the activity-log retention purge.
type Reader struct {
	db *gorm.DB
}

func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

func (r *Reader) GetOrder(id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.db.First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (r *Reader) GetDeliveryTask(id uuid.UUID) (*models.DeliveryTask, error) {
	var d models.DeliveryTask
	if err := r.db.First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get delivery task: %w", err)
	}
	return &d, nil
}

func (r *Reader) GetTransaction(id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (r *Reader) GetActivityLog(id uuid.UUID) (*models.ActivityLog, error) {
	var a models.ActivityLog
	if err := r.db.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get activity log: %w", err)
	}
	return &a, nil
}

// StalledOrders returns orders still waiting on seller confirmation that were
// placed at or before cutoff. The query reflects current state, so deleted or
// since-advanced orders never surface.
func (r *Reader) StalledOrders(cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.
		Where("status = ? AND seller_confirmed_at IS NULL AND placed_at <= ?", "placed", cutoff).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("stalled orders: %w", err)
	}
	return orders, nil
}

// StalledDeliveryTasks returns tasks picked up at or before cutoff with no
// delivery verification.
func (r *Reader) StalledDeliveryTasks(cutoff time.Time) ([]models.DeliveryTask, error) {
	var tasks []models.DeliveryTask
	err := r.db.
		Where("status = ? AND delivered_at IS NULL AND picked_up_at <= ?", "picked_up", cutoff).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("stalled delivery tasks: %w", err)
	}
	return tasks, nil
}

// StalledTransactions returns transactions pending past the settlement window.
func (r *Reader) StalledTransactions(cutoff time.Time) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.
		Where("status = ? AND initiated_at <= ?", "pending", cutoff).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("stalled transactions: %w", err)
	}
	return txs, nil
}

// OpenActivityTrails returns *_started audit entries older than cutoff with no
// later *_completed or *_failed entry for the same underlying entity.
func (r *Reader) OpenActivityTrails(cutoff time.Time) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := r.db.
		Where(`activity_type LIKE ? ESCAPE '\'`, `%\_started`).
		Where("created_at <= ?", cutoff).
		Where(`NOT EXISTS (
			SELECT 1 FROM activity_logs done
			WHERE done.entity_type = activity_logs.entity_type
			  AND done.entity_id = activity_logs.entity_id
			  AND done.created_at > activity_logs.created_at
			  AND (done.activity_type LIKE '%\_completed' ESCAPE '\'
			    OR done.activity_type LIKE '%\_failed' ESCAPE '\')
		)`).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("open activity trails: %w", err)
	}
	return entries, nil
}

// CountActivityLogsBefore reports how many raw audit rows are past the given
// horizon; the cleanup dry-run uses it.
func (r *Reader) CountActivityLogsBefore(cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.Model(&models.ActivityLog{}).Where("created_at <= ?", cutoff).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count activity logs: %w", err)
	}
	return n, nil
}

// DeleteActivityLogsBefore purges the same set CountActivityLogsBefore
// reports and returns how many rows went away.
func (r *Reader) DeleteActivityLogsBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at <= ?", cutoff).Delete(&models.ActivityLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete activity logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
