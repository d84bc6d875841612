package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Read-only snapshots of the marketplace's workflow tables. The platform
// backend owns these schemas; this service never migrates or writes them.

type Order struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BuyerID           uuid.UUID  `gorm:"type:uuid" json:"buyer_id"`
	SellerID          uuid.UUID  `gorm:"type:uuid" json:"seller_id"`
	Status            string     `gorm:"size:32;not null" json:"status"` // placed, seller_confirmed, shipped, delivered, cancelled
	TotalCents        int64      `json:"total_cents"`
	PlacedAt          time.Time  `gorm:"not null" json:"placed_at"`
	SellerConfirmedAt *time.Time `json:"seller_confirmed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type DeliveryTask struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	CourierID   uuid.UUID  `gorm:"type:uuid" json:"courier_id"`
	Status      string     `gorm:"size:32;not null" json:"status"` // assigned, picked_up, delivered, failed
	PickedUpAt  *time.Time `json:"picked_up_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Transaction struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	Status      string     `gorm:"size:32;not null" json:"status"` // pending, settled, refunded, failed
	AmountCents int64      `json:"amount_cents"`
	InitiatedAt time.Time  `gorm:"not null" json:"initiated_at"`
	SettledAt   *time.Time `json:"settled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (d *DeliveryTask) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
