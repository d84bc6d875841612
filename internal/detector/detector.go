package detector

import (
	"time"

	"github.com/google/uuid"
	"github.com/pazarly/reaper/internal/models"
	"github.com/pazarly/reaper/internal/snapshot"
)

// Candidate is one stalled entity found by a detector. Metadata carries the
// context the ledger stores at detection time (stale status, stuck-since
// timestamp, elapsed hours) so the scanner needs no second query.
type Candidate struct {
	EntityID uuid.UUID
	Metadata map[string]interface{}
}

// Detector encodes one process type's staleness rule against a current
// snapshot. Implementations are pure reads; they never mutate anything.
type Detector interface {
	Type() models.ProcessType
	Detect(now time.Time) ([]Candidate, error)
}

// Thresholds holds the per-type staleness windows. Each type has its own
// clock basis field, so the windows are not interchangeable.
type Thresholds struct {
	OrderStale       time.Duration
	DeliveryStale    time.Duration
	TransactionStale time.Duration
	ActivityStale    time.Duration
}

// New builds the full detector registry, one implementation per process type.
func New(reader *snapshot.Reader, t Thresholds) map[models.ProcessType]Detector {
	return map[models.ProcessType]Detector{
		models.ProcessOrder:        &orderDetector{reader: reader, stale: t.OrderStale},
		models.ProcessDeliveryTask: &deliveryDetector{reader: reader, stale: t.DeliveryStale},
		models.ProcessTransaction:  &transactionDetector{reader: reader, stale: t.TransactionStale},
		models.ProcessActivityLog:  &activityDetector{reader: reader, stale: t.ActivityStale},
	}
}

func elapsedHours(now, since time.Time) float64 {
	return now.Sub(since).Hours()
}

type orderDetector struct {
	reader *snapshot.Reader
	stale  time.Duration
}

func (d *orderDetector) Type() models.ProcessType { return models.ProcessOrder }

func (d *orderDetector) Detect(now time.Time) ([]Candidate, error) {
	orders, err := d.reader.StalledOrders(now.Add(-d.stale))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(orders))
	for _, o := range orders {
		out = append(out, Candidate{
			EntityID: o.ID,
			Metadata: map[string]interface{}{
				"stale_status":  o.Status,
				"stuck_since":   o.PlacedAt,
				"elapsed_hours": elapsedHours(now, o.PlacedAt),
				"buyer_id":      o.BuyerID,
				"seller_id":     o.SellerID,
				"total_cents":   o.TotalCents,
			},
		})
	}
	return out, nil
}

type deliveryDetector struct {
	reader *snapshot.Reader
	stale  time.Duration
}

func (d *deliveryDetector) Type() models.ProcessType { return models.ProcessDeliveryTask }

func (d *deliveryDetector) Detect(now time.Time) ([]Candidate, error) {
	tasks, err := d.reader.StalledDeliveryTasks(now.Add(-d.stale))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(tasks))
	for _, t := range tasks {
		meta := map[string]interface{}{
			"stale_status": t.Status,
			"order_id":     t.OrderID,
			"courier_id":   t.CourierID,
		}
		if t.PickedUpAt != nil {
			meta["stuck_since"] = *t.PickedUpAt
			meta["elapsed_hours"] = elapsedHours(now, *t.PickedUpAt)
		}
		out = append(out, Candidate{EntityID: t.ID, Metadata: meta})
	}
	return out, nil
}

type transactionDetector struct {
	reader *snapshot.Reader
	stale  time.Duration
}

func (d *transactionDetector) Type() models.ProcessType { return models.ProcessTransaction }

func (d *transactionDetector) Detect(now time.Time) ([]Candidate, error) {
	txs, err := d.reader.StalledTransactions(now.Add(-d.stale))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(txs))
	for _, tx := range txs {
		out = append(out, Candidate{
			EntityID: tx.ID,
			Metadata: map[string]interface{}{
				"stale_status":  tx.Status,
				"stuck_since":   tx.InitiatedAt,
				"elapsed_hours": elapsedHours(now, tx.InitiatedAt),
				"order_id":      tx.OrderID,
				"amount_cents":  tx.AmountCents,
			},
		})
	}
	return out, nil
}

// activityDetector flags long-running operations recorded in the audit trail:
// a *_started entry old enough with no matching completion entry. The tracked
// entity is the started audit entry itself.
type activityDetector struct {
	reader *snapshot.Reader
	stale  time.Duration
}

func (d *activityDetector) Type() models.ProcessType { return models.ProcessActivityLog }

func (d *activityDetector) Detect(now time.Time) ([]Candidate, error) {
	entries, err := d.reader.OpenActivityTrails(now.Add(-d.stale))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, Candidate{
			EntityID: e.ID,
			Metadata: map[string]interface{}{
				"activity_type": e.ActivityType,
				"entity_type":   e.EntityType,
				"entity_id":     e.EntityID,
				"stuck_since":   e.CreatedAt,
				"elapsed_hours": elapsedHours(now, e.CreatedAt),
			},
		})
	}
	return out, nil
}
