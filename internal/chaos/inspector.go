// internal/chaos/inspector.go
package chaos

import (
	"context"
	"encoding/json"
	"fmt"

	"barternexus/internal/market"
	"barternexus/internal/storage/memory"
	"barternexus/pkg/eventstore"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Inspector reads ledger health from the exchange store. Every method
// returns a count of offending rows, so a healthy system reads zero
// everywhere.
type Inspector interface {
	// InconsistentItems counts items outside 0 <= available <= stock.
	InconsistentItems(ctx context.Context) (float64, error)
	// UnbalancedItems counts items whose reserved units differ from the
	// units held by open offers.
	UnbalancedItems(ctx context.Context) (float64, error)
	// AuditDrift counts items whose last inventory event disagrees with the
	// stored available quantity.
	AuditDrift(ctx context.Context) (float64, error)
}

func holdingStatuses() []string {
	var out []string
	for _, s := range market.OfferStatuses {
		if s.HoldsReservation() {
			out = append(out, string(s))
		}
	}
	return out
}

type memoryInspector struct {
	store *memory.Store
}

// NewMemoryInspector inspects an in-process store.
func NewMemoryInspector(store *memory.Store) Inspector {
	return &memoryInspector{store: store}
}

func (m *memoryInspector) InconsistentItems(ctx context.Context) (float64, error) {
	count := 0
	for _, item := range m.store.Items() {
		if !item.Consistent() {
			count++
		}
	}
	return float64(count), nil
}

func (m *memoryInspector) UnbalancedItems(ctx context.Context) (float64, error) {
	held := make(map[uuid.UUID]int)
	for _, o := range m.store.Offers() {
		if !o.Status.HoldsReservation() {
			continue
		}
		for _, line := range o.Items {
			held[line.ItemID] += line.Quantity
		}
	}

	count := 0
	for _, item := range m.store.Items() {
		if item.Reserved() != held[item.ID] {
			count++
		}
	}
	return float64(count), nil
}

func (m *memoryInspector) AuditDrift(ctx context.Context) (float64, error) {
	last := make(map[uuid.UUID]int)
	for _, e := range m.store.Events() {
		if changed, ok := e.Data.(market.InventoryChangedEvent); ok {
			last[changed.ItemID] = changed.Available
		}
	}
	return drift(m.store.Items(), last), nil
}

func drift(items []market.Item, last map[uuid.UUID]int) float64 {
	count := 0
	for _, item := range items {
		available, ok := last[item.ID]
		if !ok || available != item.AvailableQuantity {
			count++
		}
	}
	return float64(count)
}

type postgresInspector struct {
	db        *sqlx.DB
	events    *eventstore.EventStore
	batchSize int
}

// NewPostgresInspector inspects the tables and event stream written by the
// postgres gateway.
func NewPostgresInspector(db *sqlx.DB, events *eventstore.EventStore) Inspector {
	return &postgresInspector{db: db, events: events, batchSize: 500}
}

func (p *postgresInspector) InconsistentItems(ctx context.Context) (float64, error) {
	var count int
	err := p.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM items
		WHERE available_quantity < 0 OR available_quantity > stock_quantity
	`)
	if err != nil {
		return 0, fmt.Errorf("count inconsistent items: %w", err)
	}
	return float64(count), nil
}

func (p *postgresInspector) UnbalancedItems(ctx context.Context) (float64, error) {
	var count int
	err := p.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM items i
		LEFT JOIN (
			SELECT oi.item_id, SUM(oi.quantity) AS held
			FROM offer_items oi
			JOIN offers o ON o.id = oi.offer_id
			WHERE o.status = ANY($1)
			GROUP BY oi.item_id
		) h ON h.item_id = i.id
		WHERE i.stock_quantity - i.available_quantity <> COALESCE(h.held, 0)
	`, pq.Array(holdingStatuses()))
	if err != nil {
		return 0, fmt.Errorf("count unbalanced items: %w", err)
	}
	return float64(count), nil
}

func (p *postgresInspector) AuditDrift(ctx context.Context) (float64, error) {
	last := make(map[uuid.UUID]int)
	var from int64
	for {
		batch, err := p.events.StreamEvents(ctx, market.AggregateItem, from, p.batchSize)
		if err != nil {
			return 0, err
		}
		for _, e := range batch {
			var changed market.InventoryChangedEvent
			if err := json.Unmarshal(e.EventData, &changed); err != nil {
				return 0, fmt.Errorf("decode event %d: %w", e.ID, err)
			}
			last[changed.ItemID] = changed.Available
			from = e.ID
		}
		if len(batch) < p.batchSize {
			break
		}
	}

	var rows []struct {
		ID        uuid.UUID `db:"id"`
		Available int       `db:"available_quantity"`
	}
	if err := p.db.SelectContext(ctx, &rows, `SELECT id, available_quantity FROM items`); err != nil {
		return 0, fmt.Errorf("load items: %w", err)
	}
	items := make([]market.Item, len(rows))
	for i, row := range rows {
		items[i] = market.Item{ID: row.ID, AvailableQuantity: row.Available}
	}
	return drift(items, last), nil
}
