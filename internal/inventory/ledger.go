// internal/inventory/ledger.go
package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"barternexus/internal/market"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Ledger operations recorded in the event stream.
const (
	OpRegister = "register"
	OpReserve  = "reserve"
	OpRelease  = "release"
	OpTransfer = "transfer"
	OpReceive  = "receive"
)

// Ledger owns Item.StockQuantity and Item.AvailableQuantity. Every method
// works inside the caller's transaction so that reservations commit or roll
// back together with the offer change that caused them.
type Ledger struct {
	logger    *zap.Logger
	tracer    trace.Tracer
	movements metric.Int64Counter
	now       func() time.Time
}

func NewLedger(logger *zap.Logger) *Ledger {
	movements, _ := otel.Meter("barternexus/inventory").Int64Counter(
		"inventory.movements",
		metric.WithDescription("Ledger movements by operation"),
	)
	return &Ledger{
		logger:    logger,
		tracer:    otel.Tracer("barternexus/inventory"),
		movements: movements,
		now:       time.Now,
	}
}

// Register creates a new item owned by ownerID with all units available.
func (l *Ledger) Register(ctx context.Context, tx market.Tx, ownerID uuid.UUID, name string, stock int) (*market.Item, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative, got %d", market.ErrInvalidArgument, stock)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: item name is required", market.ErrInvalidArgument)
	}

	now := l.now().UTC()
	item := &market.Item{
		ID:                uuid.New(),
		OwnerID:           ownerID,
		Name:              name,
		StockQuantity:     stock,
		AvailableQuantity: stock,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.Items().Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	l.record(ctx, tx, item, OpRegister, stock)
	return item, nil
}

// Reserve holds quantity units of the item. It fails with
// ErrInsufficientInventory when fewer units are available.
func (l *Ledger) Reserve(ctx context.Context, tx market.Tx, itemID uuid.UUID, quantity int) error {
	ctx, span := l.tracer.Start(ctx, "inventory.reserve", trace.WithAttributes(
		attribute.String("item.id", itemID.String()),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	if err := checkQuantity(quantity); err != nil {
		return err
	}
	item, err := tx.Items().Get(ctx, itemID)
	if err != nil {
		return err
	}
	if quantity > item.AvailableQuantity {
		span.SetAttributes(attribute.Int("available", item.AvailableQuantity))
		return fmt.Errorf("%w: item %s has %d available, %d requested",
			market.ErrInsufficientInventory, itemID, item.AvailableQuantity, quantity)
	}

	item.AvailableQuantity -= quantity
	return l.save(ctx, tx, item, OpReserve, quantity)
}

// ReserveAll reserves every line or none. Lines already reserved when a later
// line fails are released again before the error is returned.
func (l *Ledger) ReserveAll(ctx context.Context, tx market.Tx, lines []market.OfferItem) error {
	applied := make([]market.OfferItem, 0, len(lines))
	for _, line := range sortedLines(lines) {
		if err := l.Reserve(ctx, tx, line.ItemID, line.Quantity); err != nil {
			l.compensate(ctx, tx, applied)
			return err
		}
		applied = append(applied, line)
	}
	return nil
}

func (l *Ledger) compensate(ctx context.Context, tx market.Tx, applied []market.OfferItem) {
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		l.logger.Warn("Rolling back reservation after failed batch",
			zap.String("item_id", line.ItemID.String()),
			zap.Int("quantity", line.Quantity),
		)
		if err := l.Release(ctx, tx, line.ItemID, line.Quantity); err != nil {
			l.logger.Error("Failed to roll back reservation",
				zap.String("item_id", line.ItemID.String()),
				zap.Error(err),
			)
		}
	}
}

// Release returns quantity reserved units to the available pool. Releasing
// more than is reserved is a ledger invariant violation and fails loudly.
func (l *Ledger) Release(ctx context.Context, tx market.Tx, itemID uuid.UUID, quantity int) error {
	ctx, span := l.tracer.Start(ctx, "inventory.release", trace.WithAttributes(
		attribute.String("item.id", itemID.String()),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	if err := checkQuantity(quantity); err != nil {
		return err
	}
	item, err := tx.Items().Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item.AvailableQuantity+quantity > item.StockQuantity {
		l.logger.Error("Release would exceed stock",
			zap.String("item_id", itemID.String()),
			zap.Int("stock", item.StockQuantity),
			zap.Int("available", item.AvailableQuantity),
			zap.Int("quantity", quantity),
		)
		return fmt.Errorf("%w: releasing %d on item %s (stock %d, available %d)",
			market.ErrLedgerInvariant, quantity, itemID, item.StockQuantity, item.AvailableQuantity)
	}

	item.AvailableQuantity += quantity
	return l.save(ctx, tx, item, OpRelease, quantity)
}

func (l *Ledger) ReleaseAll(ctx context.Context, tx market.Tx, lines []market.OfferItem) error {
	for _, line := range sortedLines(lines) {
		if err := l.Release(ctx, tx, line.ItemID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Transfer moves quantity reserved units of the item to recipient. The
// source loses the units from stock (they were already unavailable while
// reserved) and the recipient is credited with a new item of the same name.
func (l *Ledger) Transfer(ctx context.Context, tx market.Tx, itemID uuid.UUID, quantity int, recipient uuid.UUID) (*market.Item, error) {
	ctx, span := l.tracer.Start(ctx, "inventory.transfer", trace.WithAttributes(
		attribute.String("item.id", itemID.String()),
		attribute.String("recipient.id", recipient.String()),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	source, err := tx.Items().Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if source.Reserved() < quantity {
		return nil, fmt.Errorf("%w: transferring %d on item %s with only %d reserved",
			market.ErrLedgerInvariant, quantity, itemID, source.Reserved())
	}

	source.StockQuantity -= quantity
	if err := l.save(ctx, tx, source, OpTransfer, quantity); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	origin := source.ID
	received := &market.Item{
		ID:                uuid.New(),
		OwnerID:           recipient,
		Name:              source.Name,
		StockQuantity:     quantity,
		AvailableQuantity: quantity,
		OriginItemID:      &origin,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.Items().Insert(ctx, received); err != nil {
		return nil, fmt.Errorf("insert transferred item: %w", err)
	}
	l.record(ctx, tx, received, OpReceive, quantity)

	l.logger.Info("Item units transferred",
		zap.String("item_id", itemID.String()),
		zap.String("received_item_id", received.ID.String()),
		zap.String("recipient_id", recipient.String()),
		zap.Int("quantity", quantity),
	)
	return received, nil
}

func (l *Ledger) TransferAll(ctx context.Context, tx market.Tx, lines []market.OfferItem, recipient uuid.UUID) error {
	for _, line := range sortedLines(lines) {
		if _, err := l.Transfer(ctx, tx, line.ItemID, line.Quantity, recipient); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) save(ctx context.Context, tx market.Tx, item *market.Item, op string, quantity int) error {
	if !item.Consistent() {
		return fmt.Errorf("%w: item %s would have stock %d, available %d",
			market.ErrLedgerInvariant, item.ID, item.StockQuantity, item.AvailableQuantity)
	}
	item.UpdatedAt = l.now().UTC()
	if err := tx.Items().Update(ctx, item); err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	l.record(ctx, tx, item, op, quantity)
	return nil
}

func (l *Ledger) record(ctx context.Context, tx market.Tx, item *market.Item, op string, quantity int) {
	tx.Record(market.Event{
		AggregateID:   item.ID,
		AggregateType: market.AggregateItem,
		Type:          "Inventory" + op,
		Data: market.InventoryChangedEvent{
			ItemID:    item.ID,
			Operation: op,
			Quantity:  quantity,
			Stock:     item.StockQuantity,
			Available: item.AvailableQuantity,
		},
		OccurredAt: l.now().UTC(),
	})
	if l.movements != nil {
		l.movements.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
	}
}

func checkQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", market.ErrInvalidArgument, quantity)
	}
	return nil
}

// sortedLines orders lines by item id so row locks are always taken in the
// same order.
func sortedLines(lines []market.OfferItem) []market.OfferItem {
	sorted := make([]market.OfferItem, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ItemID.String() < sorted[j].ItemID.String()
	})
	return sorted
}

// MergeLines sums quantities of duplicate item lines.
func MergeLines(lines []market.OfferItem) []market.OfferItem {
	totals := make(map[uuid.UUID]int, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, seen := totals[line.ItemID]; !seen {
			order = append(order, line.ItemID)
		}
		totals[line.ItemID] += line.Quantity
	}
	merged := make([]market.OfferItem, 0, len(order))
	for _, id := range order {
		merged = append(merged, market.OfferItem{ItemID: id, Quantity: totals[id]})
	}
	return sortedLines(merged)
}
