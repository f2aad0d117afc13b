// internal/storage/postgres/gateway.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"barternexus/internal/market"
	"barternexus/pkg/eventstore"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Open connects to Postgres and configures the connection pool.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Gateway is the Postgres market.Gateway. Every Get inside a transaction
// takes a row lock (SELECT ... FOR UPDATE) that is held until commit, and
// every Update is a compare-and-swap on the row version. Domain events are
// appended to the event store in the same SQL transaction.
type Gateway struct {
	db     *sqlx.DB
	events *eventstore.EventStore
	logger *zap.Logger
	tracer trace.Tracer
}

func NewGateway(db *sqlx.DB, logger *zap.Logger) *Gateway {
	return &Gateway{
		db:     db,
		events: eventstore.NewEventStore(db.DB),
		logger: logger,
		tracer: otel.Tracer("barternexus/storage/postgres"),
	}
}

// Migrate creates the exchange and event tables when they are missing.
func (g *Gateway) Migrate(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create exchange schema: %w", err)
	}
	if _, err := g.db.ExecContext(ctx, eventstore.Schema); err != nil {
		return fmt.Errorf("create event schema: %w", err)
	}
	return nil
}

// Events exposes the underlying event store for stream readers.
func (g *Gateway) Events() *eventstore.EventStore {
	return g.events
}

func (g *Gateway) WithinTx(ctx context.Context, fn func(ctx context.Context, tx market.Tx) error) (err error) {
	ctx, span := g.tracer.Start(ctx, "postgres.tx")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sqlTx, err := g.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", translate(err))
	}
	defer sqlTx.Rollback()

	tx := &pgTx{tx: sqlTx}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := g.appendEvents(ctx, sqlTx, tx.events); err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("events.recorded", len(tx.events)))

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translate(err))
	}
	return nil
}

// appendEvents groups the recorded events per aggregate, keeping the order in
// which aggregates were first touched.
func (g *Gateway) appendEvents(ctx context.Context, tx *sqlx.Tx, events []market.Event) error {
	if len(events) == 0 {
		return nil
	}

	metadata := map[string]interface{}{}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	var order []uuid.UUID
	grouped := make(map[uuid.UUID][]eventstore.Event)
	types := make(map[uuid.UUID]string)
	for _, e := range events {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", e.Type, err)
		}
		if _, seen := grouped[e.AggregateID]; !seen {
			order = append(order, e.AggregateID)
			types[e.AggregateID] = e.AggregateType
		}
		grouped[e.AggregateID] = append(grouped[e.AggregateID], eventstore.Event{
			EventType: e.Type,
			EventData: data,
			Metadata:  metadata,
			CreatedAt: e.OccurredAt,
		})
	}

	for _, id := range order {
		if _, err := g.events.AppendTx(ctx, tx.Tx, id, types[id], grouped[id]); err != nil {
			if errors.Is(err, eventstore.ErrConcurrencyConflict) {
				return fmt.Errorf("%w: event stream of %s %s", market.ErrConflict, types[id], id)
			}
			return fmt.Errorf("append events: %w", translate(err))
		}
	}
	return nil
}

// History implements market.EventLog.
func (g *Gateway) History(ctx context.Context, aggregateID uuid.UUID) ([]market.Event, error) {
	stored, err := g.events.LoadEvents(ctx, aggregateID, 0, 0)
	if err != nil {
		return nil, err
	}
	history := make([]market.Event, 0, len(stored))
	for _, e := range stored {
		history = append(history, market.Event{
			AggregateID:   e.AggregateID,
			AggregateType: e.AggregateType,
			Type:          e.EventType,
			Data:          e.EventData,
			OccurredAt:    e.CreatedAt,
		})
	}
	return history, nil
}

type pgTx struct {
	tx     *sqlx.Tx
	events []market.Event
}

func (t *pgTx) Items() market.ItemStore       { return itemStore{t.tx} }
func (t *pgTx) Listings() market.ListingStore { return listingStore{t.tx} }
func (t *pgTx) Offers() market.OfferStore     { return offerStore{t.tx} }
func (t *pgTx) Pickups() market.PickupStore   { return pickupStore{t.tx} }

func (t *pgTx) Record(events ...market.Event) {
	t.events = append(t.events, events...)
}

// translate maps Postgres errors onto the core error kinds.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "40001", "40P01", "23505":
		return fmt.Errorf("%w: %s", market.ErrConflict, pqErr.Message)
	case "23514":
		return fmt.Errorf("%w: %s", market.ErrLedgerInvariant, pqErr.Message)
	case "23503":
		return fmt.Errorf("%w: %s", market.ErrNotFound, pqErr.Message)
	}
	return err
}
