// internal/offer/machine.go
package offer

import (
	"context"
	"fmt"
	"time"

	"barternexus/internal/inventory"
	"barternexus/internal/market"
	"barternexus/internal/notify"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Actor is whoever requests a status change. System actors skip the party
// checks and are the only ones allowed to take system edges.
type Actor struct {
	ID     uuid.UUID
	System bool
}

// User returns the actor for a request made by userID.
func User(userID uuid.UUID) Actor {
	return Actor{ID: userID}
}

// System is the actor used by internal callers such as the expiry sweep.
var System = Actor{System: true}

// Machine applies offer transitions together with their side effects on
// reservations, the parent listing and open pickups. It is shared by the
// offer and pickup services so every entry point runs the same effects.
type Machine struct {
	ledger      *inventory.Ledger
	logger      *zap.Logger
	tracer      trace.Tracer
	transitions metric.Int64Counter
	now         func() time.Time
}

func NewMachine(ledger *inventory.Ledger, logger *zap.Logger) *Machine {
	transitions, _ := otel.Meter("barternexus/offer").Int64Counter(
		"offer.transitions",
		metric.WithDescription("Offer status edges taken"),
	)
	return &Machine{
		ledger:      ledger,
		logger:      logger,
		tracer:      otel.Tracer("barternexus/offer"),
		transitions: transitions,
		now:         time.Now,
	}
}

// Apply moves o to the requested status inside tx. Nothing is written when
// validation fails; effects that fail later abort the enclosing transaction.
func (m *Machine) Apply(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer, to market.OfferStatus, actor Actor) error {
	ctx, span := m.tracer.Start(ctx, "offer.apply", trace.WithAttributes(
		attribute.String("offer.id", o.ID.String()),
		attribute.String("offer.from", string(o.Status)),
		attribute.String("offer.to", string(to)),
		attribute.Bool("actor.system", actor.System),
	))
	defer span.End()

	if err := check(o, to, actor); err != nil {
		return err
	}
	from := o.Status

	// Step 1: Reservations
	switch to {
	case market.OfferRejected, market.OfferWithdrawn, market.OfferExpired, market.OfferCancelled:
		if err := m.ledger.ReleaseAll(ctx, tx, o.Items); err != nil {
			return fmt.Errorf("release offer items: %w", err)
		}
	case market.OfferCompleted:
		if err := m.ledger.TransferAll(ctx, tx, o.Items, o.ListingOwnerID); err != nil {
			return fmt.Errorf("transfer offer items: %w", err)
		}
	}

	// Step 2: Parent listing
	if err := m.moveListing(ctx, tx, o, from, to); err != nil {
		return err
	}

	// Step 3: Open pickups
	switch to {
	case market.OfferCancelled, market.OfferExpired:
		if err := m.ClosePickups(ctx, tx, out, o, market.PickupCancelled, actor); err != nil {
			return err
		}
	case market.OfferCompleted:
		if err := m.ClosePickups(ctx, tx, out, o, market.PickupCompleted, actor); err != nil {
			return err
		}
	}

	// Step 4: The offer itself
	o.Status = to
	o.UpdatedAt = m.now().UTC()
	if err := tx.Offers().Update(ctx, o); err != nil {
		return fmt.Errorf("update offer %s: %w", o.ID, err)
	}
	tx.Record(market.Event{
		AggregateID:   o.ID,
		AggregateType: market.AggregateOffer,
		Type:          "OfferStatusChanged",
		Data: market.OfferStatusChangedEvent{
			OfferID: o.ID,
			From:    from,
			To:      to,
			ActorID: actor.ID,
		},
		OccurredAt: o.UpdatedAt,
	})
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(from)),
			attribute.String("to", string(to)),
		))
	}

	m.logger.Info("Offer status changed",
		zap.String("offer_id", o.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", actor.ID.String()),
		zap.Bool("system", actor.System),
	)

	m.notify(out, o, from, actor)
	return nil
}

func (m *Machine) notify(out *notify.Outbox, o *market.Offer, from market.OfferStatus, actor Actor) {
	payload := map[string]interface{}{
		"offer_id":   o.ID.String(),
		"listing_id": o.ListingID.String(),
		"from":       string(from),
		"status":     string(o.Status),
	}

	if from == market.OfferPending && (o.Status == market.OfferAccepted || o.Status == market.OfferConfirmed) {
		out.Add(o.UserID, market.NotifyOfferAccepted, payload)
		return
	}
	for _, recipient := range []uuid.UUID{o.UserID, o.ListingOwnerID} {
		if actor.System || recipient != actor.ID {
			out.Add(recipient, market.NotifyOfferStatusChanged, payload)
		}
	}
}

// committed lists the statuses of offers that keep their listing PENDING.
var committed = func() []market.OfferStatus {
	var statuses []market.OfferStatus
	for _, s := range market.OfferStatuses {
		if s.HoldsReservation() && s != market.OfferPending {
			statuses = append(statuses, s)
		}
	}
	return statuses
}()

// moveListing flips the parent listing for the edges that affect it.
func (m *Machine) moveListing(ctx context.Context, tx market.Tx, o *market.Offer, from, to market.OfferStatus) error {
	var next func(current market.ListingStatus) (market.ListingStatus, error)

	switch {
	case to == market.OfferCompleted:
		next = func(market.ListingStatus) (market.ListingStatus, error) {
			return market.ListingCompleted, nil
		}
	case from == market.OfferPending && (to == market.OfferAccepted || to == market.OfferConfirmed):
		next = func(current market.ListingStatus) (market.ListingStatus, error) {
			if current == market.ListingCompleted {
				return current, fmt.Errorf("%w: listing %s is already completed", market.ErrIllegalState, o.ListingID)
			}
			return market.ListingPending, nil
		}
	case to == market.OfferCancelled:
		next = func(current market.ListingStatus) (market.ListingStatus, error) {
			if current == market.ListingCompleted {
				return current, nil
			}
			return market.ListingPending, nil
		}
	case to == market.OfferPending, to == market.OfferExpired && from != market.OfferPending:
		others, err := tx.Offers().CountByListing(ctx, o.ListingID, o.ID, committed)
		if err != nil {
			return fmt.Errorf("count committed offers: %w", err)
		}
		if others > 0 {
			return nil
		}
		next = func(current market.ListingStatus) (market.ListingStatus, error) {
			if current == market.ListingPending {
				return market.ListingActive, nil
			}
			return current, nil
		}
	default:
		return nil
	}

	listing, err := tx.Listings().Get(ctx, o.ListingID)
	if err != nil {
		return fmt.Errorf("load listing: %w", err)
	}
	status, err := next(listing.Status)
	if err != nil {
		return err
	}
	if status == listing.Status {
		return nil
	}

	previous := listing.Status
	listing.Status = status
	listing.UpdatedAt = m.now().UTC()
	if err := tx.Listings().Update(ctx, listing); err != nil {
		return fmt.Errorf("update listing %s: %w", listing.ID, err)
	}
	tx.Record(market.Event{
		AggregateID:   listing.ID,
		AggregateType: market.AggregateListing,
		Type:          "ListingStatusChanged",
		Data: market.ListingStatusChangedEvent{
			ListingID: listing.ID,
			From:      previous,
			To:        status,
		},
		OccurredAt: listing.UpdatedAt,
	})
	return nil
}

// ClosePickups moves every non-terminal pickup of the offer to status.
func (m *Machine) ClosePickups(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer, status market.PickupStatus, actor Actor) error {
	pickups, err := tx.Pickups().ListByOffer(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("list pickups: %w", err)
	}
	for _, p := range pickups {
		if p.Status.Terminal() {
			continue
		}
		if err := m.SetPickupStatus(ctx, tx, out, o, p, status, actor); err != nil {
			return err
		}
	}
	return nil
}

// SetPickupStatus writes a pickup status change and notifies the parties.
// Callers validate the pickup edge.
func (m *Machine) SetPickupStatus(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer, p *market.Pickup, status market.PickupStatus, actor Actor) error {
	from := p.Status
	p.Status = status
	p.UpdatedAt = m.now().UTC()
	if err := tx.Pickups().Update(ctx, p); err != nil {
		return fmt.Errorf("update pickup %s: %w", p.ID, err)
	}
	tx.Record(market.Event{
		AggregateID:   p.ID,
		AggregateType: market.AggregatePickup,
		Type:          "PickupStatusChanged",
		Data: market.PickupStatusChangedEvent{
			PickupID: p.ID,
			OfferID:  o.ID,
			From:     from,
			To:       status,
			ActorID:  actor.ID,
		},
		OccurredAt: p.UpdatedAt,
	})

	payload := map[string]interface{}{
		"pickup_id": p.ID.String(),
		"offer_id":  o.ID.String(),
		"from":      string(from),
		"status":    string(status),
	}
	for _, recipient := range []uuid.UUID{o.UserID, o.ListingOwnerID} {
		if actor.System || recipient != actor.ID {
			out.Add(recipient, market.NotifyPickupUpdated, payload)
		}
	}
	return nil
}
