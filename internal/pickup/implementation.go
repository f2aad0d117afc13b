// internal/pickup/implementation.go
package pickup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"barternexus/internal/market"
	"barternexus/internal/notify"
	"barternexus/internal/offer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// service implements the Service interface.
type service struct {
	gateway  market.Gateway
	machine  *offer.Machine
	sink     market.NotificationSink
	location *time.Location
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates a new pickup service. Pickup dates and times are read
// in location.
func NewService(gateway market.Gateway, machine *offer.Machine, sink market.NotificationSink, location *time.Location, logger *zap.Logger) Service {
	if location == nil {
		location = time.UTC
	}
	return &service{
		gateway:  gateway,
		machine:  machine,
		sink:     sink,
		location: location,
		logger:   logger,
		tracer:   otel.Tracer("barternexus/pickup"),
		now:      time.Now,
	}
}

// CreatePickup proposes a pickup for an accepted pickup-delivery offer and
// moves the offer into PICKUPSCHEDULING.
func (s *service) CreatePickup(ctx context.Context, req ProposeRequest) (*market.Pickup, error) {
	ctx, span := s.tracer.Start(ctx, "pickup.create", trace.WithAttributes(
		attribute.String("offer.id", req.OfferID.String()),
	))
	defer span.End()

	// Step 1: Validate the schedule
	dates, err := s.schedule(req.Dates, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, fmt.Errorf("%w: pickup location is required", market.ErrInvalidArgument)
	}

	var out notify.Outbox
	var created *market.Pickup
	err = s.gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		// Step 2: Validate the offer
		o, err := tx.Offers().Get(ctx, req.OfferID)
		if err != nil {
			return err
		}
		if o.RoleOf(req.UserID) == market.RoleNone {
			return fmt.Errorf("%w: user %s is not a party to offer %s", market.ErrForbidden, req.UserID, o.ID)
		}
		if o.DeliveryType != market.DeliveryPickup {
			return fmt.Errorf("%w: offer %s uses %s delivery", market.ErrIllegalState, o.ID, o.DeliveryType)
		}
		if o.Status != market.OfferAccepted {
			return fmt.Errorf("%w: offer %s is %s, not ACCEPTED", market.ErrIllegalState, o.ID, o.Status)
		}

		// Step 3: At most one open pickup per offer
		existing, err := tx.Pickups().ListByOffer(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("list pickups: %w", err)
		}
		for _, p := range existing {
			if !p.Status.Terminal() {
				return fmt.Errorf("%w: offer %s already has pickup %s", market.ErrIllegalState, o.ID, p.ID)
			}
		}

		// Step 4: Persist the pickup and move the offer
		now := s.now().UTC()
		p := &market.Pickup{
			ID:             uuid.New(),
			OfferID:        o.ID,
			CreatorID:      req.UserID,
			AvailableDates: dates,
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
			Location:       location,
			Details:        req.Details,
			Status:         market.PickupPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Pickups().Insert(ctx, p); err != nil {
			return fmt.Errorf("insert pickup: %w", err)
		}
		s.recordScheduled(tx, p)

		if err := s.machine.Apply(ctx, tx, &out, o, market.OfferPickupScheduling, offer.User(req.UserID)); err != nil {
			return err
		}

		out.Add(counterparty(o, req.UserID), market.NotifyPickupProposed, proposal(p))
		created = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("Pickup proposed",
		zap.String("pickup_id", created.ID.String()),
		zap.String("offer_id", created.OfferID.String()),
		zap.Int("dates", len(created.AvailableDates)),
	)
	out.Flush(ctx, s.sink, s.logger)
	return created, nil
}

// AcceptPickup books one slot of the proposal. The offer moves on to
// CONFIRMED; it completes once the pickup is reported COMPLETED or both
// parties verify.
func (s *service) AcceptPickup(ctx context.Context, pickupID uuid.UUID, date market.Date, at market.TimeOfDay, userID uuid.UUID) (*market.Pickup, error) {
	return s.mutate(ctx, "pickup.accept", pickupID, userID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, p *market.Pickup, o *market.Offer) error {
		if p.Status != market.PickupPending {
			return fmt.Errorf("%w: pickup %s is %s, not PENDING", market.ErrIllegalState, p.ID, p.Status)
		}
		if !at.Valid() {
			return fmt.Errorf("%w: invalid time of day", market.ErrInvalidSchedule)
		}
		if !p.Offers(date) {
			return fmt.Errorf("%w: %s is not one of the proposed dates", market.ErrInvalidSchedule, date)
		}
		if !p.Within(at) {
			return fmt.Errorf("%w: %s is outside %s-%s", market.ErrInvalidSchedule, at, p.StartTime, p.EndTime)
		}
		if !date.At(at, s.location).After(s.now()) {
			return fmt.Errorf("%w: %s %s is not in the future", market.ErrInvalidSchedule, date, at)
		}

		p.SelectedDate = &date
		p.SelectedTime = &at
		if err := s.machine.SetPickupStatus(ctx, tx, out, o, p, market.PickupAccepted, offer.User(userID)); err != nil {
			return err
		}
		if o.Status.InPickupPhase() {
			return s.machine.Apply(ctx, tx, out, o, market.OfferConfirmed, offer.User(userID))
		}
		return nil
	})
}

// ReschedulePickup replaces the proposal of a pending pickup with a counter
// proposal.
func (s *service) ReschedulePickup(ctx context.Context, req RescheduleRequest) (*market.Pickup, error) {
	dates, err := s.schedule(req.Dates, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, "pickup.reschedule", req.PickupID, req.UserID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, p *market.Pickup, o *market.Offer) error {
		if p.Status != market.PickupPending {
			return fmt.Errorf("%w: pickup %s is %s, not PENDING", market.ErrIllegalState, p.ID, p.Status)
		}

		p.AvailableDates = dates
		p.StartTime = req.StartTime
		p.EndTime = req.EndTime
		if location := strings.TrimSpace(req.Location); location != "" {
			p.Location = location
		}
		p.UpdatedAt = s.now().UTC()
		if err := tx.Pickups().Update(ctx, p); err != nil {
			return fmt.Errorf("update pickup %s: %w", p.ID, err)
		}
		s.recordScheduled(tx, p)

		if o.Status == market.OfferPickupScheduling {
			if err := s.machine.Apply(ctx, tx, out, o, market.OfferPickupRescheduling, offer.User(req.UserID)); err != nil {
				return err
			}
		}
		out.Add(counterparty(o, req.UserID), market.NotifyPickupProposed, proposal(p))
		return nil
	})
}

// UpdatePickupStatus drives the pickup sub-machine and its effects on the
// offer and listing.
func (s *service) UpdatePickupStatus(ctx context.Context, pickupID uuid.UUID, status market.PickupStatus, userID uuid.UUID) (*market.Pickup, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown pickup status %q", market.ErrInvalidArgument, status)
	}

	return s.mutate(ctx, "pickup.update_status", pickupID, userID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, p *market.Pickup, o *market.Offer) error {
		if !CanMove(p.Status, status) {
			return fmt.Errorf("%w: pickup %s -> %s", market.ErrInvalidTransition, p.Status, status)
		}

		actor := offer.User(userID)
		switch status {
		case market.PickupAccepted:
			return fmt.Errorf("%w: accepting a pickup requires a selected date and time", market.ErrIllegalState)
		case market.PickupDeclined:
			return s.decline(ctx, tx, out, p, o, actor)
		case market.PickupCompleted:
			return s.complete(ctx, tx, out, p, o, actor)
		default:
			return s.cancel(ctx, tx, out, p, o, actor)
		}
	})
}

// CancelPickup withdraws a pending or accepted pickup.
func (s *service) CancelPickup(ctx context.Context, pickupID, userID uuid.UUID) (*market.Pickup, error) {
	return s.mutate(ctx, "pickup.cancel", pickupID, userID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, p *market.Pickup, o *market.Offer) error {
		if !CanMove(p.Status, market.PickupCancelled) {
			return fmt.Errorf("%w: pickup %s is %s", market.ErrIllegalState, p.ID, p.Status)
		}
		return s.cancel(ctx, tx, out, p, o, offer.User(userID))
	})
}

func (s *service) GetPickup(ctx context.Context, pickupID, userID uuid.UUID) (*market.Pickup, error) {
	var p *market.Pickup
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		var err error
		p, _, err = load(ctx, tx, pickupID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// load locks the offer before the pickup, the same order CreatePickup and
// the offer operations use, and checks that userID is a party.
func load(ctx context.Context, tx market.Tx, pickupID, userID uuid.UUID) (*market.Pickup, *market.Offer, error) {
	offerID, err := tx.Pickups().OfferOf(ctx, pickupID)
	if err != nil {
		return nil, nil, err
	}
	o, err := tx.Offers().Get(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	p, err := tx.Pickups().Get(ctx, pickupID)
	if err != nil {
		return nil, nil, err
	}
	if p.OfferID != o.ID {
		return nil, nil, fmt.Errorf("%w: pickup %s", market.ErrConflict, pickupID)
	}
	if o.RoleOf(userID) == market.RoleNone {
		return nil, nil, fmt.Errorf("%w: user %s is not a party to pickup %s", market.ErrForbidden, userID, pickupID)
	}
	return p, o, nil
}

// decline closes the pickup. When no other proposal is pending the offer
// falls back to PENDING and the listing reopens.
func (s *service) decline(ctx context.Context, tx market.Tx, out *notify.Outbox, p *market.Pickup, o *market.Offer, actor offer.Actor) error {
	if err := s.machine.SetPickupStatus(ctx, tx, out, o, p, market.PickupDeclined, actor); err != nil {
		return err
	}

	pickups, err := tx.Pickups().ListByOffer(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("list pickups: %w", err)
	}
	for _, other := range pickups {
		if other.ID != p.ID && other.Status == market.PickupPending {
			return nil
		}
	}
	return s.revert(ctx, tx, out, o)
}

func (s *service) cancel(ctx context.Context, tx market.Tx, out *notify.Outbox, p *market.Pickup, o *market.Offer, actor offer.Actor) error {
	if err := s.machine.SetPickupStatus(ctx, tx, out, o, p, market.PickupCancelled, actor); err != nil {
		return err
	}
	return s.revert(ctx, tx, out, o)
}

// revert sends an offer still in the pickup phase back to PENDING.
func (s *service) revert(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer) error {
	if !o.Status.InPickupPhase() {
		return nil
	}
	return s.machine.Apply(ctx, tx, out, o, market.OfferPending, offer.System)
}

// complete records the handoff and completes the offer, which transfers the
// offered items and closes the listing.
func (s *service) complete(ctx context.Context, tx market.Tx, out *notify.Outbox, p *market.Pickup, o *market.Offer, actor offer.Actor) error {
	if err := s.machine.SetPickupStatus(ctx, tx, out, o, p, market.PickupCompleted, actor); err != nil {
		return err
	}

	if o.Status.InPickupPhase() {
		if err := s.machine.Apply(ctx, tx, out, o, market.OfferConfirmed, actor); err != nil {
			return err
		}
	}
	if o.Status == market.OfferCompleted {
		return nil
	}
	return s.machine.Apply(ctx, tx, out, o, market.OfferCompleted, actor)
}

// mutate loads the pickup and its offer, checks that userID is a party, runs
// fn and flushes notifications after commit.
func (s *service) mutate(ctx context.Context, op string, pickupID, userID uuid.UUID, fn func(ctx context.Context, tx market.Tx, out *notify.Outbox, p *market.Pickup, o *market.Offer) error) (*market.Pickup, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("pickup.id", pickupID.String()),
	))
	defer span.End()

	var out notify.Outbox
	var result *market.Pickup
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		p, o, err := load(ctx, tx, pickupID, userID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, &out, p, o); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("pickup.status", string(result.Status)))
	out.Flush(ctx, s.sink, s.logger)
	return result, nil
}

// schedule validates a proposal and returns its dates de-duplicated, sorted
// and without days already past.
func (s *service) schedule(dates []market.Date, start, end market.TimeOfDay) ([]market.Date, error) {
	if !start.Valid() || !end.Valid() {
		return nil, fmt.Errorf("%w: invalid time window", market.ErrInvalidSchedule)
	}
	if end < start {
		return nil, fmt.Errorf("%w: window ends at %s before it starts at %s", market.ErrInvalidSchedule, end, start)
	}

	today := market.DateOf(s.now().In(s.location))
	seen := make(map[market.Date]bool, len(dates))
	upcoming := make([]market.Date, 0, len(dates))
	for _, d := range dates {
		if d.Before(today) || seen[d] {
			continue
		}
		seen[d] = true
		upcoming = append(upcoming, d)
	}
	if len(upcoming) == 0 {
		return nil, fmt.Errorf("%w: at least one date must be today or later", market.ErrInvalidSchedule)
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].Before(upcoming[j]) })
	return upcoming, nil
}

func (s *service) recordScheduled(tx market.Tx, p *market.Pickup) {
	tx.Record(market.Event{
		AggregateID:   p.ID,
		AggregateType: market.AggregatePickup,
		Type:          "PickupScheduled",
		Data: market.PickupScheduledEvent{
			PickupID:       p.ID,
			OfferID:        p.OfferID,
			AvailableDates: p.AvailableDates,
			StartTime:      p.StartTime,
			EndTime:        p.EndTime,
		},
		OccurredAt: p.UpdatedAt,
	})
}

func counterparty(o *market.Offer, userID uuid.UUID) uuid.UUID {
	if userID == o.UserID {
		return o.ListingOwnerID
	}
	return o.UserID
}

func proposal(p *market.Pickup) map[string]interface{} {
	dates := make([]string, len(p.AvailableDates))
	for i, d := range p.AvailableDates {
		dates[i] = d.String()
	}
	return map[string]interface{}{
		"pickup_id":       p.ID.String(),
		"offer_id":        p.OfferID.String(),
		"available_dates": dates,
		"start_time":      p.StartTime.String(),
		"end_time":        p.EndTime.String(),
		"location":        p.Location,
	}
}
