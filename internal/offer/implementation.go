// internal/offer/implementation.go
package offer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"barternexus/internal/inventory"
	"barternexus/internal/market"
	"barternexus/internal/notify"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// service implements the Service interface.
type service struct {
	gateway market.Gateway
	machine *Machine
	ledger  *inventory.Ledger
	users   market.UserDirectory
	events  market.EventLog
	sink    market.NotificationSink
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService creates a new offer service instance.
func NewService(gateway market.Gateway, machine *Machine, ledger *inventory.Ledger, users market.UserDirectory, events market.EventLog, sink market.NotificationSink, logger *zap.Logger) Service {
	return &service{
		gateway: gateway,
		machine: machine,
		ledger:  ledger,
		users:   users,
		events:  events,
		sink:    sink,
		logger:  logger,
		tracer:  otel.Tracer("barternexus/offer"),
		now:     time.Now,
	}
}

// CreateOffer opens an offer in PENDING and reserves every offered item.
func (s *service) CreateOffer(ctx context.Context, req CreateRequest) (*market.Offer, error) {
	ctx, span := s.tracer.Start(ctx, "offer.create", trace.WithAttributes(
		attribute.String("listing.id", req.ListingID.String()),
		attribute.String("user.id", req.UserID.String()),
	))
	defer span.End()

	// Step 1: Validate the request
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	// Step 2: Validate the offering user
	exists, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %s", market.ErrNotFound, req.UserID)
	}

	var out notify.Outbox
	var created *market.Offer
	err = s.gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		// Step 3: Validate the listing
		listing, err := tx.Listings().Get(ctx, req.ListingID)
		if err != nil {
			return err
		}
		if listing.OwnerID == req.UserID {
			return fmt.Errorf("%w: cannot make an offer on your own listing", market.ErrForbidden)
		}
		if listing.Status == market.ListingCompleted {
			return fmt.Errorf("%w: listing %s is completed", market.ErrIllegalState, listing.ID)
		}

		// Step 4: Validate ownership of the offered items
		lines := inventory.MergeLines(req.Items)
		for _, line := range lines {
			item, err := tx.Items().Get(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if item.OwnerID != req.UserID {
				return fmt.Errorf("%w: item %s is not owned by user %s", market.ErrForbidden, item.ID, req.UserID)
			}
		}

		// Step 5: Persist the offer and reserve its items
		now := s.now().UTC()
		o := &market.Offer{
			ID:             uuid.New(),
			ListingID:      listing.ID,
			UserID:         req.UserID,
			ListingOwnerID: listing.OwnerID,
			Amount:         req.Amount,
			Currency:       req.Currency,
			DeliveryType:   req.DeliveryType,
			Items:          lines,
			Message:        req.Message,
			Status:         market.OfferPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Offers().Insert(ctx, o); err != nil {
			return fmt.Errorf("insert offer: %w", err)
		}
		if err := s.ledger.ReserveAll(ctx, tx, lines); err != nil {
			return err
		}

		tx.Record(market.Event{
			AggregateID:   o.ID,
			AggregateType: market.AggregateOffer,
			Type:          "OfferCreated",
			Data: market.OfferCreatedEvent{
				OfferID:   o.ID,
				ListingID: o.ListingID,
				UserID:    o.UserID,
				Items:     lines,
			},
			OccurredAt: now,
		})
		out.Add(listing.OwnerID, market.NotifyOfferReceived, map[string]interface{}{
			"offer_id":      o.ID.String(),
			"listing_id":    listing.ID.String(),
			"from_user_id":  req.UserID.String(),
			"amount":        o.Amount.String(),
			"currency":      o.Currency,
			"delivery_type": string(o.DeliveryType),
		})
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Offer created",
		zap.String("offer_id", created.ID.String()),
		zap.String("listing_id", created.ListingID.String()),
		zap.String("user_id", created.UserID.String()),
		zap.Int("lines", len(created.Items)),
	)
	out.Flush(ctx, s.sink, s.logger)
	return created, nil
}

func validateCreate(req *CreateRequest) error {
	if !req.DeliveryType.Valid() {
		return fmt.Errorf("%w: unknown delivery type %q", market.ErrInvalidArgument, req.DeliveryType)
	}
	if req.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", market.ErrInvalidArgument)
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	if len(req.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code, got %q", market.ErrInvalidArgument, req.Currency)
	}
	for _, line := range req.Items {
		if line.ItemID == uuid.Nil {
			return fmt.Errorf("%w: item id is required", market.ErrInvalidArgument)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive, got %d", market.ErrInvalidArgument, line.Quantity)
		}
	}
	return nil
}

// Transition applies a status change requested by a party to the offer.
func (s *service) Transition(ctx context.Context, offerID uuid.UUID, to market.OfferStatus, userID uuid.UUID) (*market.Offer, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", market.ErrInvalidArgument, to)
	}
	return s.mutate(ctx, "offer.transition", offerID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer) error {
		return s.machine.Apply(ctx, tx, out, o, to, User(userID))
	})
}

// AcceptOffer is the listing owner's accept. Pickup offers wait in ACCEPTED
// for a pickup to be arranged, shipping offers go straight to CONFIRMED.
func (s *service) AcceptOffer(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error) {
	return s.mutate(ctx, "offer.accept", offerID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer) error {
		if o.RoleOf(userID) != market.RoleSeller {
			return fmt.Errorf("%w: only the listing owner may accept an offer", market.ErrForbidden)
		}
		if o.Status != market.OfferPending {
			return fmt.Errorf("%w: offer %s is %s, not PENDING", market.ErrInvalidTransition, o.ID, o.Status)
		}

		next := market.OfferAccepted
		if o.DeliveryType == market.DeliveryShipping {
			next = market.OfferConfirmed
		}
		return s.machine.Apply(ctx, tx, out, o, next, User(userID))
	})
}

// ConfirmTransaction records one party's confirmation that the exchange
// happened. Pickup offers need both parties, shipping offers only the buyer.
func (s *service) ConfirmTransaction(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error) {
	return s.mutate(ctx, "offer.confirm", offerID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer) error {
		role := o.RoleOf(userID)
		if role == market.RoleNone {
			return fmt.Errorf("%w: user %s is not a party to offer %s", market.ErrForbidden, userID, o.ID)
		}

		next, err := confirmTarget(o, role)
		if err != nil {
			return err
		}
		return s.machine.Apply(ctx, tx, out, o, next, User(userID))
	})
}

func confirmTarget(o *market.Offer, role market.Role) (market.OfferStatus, error) {
	switch o.Status {
	case market.OfferConfirmed:
		if o.DeliveryType == market.DeliveryShipping {
			if role != market.RoleBuyer {
				return "", fmt.Errorf("%w: only the buyer confirms a shipping offer", market.ErrForbidden)
			}
			return market.OfferCompleted, nil
		}
		if role == market.RoleSeller {
			return market.OfferSellerVerified, nil
		}
		return market.OfferBuyerVerified, nil
	case market.OfferSellerVerified:
		if role != market.RoleBuyer {
			return "", fmt.Errorf("%w: the seller already verified, waiting for the buyer", market.ErrForbidden)
		}
		return market.OfferCompleted, nil
	case market.OfferBuyerVerified:
		if role != market.RoleSeller {
			return "", fmt.Errorf("%w: the buyer already verified, waiting for the seller", market.ErrForbidden)
		}
		return market.OfferCompleted, nil
	default:
		return "", fmt.Errorf("%w: offer %s cannot be confirmed from %s", market.ErrIllegalState, o.ID, o.Status)
	}
}

// CancelTransaction cancels a confirmed exchange and declines its pickup.
func (s *service) CancelTransaction(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error) {
	return s.mutate(ctx, "offer.cancel", offerID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer) error {
		if o.RoleOf(userID) == market.RoleNone {
			return fmt.Errorf("%w: user %s is not a party to offer %s", market.ErrForbidden, userID, o.ID)
		}
		switch o.Status {
		case market.OfferConfirmed, market.OfferSellerVerified, market.OfferBuyerVerified:
		default:
			return fmt.Errorf("%w: offer %s cannot be cancelled from %s", market.ErrIllegalState, o.ID, o.Status)
		}

		if err := s.machine.ClosePickups(ctx, tx, out, o, market.PickupDeclined, User(userID)); err != nil {
			return err
		}
		return s.machine.Apply(ctx, tx, out, o, market.OfferCancelled, User(userID))
	})
}

func (s *service) ExpireOffer(ctx context.Context, offerID uuid.UUID) (*market.Offer, error) {
	return s.mutate(ctx, "offer.expire", offerID, func(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer) error {
		return s.machine.Apply(ctx, tx, out, o, market.OfferExpired, System)
	})
}

func (s *service) GetOffer(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error) {
	var o *market.Offer
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		var err error
		o, err = tx.Offers().Get(ctx, offerID)
		if err != nil {
			return err
		}
		if o.RoleOf(userID) == market.RoleNone {
			return fmt.Errorf("%w: user %s is not a party to offer %s", market.ErrForbidden, userID, offerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// History returns the recorded events of the offer, oldest first.
func (s *service) History(ctx context.Context, offerID, userID uuid.UUID) ([]market.Event, error) {
	if _, err := s.GetOffer(ctx, offerID, userID); err != nil {
		return nil, err
	}
	events, err := s.events.History(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer history: %w", err)
	}
	return events, nil
}

// mutate loads the offer inside a transaction, runs fn and flushes the
// collected notifications once the transaction committed.
func (s *service) mutate(ctx context.Context, op string, offerID uuid.UUID, fn func(ctx context.Context, tx market.Tx, out *notify.Outbox, o *market.Offer) error) (*market.Offer, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("offer.id", offerID.String()),
	))
	defer span.End()

	var out notify.Outbox
	var result *market.Offer
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		o, err := tx.Offers().Get(ctx, offerID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, &out, o); err != nil {
			return err
		}
		result = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("offer.status", string(result.Status)))
	out.Flush(ctx, s.sink, s.logger)
	return result, nil
}
