// internal/chaos/target.go
package chaos

import (
	"context"
	"fmt"
	"time"

	"barternexus/internal/inventory"
	"barternexus/internal/market"
	"barternexus/internal/offer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Target is an exchange core assembled in-process behind fault injectors,
// so experiments drive the real offer lifecycle against a real store.
type Target struct {
	Gateway   *FaultyGateway
	Sink      *FlakySink
	Users     *Directory
	Inspector Inspector
	Offers    offer.Service

	// Window is how long each experiment samples its invariants.
	Window time.Duration

	store  market.Gateway
	ledger *inventory.Ledger
	logger *zap.Logger
}

// NewTarget wires the offer service over store. Seeding bypasses the fault
// injectors so only the exercised operations see faults.
func NewTarget(store market.Gateway, events market.EventLog, inspector Inspector, sink market.NotificationSink, logger *zap.Logger) *Target {
	ledger := inventory.NewLedger(logger)
	machine := offer.NewMachine(ledger, logger)
	gateway := NewFaultyGateway(store)
	flaky := NewFlakySink(sink)
	users := NewDirectory()

	return &Target{
		Gateway:   gateway,
		Sink:      flaky,
		Users:     users,
		Inspector: inspector,
		Offers:    offer.NewService(gateway, machine, ledger, users, events, flaky, logger),
		Window:    30 * time.Second,
		store:     store,
		ledger:    ledger,
		logger:    logger,
	}
}

func (t *Target) newUser() uuid.UUID {
	id := uuid.New()
	t.Users.Add(id)
	return id
}

func (t *Target) seedListing(ctx context.Context, owner uuid.UUID) (uuid.UUID, error) {
	now := time.Now().UTC()
	listing := &market.Listing{
		ID:        uuid.New(),
		OwnerID:   owner,
		Title:     "chaos listing",
		Status:    market.ListingActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := t.store.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		return tx.Listings().Insert(ctx, listing)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("seed listing: %w", err)
	}
	return listing.ID, nil
}

func (t *Target) seedItem(ctx context.Context, owner uuid.UUID, stock int) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.store.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		item, err := t.ledger.Register(ctx, tx, owner, "chaos item", stock)
		if err != nil {
			return err
		}
		id = item.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("seed item: %w", err)
	}
	return id, nil
}

// pair is one buyer with an item and one seller with a listing.
type pair struct {
	buyer   uuid.UUID
	seller  uuid.UUID
	item    uuid.UUID
	listing uuid.UUID
}

func (t *Target) seedPair(ctx context.Context, stock int) (pair, error) {
	p := pair{buyer: t.newUser(), seller: t.newUser()}
	var err error
	if p.item, err = t.seedItem(ctx, p.buyer, stock); err != nil {
		return p, err
	}
	if p.listing, err = t.seedListing(ctx, p.seller); err != nil {
		return p, err
	}
	return p, nil
}

func (t *Target) offerFor(ctx context.Context, p pair, quantity int) (*market.Offer, error) {
	return t.Offers.CreateOffer(ctx, offer.CreateRequest{
		ListingID:    p.listing,
		UserID:       p.buyer,
		DeliveryType: market.DeliveryShipping,
		Items:        []market.OfferItem{{ItemID: p.item, Quantity: quantity}},
	})
}

// ledgerInvariants are measured by every experiment.
func (t *Target) ledgerInvariants() []Invariant {
	return []Invariant{
		{Name: "inconsistent_items", Measure: t.Inspector.InconsistentItems, Want: Zero},
		{Name: "unbalanced_items", Measure: t.Inspector.UnbalancedItems, Want: Zero},
		{Name: "audit_drift", Measure: t.Inspector.AuditDrift, Want: Zero},
	}
}

func ledgerChecks() []Check {
	isZero := func(v float64) bool { return v == 0 }
	return []Check{
		{Invariant: "inconsistent_items", Holds: isZero, Message: "Every item should keep 0 <= available <= stock"},
		{Invariant: "unbalanced_items", Holds: isZero, Message: "Reserved units should match the units held by open offers"},
		{Invariant: "audit_drift", Holds: isZero, Message: "The inventory event stream should agree with item state"},
	}
}
