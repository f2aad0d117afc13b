// internal/pickup/implementation_test.go
package pickup

import (
	"context"
	"sync"
	"testing"
	"time"

	"barternexus/internal/inventory"
	"barternexus/internal/market"
	"barternexus/internal/offer"
	"barternexus/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2030, time.June, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu   sync.Mutex
	sent []market.Notification
}

func (s *recordingSink) Notify(ctx context.Context, n market.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) count(userID uuid.UUID, kind market.NotificationKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sent := range s.sent {
		if sent.UserID == userID && sent.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	store   *memory.Store
	offers  offer.Service
	pickups Service
	sink    *recordingSink
	seller  uuid.UUID
	buyer   uuid.UUID
	listing uuid.UUID
	item    uuid.UUID
	today   market.Date
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	logger := zap.NewNop()
	ledger := inventory.NewLedger(logger)
	machine := offer.NewMachine(ledger, logger)
	sink := &recordingSink{}

	svc := NewService(store, machine, sink, time.UTC, logger).(*service)
	svc.now = func() time.Time { return now }

	f := &fixture{
		store:   store,
		offers:  offer.NewService(store, machine, ledger, store, store, sink, logger),
		pickups: svc,
		sink:    sink,
		seller:  uuid.New(),
		buyer:   uuid.New(),
		listing: uuid.New(),
		today:   market.DateOf(now),
	}
	store.AddUser(f.seller)
	store.AddUser(f.buyer)
	store.AddListing(market.Listing{ID: f.listing, OwnerID: f.seller, Title: "Armchair", Status: market.ListingActive})

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		item, err := ledger.Register(ctx, tx, f.buyer, "Lamp", 5)
		if err != nil {
			return err
		}
		f.item = item.ID
		return nil
	})
	require.NoError(t, err)
	return f
}

// acceptedOffer creates a pickup offer reserving two lamps and accepts it.
func (f *fixture) acceptedOffer(t *testing.T) *market.Offer {
	t.Helper()
	o, err := f.offers.CreateOffer(context.Background(), offer.CreateRequest{
		ListingID:    f.listing,
		UserID:       f.buyer,
		Amount:       decimal.NewFromInt(40),
		DeliveryType: market.DeliveryPickup,
		Items:        []market.OfferItem{{ItemID: f.item, Quantity: 2}},
	})
	require.NoError(t, err)
	o, err = f.offers.AcceptOffer(context.Background(), o.ID, f.seller)
	require.NoError(t, err)
	require.Equal(t, market.OfferAccepted, o.Status)
	return o
}

func (f *fixture) propose(offerID uuid.UUID, dates ...market.Date) ProposeRequest {
	return ProposeRequest{
		OfferID:   offerID,
		UserID:    f.seller,
		Dates:     dates,
		StartTime: market.NewTimeOfDay(9, 0),
		EndTime:   market.NewTimeOfDay(17, 0),
		Location:  "Main St. 4",
	}
}

func (f *fixture) createPickup(t *testing.T, offerID uuid.UUID) *market.Pickup {
	t.Helper()
	p, err := f.pickups.CreatePickup(context.Background(), f.propose(offerID, f.today.AddDays(1), f.today.AddDays(2)))
	require.NoError(t, err)
	return p
}

func (f *fixture) offer(t *testing.T, id uuid.UUID) *market.Offer {
	t.Helper()
	o, err := f.offers.GetOffer(context.Background(), id, f.buyer)
	require.NoError(t, err)
	return o
}

func (f *fixture) listingStatus(t *testing.T) market.ListingStatus {
	t.Helper()
	listing, ok := f.store.Listing(f.listing)
	require.True(t, ok)
	return listing.Status
}

func (f *fixture) lamp(t *testing.T) market.Item {
	t.Helper()
	for _, item := range f.store.Items() {
		if item.ID == f.item {
			return item
		}
	}
	t.Fatal("lamp not found")
	return market.Item{}
}

func TestPickupHappyPath(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)
	assert.Equal(t, 3, f.lamp(t).AvailableQuantity)

	p := f.createPickup(t, o.ID)
	assert.Equal(t, market.PickupPending, p.Status)
	assert.Equal(t, market.OfferPickupScheduling, f.offer(t, o.ID).Status)
	assert.Equal(t, 1, f.sink.count(f.buyer, market.NotifyPickupProposed))

	p, err := f.pickups.AcceptPickup(context.Background(), p.ID, f.today.AddDays(1), market.NewTimeOfDay(10, 0), f.buyer)
	require.NoError(t, err)
	assert.Equal(t, market.PickupAccepted, p.Status)
	require.NotNil(t, p.SelectedDate)
	require.NotNil(t, p.SelectedTime)
	assert.Equal(t, f.today.AddDays(1), *p.SelectedDate)
	assert.Equal(t, market.NewTimeOfDay(10, 0), *p.SelectedTime)
	assert.Equal(t, market.OfferConfirmed, f.offer(t, o.ID).Status)

	p, err = f.pickups.UpdatePickupStatus(context.Background(), p.ID, market.PickupCompleted, f.seller)
	require.NoError(t, err)
	assert.Equal(t, market.PickupCompleted, p.Status)
	assert.Equal(t, market.OfferCompleted, f.offer(t, o.ID).Status)
	assert.Equal(t, market.ListingCompleted, f.listingStatus(t))

	lamp := f.lamp(t)
	assert.Equal(t, 3, lamp.StockQuantity)
	assert.Equal(t, 3, lamp.AvailableQuantity)
}

func TestCancelTransactionDeclinesPickup(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)
	p := f.createPickup(t, o.ID)
	_, err := f.pickups.AcceptPickup(context.Background(), p.ID, f.today.AddDays(2), market.NewTimeOfDay(17, 0), f.buyer)
	require.NoError(t, err)

	cancelled, err := f.offers.CancelTransaction(context.Background(), o.ID, f.seller)
	require.NoError(t, err)

	assert.Equal(t, market.OfferCancelled, cancelled.Status)
	assert.Equal(t, market.ListingPending, f.listingStatus(t))
	got, err := f.pickups.GetPickup(context.Background(), p.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, market.PickupDeclined, got.Status)
	assert.Equal(t, 5, f.lamp(t).AvailableQuantity)
}

func TestDeclineRevertsOffer(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)
	p := f.createPickup(t, o.ID)

	p, err := f.pickups.UpdatePickupStatus(context.Background(), p.ID, market.PickupDeclined, f.buyer)
	require.NoError(t, err)

	assert.Equal(t, market.PickupDeclined, p.Status)
	assert.Equal(t, market.OfferPending, f.offer(t, o.ID).Status)
	assert.Equal(t, market.ListingActive, f.listingStatus(t))
	assert.Equal(t, 3, f.lamp(t).AvailableQuantity, "pending offers keep their reservation")

	// The seller can accept again and propose a fresh pickup.
	_, err = f.offers.AcceptOffer(context.Background(), o.ID, f.seller)
	require.NoError(t, err)
	f.createPickup(t, o.ID)
}

func TestCancelPickup(t *testing.T) {
	t.Run("pending pickup reverts the offer", func(t *testing.T) {
		f := newFixture(t)
		o := f.acceptedOffer(t)
		p := f.createPickup(t, o.ID)

		p, err := f.pickups.CancelPickup(context.Background(), p.ID, f.seller)
		require.NoError(t, err)

		assert.Equal(t, market.PickupCancelled, p.Status)
		assert.Equal(t, market.OfferPending, f.offer(t, o.ID).Status)
		assert.Equal(t, market.ListingActive, f.listingStatus(t))

		_, err = f.pickups.CancelPickup(context.Background(), p.ID, f.seller)
		assert.ErrorIs(t, err, market.ErrIllegalState)
	})

	t.Run("accepted pickup leaves a confirmed offer", func(t *testing.T) {
		f := newFixture(t)
		o := f.acceptedOffer(t)
		p := f.createPickup(t, o.ID)
		_, err := f.pickups.AcceptPickup(context.Background(), p.ID, f.today.AddDays(1), market.NewTimeOfDay(9, 0), f.buyer)
		require.NoError(t, err)

		p, err = f.pickups.UpdatePickupStatus(context.Background(), p.ID, market.PickupCancelled, f.buyer)
		require.NoError(t, err)

		assert.Equal(t, market.PickupCancelled, p.Status)
		assert.Equal(t, market.OfferConfirmed, f.offer(t, o.ID).Status)
		assert.Equal(t, market.ListingPending, f.listingStatus(t))
	})
}

func TestCreatePickup_Preconditions(t *testing.T) {
	f := newFixture(t)

	shipping, err := f.offers.CreateOffer(context.Background(), offer.CreateRequest{
		ListingID:    f.listing,
		UserID:       f.buyer,
		DeliveryType: market.DeliveryShipping,
	})
	require.NoError(t, err)
	_, err = f.pickups.CreatePickup(context.Background(), f.propose(shipping.ID, f.today.AddDays(1)))
	assert.ErrorIs(t, err, market.ErrIllegalState, "shipping offer")

	pending, err := f.offers.CreateOffer(context.Background(), offer.CreateRequest{
		ListingID:    f.listing,
		UserID:       f.buyer,
		DeliveryType: market.DeliveryPickup,
	})
	require.NoError(t, err)
	_, err = f.pickups.CreatePickup(context.Background(), f.propose(pending.ID, f.today.AddDays(1)))
	assert.ErrorIs(t, err, market.ErrIllegalState, "offer not accepted")

	o := f.acceptedOffer(t)

	stranger := f.propose(o.ID, f.today.AddDays(1))
	stranger.UserID = uuid.New()
	_, err = f.pickups.CreatePickup(context.Background(), stranger)
	assert.ErrorIs(t, err, market.ErrForbidden)

	_, err = f.pickups.CreatePickup(context.Background(), f.propose(o.ID, f.today.AddDays(-1), f.today.AddDays(-3)))
	assert.ErrorIs(t, err, market.ErrInvalidSchedule, "only past dates")

	_, err = f.pickups.CreatePickup(context.Background(), f.propose(o.ID))
	assert.ErrorIs(t, err, market.ErrInvalidSchedule, "no dates")

	inverted := f.propose(o.ID, f.today.AddDays(1))
	inverted.StartTime, inverted.EndTime = inverted.EndTime, inverted.StartTime
	_, err = f.pickups.CreatePickup(context.Background(), inverted)
	assert.ErrorIs(t, err, market.ErrInvalidSchedule, "end before start")

	nowhere := f.propose(o.ID, f.today.AddDays(1))
	nowhere.Location = "  "
	_, err = f.pickups.CreatePickup(context.Background(), nowhere)
	assert.ErrorIs(t, err, market.ErrInvalidArgument)

	assert.Equal(t, market.OfferAccepted, f.offer(t, o.ID).Status)
	assert.Empty(t, f.store.Pickups())

	f.createPickup(t, o.ID)
	_, err = f.pickups.CreatePickup(context.Background(), f.propose(o.ID, f.today.AddDays(3)))
	assert.ErrorIs(t, err, market.ErrIllegalState, "second pickup")
}

func TestCreatePickup_NormalizesDates(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)

	p, err := f.pickups.CreatePickup(context.Background(), f.propose(o.ID,
		f.today.AddDays(3), f.today.AddDays(-1), f.today, f.today.AddDays(3), f.today.AddDays(1)))
	require.NoError(t, err)

	assert.Equal(t, []market.Date{f.today, f.today.AddDays(1), f.today.AddDays(3)}, p.AvailableDates)
}

func TestAcceptPickup_Validation(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)
	p, err := f.pickups.CreatePickup(context.Background(), f.propose(o.ID, f.today, f.today.AddDays(1)))
	require.NoError(t, err)

	tests := []struct {
		name string
		date market.Date
		at   market.TimeOfDay
		user uuid.UUID
		want error
	}{
		{"stranger", f.today.AddDays(1), market.NewTimeOfDay(10, 0), uuid.New(), market.ErrForbidden},
		{"date not proposed", f.today.AddDays(2), market.NewTimeOfDay(10, 0), f.buyer, market.ErrInvalidSchedule},
		{"before window", f.today.AddDays(1), market.NewTimeOfDay(8, 59), f.buyer, market.ErrInvalidSchedule},
		{"after window", f.today.AddDays(1), market.NewTimeOfDay(17, 1), f.buyer, market.ErrInvalidSchedule},
		{"earlier today", f.today, market.NewTimeOfDay(11, 0), f.buyer, market.ErrInvalidSchedule},
		{"right now", f.today, market.NewTimeOfDay(12, 0), f.buyer, market.ErrInvalidSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pickups.AcceptPickup(context.Background(), p.ID, tt.date, tt.at, tt.user)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	accepted, err := f.pickups.AcceptPickup(context.Background(), p.ID, f.today, market.NewTimeOfDay(12, 1), f.seller)
	require.NoError(t, err)
	assert.Equal(t, market.PickupAccepted, accepted.Status)

	_, err = f.pickups.AcceptPickup(context.Background(), p.ID, f.today.AddDays(1), market.NewTimeOfDay(10, 0), f.buyer)
	assert.ErrorIs(t, err, market.ErrIllegalState)
}

func TestReschedulePickup(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)
	p := f.createPickup(t, o.ID)

	p, err := f.pickups.ReschedulePickup(context.Background(), RescheduleRequest{
		PickupID:  p.ID,
		UserID:    f.buyer,
		Dates:     []market.Date{f.today.AddDays(5)},
		StartTime: market.NewTimeOfDay(18, 0),
		EndTime:   market.NewTimeOfDay(20, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, []market.Date{f.today.AddDays(5)}, p.AvailableDates)
	assert.Equal(t, market.NewTimeOfDay(18, 0), p.StartTime)
	assert.Equal(t, "Main St. 4", p.Location)
	assert.Equal(t, market.OfferPickupRescheduling, f.offer(t, o.ID).Status)
	assert.Equal(t, 1, f.sink.count(f.seller, market.NotifyPickupProposed))

	_, err = f.pickups.AcceptPickup(context.Background(), p.ID, f.today.AddDays(5), market.NewTimeOfDay(19, 30), f.seller)
	require.NoError(t, err)
	assert.Equal(t, market.OfferConfirmed, f.offer(t, o.ID).Status)
}

func TestUpdatePickupStatus_SubMachine(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)
	p := f.createPickup(t, o.ID)

	_, err := f.pickups.UpdatePickupStatus(context.Background(), p.ID, market.PickupCompleted, f.seller)
	assert.ErrorIs(t, err, market.ErrInvalidTransition)

	_, err = f.pickups.UpdatePickupStatus(context.Background(), p.ID, market.PickupAccepted, f.seller)
	assert.ErrorIs(t, err, market.ErrIllegalState)

	_, err = f.pickups.UpdatePickupStatus(context.Background(), p.ID, "LOST", f.seller)
	assert.ErrorIs(t, err, market.ErrInvalidArgument)

	_, err = f.pickups.UpdatePickupStatus(context.Background(), p.ID, market.PickupDeclined, uuid.New())
	assert.ErrorIs(t, err, market.ErrForbidden)

	_, err = f.pickups.UpdatePickupStatus(context.Background(), uuid.New(), market.PickupDeclined, f.seller)
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestExpiringOfferCancelsPickup(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)
	p := f.createPickup(t, o.ID)

	_, err := f.offers.ExpireOffer(context.Background(), o.ID)
	require.NoError(t, err)

	got, err := f.pickups.GetPickup(context.Background(), p.ID, f.seller)
	require.NoError(t, err)
	assert.Equal(t, market.PickupCancelled, got.Status)
	assert.Equal(t, 5, f.lamp(t).AvailableQuantity)
	assert.Equal(t, market.ListingActive, f.listingStatus(t))
}

func TestCanMove(t *testing.T) {
	statuses := []market.PickupStatus{
		market.PickupPending, market.PickupAccepted, market.PickupDeclined, market.PickupCancelled, market.PickupCompleted,
	}
	allowed := map[[2]market.PickupStatus]bool{
		{market.PickupPending, market.PickupAccepted}:   true,
		{market.PickupPending, market.PickupDeclined}:   true,
		{market.PickupPending, market.PickupCancelled}:  true,
		{market.PickupAccepted, market.PickupCompleted}: true,
		{market.PickupAccepted, market.PickupCancelled}: true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]market.PickupStatus{from, to}], CanMove(from, to), "%s -> %s", from, to)
		}
	}
}

func TestDualVerificationCompletesPickup(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)
	p := f.createPickup(t, o.ID)
	_, err := f.pickups.AcceptPickup(context.Background(), p.ID, f.today.AddDays(1), market.NewTimeOfDay(10, 0), f.buyer)
	require.NoError(t, err)

	verified, err := f.offers.ConfirmTransaction(context.Background(), o.ID, f.seller)
	require.NoError(t, err)
	assert.Equal(t, market.OfferSellerVerified, verified.Status)

	completed, err := f.offers.ConfirmTransaction(context.Background(), o.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, market.OfferCompleted, completed.Status)

	got, err := f.pickups.GetPickup(context.Background(), p.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, market.PickupCompleted, got.Status)
	assert.Equal(t, market.ListingCompleted, f.listingStatus(t))

	_, err = f.pickups.CancelPickup(context.Background(), p.ID, f.seller)
	assert.ErrorIs(t, err, market.ErrIllegalState)
	assert.Equal(t, market.OfferCompleted, f.offer(t, o.ID).Status)
}

func TestRevertKeepsListingHeldByConfirmedOffer(t *testing.T) {
	f := newFixture(t)
	other := uuid.New()
	f.store.AddUser(other)

	shipping, err := f.offers.CreateOffer(context.Background(), offer.CreateRequest{
		ListingID:    f.listing,
		UserID:       other,
		Amount:       decimal.NewFromInt(55),
		DeliveryType: market.DeliveryShipping,
	})
	require.NoError(t, err)
	o := f.acceptedOffer(t)
	shipping, err = f.offers.AcceptOffer(context.Background(), shipping.ID, f.seller)
	require.NoError(t, err)
	require.Equal(t, market.OfferConfirmed, shipping.Status)

	t.Run("declined pickup", func(t *testing.T) {
		p := f.createPickup(t, o.ID)
		_, err := f.pickups.UpdatePickupStatus(context.Background(), p.ID, market.PickupDeclined, f.buyer)
		require.NoError(t, err)

		assert.Equal(t, market.OfferPending, f.offer(t, o.ID).Status)
		assert.Equal(t, market.ListingPending, f.listingStatus(t))
	})

	t.Run("cancelled pickup", func(t *testing.T) {
		_, err := f.offers.AcceptOffer(context.Background(), o.ID, f.seller)
		require.NoError(t, err)
		p := f.createPickup(t, o.ID)
		_, err = f.pickups.CancelPickup(context.Background(), p.ID, f.seller)
		require.NoError(t, err)

		assert.Equal(t, market.OfferPending, f.offer(t, o.ID).Status)
		assert.Equal(t, market.ListingPending, f.listingStatus(t))
	})

	t.Run("listing reopens once nothing holds it", func(t *testing.T) {
		_, err := f.offers.CancelTransaction(context.Background(), shipping.ID, other)
		require.NoError(t, err)
		_, err = f.offers.AcceptOffer(context.Background(), o.ID, f.seller)
		require.NoError(t, err)
		p := f.createPickup(t, o.ID)
		_, err = f.pickups.CancelPickup(context.Background(), p.ID, f.seller)
		require.NoError(t, err)

		assert.Equal(t, market.ListingActive, f.listingStatus(t))
	})
}

// readOrder wraps a gateway and records the kind of every row Get in
// call order.
type readOrder struct {
	market.Gateway
	mu    sync.Mutex
	reads []string
}

func (g *readOrder) WithinTx(ctx context.Context, fn func(ctx context.Context, tx market.Tx) error) error {
	return g.Gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		return fn(ctx, readOrderTx{Tx: tx, g: g})
	})
}

func (g *readOrder) read(kind string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads = append(g.reads, kind)
}

func (g *readOrder) reset() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	reads := g.reads
	g.reads = nil
	return reads
}

type readOrderTx struct {
	market.Tx
	g *readOrder
}

func (tx readOrderTx) Offers() market.OfferStore   { return readOrderOffers{tx.Tx.Offers(), tx.g} }
func (tx readOrderTx) Pickups() market.PickupStore { return readOrderPickups{tx.Tx.Pickups(), tx.g} }

type readOrderOffers struct {
	market.OfferStore
	g *readOrder
}

func (s readOrderOffers) Get(ctx context.Context, id uuid.UUID) (*market.Offer, error) {
	s.g.read("offer")
	return s.OfferStore.Get(ctx, id)
}

type readOrderPickups struct {
	market.PickupStore
	g *readOrder
}

func (s readOrderPickups) Get(ctx context.Context, id uuid.UUID) (*market.Pickup, error) {
	s.g.read("pickup")
	return s.PickupStore.Get(ctx, id)
}

func TestPickupOperationsLockOfferFirst(t *testing.T) {
	f := newFixture(t)
	o := f.acceptedOffer(t)

	logger := zap.NewNop()
	gateway := &readOrder{Gateway: f.store}
	svc := NewService(gateway, offer.NewMachine(inventory.NewLedger(logger), logger), f.sink, time.UTC, logger).(*service)
	svc.now = func() time.Time { return now }

	p, err := svc.CreatePickup(context.Background(), f.propose(o.ID, f.today.AddDays(1)))
	require.NoError(t, err)
	gateway.reset()

	steps := []struct {
		name string
		run  func() error
	}{
		{"get", func() error {
			_, err := svc.GetPickup(context.Background(), p.ID, f.buyer)
			return err
		}},
		{"reschedule", func() error {
			_, err := svc.ReschedulePickup(context.Background(), RescheduleRequest{
				PickupID:  p.ID,
				UserID:    f.buyer,
				Dates:     []market.Date{f.today.AddDays(2)},
				StartTime: market.NewTimeOfDay(9, 0),
				EndTime:   market.NewTimeOfDay(12, 0),
			})
			return err
		}},
		{"accept", func() error {
			_, err := svc.AcceptPickup(context.Background(), p.ID, f.today.AddDays(2), market.NewTimeOfDay(10, 0), f.seller)
			return err
		}},
		{"complete", func() error {
			_, err := svc.UpdatePickupStatus(context.Background(), p.ID, market.PickupCompleted, f.seller)
			return err
		}},
	}
	for _, step := range steps {
		require.NoError(t, step.run(), step.name)
		reads := gateway.reset()
		require.GreaterOrEqual(t, len(reads), 2, step.name)
		assert.Equal(t, []string{"offer", "pickup"}, reads[:2], step.name)
	}
	assert.Equal(t, market.OfferCompleted, f.offer(t, o.ID).Status)
}
