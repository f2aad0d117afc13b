// internal/offer/fixture_test.go
package offer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"barternexus/internal/inventory"
	"barternexus/internal/market"
	"barternexus/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []market.Notification
	err  error
}

func (s *recordingSink) Notify(ctx context.Context, n market.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) For(userID uuid.UUID, kind market.NotificationKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.sent {
		if n.UserID == userID && n.Kind == kind {
			count++
		}
	}
	return count
}

type fixture struct {
	store   *memory.Store
	ledger  *inventory.Ledger
	machine *Machine
	offers  Service
	sink    *recordingSink
	seller  uuid.UUID
	buyer   uuid.UUID
	listing uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	logger := zap.NewNop()
	ledger := inventory.NewLedger(logger)
	machine := NewMachine(ledger, logger)
	sink := &recordingSink{}

	f := &fixture{
		store:   store,
		ledger:  ledger,
		machine: machine,
		offers:  NewService(store, machine, ledger, store, store, sink, logger),
		sink:    sink,
		seller:  uuid.New(),
		buyer:   uuid.New(),
	}
	store.AddUser(f.seller)
	store.AddUser(f.buyer)
	f.listing = f.addListing(f.seller)
	return f
}

func (f *fixture) addListing(owner uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.store.AddListing(market.Listing{
		ID:        id,
		OwnerID:   owner,
		Title:     "Road bike",
		Status:    market.ListingActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
	return id
}

func (f *fixture) addItem(t *testing.T, owner uuid.UUID, stock int) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		item, err := f.ledger.Register(ctx, tx, owner, "Panniers", stock)
		if err != nil {
			return err
		}
		id = item.ID
		return nil
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) item(t *testing.T, id uuid.UUID) market.Item {
	t.Helper()
	for _, item := range f.store.Items() {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("item %s not found", id)
	return market.Item{}
}

func (f *fixture) listingStatus(t *testing.T) market.ListingStatus {
	t.Helper()
	listing, ok := f.store.Listing(f.listing)
	require.True(t, ok)
	return listing.Status
}

func (f *fixture) request(delivery market.DeliveryType, lines ...market.OfferItem) CreateRequest {
	return CreateRequest{
		ListingID:    f.listing,
		UserID:       f.buyer,
		Amount:       decimal.NewFromInt(120),
		DeliveryType: delivery,
		Items:        lines,
	}
}

func (f *fixture) create(t *testing.T, delivery market.DeliveryType, lines ...market.OfferItem) *market.Offer {
	t.Helper()
	o, err := f.offers.CreateOffer(context.Background(), f.request(delivery, lines...))
	require.NoError(t, err)
	return o
}

// observedEdges returns every offer status edge recorded in the event stream.
func (f *fixture) observedEdges() []Edge {
	var edges []Edge
	for _, e := range f.store.Events() {
		if changed, ok := e.Data.(market.OfferStatusChangedEvent); ok {
			edges = append(edges, Edge{From: changed.From, To: changed.To})
		}
	}
	return edges
}

var errSinkDown = errors.New("sink down")

func line(itemID uuid.UUID, quantity int) market.OfferItem {
	return market.OfferItem{ItemID: itemID, Quantity: quantity}
}
