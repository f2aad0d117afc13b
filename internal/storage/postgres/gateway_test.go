// internal/storage/postgres/gateway_test.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"barternexus/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// setupGateway connects to the Postgres described by the PG* variables and
// skips the test when none is reachable.
func setupGateway(t *testing.T) *Gateway {
	t.Helper()
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("PGHOST", "localhost"),
		getEnv("PGPORT", "5432"),
		getEnv("PGUSER", "user"),
		getEnv("PGPASSWORD", "password"),
		getEnv("PGDATABASE", "testdb"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	g := NewGateway(db, zap.NewNop())
	require.NoError(t, g.Migrate(context.Background()))
	return g
}

func seed(t *testing.T, g *Gateway) (*market.Listing, *market.Item) {
	t.Helper()
	listing := &market.Listing{ID: uuid.New(), OwnerID: uuid.New(), Title: "Canoe", Status: market.ListingActive}
	item := &market.Item{ID: uuid.New(), OwnerID: uuid.New(), Name: "Paddle", StockQuantity: 4, AvailableQuantity: 4}
	err := g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		if err := tx.Listings().Insert(ctx, listing); err != nil {
			return err
		}
		return tx.Items().Insert(ctx, item)
	})
	require.NoError(t, err)
	return listing, item
}

func TestGateway_OfferRoundTrip(t *testing.T) {
	g := setupGateway(t)
	listing, item := seed(t, g)

	o := &market.Offer{
		ID:             uuid.New(),
		ListingID:      listing.ID,
		UserID:         item.OwnerID,
		ListingOwnerID: listing.OwnerID,
		Amount:         decimal.RequireFromString("12.50"),
		Currency:       "EUR",
		DeliveryType:   market.DeliveryPickup,
		Items:          []market.OfferItem{{ItemID: item.ID, Quantity: 2}},
		Status:         market.OfferPending,
	}
	err := g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		if err := tx.Offers().Insert(ctx, o); err != nil {
			return err
		}
		tx.Record(market.Event{
			AggregateID:   o.ID,
			AggregateType: market.AggregateOffer,
			Type:          "OfferCreated",
			Data:          market.OfferCreatedEvent{OfferID: o.ID, ListingID: listing.ID},
			OccurredAt:    time.Now().UTC(),
		})
		return nil
	})
	require.NoError(t, err)

	err = g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		got, err := tx.Offers().Get(ctx, o.ID)
		if err != nil {
			return err
		}
		assert.True(t, o.Amount.Equal(got.Amount))
		assert.Equal(t, o.Items, got.Items)
		assert.Equal(t, 1, got.Version)

		got.Status = market.OfferAccepted
		if err := tx.Offers().Update(ctx, got); err != nil {
			return err
		}
		assert.Equal(t, 2, got.Version)
		return nil
	})
	require.NoError(t, err)

	history, err := g.History(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "OfferCreated", history[0].Type)
}

func TestGateway_RollbackDiscardsWritesAndEvents(t *testing.T) {
	g := setupGateway(t)
	_, item := seed(t, g)
	errAbort := errors.New("abort")

	err := g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		got, err := tx.Items().Get(ctx, item.ID)
		if err != nil {
			return err
		}
		got.AvailableQuantity = 0
		if err := tx.Items().Update(ctx, got); err != nil {
			return err
		}
		tx.Record(market.Event{AggregateID: item.ID, AggregateType: market.AggregateItem, Type: "InventoryReserve"})
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	err = g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		got, err := tx.Items().Get(ctx, item.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 4, got.AvailableQuantity)
		return nil
	})
	require.NoError(t, err)

	history, err := g.History(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGateway_StaleVersionConflicts(t *testing.T) {
	g := setupGateway(t)
	listing, _ := seed(t, g)

	err := g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		got, err := tx.Listings().Get(ctx, listing.ID)
		if err != nil {
			return err
		}
		got.Version = 7
		got.Status = market.ListingPending
		return tx.Listings().Update(ctx, got)
	})

	assert.ErrorIs(t, err, market.ErrConflict)
}

func TestGateway_CheckConstraintGuardsLedger(t *testing.T) {
	g := setupGateway(t)
	_, item := seed(t, g)

	err := g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		got, err := tx.Items().Get(ctx, item.ID)
		if err != nil {
			return err
		}
		got.AvailableQuantity = got.StockQuantity + 1
		return tx.Items().Update(ctx, got)
	})

	assert.ErrorIs(t, err, market.ErrLedgerInvariant)
}

func TestGateway_PickupDates(t *testing.T) {
	g := setupGateway(t)
	listing, item := seed(t, g)
	offerID := uuid.New()
	selected := market.Date{Year: 2030, Month: time.June, Day: 3}
	at := market.NewTimeOfDay(10, 30)

	p := &market.Pickup{
		ID:             uuid.New(),
		OfferID:        offerID,
		CreatorID:      listing.OwnerID,
		AvailableDates: []market.Date{{Year: 2030, Month: time.June, Day: 2}, selected},
		StartTime:      market.NewTimeOfDay(9, 0),
		EndTime:        market.NewTimeOfDay(17, 0),
		Location:       "Harbour gate",
		Status:         market.PickupPending,
	}
	err := g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		o := &market.Offer{
			ID: offerID, ListingID: listing.ID, UserID: item.OwnerID, ListingOwnerID: listing.OwnerID,
			Currency: "USD", DeliveryType: market.DeliveryPickup, Status: market.OfferAccepted,
			Items: []market.OfferItem{{ItemID: item.ID, Quantity: 1}},
		}
		if err := tx.Offers().Insert(ctx, o); err != nil {
			return err
		}
		if err := tx.Pickups().Insert(ctx, p); err != nil {
			return err
		}
		p.SelectedDate = &selected
		p.SelectedTime = &at
		p.Status = market.PickupAccepted
		return tx.Pickups().Update(ctx, p)
	})
	require.NoError(t, err)

	err = g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		pickups, err := tx.Pickups().ListByOffer(ctx, offerID)
		if err != nil {
			return err
		}
		require.Len(t, pickups, 1)
		got := pickups[0]
		assert.Equal(t, p.AvailableDates, got.AvailableDates)
		require.NotNil(t, got.SelectedDate)
		assert.Equal(t, selected, *got.SelectedDate)
		require.NotNil(t, got.SelectedTime)
		assert.Equal(t, at, *got.SelectedTime)
		assert.Equal(t, market.PickupAccepted, got.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestGateway_OfferOfAndCountByListing(t *testing.T) {
	g := setupGateway(t)
	listing, item := seed(t, g)

	offers := []*market.Offer{
		{ID: uuid.New(), Status: market.OfferConfirmed},
		{ID: uuid.New(), Status: market.OfferAccepted},
		{ID: uuid.New(), Status: market.OfferPending},
	}
	pickup := &market.Pickup{
		ID:             uuid.New(),
		OfferID:        offers[1].ID,
		CreatorID:      listing.OwnerID,
		AvailableDates: []market.Date{{Year: 2030, Month: time.June, Day: 2}},
		StartTime:      market.NewTimeOfDay(9, 0),
		EndTime:        market.NewTimeOfDay(17, 0),
		Location:       "Harbour gate",
		Status:         market.PickupPending,
	}
	err := g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		for _, o := range offers {
			o.ListingID = listing.ID
			o.UserID = item.OwnerID
			o.ListingOwnerID = listing.OwnerID
			o.Currency = "USD"
			o.DeliveryType = market.DeliveryPickup
			o.Items = []market.OfferItem{{ItemID: item.ID, Quantity: 1}}
			if err := tx.Offers().Insert(ctx, o); err != nil {
				return err
			}
		}
		return tx.Pickups().Insert(ctx, pickup)
	})
	require.NoError(t, err)

	err = g.WithinTx(context.Background(), func(ctx context.Context, tx market.Tx) error {
		offerID, err := tx.Pickups().OfferOf(ctx, pickup.ID)
		require.NoError(t, err)
		assert.Equal(t, offers[1].ID, offerID)

		_, err = tx.Pickups().OfferOf(ctx, uuid.New())
		assert.ErrorIs(t, err, market.ErrNotFound)

		n, err := tx.Offers().CountByListing(ctx, listing.ID, offers[0].ID, []market.OfferStatus{market.OfferAccepted, market.OfferConfirmed})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = tx.Offers().CountByListing(ctx, listing.ID, uuid.Nil, []market.OfferStatus{market.OfferAccepted, market.OfferConfirmed})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		return nil
	})
	require.NoError(t, err)
}

func TestPickupRowRejectsCorruptDates(t *testing.T) {
	row := pickupRow{ID: uuid.New(), AvailableDates: []string{"2030-06-02", "June 3rd"}}

	_, err := row.toDomain()

	assert.ErrorIs(t, err, market.ErrInvalidSchedule)
}
