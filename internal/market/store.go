// internal/market/store.go
package market

import (
	"context"

	"github.com/google/uuid"
)

// ItemStore loads and saves items inside a transaction. Get locks the row
// for the rest of the transaction.
type ItemStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	Insert(ctx context.Context, item *Item) error
	// Update writes item if its Version still matches the stored row and
	// increments Version on success. A mismatch returns ErrConflict.
	Update(ctx context.Context, item *Item) error
}

type ListingStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Listing, error)
	Insert(ctx context.Context, listing *Listing) error
	Update(ctx context.Context, listing *Listing) error
}

type OfferStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Offer, error)
	Insert(ctx context.Context, offer *Offer) error
	Update(ctx context.Context, offer *Offer) error
	// CountByListing counts the offers on listingID, other than exclude,
	// whose status is one of statuses. It takes no locks.
	CountByListing(ctx context.Context, listingID, exclude uuid.UUID, statuses []OfferStatus) (int, error)
}

type PickupStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Pickup, error)
	// OfferOf returns the offer a pickup belongs to without locking the
	// pickup, so callers can lock the offer first.
	OfferOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	// ListByOffer returns every pickup of the offer, oldest first.
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*Pickup, error)
	Insert(ctx context.Context, pickup *Pickup) error
	Update(ctx context.Context, pickup *Pickup) error
}

// Tx is one unit of work. Writes become visible only if the function passed
// to Gateway.WithinTx returns nil.
type Tx interface {
	Items() ItemStore
	Listings() ListingStore
	Offers() OfferStore
	Pickups() PickupStore
	// Record appends domain events that commit together with the writes.
	Record(events ...Event)
}

// Gateway is the persistence boundary for the exchange core.
type Gateway interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// EventLog reads back the recorded events of one aggregate, oldest first.
type EventLog interface {
	History(ctx context.Context, aggregateID uuid.UUID) ([]Event, error)
}

// UserDirectory answers identity questions about users.
type UserDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// NotificationSink delivers user notifications. Callers treat it as best
// effort: a returned error is logged and dropped.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}
