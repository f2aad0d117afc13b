// internal/storage/memory/store.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"barternexus/internal/market"

	"github.com/google/uuid"
)

// Store is an in-process market.Gateway. Transactions are serialized by a
// single mutex and their writes are staged until the callback returns nil,
// so a failed operation never leaves partial state behind.
type Store struct {
	mu       sync.Mutex
	items    map[uuid.UUID]market.Item
	listings map[uuid.UUID]market.Listing
	offers   map[uuid.UUID]market.Offer
	pickups  map[uuid.UUID]market.Pickup
	users    map[uuid.UUID]struct{}
	events   []market.Event
}

func NewStore() *Store {
	return &Store{
		items:    make(map[uuid.UUID]market.Item),
		listings: make(map[uuid.UUID]market.Listing),
		offers:   make(map[uuid.UUID]market.Offer),
		pickups:  make(map[uuid.UUID]market.Pickup),
		users:    make(map[uuid.UUID]struct{}),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx market.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		items: &table[market.Item]{
			kind: "item", base: s.items, staged: map[uuid.UUID]market.Item{},
			clone: cloneItem, version: func(v *market.Item) *int { return &v.Version },
		},
		listings: &table[market.Listing]{
			kind: "listing", base: s.listings, staged: map[uuid.UUID]market.Listing{},
			clone: func(v market.Listing) market.Listing { return v }, version: func(v *market.Listing) *int { return &v.Version },
		},
		offers: &table[market.Offer]{
			kind: "offer", base: s.offers, staged: map[uuid.UUID]market.Offer{},
			clone: cloneOffer, version: func(v *market.Offer) *int { return &v.Version },
		},
		pickups: &table[market.Pickup]{
			kind: "pickup", base: s.pickups, staged: map[uuid.UUID]market.Pickup{},
			clone: clonePickup, version: func(v *market.Pickup) *int { return &v.Version },
		},
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	tx.items.commit()
	tx.listings.commit()
	tx.offers.commit()
	tx.pickups.commit()
	s.events = append(s.events, tx.events...)
	return nil
}

// AddUser registers id with the in-memory user directory.
func (s *Store) AddUser(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = struct{}{}
}

func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

// Events returns a copy of every committed event in commit order.
func (s *Store) Events() []market.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]market.Event, len(s.events))
	copy(events, s.events)
	return events
}

func (s *Store) History(ctx context.Context, aggregateID uuid.UUID) ([]market.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var history []market.Event
	for _, event := range s.events {
		if event.AggregateID == aggregateID {
			history = append(history, event)
		}
	}
	return history, nil
}

// AddListing stores a listing owned by the marketplace. Listing creation is
// not an exchange operation, so it bypasses the transaction API.
func (s *Store) AddListing(listing market.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if listing.Version == 0 {
		listing.Version = 1
	}
	s.listings[listing.ID] = listing
}

// Listing returns the committed listing.
func (s *Store) Listing(id uuid.UUID) (market.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[id]
	return listing, ok
}

// Items returns a snapshot of every committed item.
func (s *Store) Items() []market.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]market.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, cloneItem(item))
	}
	return items
}

// Offers returns a snapshot of every committed offer.
func (s *Store) Offers() []market.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	offers := make([]market.Offer, 0, len(s.offers))
	for _, offer := range s.offers {
		offers = append(offers, cloneOffer(offer))
	}
	return offers
}

// Pickups returns a snapshot of every committed pickup.
func (s *Store) Pickups() []market.Pickup {
	s.mu.Lock()
	defer s.mu.Unlock()
	pickups := make([]market.Pickup, 0, len(s.pickups))
	for _, pickup := range s.pickups {
		pickups = append(pickups, clonePickup(pickup))
	}
	return pickups
}

type memTx struct {
	items    *table[market.Item]
	listings *table[market.Listing]
	offers   *table[market.Offer]
	pickups  *table[market.Pickup]
	events   []market.Event
}

func (tx *memTx) Items() market.ItemStore       { return itemStore{tx.items} }
func (tx *memTx) Listings() market.ListingStore { return listingStore{tx.listings} }
func (tx *memTx) Offers() market.OfferStore     { return offerStore{tx.offers} }
func (tx *memTx) Pickups() market.PickupStore   { return pickupStore{tx.pickups} }

func (tx *memTx) Record(events ...market.Event) {
	tx.events = append(tx.events, events...)
}

// table stages writes over a committed map.
type table[T any] struct {
	kind    string
	base    map[uuid.UUID]T
	staged  map[uuid.UUID]T
	clone   func(T) T
	version func(*T) *int
}

func (t *table[T]) lookup(id uuid.UUID) (T, bool) {
	if v, ok := t.staged[id]; ok {
		return v, true
	}
	v, ok := t.base[id]
	return v, ok
}

func (t *table[T]) get(id uuid.UUID) (*T, error) {
	v, ok := t.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", market.ErrNotFound, t.kind, id)
	}
	c := t.clone(v)
	return &c, nil
}

func (t *table[T]) insert(id uuid.UUID, v *T) error {
	if _, exists := t.lookup(id); exists {
		return fmt.Errorf("%w: %s %s already exists", market.ErrConflict, t.kind, id)
	}
	*t.version(v) = 1
	t.staged[id] = t.clone(*v)
	return nil
}

func (t *table[T]) update(id uuid.UUID, v *T) error {
	current, ok := t.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s %s", market.ErrNotFound, t.kind, id)
	}
	if *t.version(&current) != *t.version(v) {
		return fmt.Errorf("%w: %s %s", market.ErrConflict, t.kind, id)
	}
	*t.version(v)++
	t.staged[id] = t.clone(*v)
	return nil
}

func (t *table[T]) each(fn func(T)) {
	for id, v := range t.base {
		if _, shadowed := t.staged[id]; !shadowed {
			fn(v)
		}
	}
	for _, v := range t.staged {
		fn(v)
	}
}

func (t *table[T]) commit() {
	for id, v := range t.staged {
		t.base[id] = v
	}
}

type itemStore struct{ t *table[market.Item] }

func (s itemStore) Get(ctx context.Context, id uuid.UUID) (*market.Item, error) { return s.t.get(id) }
func (s itemStore) Insert(ctx context.Context, v *market.Item) error           { return s.t.insert(v.ID, v) }
func (s itemStore) Update(ctx context.Context, v *market.Item) error           { return s.t.update(v.ID, v) }

type listingStore struct{ t *table[market.Listing] }

func (s listingStore) Get(ctx context.Context, id uuid.UUID) (*market.Listing, error) {
	return s.t.get(id)
}
func (s listingStore) Insert(ctx context.Context, v *market.Listing) error { return s.t.insert(v.ID, v) }
func (s listingStore) Update(ctx context.Context, v *market.Listing) error { return s.t.update(v.ID, v) }

type offerStore struct{ t *table[market.Offer] }

func (s offerStore) Get(ctx context.Context, id uuid.UUID) (*market.Offer, error) { return s.t.get(id) }
func (s offerStore) Insert(ctx context.Context, v *market.Offer) error           { return s.t.insert(v.ID, v) }
func (s offerStore) Update(ctx context.Context, v *market.Offer) error           { return s.t.update(v.ID, v) }

func (s offerStore) CountByListing(ctx context.Context, listingID, exclude uuid.UUID, statuses []market.OfferStatus) (int, error) {
	count := 0
	s.t.each(func(o market.Offer) {
		if o.ListingID != listingID || o.ID == exclude {
			return
		}
		for _, status := range statuses {
			if o.Status == status {
				count++
				return
			}
		}
	})
	return count, nil
}

type pickupStore struct{ t *table[market.Pickup] }

func (s pickupStore) Get(ctx context.Context, id uuid.UUID) (*market.Pickup, error) { return s.t.get(id) }
func (s pickupStore) Insert(ctx context.Context, v *market.Pickup) error           { return s.t.insert(v.ID, v) }
func (s pickupStore) Update(ctx context.Context, v *market.Pickup) error           { return s.t.update(v.ID, v) }

func (s pickupStore) OfferOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	p, ok := s.t.lookup(id)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: pickup %s", market.ErrNotFound, id)
	}
	return p.OfferID, nil
}

func (s pickupStore) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*market.Pickup, error) {
	var pickups []*market.Pickup
	s.t.each(func(p market.Pickup) {
		if p.OfferID == offerID {
			c := clonePickup(p)
			pickups = append(pickups, &c)
		}
	})
	sort.Slice(pickups, func(i, j int) bool {
		if pickups[i].CreatedAt.Equal(pickups[j].CreatedAt) {
			return pickups[i].ID.String() < pickups[j].ID.String()
		}
		return pickups[i].CreatedAt.Before(pickups[j].CreatedAt)
	})
	return pickups, nil
}

func cloneItem(v market.Item) market.Item {
	if v.OriginItemID != nil {
		origin := *v.OriginItemID
		v.OriginItemID = &origin
	}
	return v
}

func cloneOffer(v market.Offer) market.Offer {
	v.Items = append([]market.OfferItem(nil), v.Items...)
	return v
}

func clonePickup(v market.Pickup) market.Pickup {
	v.AvailableDates = append([]market.Date(nil), v.AvailableDates...)
	if v.SelectedDate != nil {
		d := *v.SelectedDate
		v.SelectedDate = &d
	}
	if v.SelectedTime != nil {
		t := *v.SelectedTime
		v.SelectedTime = &t
	}
	return v
}
