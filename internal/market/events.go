// internal/market/events.go
package market

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate types used in the event stream.
const (
	AggregateOffer   = "offer"
	AggregatePickup  = "pickup"
	AggregateItem    = "item"
	AggregateListing = "listing"
)

// Event is a domain event recorded in the same transaction as the state it
// describes.
type Event struct {
	AggregateID   uuid.UUID   `json:"aggregate_id"`
	AggregateType string      `json:"aggregate_type"`
	Type          string      `json:"type"`
	Data          interface{} `json:"data"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// OfferCreatedEvent is recorded when an offer enters PENDING.
type OfferCreatedEvent struct {
	OfferID   uuid.UUID   `json:"offer_id"`
	ListingID uuid.UUID   `json:"listing_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Items     []OfferItem `json:"items"`
}

// OfferStatusChangedEvent is recorded for every offer status edge taken.
// ActorID is uuid.Nil for system-driven edges.
type OfferStatusChangedEvent struct {
	OfferID uuid.UUID   `json:"offer_id"`
	From    OfferStatus `json:"from"`
	To      OfferStatus `json:"to"`
	ActorID uuid.UUID   `json:"actor_id"`
}

type PickupStatusChangedEvent struct {
	PickupID uuid.UUID    `json:"pickup_id"`
	OfferID  uuid.UUID    `json:"offer_id"`
	From     PickupStatus `json:"from"`
	To       PickupStatus `json:"to"`
	ActorID  uuid.UUID    `json:"actor_id"`
}

type PickupScheduledEvent struct {
	PickupID       uuid.UUID `json:"pickup_id"`
	OfferID        uuid.UUID `json:"offer_id"`
	AvailableDates []Date    `json:"available_dates"`
	StartTime      TimeOfDay `json:"start_time"`
	EndTime        TimeOfDay `json:"end_time"`
}

// InventoryChangedEvent captures one ledger movement on an item.
type InventoryChangedEvent struct {
	ItemID    uuid.UUID `json:"item_id"`
	Operation string    `json:"operation"`
	Quantity  int       `json:"quantity"`
	Stock     int       `json:"stock"`
	Available int       `json:"available"`
}

type ListingStatusChangedEvent struct {
	ListingID uuid.UUID     `json:"listing_id"`
	From      ListingStatus `json:"from"`
	To        ListingStatus `json:"to"`
}

// NotificationKind names a user-facing notification.
type NotificationKind string

const (
	NotifyOfferReceived      NotificationKind = "offer.received"
	NotifyOfferAccepted      NotificationKind = "offer.accepted"
	NotifyOfferStatusChanged NotificationKind = "offer.status_changed"
	NotifyPickupProposed     NotificationKind = "pickup.proposed"
	NotifyPickupUpdated      NotificationKind = "pickup.updated"
)

// Notification is addressed to a single user.
type Notification struct {
	UserID  uuid.UUID              `json:"user_id"`
	Kind    NotificationKind       `json:"kind"`
	Payload map[string]interface{} `json:"payload"`
}
