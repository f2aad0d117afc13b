// internal/market/domain.go
package market

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingStatus is the status of the listing an offer targets.
type ListingStatus string

const (
	ListingActive    ListingStatus = "ACTIVE"
	ListingPending   ListingStatus = "PENDING"
	ListingCompleted ListingStatus = "COMPLETED"
)

// Listing is owned by the marketplace; the exchange core only flips its status.
type Listing struct {
	ID        uuid.UUID     `json:"id"`
	OwnerID   uuid.UUID     `json:"owner_id"`
	Title     string        `json:"title"`
	Status    ListingStatus `json:"status"`
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Item is a stock of physical units owned by one user.
type Item struct {
	ID                uuid.UUID  `json:"id"`
	OwnerID           uuid.UUID  `json:"owner_id"`
	Name              string     `json:"name"`
	StockQuantity     int        `json:"stock_quantity"`
	AvailableQuantity int        `json:"available_quantity"`
	OriginItemID      *uuid.UUID `json:"origin_item_id,omitempty"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Reserved is the number of units held by open offers.
func (i *Item) Reserved() int {
	return i.StockQuantity - i.AvailableQuantity
}

// Consistent reports whether 0 <= available <= stock.
func (i *Item) Consistent() bool {
	return i.AvailableQuantity >= 0 && i.AvailableQuantity <= i.StockQuantity
}

// DeliveryType selects how the goods change hands.
type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "PICKUP"
	DeliveryShipping DeliveryType = "SHIPPING"
)

func (d DeliveryType) Valid() bool {
	return d == DeliveryPickup || d == DeliveryShipping
}

// OfferItem is one (item, quantity) line offered in kind.
type OfferItem struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// Offer is a proposal by one user to acquire a listing.
type Offer struct {
	ID             uuid.UUID       `json:"id"`
	ListingID      uuid.UUID       `json:"listing_id"`
	UserID         uuid.UUID       `json:"user_id"`
	ListingOwnerID uuid.UUID       `json:"listing_owner_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	DeliveryType   DeliveryType    `json:"delivery_type"`
	Items          []OfferItem     `json:"items"`
	Message        string          `json:"message,omitempty"`
	Status         OfferStatus     `json:"status"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Role is the part a user plays in an offer.
type Role int

const (
	RoleNone Role = iota
	RoleBuyer
	RoleSeller
)

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSeller:
		return "seller"
	default:
		return "none"
	}
}

// RoleOf returns the role of userID in the offer. The offer creator is the
// buyer, the listing owner is the seller.
func (o *Offer) RoleOf(userID uuid.UUID) Role {
	switch userID {
	case o.UserID:
		return RoleBuyer
	case o.ListingOwnerID:
		return RoleSeller
	default:
		return RoleNone
	}
}

// Pickup is the in-person handoff negotiated for a pickup-delivery offer.
type Pickup struct {
	ID             uuid.UUID    `json:"id"`
	OfferID        uuid.UUID    `json:"offer_id"`
	CreatorID      uuid.UUID    `json:"creator_id"`
	AvailableDates []Date       `json:"available_dates"`
	StartTime      TimeOfDay    `json:"start_time"`
	EndTime        TimeOfDay    `json:"end_time"`
	Location       string       `json:"location"`
	Details        string       `json:"details,omitempty"`
	SelectedDate   *Date        `json:"selected_date,omitempty"`
	SelectedTime   *TimeOfDay   `json:"selected_time,omitempty"`
	Status         PickupStatus `json:"status"`
	Version        int          `json:"version"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Offers reports whether d is one of the proposed dates.
func (p *Pickup) Offers(d Date) bool {
	for _, candidate := range p.AvailableDates {
		if candidate == d {
			return true
		}
	}
	return false
}

// Within reports whether t lies in the inclusive [StartTime, EndTime] window.
func (p *Pickup) Within(t TimeOfDay) bool {
	return t >= p.StartTime && t <= p.EndTime
}
