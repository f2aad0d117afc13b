// internal/offer/domain.go
package offer

import (
	"barternexus/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a request leaves the currency empty.
const DefaultCurrency = "USD"

// CreateRequest carries everything needed to open an offer on a listing.
type CreateRequest struct {
	ListingID    uuid.UUID           `json:"listing_id"`
	UserID       uuid.UUID           `json:"-"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency"`
	DeliveryType market.DeliveryType `json:"delivery_type"`
	Items        []market.OfferItem  `json:"items"`
	Message      string              `json:"message"`
}
