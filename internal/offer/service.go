// internal/offer/service.go
package offer

import (
	"context"

	"barternexus/internal/market"

	"github.com/google/uuid"
)

// Service defines the interface for the offer lifecycle.
type Service interface {
	CreateOffer(ctx context.Context, req CreateRequest) (*market.Offer, error)
	Transition(ctx context.Context, offerID uuid.UUID, to market.OfferStatus, userID uuid.UUID) (*market.Offer, error)
	AcceptOffer(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error)
	ConfirmTransaction(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error)
	CancelTransaction(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error)
	// ExpireOffer is called by the external expiry sweep.
	ExpireOffer(ctx context.Context, offerID uuid.UUID) (*market.Offer, error)
	GetOffer(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error)
	History(ctx context.Context, offerID, userID uuid.UUID) ([]market.Event, error)
}
