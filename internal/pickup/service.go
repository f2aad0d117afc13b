// internal/pickup/service.go
package pickup

import (
	"context"

	"barternexus/internal/market"

	"github.com/google/uuid"
)

// Service defines the interface for pickup arrangement.
type Service interface {
	CreatePickup(ctx context.Context, req ProposeRequest) (*market.Pickup, error)
	AcceptPickup(ctx context.Context, pickupID uuid.UUID, date market.Date, at market.TimeOfDay, userID uuid.UUID) (*market.Pickup, error)
	ReschedulePickup(ctx context.Context, req RescheduleRequest) (*market.Pickup, error)
	UpdatePickupStatus(ctx context.Context, pickupID uuid.UUID, status market.PickupStatus, userID uuid.UUID) (*market.Pickup, error)
	CancelPickup(ctx context.Context, pickupID, userID uuid.UUID) (*market.Pickup, error)
	GetPickup(ctx context.Context, pickupID, userID uuid.UUID) (*market.Pickup, error)
}
