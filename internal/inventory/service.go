// internal/inventory/service.go
package inventory

import (
	"context"

	"barternexus/internal/market"

	"github.com/google/uuid"
)

// Service defines the interface for the inventory service.
type Service interface {
	RegisterItem(ctx context.Context, ownerID uuid.UUID, name string, stock int) (*market.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*market.Item, error)
}
