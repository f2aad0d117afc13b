// internal/inventory/implementation.go
package inventory

import (
	"context"

	"barternexus/internal/market"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// service implements the Service interface.
type service struct {
	gateway market.Gateway
	ledger  *Ledger
	logger  *zap.Logger
}

// NewService creates a new inventory service instance.
func NewService(gateway market.Gateway, ledger *Ledger, logger *zap.Logger) Service {
	return &service{
		gateway: gateway,
		ledger:  ledger,
		logger:  logger,
	}
}

// RegisterItem adds an item to the owner's inventory.
func (s *service) RegisterItem(ctx context.Context, ownerID uuid.UUID, name string, stock int) (*market.Item, error) {
	var item *market.Item
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		var err error
		item, err = s.ledger.Register(ctx, tx, ownerID, name, stock)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Item registered",
		zap.String("item_id", item.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Int("stock", stock),
	)
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*market.Item, error) {
	var item *market.Item
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		var err error
		item, err = tx.Items().Get(ctx, id)
		return err
	})
	return item, err
}
