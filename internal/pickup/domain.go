// internal/pickup/domain.go
package pickup

import (
	"barternexus/internal/market"

	"github.com/google/uuid"
)

// ProposeRequest proposes pickup dates and a daily time window for an offer.
type ProposeRequest struct {
	OfferID   uuid.UUID        `json:"-"`
	UserID    uuid.UUID        `json:"-"`
	Dates     []market.Date    `json:"available_dates"`
	StartTime market.TimeOfDay `json:"start_time"`
	EndTime   market.TimeOfDay `json:"end_time"`
	Location  string           `json:"location"`
	Details   string           `json:"details"`
}

// RescheduleRequest replaces the proposal of a pending pickup. An empty
// Location keeps the current one.
type RescheduleRequest struct {
	PickupID  uuid.UUID        `json:"-"`
	UserID    uuid.UUID        `json:"-"`
	Dates     []market.Date    `json:"available_dates"`
	StartTime market.TimeOfDay `json:"start_time"`
	EndTime   market.TimeOfDay `json:"end_time"`
	Location  string           `json:"location"`
}

// transitions is the pickup sub-machine. Statuses missing from the map are
// terminal.
var transitions = map[market.PickupStatus][]market.PickupStatus{
	market.PickupPending:  {market.PickupAccepted, market.PickupDeclined, market.PickupCancelled},
	market.PickupAccepted: {market.PickupCompleted, market.PickupCancelled},
}

// CanMove reports whether the pickup sub-machine allows from -> to.
func CanMove(from, to market.PickupStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
