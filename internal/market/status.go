// internal/market/status.go
package market

// OfferStatus is the lifecycle status of an offer.
type OfferStatus string

const (
	OfferPending            OfferStatus = "PENDING"
	OfferAccepted           OfferStatus = "ACCEPTED"
	OfferRejected           OfferStatus = "REJECTED"
	OfferWithdrawn          OfferStatus = "WITHDRAWN"
	OfferPickupScheduling   OfferStatus = "PICKUPSCHEDULING"
	OfferPickupRescheduling OfferStatus = "PICKUPRESCHEDULING"
	OfferConfirmed          OfferStatus = "CONFIRMED"
	OfferSellerVerified     OfferStatus = "SELLERVERIFIED"
	OfferBuyerVerified      OfferStatus = "BUYERVERIFIED"
	OfferCompleted          OfferStatus = "COMPLETED"
	OfferReviewed           OfferStatus = "REVIEWED"
	OfferCancelled          OfferStatus = "CANCELLED"
	OfferExpired            OfferStatus = "EXPIRED"
)

// OfferStatuses lists every offer status.
var OfferStatuses = []OfferStatus{
	OfferPending,
	OfferAccepted,
	OfferRejected,
	OfferWithdrawn,
	OfferPickupScheduling,
	OfferPickupRescheduling,
	OfferConfirmed,
	OfferSellerVerified,
	OfferBuyerVerified,
	OfferCompleted,
	OfferReviewed,
	OfferCancelled,
	OfferExpired,
}

func (s OfferStatus) Valid() bool {
	for _, known := range OfferStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferRejected, OfferWithdrawn, OfferExpired, OfferCancelled, OfferReviewed:
		return true
	}
	return false
}

// HoldsReservation reports whether an offer in this status keeps its
// offered units reserved.
func (s OfferStatus) HoldsReservation() bool {
	return !s.Terminal() && s != OfferCompleted
}

// InPickupPhase reports whether the offer was accepted but its pickup is not
// yet agreed.
func (s OfferStatus) InPickupPhase() bool {
	switch s {
	case OfferAccepted, OfferPickupScheduling, OfferPickupRescheduling:
		return true
	}
	return false
}

// PickupStatus is the status of a pickup arrangement.
type PickupStatus string

const (
	PickupPending   PickupStatus = "PENDING"
	PickupAccepted  PickupStatus = "ACCEPTED"
	PickupDeclined  PickupStatus = "DECLINED"
	PickupCancelled PickupStatus = "CANCELLED"
	PickupCompleted PickupStatus = "COMPLETED"
)

func (s PickupStatus) Valid() bool {
	switch s {
	case PickupPending, PickupAccepted, PickupDeclined, PickupCancelled, PickupCompleted:
		return true
	}
	return false
}

func (s PickupStatus) Terminal() bool {
	return s == PickupDeclined || s == PickupCancelled || s == PickupCompleted
}
