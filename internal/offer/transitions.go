// internal/offer/transitions.go
package offer

import (
	"fmt"

	"barternexus/internal/market"
)

// party names who may request an edge.
type party int

const (
	bySeller party = iota + 1
	byBuyer
	byEither
	// bySystem edges are taken by internal callers only: the expiry sweep
	// and pickup reverts. They are never accepted from Transition.
	bySystem
)

// Edge is one allowed offer status change.
type Edge struct {
	From market.OfferStatus
	To   market.OfferStatus
}

type rule struct {
	party party
	guard func(o *market.Offer) error
}

var transitions = map[Edge]rule{
	{market.OfferPending, market.OfferAccepted}:  {party: bySeller},
	{market.OfferPending, market.OfferRejected}:  {party: bySeller},
	{market.OfferPending, market.OfferConfirmed}: {party: bySeller, guard: requireDelivery(market.DeliveryShipping)},
	{market.OfferPending, market.OfferWithdrawn}: {party: byBuyer},

	{market.OfferAccepted, market.OfferPickupScheduling}: {party: byEither, guard: requireDelivery(market.DeliveryPickup)},
	{market.OfferAccepted, market.OfferConfirmed}:        {party: byEither},
	{market.OfferAccepted, market.OfferCancelled}:        {party: byEither},

	{market.OfferPickupScheduling, market.OfferConfirmed}:          {party: byEither},
	{market.OfferPickupScheduling, market.OfferCancelled}:          {party: byEither},
	{market.OfferPickupScheduling, market.OfferPickupRescheduling}: {party: byEither, guard: requireDelivery(market.DeliveryPickup)},

	{market.OfferPickupRescheduling, market.OfferConfirmed}: {party: byEither},
	{market.OfferPickupRescheduling, market.OfferCancelled}: {party: byEither},

	{market.OfferConfirmed, market.OfferSellerVerified}: {party: byEither},
	{market.OfferConfirmed, market.OfferBuyerVerified}:  {party: byEither},
	{market.OfferConfirmed, market.OfferCompleted}:      {party: byEither},
	{market.OfferConfirmed, market.OfferCancelled}:      {party: byEither},

	{market.OfferSellerVerified, market.OfferCompleted}: {party: byEither},
	{market.OfferSellerVerified, market.OfferCancelled}: {party: byEither},

	{market.OfferBuyerVerified, market.OfferCompleted}: {party: byEither},
	{market.OfferBuyerVerified, market.OfferCancelled}: {party: byEither},

	{market.OfferCompleted, market.OfferReviewed}: {party: byEither},

	{market.OfferPending, market.OfferExpired}:            {party: bySystem},
	{market.OfferAccepted, market.OfferExpired}:           {party: bySystem},
	{market.OfferPickupScheduling, market.OfferExpired}:   {party: bySystem},
	{market.OfferPickupRescheduling, market.OfferExpired}: {party: bySystem},

	{market.OfferAccepted, market.OfferPending}:           {party: bySystem},
	{market.OfferPickupScheduling, market.OfferPending}:   {party: bySystem},
	{market.OfferPickupRescheduling, market.OfferPending}: {party: bySystem},
}

// allEdges returns every edge of the table, including system edges.
func allEdges() []Edge {
	edges := make([]Edge, 0, len(transitions))
	for e := range transitions {
		edges = append(edges, e)
	}
	return edges
}

// isEdge reports whether from -> to is in the table.
func isEdge(from, to market.OfferStatus) bool {
	_, ok := transitions[Edge{From: from, To: to}]
	return ok
}

// userRequestable reports whether a party may request from -> to through
// Transition.
func userRequestable(from, to market.OfferStatus) bool {
	r, ok := transitions[Edge{From: from, To: to}]
	return ok && r.party != bySystem
}

// check validates that actor may move o to the requested status.
func check(o *market.Offer, to market.OfferStatus, actor Actor) error {
	role := o.RoleOf(actor.ID)
	if !actor.System && role == market.RoleNone {
		return fmt.Errorf("%w: user %s is not a party to offer %s", market.ErrForbidden, actor.ID, o.ID)
	}

	e := Edge{From: o.Status, To: to}
	r, ok := transitions[e]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", market.ErrInvalidTransition, e.From, e.To)
	}

	if !actor.System {
		switch {
		case r.party == bySystem:
			return fmt.Errorf("%w: %s -> %s cannot be requested", market.ErrInvalidTransition, e.From, e.To)
		case r.party == bySeller && role != market.RoleSeller:
			return fmt.Errorf("%w: only the listing owner may move an offer to %s", market.ErrForbidden, to)
		case r.party == byBuyer && role != market.RoleBuyer:
			return fmt.Errorf("%w: only the offer creator may move an offer to %s", market.ErrForbidden, to)
		}
	}

	if r.guard != nil {
		return r.guard(o)
	}
	return nil
}

func requireDelivery(d market.DeliveryType) func(o *market.Offer) error {
	return func(o *market.Offer) error {
		if o.DeliveryType != d {
			return fmt.Errorf("%w: edge requires %s delivery, offer uses %s", market.ErrInvalidTransition, d, o.DeliveryType)
		}
		return nil
	}
}
