// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"barternexus/internal/market"
)

// RegisterAll registers the exchange experiments run on a game day.
func (e *Engine) RegisterAll(t *Target) {
	e.Register(t.CompetingOffersExperiment(5, 20))
	e.Register(t.AcceptWithdrawRaceExperiment(10))
	e.Register(t.NotificationOutageExperiment(5))
	e.Register(t.StorageFaultExperiment(25*time.Millisecond, 3, 10))
}

// CompetingOffersExperiment fires contenders concurrent offers at one item
// holding stock units, one unit each.
func (t *Target) CompetingOffersExperiment(stock, contenders int) Experiment {
	var succeeded, unexpected atomic.Int64

	return Experiment{
		Name:       "competing-offers",
		Hypothesis: "Concurrent offers never reserve more units than an item holds",
		Invariants: append(t.ledgerInvariants(),
			Invariant{
				Name: "over_reserved_offers",
				Measure: func(ctx context.Context) (float64, error) {
					return float64(max(0, succeeded.Load()-int64(stock))), nil
				},
				Want: Zero,
			},
			Invariant{
				Name: "unexpected_errors",
				Measure: func(ctx context.Context) (float64, error) {
					return float64(unexpected.Load()), nil
				},
				Want: Zero,
			},
		),
		Inject: []Step{
			{
				Kind:   "concurrent-requests",
				Target: "offer-service",
				Params: map[string]interface{}{
					"stock":      stock,
					"contenders": contenders,
				},
				Run: func(ctx context.Context) error {
					p, err := t.seedPair(ctx, stock)
					if err != nil {
						return err
					}

					var wg sync.WaitGroup
					for i := 0; i < contenders; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							_, err := t.offerFor(ctx, p, 1)
							switch {
							case err == nil:
								succeeded.Add(1)
							case !errors.Is(err, market.ErrInsufficientInventory):
								unexpected.Add(1)
							}
						}()
					}
					wg.Wait()

					if got := succeeded.Load(); got != int64(min(stock, contenders)) {
						return fmt.Errorf("%d offers succeeded, want %d", got, min(stock, contenders))
					}
					return nil
				},
			},
		},
		Checks: append(ledgerChecks(),
			Check{
				Invariant: "over_reserved_offers",
				Holds:     func(v float64) bool { return v == 0 },
				Message:   "No offer should succeed beyond the available stock",
			},
			Check{
				Invariant: "unexpected_errors",
				Holds:     func(v float64) bool { return v == 0 },
				Message:   "Losing offers should fail with insufficient inventory only",
			},
		),
		Window:      t.Window,
		BlastRadius: 0.1,
	}
}

// AcceptWithdrawRaceExperiment races the seller's accept against the buyer's
// withdraw on pairs separate offers.
func (t *Target) AcceptWithdrawRaceExperiment(pairs int) Experiment {
	var split atomic.Int64

	return Experiment{
		Name:       "accept-withdraw-race",
		Hypothesis: "Exactly one of a racing accept and withdraw wins",
		Invariants: append(t.ledgerInvariants(), Invariant{
			Name: "split_outcomes",
			Measure: func(ctx context.Context) (float64, error) {
				return float64(split.Load()), nil
			},
			Want: Zero,
		}),
		Inject: []Step{
			{
				Kind:   "race-condition",
				Target: "offer-state-machine",
				Params: map[string]interface{}{"pairs": pairs},
				Run: func(ctx context.Context) error {
					offers := make([]*market.Offer, 0, pairs)
					parties := make([]pair, 0, pairs)
					for i := 0; i < pairs; i++ {
						p, err := t.seedPair(ctx, 1)
						if err != nil {
							return err
						}
						o, err := t.offerFor(ctx, p, 1)
						if err != nil {
							return err
						}
						offers = append(offers, o)
						parties = append(parties, p)
					}

					var wg sync.WaitGroup
					for i := range offers {
						o, p := offers[i], parties[i]
						var wins atomic.Int64
						var race sync.WaitGroup
						race.Add(2)
						go func() {
							defer race.Done()
							if _, err := t.Offers.AcceptOffer(ctx, o.ID, p.seller); err == nil {
								wins.Add(1)
							}
						}()
						go func() {
							defer race.Done()
							if _, err := t.Offers.Transition(ctx, o.ID, market.OfferWithdrawn, p.buyer); err == nil {
								wins.Add(1)
							}
						}()
						wg.Add(1)
						go func() {
							defer wg.Done()
							race.Wait()
							if wins.Load() != 1 {
								split.Add(1)
							}
						}()
					}
					wg.Wait()
					return nil
				},
			},
		},
		Checks: append(ledgerChecks(), Check{
			Invariant: "split_outcomes",
			Holds:     func(v float64) bool { return v == 0 },
			Message:   "Every race should have exactly one winner",
		}),
		Window:      t.Window,
		BlastRadius: 0.2,
	}
}

// NotificationOutageExperiment takes the notification sink down and runs
// complete shipping exchanges.
func (t *Target) NotificationOutageExperiment(exchanges int) Experiment {
	var failed atomic.Int64

	return Experiment{
		Name:       "notification-outage",
		Hypothesis: "Exchanges complete while notifications cannot be delivered",
		Invariants: append(t.ledgerInvariants(), Invariant{
			Name: "failed_exchanges",
			Measure: func(ctx context.Context) (float64, error) {
				return float64(failed.Load()), nil
			},
			Want: Zero,
		}),
		Inject: []Step{
			{
				Kind:   "service-outage",
				Target: "notification-sink",
				Run: func(ctx context.Context) error {
					t.Sink.SetDown(true)
					return nil
				},
			},
			{
				Kind:   "exchange-flow",
				Target: "offer-service",
				Params: map[string]interface{}{"exchanges": exchanges},
				Run: func(ctx context.Context) error {
					for i := 0; i < exchanges; i++ {
						if err := t.completeExchange(ctx); err != nil {
							failed.Add(1)
							t.logger.Warn("Exchange failed during notification outage")
						}
					}
					return nil
				},
			},
		},
		Restore: []Step{
			{
				Kind:   "restore-service",
				Target: "notification-sink",
				Run: func(ctx context.Context) error {
					t.Sink.SetDown(false)
					return nil
				},
			},
		},
		Checks: append(ledgerChecks(), Check{
			Invariant: "failed_exchanges",
			Holds:     func(v float64) bool { return v == 0 },
			Message:   "No exchange should fail because notifications are down",
		}),
		Window:      t.Window,
		BlastRadius: 0.3,
	}
}

func (t *Target) completeExchange(ctx context.Context) error {
	p, err := t.seedPair(ctx, 2)
	if err != nil {
		return err
	}
	o, err := t.offerFor(ctx, p, 2)
	if err != nil {
		return err
	}
	if _, err := t.Offers.AcceptOffer(ctx, o.ID, p.seller); err != nil {
		return err
	}
	o, err = t.Offers.ConfirmTransaction(ctx, o.ID, p.buyer)
	if err != nil {
		return err
	}
	if o.Status != market.OfferCompleted {
		return fmt.Errorf("offer %s ended in %s", o.ID, o.Status)
	}
	return nil
}

// StorageFaultExperiment slows every transaction down by latency and fails
// every failEvery-th one while workers run offer lifecycles.
func (t *Target) StorageFaultExperiment(latency time.Duration, failEvery, workers int) Experiment {
	var unexpected atomic.Int64

	return Experiment{
		Name:       "storage-faults",
		Hypothesis: "Failed and slow transactions leave no partial ledger state behind",
		Invariants: append(t.ledgerInvariants(), Invariant{
			Name: "unexpected_errors",
			Measure: func(ctx context.Context) (float64, error) {
				return float64(unexpected.Load()), nil
			},
			Want: Zero,
		}),
		Inject: []Step{
			{
				Kind:   "inject-latency",
				Target: "exchange-store",
				Params: map[string]interface{}{
					"latency":    latency,
					"fail_every": failEvery,
				},
				Run: func(ctx context.Context) error {
					t.Gateway.InjectLatency(latency)
					t.Gateway.FailEvery(failEvery)
					return nil
				},
			},
			{
				Kind:   "concurrent-requests",
				Target: "offer-service",
				Params: map[string]interface{}{"workers": workers},
				Run: func(ctx context.Context) error {
					var wg sync.WaitGroup
					for i := 0; i < workers; i++ {
						wg.Add(1)
						go func(i int) {
							defer wg.Done()
							if err := t.faultyLifecycle(ctx, i%2 == 0); err != nil && !errors.Is(err, ErrInjected) {
								unexpected.Add(1)
							}
						}(i)
					}
					wg.Wait()
					return nil
				},
			},
		},
		Restore: []Step{
			{
				Kind:   "remove-latency",
				Target: "exchange-store",
				Run: func(ctx context.Context) error {
					t.Gateway.Reset()
					return nil
				},
			},
		},
		Checks: append(ledgerChecks(), Check{
			Invariant: "unexpected_errors",
			Holds:     func(v float64) bool { return v == 0 },
			Message:   "Only injected faults should surface to callers",
		}),
		Window:      t.Window,
		BlastRadius: 1.0,
	}
}

// faultyLifecycle creates an offer and either completes or withdraws it. A
// failed accept falls back to withdrawing, which PENDING always allows.
func (t *Target) faultyLifecycle(ctx context.Context, complete bool) error {
	p, err := t.seedPair(ctx, 3)
	if err != nil {
		return err
	}
	o, err := t.offerFor(ctx, p, 2)
	if err != nil {
		return err
	}

	if complete {
		if _, err := t.Offers.AcceptOffer(ctx, o.ID, p.seller); err != nil {
			if !errors.Is(err, ErrInjected) {
				return err
			}
		} else {
			_, err := t.Offers.ConfirmTransaction(ctx, o.ID, p.buyer)
			return err
		}
	}
	_, err = t.Offers.Transition(ctx, o.ID, market.OfferWithdrawn, p.buyer)
	return err
}
