// internal/chaos/chaos_test.go
package chaos

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"barternexus/internal/market"
	"barternexus/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sampleInterval = 2 * time.Millisecond

func newMemoryTarget() (*Target, *memory.Store) {
	store := memory.NewStore()
	target := NewTarget(store, store, NewMemoryInspector(store), nil, zap.NewNop())
	target.Window = 20 * time.Millisecond
	return target, store
}

func TestBoundHolds(t *testing.T) {
	tests := []struct {
		op    Comparison
		value float64
		want  bool
	}{
		{Above, 2, true},
		{Above, 1, false},
		{Below, 0, true},
		{AtLeast, 1, true},
		{AtMost, 2, false},
		{Equal, 1, true},
		{"!=", 1, false},
	}
	for _, tt := range tests {
		got := Bound{Op: tt.op, Value: 1}.Holds(tt.value)
		assert.Equal(t, tt.want, got, "%v %s 1", tt.value, tt.op)
	}
}

func TestRun_BrokenBaselineAborts(t *testing.T) {
	engine := NewEngine(zap.NewNop(), sampleInterval)
	injected := false

	report, err := engine.Run(context.Background(), Experiment{
		Name: "broken",
		Invariants: []Invariant{
			{Name: "errors", Measure: func(ctx context.Context) (float64, error) { return 3, nil }, Want: Zero},
			{Name: "unreadable", Measure: func(ctx context.Context) (float64, error) { return 0, errors.New("timeout") }, Want: Zero},
			{Name: "fine", Measure: func(ctx context.Context) (float64, error) { return 0, nil }, Want: Zero},
		},
		Inject: []Step{{Run: func(ctx context.Context) error {
			injected = true
			return nil
		}}},
		Window: 10 * time.Millisecond,
	})

	assert.ErrorIs(t, err, ErrBaselineBroken)
	assert.False(t, report.BaselineHeld)
	require.Len(t, report.Breaches, 2)
	assert.Equal(t, 3.0, report.Breaches[0].Got)
	assert.Equal(t, -1.0, report.Breaches[1].Got)
	assert.False(t, injected)
	assert.Empty(t, engine.Reports())
}

func TestRun_TracksBreachesAndRecovery(t *testing.T) {
	engine := NewEngine(zap.NewNop(), sampleInterval)
	var reads atomic.Int64
	restored := false

	report, err := engine.Run(context.Background(), Experiment{
		Name: "recovering",
		Invariants: []Invariant{{
			Name: "lag",
			Measure: func(ctx context.Context) (float64, error) {
				// Healthy for the baseline, degraded for the next two
				// samples, healthy afterwards.
				n := reads.Add(1)
				if n == 2 || n == 3 {
					return 10, nil
				}
				return 0, nil
			},
			Want: Bound{Op: Below, Value: 5},
		}},
		Inject: []Step{{Target: "db", Run: func(ctx context.Context) error {
			return errors.New("proxy unavailable")
		}}},
		Restore: []Step{{Run: func(ctx context.Context) error {
			restored = true
			return nil
		}}},
		Checks: []Check{{
			Invariant: "lag",
			Holds:     func(v float64) bool { return v < 5 },
			Message:   "lag recovers",
		}},
		Window: 60 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, report.BaselineHeld)
	assert.True(t, report.HypothesisHeld)
	assert.True(t, restored)
	assert.Len(t, report.Breaches, 2)
	require.NotNil(t, report.RecoveredAfter)
	require.NotEmpty(t, report.StepErrors)
	assert.Equal(t, "db", report.StepErrors[0].Component)
	assert.Len(t, engine.Reports(), 1)
}

func TestRun_UnsampledInvariantFailsCheck(t *testing.T) {
	engine := NewEngine(zap.NewNop(), sampleInterval)

	report, err := engine.Run(context.Background(), Experiment{
		Name: "no-samples",
		Checks: []Check{{
			Invariant: "missing",
			Holds:     func(v float64) bool { return true },
			Message:   "missing invariant",
		}},
		Window: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.False(t, report.HypothesisHeld)
	assert.Equal(t, []string{"missing invariant (never sampled)"}, report.FailedChecks)
}

func TestExperimentsHoldAgainstMemoryStore(t *testing.T) {
	target, store := newMemoryTarget()
	engine := NewEngine(zap.NewNop(), sampleInterval)
	engine.RegisterAll(target)

	for _, exp := range engine.Experiments() {
		t.Run(exp.Name, func(t *testing.T) {
			report, err := engine.Run(context.Background(), exp)
			require.NoError(t, err)
			assert.Empty(t, report.StepErrors)
			assert.Empty(t, report.FailedChecks)
			assert.True(t, report.HypothesisHeld)
		})
	}

	for _, item := range store.Items() {
		assert.True(t, item.Consistent(), "item %s", item.ID)
	}
	assert.Positive(t, target.Gateway.Injected())
	assert.Positive(t, target.Sink.Dropped())
}

func TestCompetingOffersReserveExactlyTheStock(t *testing.T) {
	target, store := newMemoryTarget()
	engine := NewEngine(zap.NewNop(), sampleInterval)

	report, err := engine.Run(context.Background(), target.CompetingOffersExperiment(3, 12))
	require.NoError(t, err)
	require.True(t, report.HypothesisHeld)

	offers := store.Offers()
	assert.Len(t, offers, 3)
	for _, o := range offers {
		assert.Equal(t, market.OfferPending, o.Status)
	}
}

func TestGameDay(t *testing.T) {
	target, _ := newMemoryTarget()
	core, logs := observer.New(zap.InfoLevel)
	engine := NewEngine(zap.New(core), sampleInterval)

	failed, err := engine.RunGameDay(context.Background(), GameDay{
		Name:      "exchange resilience",
		Date:      time.Now(),
		Scenarios: []Experiment{target.AcceptWithdrawRaceExperiment(4), target.NotificationOutageExperiment(2)},
		Pause:     time.Millisecond,
	})
	require.NoError(t, err)

	assert.Zero(t, failed)
	assert.Equal(t, 2, logs.FilterMessage("Hypothesis held").Len())
}

func TestGameDay_CountsAbortedRuns(t *testing.T) {
	engine := NewEngine(zap.NewNop(), sampleInterval)
	broken := Experiment{
		Name:       "broken",
		Invariants: []Invariant{{Name: "errors", Measure: func(ctx context.Context) (float64, error) { return 1, nil }, Want: Zero}},
		Window:     time.Millisecond,
	}

	failed, err := engine.RunGameDay(context.Background(), GameDay{Name: "aborts", Scenarios: []Experiment{broken, broken}})
	require.NoError(t, err)
	assert.Equal(t, 2, failed)
}

func TestFaultyGateway(t *testing.T) {
	store := memory.NewStore()
	gateway := NewFaultyGateway(store)
	noop := func(ctx context.Context, tx market.Tx) error { return nil }

	gateway.FailEvery(2)
	assert.NoError(t, gateway.WithinTx(context.Background(), noop))
	assert.ErrorIs(t, gateway.WithinTx(context.Background(), noop), ErrInjected)
	assert.Equal(t, int64(1), gateway.Injected())

	gateway.Reset()
	gateway.InjectLatency(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, gateway.WithinTx(ctx, noop), context.DeadlineExceeded)
}

func TestMemoryInspectorDetectsCorruption(t *testing.T) {
	store := memory.NewStore()
	inspector := NewMemoryInspector(store)
	ctx := context.Background()

	// Written behind the ledger's back: no event, available above stock.
	err := store.WithinTx(ctx, func(ctx context.Context, tx market.Tx) error {
		return tx.Items().Insert(ctx, &market.Item{ID: uuid.New(), Name: "Lamp", StockQuantity: 1, AvailableQuantity: 2})
	})
	require.NoError(t, err)

	inconsistent, err := inspector.InconsistentItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, inconsistent)

	unbalanced, err := inspector.UnbalancedItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, unbalanced)

	drift, err := inspector.AuditDrift(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, drift)
}

func TestDirectory(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()
	d.Add(id)

	ok, err := d.Exists(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
