package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tenderwatch/internal"
	"tenderwatch/internal/config"
)

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot

	resultID     string
	resultTender internal.Tender
	resultErr    error
	resultCalls  int
}

func (r *recorder) update(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) result(id string, tender internal.Tender, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resultID = id
	r.resultTender = tender
	r.resultErr = err
	r.resultCalls++
}

func (r *recorder) snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func (r *recorder) results() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resultCalls
}

func testConfig() config.Config {
	cfg, _ := config.Load()
	cfg.ProgressTickMs = 2
	cfg.ProgressSettleMs = 2
	cfg.ProgressMaxStep = 15
	return cfg
}

func TestProgressClimbsButNeverCompletesOnItsOwn(t *testing.T) {
	rec := &recorder{}
	gate := make(chan struct{})
	analyzed := internal.Tender{
		ID:                "t1",
		Status:            internal.StatusAnalyzed,
		UniversalMetadata: &internal.UniversalMetadata{},
	}
	analyze := func(ctx context.Context, id string) (internal.Tender, error) {
		<-gate
		return analyzed, nil
	}

	m := NewMachine(testConfig(), analyze, rec.update, rec.result)
	m.step = func(max int) int { return 12 }

	require.True(t, m.Start(context.Background(), "t1"))
	require.Equal(t, StateRequesting, m.Snapshot().State)
	require.Equal(t, 10, rec.snapshots()[0].Percent)
	require.Equal(t, "Connecting...", rec.snapshots()[0].Message)

	// Let the ticker run long enough to hit the ceiling.
	require.Eventually(t, func() bool {
		return m.Snapshot().Percent == 90
	}, time.Second, time.Millisecond)

	last := 0
	for _, s := range rec.snapshots() {
		if s.State != StateRequesting {
			continue
		}
		require.GreaterOrEqual(t, s.Percent, last)
		require.LessOrEqual(t, s.Percent, 90)
		last = s.Percent
	}

	close(gate)
	require.Eventually(t, func() bool {
		return rec.results() == 1
	}, time.Second, time.Millisecond)

	snaps := rec.snapshots()
	var sawComplete bool
	for _, s := range snaps {
		if s.State == StateCompleted {
			sawComplete = true
			require.Equal(t, 100, s.Percent)
			require.Equal(t, "Complete", s.Message)
		}
	}
	require.True(t, sawComplete)
	require.Equal(t, StateIdle, snaps[len(snaps)-1].State)
	require.Equal(t, "t1", rec.resultID)
	require.NoError(t, rec.resultErr)
	require.True(t, internal.HasDeepData(rec.resultTender))
}

func TestPhaseMessages(t *testing.T) {
	require.Equal(t, "Extracting document text", phaseMessage(10))
	require.Equal(t, "Extracting document text", phaseMessage(29))
	require.Equal(t, "Analyzing with AI", phaseMessage(30))
	require.Equal(t, "Analyzing with AI", phaseMessage(49))
	require.Equal(t, "Processing lots and items", phaseMessage(50))
	require.Equal(t, "Processing lots and items", phaseMessage(69))
	require.Equal(t, "Finalizing extraction", phaseMessage(70))
	require.Equal(t, "Finalizing extraction", phaseMessage(90))
}

func TestFailureTearsDownImmediately(t *testing.T) {
	rec := &recorder{}
	analyze := func(ctx context.Context, id string) (internal.Tender, error) {
		return internal.Tender{}, errors.New("extraction pipeline crashed")
	}

	m := NewMachine(testConfig(), analyze, rec.update, rec.result)
	require.True(t, m.Start(context.Background(), "t1"))

	require.Eventually(t, func() bool {
		return rec.results() == 1
	}, time.Second, time.Millisecond)

	require.Error(t, rec.resultErr)
	snaps := rec.snapshots()
	var sawFailed bool
	for _, s := range snaps {
		require.NotEqual(t, StateCompleted, s.State)
		if s.State == StateFailed {
			sawFailed = true
			require.Contains(t, s.Message, "extraction pipeline crashed")
		}
	}
	require.True(t, sawFailed)
	require.Equal(t, StateIdle, m.Snapshot().State)
}

func TestCancelDropsLateResult(t *testing.T) {
	rec := &recorder{}
	gate := make(chan struct{})
	analyze := func(ctx context.Context, id string) (internal.Tender, error) {
		<-gate
		return internal.Tender{ID: id}, nil
	}

	m := NewMachine(testConfig(), analyze, rec.update, rec.result)
	require.True(t, m.Start(context.Background(), "t1"))
	require.False(t, m.Start(context.Background(), "t2"), "second start while busy")

	m.Cancel()
	require.Equal(t, StateIdle, m.Snapshot().State)

	close(gate)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, rec.results(), "cancelled run must not deliver")
}

func TestTriggerRejectedDuringSettleWindow(t *testing.T) {
	rec := &recorder{}
	gate := make(chan struct{})
	analyze := func(ctx context.Context, id string) (internal.Tender, error) {
		<-gate
		return internal.Tender{
			ID:                id,
			Status:            internal.StatusAnalyzed,
			UniversalMetadata: &internal.UniversalMetadata{},
		}, nil
	}
	cfg := testConfig()
	cfg.ProgressSettleMs = 60
	m := NewMachine(cfg, analyze, rec.update, rec.result)

	require.True(t, m.Start(context.Background(), "t1"))
	close(gate)
	require.Eventually(t, func() bool {
		return m.Snapshot().State == StateCompleted
	}, time.Second, time.Millisecond)

	// The settle window is Completed, not Idle; a trigger accepted here would
	// bump the generation and swallow the finished run's delivery.
	require.False(t, m.Start(context.Background(), "t2"))
	require.False(t, m.MaybeAutoStart(context.Background(), internal.Tender{ID: "t3", Status: internal.StatusListed}))

	require.Eventually(t, func() bool {
		return rec.results() == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, "t1", rec.resultID)
	require.NoError(t, rec.resultErr)
	require.True(t, internal.HasDeepData(rec.resultTender))

	require.Eventually(t, func() bool {
		return m.Snapshot().State == StateIdle
	}, time.Second, time.Millisecond)
	require.True(t, m.Start(context.Background(), "t2"))
}

func TestMaybeAutoStartOncePerTender(t *testing.T) {
	rec := &recorder{}
	analyze := func(ctx context.Context, id string) (internal.Tender, error) {
		return internal.Tender{ID: id, Status: internal.StatusAnalyzed}, nil
	}
	m := NewMachine(testConfig(), analyze, rec.update, rec.result)

	listed := internal.Tender{ID: "t1", Status: internal.StatusListed}
	require.True(t, m.MaybeAutoStart(context.Background(), listed))

	require.Eventually(t, func() bool {
		return m.Snapshot().State == StateIdle && rec.results() == 1
	}, time.Second, time.Millisecond)

	// The same tender never auto-triggers twice in a session.
	require.False(t, m.MaybeAutoStart(context.Background(), listed))

	analyzedTender := internal.Tender{
		ID:                "t2",
		Status:            internal.StatusAnalyzed,
		UniversalMetadata: &internal.UniversalMetadata{},
	}
	require.False(t, m.MaybeAutoStart(context.Background(), analyzedTender))
}
