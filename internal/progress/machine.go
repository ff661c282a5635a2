// Package progress drives the analysis lifecycle for a single tender: a
// simulated percentage while the request is in flight, then the real result.
package progress

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"tenderwatch/internal"
	"tenderwatch/internal/config"
)

// State is the lifecycle phase of an analysis.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is what the view renders: phase, percentage and status line.
type Snapshot struct {
	TenderID string
	State    State
	Percent  int
	Message  string
}

// AnalyzeFunc performs the actual server call. It blocks until the backend
// finishes the extraction.
type AnalyzeFunc func(ctx context.Context, id string) (internal.Tender, error)

// ResultFunc receives the terminal outcome, after the settle delay on
// success and immediately on failure.
type ResultFunc func(id string, tender internal.Tender, err error)

// Machine runs at most one analysis at a time. Every async callback carries
// the generation it was started under; Cancel bumps the generation, so
// callbacks from an abandoned run find themselves outdated and do nothing.
type Machine struct {
	cfg      config.Config
	analyze  AnalyzeFunc
	onUpdate func(Snapshot)
	onResult ResultFunc

	mu         sync.Mutex
	state      State
	tenderID   string
	percent    int
	message    string
	generation uint64
	triggered  map[string]bool

	// step is swappable for deterministic tests.
	step func(max int) int
}

func NewMachine(cfg config.Config, analyze AnalyzeFunc, onUpdate func(Snapshot), onResult ResultFunc) *Machine {
	return &Machine{
		cfg:       cfg,
		analyze:   analyze,
		onUpdate:  onUpdate,
		onResult:  onResult,
		triggered: make(map[string]bool),
		step:      func(max int) int { return 1 + rand.Intn(max) },
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{TenderID: m.tenderID, State: m.state, Percent: m.percent, Message: m.message}
}

// Start begins an analysis for id. It reports false unless the machine is
// Idle: a run in flight, and also the settle window after a completion, must
// finish undisturbed. Callers wanting to switch tenders call Cancel first.
func (m *Machine) Start(ctx context.Context, id string) bool {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return false
	}
	m.generation++
	gen := m.generation
	m.state = StateRequesting
	m.tenderID = id
	m.percent = 10
	m.message = "Connecting..."
	m.triggered[id] = true
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	go m.run(ctx, gen, id)
	return true
}

// MaybeAutoStart triggers an analysis for a freshly listed tender that has no
// deep data yet, at most once per tender per session.
func (m *Machine) MaybeAutoStart(ctx context.Context, t internal.Tender) bool {
	if !internal.ShouldAutoAnalyze(t) {
		return false
	}
	m.mu.Lock()
	if m.triggered[t.ID] || m.state != StateIdle {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()
	return m.Start(ctx, t.ID)
}

// Cancel abandons the current run. The server request keeps going; its
// result is simply dropped when it lands.
func (m *Machine) Cancel() {
	m.mu.Lock()
	m.generation++
	m.resetLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
}

func (m *Machine) run(ctx context.Context, gen uint64, id string) {
	type result struct {
		tender internal.Tender
		err    error
	}
	done := make(chan result, 1)
	go func() {
		tender, err := m.analyze(ctx, id)
		done <- result{tender, err}
	}()

	ticker := time.NewTicker(time.Duration(m.cfg.ProgressTickMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !m.advance(gen) {
				return
			}
		case res := <-done:
			if res.err != nil {
				m.fail(gen, id, res.err)
			} else {
				m.complete(gen, id, res.tender)
			}
			return
		case <-ctx.Done():
			m.fail(gen, id, ctx.Err())
			return
		}
	}
}

// advance bumps the simulated percentage. It never reaches 100 on its own;
// only a server response can finish the bar.
func (m *Machine) advance(gen uint64) bool {
	m.mu.Lock()
	if m.generation != gen || m.state != StateRequesting {
		m.mu.Unlock()
		return false
	}
	m.percent += m.step(m.cfg.ProgressMaxStep)
	if m.percent > 90 {
		m.percent = 90
	}
	m.message = phaseMessage(m.percent)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
	return true
}

func (m *Machine) complete(gen uint64, id string, tender internal.Tender) {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.state = StateCompleted
	m.percent = 100
	m.message = "Complete"
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)

	// Hold the full bar briefly so the completion registers before the view
	// swaps to the analysed record.
	time.Sleep(time.Duration(m.cfg.ProgressSettleMs) * time.Millisecond)

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
	if m.onResult != nil {
		m.onResult(id, tender, nil)
	}
}

func (m *Machine) fail(gen uint64, id string, err error) {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.state = StateFailed
	m.message = "Analysis failed: " + err.Error()
	snap := m.snapshotLocked()
	m.resetLocked()
	idle := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
	m.emit(idle)
	if m.onResult != nil {
		m.onResult(id, internal.Tender{}, err)
	}
}

func (m *Machine) resetLocked() {
	m.state = StateIdle
	m.tenderID = ""
	m.percent = 0
	m.message = ""
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{TenderID: m.tenderID, State: m.state, Percent: m.percent, Message: m.message}
}

func (m *Machine) emit(snap Snapshot) {
	if m.onUpdate != nil {
		m.onUpdate(snap)
	}
}

func phaseMessage(percent int) string {
	switch {
	case percent < 30:
		return "Extracting document text"
	case percent < 50:
		return "Analyzing with AI"
	case percent < 70:
		return "Processing lots and items"
	default:
		return "Finalizing extraction"
	}
}
