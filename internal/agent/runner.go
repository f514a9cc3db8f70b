package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

const defaultRunnerTTL = time.Minute

// agentEntry wraps a cached agent with a timestamp for TTL-based expiration.
type agentEntry struct {
	agent    *store.AgentData
	cachedAt time.Time
}

// Runner resolves agents by name and runs them on a shared Loop. It tracks
// in-flight runs so they can be aborted.
type Runner struct {
	loop   atomic.Pointer[Loop]
	agents store.AgentStore
	slots  atomic.Pointer[semaphore.Weighted] // nil = unlimited

	mu         sync.RWMutex
	cache      map[string]*agentEntry
	ttl        time.Duration
	activeRuns sync.Map // runID → *ActiveRun
}

func NewRunner(loop *Loop, agents store.AgentStore) *Runner {
	r := &Runner{
		agents: agents,
		cache:  make(map[string]*agentEntry),
		ttl:    defaultRunnerTTL,
	}
	r.loop.Store(loop)
	return r
}

// SetLoop swaps the Loop used by subsequent runs. In-flight runs finish on
// the Loop they started with.
func (r *Runner) SetLoop(loop *Loop) {
	r.loop.Store(loop)
}

// SetTTL changes how long resolved agents stay cached. 0 disables caching.
func (r *Runner) SetTTL(ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttl = ttl
}

// SetMaxConcurrent caps how many runs execute at once; further runs wait
// for a slot until their context ends. n <= 0 removes the cap.
func (r *Runner) SetMaxConcurrent(n int) {
	if n <= 0 {
		r.slots.Store(nil)
		return
	}
	r.slots.Store(semaphore.NewWeighted(int64(n)))
}

// Agent returns the named agent, from cache when fresh.
func (r *Runner) Agent(ctx context.Context, name string) (*store.AgentData, error) {
	r.mu.RLock()
	entry, ok := r.cache[name]
	ttl := r.ttl
	r.mu.RUnlock()

	if ok && ttl > 0 && time.Since(entry.cachedAt) < ttl {
		return entry.agent, nil
	}

	ag, err := r.agents.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}
	if ttl > 0 {
		r.mu.Lock()
		r.cache[name] = &agentEntry{agent: ag, cachedAt: time.Now()}
		r.mu.Unlock()
	}
	return ag, nil
}

// Invalidate drops a cached agent, e.g. after an edit.
func (r *Runner) Invalidate(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, name)
}

// Run resolves the named agent and executes one run with input.
func (r *Runner) Run(ctx context.Context, name, input string) (*RunResult, error) {
	ag, err := r.Agent(ctx, name)
	if err != nil {
		return nil, err
	}
	if slots := r.slots.Load(); slots != nil {
		if err := slots.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for run slot: %w", err)
		}
		defer slots.Release(1)
	}
	runID := store.GenNewID()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.activeRuns.Store(runID, &ActiveRun{
		RunID:     runID,
		AgentName: ag.Name,
		StartedAt: time.Now(),
		cancel:    cancel,
	})
	defer r.activeRuns.Delete(runID)

	return r.loop.Load().Run(ctx, RunRequest{Agent: ag, Input: input, RunID: runID})
}

// ActiveRun tracks a running invocation so it can be aborted.
type ActiveRun struct {
	RunID     uuid.UUID `json:"runId"`
	AgentName string    `json:"agent"`
	StartedAt time.Time `json:"startedAt"`
	cancel    context.CancelFunc
}

// ActiveRuns lists in-flight runs, oldest first.
func (r *Runner) ActiveRuns() []ActiveRun {
	var runs []ActiveRun
	r.activeRuns.Range(func(_, val any) bool {
		runs = append(runs, *val.(*ActiveRun))
		return true
	})
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs
}

// AbortRun cancels a run by ID. Returns true if the run was found.
func (r *Runner) AbortRun(runID uuid.UUID) bool {
	val, ok := r.activeRuns.LoadAndDelete(runID)
	if !ok {
		return false
	}
	val.(*ActiveRun).cancel()
	return true
}
