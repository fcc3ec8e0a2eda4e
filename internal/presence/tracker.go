// Package presence keeps a live roster of the actors writing to the
// dependency graph.
//
// The Tracker is an audit sink: every committed create, update or delete
// updates the writing actor's entry. A background sweeper evicts actors
// that have been idle longer than a threshold so the roster stays bounded.
package presence

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/plangraph/internal/audit"
)

// anonymous is the roster name for writes that carry no actor.
const anonymous = "anonymous"

// Entry is one actor's recent activity.
type Entry struct {
	Actor          string    `json:"actor"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	LastEvent      string    `json:"last_event"`           // e.g. "create_dependency"
	LastDependency string    `json:"last_dependency"`      // id of the edge last written
	Writes         int64     `json:"writes"`               // committed writes seen
	Created        int64     `json:"created"`              // of which creates
	Deleted        int64     `json:"deleted"`              // of which deletes
	IdleSecs       float64   `json:"idle_secs"`            // seconds since last write
	RequestID      string    `json:"request_id,omitempty"` // request of the last write
}

// SweepConfig configures the background sweeper.
type SweepConfig struct {
	// EvictAfter is how long an actor may stay idle before it is dropped.
	// Default: 1 hour.
	EvictAfter time.Duration

	// Interval is how often the sweeper runs.
	// Default: 1 minute.
	Interval time.Duration
}

// Tracker maintains an in-memory roster of writing actors.
type Tracker struct {
	mu     sync.RWMutex
	actors map[string]*actorState
	now    func() time.Time

	sweepStop chan struct{}
	sweepDone chan struct{}
}

type actorState struct {
	firstSeen time.Time
	lastSeen  time.Time
	lastEvent string
	lastDep   string
	requestID string
	writes    int64
	created   int64
	deleted   int64
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		actors: make(map[string]*actorState),
		now:    time.Now,
	}
}

// Record implements audit.Sink. It never fails.
func (t *Tracker) Record(_ context.Context, e audit.Entry) error {
	actor := e.Actor
	if actor == "" {
		actor = anonymous
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.actors[actor]
	if !ok {
		state = &actorState{firstSeen: now}
		t.actors[actor] = state
	}
	state.lastSeen = now
	state.lastEvent = e.EventType
	state.lastDep = e.EntityID
	state.requestID = e.RequestID
	state.writes++
	switch e.Action {
	case audit.ActionCreated:
		state.created++
	case audit.ActionDeleted:
		state.deleted++
	}
	return nil
}

// Roster returns every tracked actor, most recently active first. Actors
// idle for longer than staleThreshold are left out; pass 0 to include all.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.actors))
	for actor, state := range t.actors {
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, Entry{
			Actor:          actor,
			FirstSeen:      state.firstSeen,
			LastSeen:       state.lastSeen,
			LastEvent:      state.lastEvent,
			LastDependency: state.lastDep,
			Writes:         state.writes,
			Created:        state.created,
			Deleted:        state.deleted,
			IdleSecs:       idle.Seconds(),
			RequestID:      state.requestID,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].LastSeen.After(entries[j].LastSeen)
		}
		return entries[i].Actor < entries[j].Actor
	})
	return entries
}

// StartSweeper launches a goroutine that periodically evicts idle actors.
// Call Stop to shut it down.
func (t *Tracker) StartSweeper(cfg *SweepConfig) {
	if cfg == nil {
		cfg = &SweepConfig{}
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = time.Hour
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}

	t.sweepStop = make(chan struct{})
	t.sweepDone = make(chan struct{})

	go t.sweepLoop(cfg)
	slog.Info("presence: sweeper started", "evict_after", cfg.EvictAfter, "interval", cfg.Interval)
}

// Stop shuts down the sweeper goroutine.
func (t *Tracker) Stop() {
	if t.sweepStop != nil {
		close(t.sweepStop)
		<-t.sweepDone
		t.sweepStop = nil
		t.sweepDone = nil
	}
}

func (t *Tracker) sweepLoop(cfg *SweepConfig) {
	defer close(t.sweepDone)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.sweepStop:
			return
		case <-ticker.C:
			t.sweep(cfg.EvictAfter)
		}
	}
}

// sweep drops actors idle for longer than evictAfter and returns their names.
func (t *Tracker) sweep(evictAfter time.Duration) []string {
	now := t.now()
	var evicted []string

	t.mu.Lock()
	for actor, state := range t.actors {
		if now.Sub(state.lastSeen) > evictAfter {
			delete(t.actors, actor)
			evicted = append(evicted, actor)
		}
	}
	t.mu.Unlock()

	sort.Strings(evicted)
	for _, actor := range evicted {
		slog.Debug("presence: actor evicted", "actor", actor)
	}
	return evicted
}
