/*
Package progress relays pipeline.Event progress notifications to
HTTP observers: a per-scenario "last known status" snapshot for
GET /status, and a live fan-out of every event for GET /events (SSE).

GROUNDED ON:
  api/server.go's chi router + middleware stack (Logger, Recoverer,
  RequestID, cors.Handler), repurposed from the teacher's full
  employee/policy/scenario CRUD API to a read-only status surface -
  the orchestrator itself is the only writer (§6 "no mutation
  endpoints"). api/scheduler.go's run-record map (guarded by a mutex,
  read by a status handler) is the same shape Hub.latest uses here.
*/
package progress

import (
	"sync"

	"github.com/warp/workforce-engine/engine"
	"github.com/warp/workforce-engine/pipeline"
)

// Hub collects progress events from one or more running orchestrators
// and serves them to HTTP subscribers. It has no knowledge of the
// simulation itself - Hub.Emit is handed to a pipeline.Orchestrator or
// batch.Runner as its pipeline.Emitter.
type Hub struct {
	mu       sync.RWMutex
	latest   map[engine.ScenarioID]pipeline.Event
	subs     map[chan pipeline.Event]struct{}
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{
		latest: make(map[engine.ScenarioID]pipeline.Event),
		subs:   make(map[chan pipeline.Event]struct{}),
	}
}

// Emit records ev as the scenario's latest status and fans it out to
// every live SSE subscriber. Matches pipeline.Emitter's signature so
// a Hub can be passed directly as an orchestrator's Emit.
func (h *Hub) Emit(ev pipeline.Event) {
	h.mu.Lock()
	h.latest[ev.ScenarioID] = ev
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop the event rather than block the
			// orchestrator's hot path. The subscriber can always poll
			// GET /status for the current state it missed.
		}
	}
	h.mu.Unlock()
}

// Status returns the most recently observed event per scenario.
func (h *Hub) Status() map[engine.ScenarioID]pipeline.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[engine.ScenarioID]pipeline.Event, len(h.latest))
	for k, v := range h.latest {
		out[k] = v
	}
	return out
}

// subscribe registers a new SSE listener and returns its channel plus
// an unsubscribe func.
func (h *Hub) subscribe() (chan pipeline.Event, func()) {
	ch := make(chan pipeline.Event, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}
}
