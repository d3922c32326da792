/*
progress.go - Progress protocol (§6 "Progress protocol").

GROUNDED ON:
  api/scheduler.go's log.Printf("[Scheduler] ...") pattern, generalized
  from log lines into a typed event a caller can also subscribe to (the
  internal/progress HTTP server relays these over SSE).
*/
package pipeline

import (
	"time"

	"github.com/warp/workforce-engine/engine"
)

// Kind enumerates the progress event kinds named in §6.
type Kind string

const (
	KindStatusUpdate    Kind = "status_update"
	KindStageComplete   Kind = "stage_complete"
	KindYearComplete    Kind = "year_complete"
	KindEventGenerated  Kind = "event_generated"
	KindError           Kind = "error"
	KindComplete        Kind = "complete"
)

// Event is one structured progress notification.
type Event struct {
	Kind       Kind
	ScenarioID engine.ScenarioID
	Year       int
	Stage      Stage
	Message    string
	RowCount   int
	At         time.Time
	Err        error
}

// Emitter receives progress events. A nil Emitter is valid: Orchestrator
// treats it as "no subscriber" and skips emission.
type Emitter func(Event)
