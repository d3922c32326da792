/*
server.go - read-only progress HTTP router (§6 "progress protocol").

ROUTER: chi, same middleware stack as the teacher's api/server.go
  (Logger, Recoverer, RequestID, CORS for a local dev UI origin), minus
  every mutation route - this router only ever reads from a Hub.

ROUTES:
  GET /status        current per-scenario stage/year snapshot, JSON
  GET /events         SSE stream of every {status_update|stage_complete|
                      year_complete|event_generated|error|complete}
                      progress event as it happens
*/
package progress

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/workforce-engine/engine"
	"github.com/warp/workforce-engine/pipeline"
)

// NewRouter builds the read-only progress router backed by hub.
func NewRouter(hub *Hub) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/status", statusHandler(hub))
	r.Get("/events", eventsHandler(hub))

	return r
}

type statusRow struct {
	ScenarioID engine.ScenarioID `json:"scenario_id"`
	Kind       pipeline.Kind     `json:"kind"`
	Year       int               `json:"year"`
	Stage      pipeline.Stage    `json:"stage"`
	Message    string            `json:"message"`
	RowCount   int               `json:"row_count,omitempty"`
	At         time.Time         `json:"at"`
}

func statusHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := hub.Status()
		rows := make([]statusRow, 0, len(snapshot))
		for _, ev := range snapshot {
			rows = append(rows, statusRow{
				ScenarioID: ev.ScenarioID, Kind: ev.Kind, Year: ev.Year,
				Stage: ev.Stage, Message: ev.Message, RowCount: ev.RowCount, At: ev.At,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}

func eventsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch, unsubscribe := hub.subscribe()
		defer unsubscribe()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, open := <-ch:
				if !open {
					return
				}
				data, err := json.Marshal(statusRow{
					ScenarioID: ev.ScenarioID, Kind: ev.Kind, Year: ev.Year,
					Stage: ev.Stage, Message: ev.Message, RowCount: ev.RowCount, At: ev.At,
				})
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
				flusher.Flush()
			}
		}
	}
}
