package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/engine"
	"github.com/warp/workforce-engine/pipeline"
)

func TestHub_EmitUpdatesLatestStatus(t *testing.T) {
	// GIVEN a hub with no events yet
	hub := NewHub()
	assert.Empty(t, hub.Status())

	// WHEN a progress event is emitted
	ev := pipeline.Event{ScenarioID: "scn-1", Kind: pipeline.KindStageComplete, Year: 2026, Stage: pipeline.StageFoundation, At: time.Now()}
	hub.Emit(ev)

	// THEN Status reflects it as the scenario's latest
	status := hub.Status()
	require.Contains(t, status, engine.ScenarioID("scn-1"))
	assert.Equal(t, pipeline.KindStageComplete, status["scn-1"].Kind)
}

func TestHub_SubscribeReceivesSubsequentEvents(t *testing.T) {
	// GIVEN a subscriber registered before any events arrive
	hub := NewHub()
	ch, unsubscribe := hub.subscribe()
	defer unsubscribe()

	// WHEN an event is emitted
	ev := pipeline.Event{ScenarioID: "scn-1", Kind: pipeline.KindComplete, Year: 2026}
	hub.Emit(ev)

	// THEN the subscriber receives it
	select {
	case got := <-ch:
		assert.Equal(t, pipeline.KindComplete, got.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.subscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
}
