package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/model"
)

func TestHubFanOutPerNotebook(t *testing.T) {
	hub := NewHub()
	chA, cancelA := hub.Subscribe("nb-a")
	defer cancelA()
	chB, cancelB := hub.Subscribe("nb-b")
	defer cancelB()

	hub.Publish(Event{JobID: "j1", NotebookID: "nb-a", Status: model.JobStatusReady})

	select {
	case ev := <-chA:
		assert.Equal(t, "j1", ev.JobID)
	default:
		t.Fatal("subscriber for nb-a received nothing")
	}
	select {
	case <-chB:
		t.Fatal("subscriber for nb-b must not receive nb-a events")
	default:
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("nb")
	cancel()

	hub.Publish(Event{JobID: "j1", NotebookID: "nb"})
	select {
	case <-ch:
		t.Fatal("cancelled subscriber received an event")
	default:
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("nb")
	defer cancel()

	// overflow the buffer; Publish must not block
	for i := 0; i < 40; i++ {
		hub.Publish(Event{JobID: "j", NotebookID: "nb"})
	}
	require.Equal(t, 16, len(ch))
}
