package jobs

import (
	"encoding/json"
	"sync"

	"github.com/notebase-ai/notebase/internal/model"
)

// Event is a job status change fanned out to subscribed clients.
type Event struct {
	JobID        string             `json:"job_id"`
	NotebookID   string             `json:"notebook_id"`
	ArtifactType model.ArtifactType `json:"artifact_type"`
	Status       string             `json:"status"`
	Error        string             `json:"error,omitempty"`
	Result       json.RawMessage    `json:"result,omitempty"`
}

// Hub is an in-process pub/sub of job events keyed by notebook. Slow
// subscribers drop events rather than blocking the workers; clients recover
// by polling the job endpoint.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan Event]struct{}{}}
}

func (h *Hub) Subscribe(notebookID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	if h.subs[notebookID] == nil {
		h.subs[notebookID] = map[chan Event]struct{}{}
	}
	h.subs[notebookID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set := h.subs[notebookID]; set != nil {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, notebookID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.NotebookID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
