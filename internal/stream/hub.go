package stream

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	EventJobStarted          = "job_started"
	EventJobFinished         = "job_finished"
	EventPortfolioRecomputed = "portfolio_recomputed"
	EventPortfolioFailed     = "portfolio_failed"
	EventAllocationPublished = "allocation_published"
)

// Event is one job-lifecycle notification pushed to connected dashboards.
type Event struct {
	Type         string         `json:"type"`
	PortfolioKey string         `json:"portfolio_key,omitempty"`
	RunID        string         `json:"run_id,omitempty"`
	At           time.Time      `json:"at"`
	Detail       map[string]any `json:"detail,omitempty"`
}

// Hub fans events out to websocket subscribers. Publishing never blocks:
// a subscriber that cannot keep up loses events rather than stalling the job.
type Hub struct {
	Logger *zap.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		Logger: logger,
		subs:   map[chan Event]struct{}{},
	}
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// function that must be called when the client goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			if h.Logger != nil {
				h.Logger.Debug("dropped stream event for slow subscriber",
					zap.String("type", event.Type))
			}
		}
	}
}

func (h *Hub) SubscriberCount() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
