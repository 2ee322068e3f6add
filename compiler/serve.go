package compiler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// ServeMux returns the minimal HTTP surface a CLI's "watch --serve" mounts
// (spec.md §6): a stats endpoint and a server-sent-events tap of every
// StepResult the scheduler produces. The core exposes this boundary
// without depending on a router itself — the caller mounts it under
// whatever prefix it likes (SPEC_FULL.md's Domain Stack row on chi).
func (c *Compiler) ServeMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", c.handleStats)
	mux.HandleFunc("/events", c.handleEvents)
	return mux
}

func (c *Compiler) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(c.Stats())
}

// eventTap fans StepResults out to every connected SSE client.
type eventTap struct {
	mu      sync.Mutex
	clients map[chan StepResult]struct{}
}

func newEventTap() *eventTap {
	return &eventTap{clients: make(map[chan StepResult]struct{})}
}

func (t *eventTap) subscribe() chan StepResult {
	ch := make(chan StepResult, 16)
	t.mu.Lock()
	t.clients[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

func (t *eventTap) unsubscribe(ch chan StepResult) {
	t.mu.Lock()
	delete(t.clients, ch)
	t.mu.Unlock()
	close(ch)
}

func (t *eventTap) publish(r StepResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ch := range t.clients {
		select {
		case ch <- r:
		default:
		}
	}
}

func (c *Compiler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	ch := c.tap().subscribe()
	defer c.tap().unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-ch:
			if !ok {
				return
			}
			body, err := json.Marshal(res)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", body)
			flusher.Flush()
		}
	}
}

// tap lazily creates the Compiler's event broadcaster.
func (c *Compiler) tap() *eventTap {
	if c.events == nil {
		c.events = newEventTap()
	}
	return c.events
}

// Publish fans r out to every connected /events client. A caller driving
// RunToFixedPoint or Watcher.Run for a "watch --serve" session passes this
// as the onStep callback.
func (c *Compiler) Publish(r StepResult) { c.tap().publish(r) }
