// Package sse implements a Server-Sent Events broker that tells dashboards
// when snapshots are saved or imported.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// Event types broadcast by the broker.
const (
	EventSnapshotCreated  = "snapshot.created"
	EventSnapshotImported = "snapshot.imported"
	EventViewsUpdated     = "views.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type snapshotEventReq struct {
	kind   string
	viewID string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the clients, the set of views changed
// since the last views.updated and the throttle timer. Public methods talk to
// the loop through channels, so no mutexes are required.
type Broker struct {
	viewsMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	snapshotCh    chan snapshotEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits views.updated at most once per
// viewsThrottle.
func NewBroker(viewsThrottle time.Duration) *Broker {
	if viewsThrottle <= 0 {
		viewsThrottle = 2 * time.Second
	}

	b := &Broker{
		viewsMin:      viewsThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		snapshotCh:    make(chan snapshotEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	pending := make(map[string]struct{})
	var lastViews time.Time
	var flushC <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	flushViews := func(now time.Time) {
		if len(pending) == 0 {
			return
		}
		views := make([]string, 0, len(pending))
		for v := range pending {
			views = append(views, v)
		}
		sort.Strings(views)
		clear(pending)
		lastViews = now
		flushC = nil
		broadcast(Event{Type: EventViewsUpdated, Data: map[string][]string{"viewIds": views}})
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.snapshotCh:
			broadcast(Event{Type: req.kind, Data: map[string]string{"viewId": req.viewID}})
			pending[req.viewID] = struct{}{}

			now := time.Now()
			if wait := b.viewsMin - now.Sub(lastViews); wait <= 0 {
				flushViews(now)
			} else if flushC == nil {
				flushC = time.After(wait)
			}

		case now := <-flushC:
			flushViews(now)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishSnapshotEvent broadcasts kind for viewID at once and folds the view
// into the next views.updated, which is sent at most once per throttle
// interval. Views changed inside the interval are delivered when it ends.
func (b *Broker) PublishSnapshotEvent(kind, viewID string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.snapshotCh <- snapshotEventReq{kind: kind, viewID: viewID}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
