// Package sse implements a Server-Sent Events broker that tells open
// journal pages when exceptions change and the report went stale.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types published by the broker.
const (
	EventExceptionCreated  = "exception.created"
	EventExceptionUpdated  = "exception.updated"
	EventExceptionsChanged = "exceptions.changed"
	EventReportStale       = "report.stale"
)

// subscriberBuffer is the number of frames a slow page may lag behind
// before frames are dropped for it.
const subscriberBuffer = 64

type change struct {
	kind string
	id   string
}

// Broker fans exception changes out to connected pages.
//
// All mutable state (subscribers, last report.stale time) belongs to the
// loop goroutine; the exported methods only talk to it over channels.
type Broker struct {
	staleEvery time.Duration

	join    chan chan []byte
	leave   chan chan []byte
	changes chan change
	count   chan chan int

	quit    chan struct{}
	done    chan struct{}
	closing atomic.Bool
}

// NewBroker creates a new SSE broker. report.stale is sent at most once per
// staleThrottle.
func NewBroker(staleThrottle time.Duration) *Broker {
	if staleThrottle <= 0 {
		staleThrottle = 2 * time.Second
	}
	b := &Broker{
		staleEvery: staleThrottle,
		join:       make(chan chan []byte),
		leave:      make(chan chan []byte),
		changes:    make(chan change, 256),
		count:      make(chan chan int),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go b.loop()
	return b
}

// frame encodes one SSE message.
func frame(eventType string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload))
}

func (b *Broker) loop() {
	defer close(b.done)

	subs := make(map[chan []byte]struct{})
	var lastStale time.Time

	send := func(msg []byte) {
		for ch := range subs {
			select {
			case ch <- msg:
			default:
				// Lagging page; it reloads on the next report.stale anyway.
			}
		}
	}

	for {
		select {
		case <-b.quit:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.join:
			subs[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case c := <-b.changes:
			switch c.kind {
			case EventExceptionCreated, EventExceptionUpdated:
				send(frame(c.kind, map[string]string{"id": c.id}))
			case EventExceptionsChanged:
				send(frame(c.kind, map[string]string{}))
			default:
				continue
			}
			if now := time.Now(); now.Sub(lastStale) >= b.staleEvery {
				lastStale = now
				send(frame(EventReportStale, map[string]string{}))
			}

		case reply := <-b.count:
			reply <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closing.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a page. The channel is closed on Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	if b.closing.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a page and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closing.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of connected pages.
func (b *Broker) ClientCount() int {
	if b.closing.Load() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case b.count <- reply:
	case <-b.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	}
}

// PublishExceptionEvent publishes an exception change and a throttled
// report.stale event. Unknown kinds are dropped.
func (b *Broker) PublishExceptionEvent(kind, id string) {
	if b.closing.Load() {
		return
	}
	select {
	case b.changes <- change{kind: kind, id: id}:
	case <-b.done:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
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
