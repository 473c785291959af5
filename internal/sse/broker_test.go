package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishExceptionEvent(EventExceptionCreated, "a1")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: exception.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"a1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishExceptionEvent_StaleThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishExceptionEvent(EventExceptionCreated, "id-1")
	b.PublishExceptionEvent(EventExceptionUpdated, "id-1")
	b.PublishExceptionEvent(EventExceptionsChanged, "")

	time.Sleep(50 * time.Millisecond)
	staleCount := 0
	var changes []string
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, EventReportStale) {
				staleCount++
			} else {
				changes = append(changes, s)
			}
		default:
			break loop
		}
	}

	if len(changes) != 3 {
		t.Fatalf("exception events = %d, want 3", len(changes))
	}
	if !strings.Contains(changes[0], "event: exception.created") || !strings.Contains(changes[0], `"id":"id-1"`) {
		t.Errorf("first event = %q", changes[0])
	}
	if !strings.Contains(changes[2], "event: exceptions.changed") {
		t.Errorf("third event = %q", changes[2])
	}
	if staleCount != 1 {
		t.Errorf("report.stale events = %d, want 1 (throttled)", staleCount)
	}
}

func TestPublishExceptionEvent_UnknownKindDropped(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishExceptionEvent("exception.deleted", "x")
	time.Sleep(50 * time.Millisecond)
	select {
	case msg := <-ch:
		t.Errorf("unexpected event %q", msg)
	default:
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishExceptionEvent(EventExceptionUpdated, "x")
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: exception.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Nobody reads ch, so its 64-frame buffer fills and the rest are dropped.
	for i := 0; i < 100; i++ {
		b.PublishExceptionEvent(EventExceptionUpdated, "x")
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(ch); n != subscriberBuffer {
		t.Errorf("buffered frames = %d, want %d", n, subscriberBuffer)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishExceptionEvent(EventExceptionUpdated, "x")
}
