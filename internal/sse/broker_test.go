package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
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

func receive(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func payload(t *testing.T, msg string, into any) {
	t.Helper()
	_, data, ok := strings.Cut(msg, "data: ")
	if !ok {
		t.Fatalf("no data line in %q", msg)
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(data)), into); err != nil {
		t.Fatalf("payload %q: %v", data, err)
	}
}

func TestPublishNoteChanged(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteChanged("updated", "a")

	msg := receive(t, ch)
	if !strings.HasPrefix(msg, "event: "+TypeNoteChanged+"\n") {
		t.Errorf("missing event type in %q", msg)
	}
	var got NoteChanged
	payload(t, msg, &got)
	if diff := cmp.Diff(NoteChanged{NoteID: "a", Kind: "updated"}, got); diff != "" {
		t.Errorf("payload (-want +got):\n%s", diff)
	}
}

func TestPublishInvalidation_Coalesces(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishInvalidation("a")
	var first Invalidated
	payload(t, receive(t, ch), &first)
	if diff := cmp.Diff([]string{"a"}, first.NoteIDs); diff != "" {
		t.Errorf("first flush (-want +got):\n%s", diff)
	}

	// Inside the throttle window these merge into one event.
	b.PublishInvalidation("c", "b")
	b.PublishInvalidation("b")
	select {
	case msg := <-ch:
		t.Fatalf("event before the window closed: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
	var second Invalidated
	payload(t, receive(t, ch), &second)
	if diff := cmp.Diff([]string{"b", "c"}, second.NoteIDs); diff != "" {
		t.Errorf("coalesced flush (-want +got):\n%s", diff)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

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

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishNoteChanged("deleted", "x")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.changed") || !strings.Contains(body, `"note_id":"x"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

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

	// The client buffer holds 64 messages; the rest are dropped, not queued.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.PublishInvalidation("a")
	b.PublishInvalidation("b")

	b.Close()

	deadline := time.After(time.Second)
	for closed := false; !closed; {
		select {
		case _, ok := <-ch:
			closed = !ok
		case <-deadline:
			t.Fatal("timeout waiting for channel close")
		}
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.PublishNoteChanged("updated", "x")
	b.PublishInvalidation("x")
}
