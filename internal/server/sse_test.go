package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/plangraph/internal/events"
	"github.com/alfredjeanlab/plangraph/internal/model"
)

func recvEvent(t *testing.T, c *streamClient) streamEvent {
	t.Helper()
	select {
	case evt := <-c.ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return streamEvent{}
}

func TestStreamHub_PublishAndReceive(t *testing.T) {
	hub := NewStreamHub()
	client, replay := hub.subscribe(nil, 0)
	defer hub.unsubscribe(client)
	if len(replay) != 0 {
		t.Fatalf("unexpected replay: %v", replay)
	}

	if err := hub.Publish(context.Background(), events.TopicDependencyCreated, map[string]string{"id": "dep-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	evt := recvEvent(t, client)
	if evt.ID != 1 || evt.Topic != events.TopicDependencyCreated || string(evt.Data) != `{"id":"dep-1"}` {
		t.Fatalf("got %+v (%s)", evt, evt.Data)
	}
}

func TestStreamHub_TopicFiltering(t *testing.T) {
	hub := NewStreamHub()
	client, _ := hub.subscribe([]string{"plangraph.dependency.deleted"}, 0)
	defer hub.unsubscribe(client)

	ctx := context.Background()
	hub.Publish(ctx, events.TopicDependencyCreated, struct{}{})
	hub.Publish(ctx, events.TopicDependencyDeleted, struct{}{})

	if evt := recvEvent(t, client); evt.Topic != events.TopicDependencyDeleted {
		t.Fatalf("expected deleted, got %q", evt.Topic)
	}
	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: %q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamHub_Replay(t *testing.T) {
	hub := NewStreamHub()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		hub.Publish(ctx, events.TopicDependencyUpdated, i)
	}

	client, replay := hub.subscribe(nil, 3)
	defer hub.unsubscribe(client)
	if len(replay) != 2 || replay[0].ID != 4 || replay[1].ID != 5 {
		t.Fatalf("replay = %+v", replay)
	}
}

func TestStreamHub_ReplayBounded(t *testing.T) {
	hub := NewStreamHub()
	ctx := context.Background()
	for i := 0; i < streamReplaySize+10; i++ {
		hub.Publish(ctx, events.TopicDependencyCreated, i)
	}
	if len(hub.recent) != streamReplaySize {
		t.Fatalf("recent = %d, want %d", len(hub.recent), streamReplaySize)
	}
	if hub.recent[0].ID != 11 {
		t.Fatalf("oldest kept id = %d, want 11", hub.recent[0].ID)
	}
}

func TestStreamHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewStreamHub()
	client, _ := hub.subscribe(nil, 0)
	defer hub.unsubscribe(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < streamClientBuffer*3; i++ {
			hub.Publish(context.Background(), events.TopicDependencyCreated, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow client")
	}
}

func TestStreamHub_Close(t *testing.T) {
	hub := NewStreamHub()
	client, _ := hub.subscribe(nil, 0)

	if err := hub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-client.ch; ok {
		t.Fatal("expected client channel closed")
	}
	hub.unsubscribe(client) // no double close
	if err := hub.Publish(context.Background(), events.TopicDependencyCreated, 1); err != nil {
		t.Fatalf("Publish after close: %v", err)
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern, topic string
		want           bool
	}{
		{"plangraph.dependency.created", "plangraph.dependency.created", true},
		{"plangraph.dependency.*", "plangraph.dependency.created", true},
		{"plangraph.*", "plangraph.dependency.created", false},
		{"plangraph.>", "plangraph.dependency.created", true},
		{"plangraph.>", "plangraph", false},
		{"plangraph.dependency.created", "plangraph.dependency.deleted", false},
		{"*.dependency.*", "plangraph.dependency.updated", true},
	} {
		if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

func TestHandleEventStream(t *testing.T) {
	_, _, h := newTestServer()
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events/stream?topics=plangraph.dependency.created", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	// Headers are flushed after the subscription exists, so this write is seen.
	rec := doJSON(t, h, "POST", "/v1/dependencies", edge("task:A", "task:B", model.FinishToStart))
	requireStatus(t, rec, http.StatusCreated)

	sc := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventLine = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			dataLine = strings.TrimPrefix(line, "data:")
		}
		if dataLine != "" {
			break
		}
	}
	if eventLine != events.TopicDependencyCreated {
		t.Errorf("event = %q", eventLine)
	}
	if !strings.Contains(dataLine, `"event_type":"create_dependency"`) {
		t.Errorf("data = %q", dataLine)
	}
}
