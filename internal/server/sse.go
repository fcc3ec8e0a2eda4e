package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// streamReplaySize is the number of recent events kept for Last-Event-ID replay.
	streamReplaySize = 512

	// streamKeepalive is how often a comment line is sent to idle clients.
	streamKeepalive = 15 * time.Second

	// streamClientBuffer is the per-client queue length; slow clients drop events.
	streamClientBuffer = 64
)

// streamEvent is one published message as sent to SSE clients.
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// StreamHub fans dependency changes out to Server-Sent Events clients. It
// implements events.Publisher, so it is registered with the manager through
// audit.PublisherSink like the NATS publisher.
type StreamHub struct {
	mu      sync.Mutex
	nextID  uint64
	recent  []streamEvent // oldest first, at most streamReplaySize
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	patterns []string
	ch       chan streamEvent
}

// NewStreamHub returns an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{clients: make(map[*streamClient]struct{})}
}

// Publish implements events.Publisher.
func (h *StreamHub) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	h.nextID++
	evt := streamEvent{ID: h.nextID, Topic: topic, Data: data}
	if len(h.recent) == streamReplaySize {
		copy(h.recent, h.recent[1:])
		h.recent = h.recent[:streamReplaySize-1]
	}
	h.recent = append(h.recent, evt)

	for c := range h.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
	return nil
}

// Close implements events.Publisher. Connected clients are disconnected.
func (h *StreamHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		close(c.ch)
		delete(h.clients, c)
	}
	return nil
}

// subscribe registers a client and returns it along with the buffered
// events newer than lastID that match its patterns.
func (h *StreamHub) subscribe(patterns []string, lastID uint64) (*streamClient, []streamEvent) {
	c := &streamClient{patterns: patterns, ch: make(chan streamEvent, streamClientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.ch)
		return c, nil
	}
	h.clients[c] = struct{}{}

	var replay []streamEvent
	if lastID > 0 {
		for _, evt := range h.recent {
			if evt.ID > lastID && c.matches(evt.Topic) {
				replay = append(replay, evt)
			}
		}
	}
	return c, replay
}

func (h *StreamHub) unsubscribe(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.ch)
	}
}

// matches reports whether the client asked for topic. No patterns means all.
func (c *streamClient) matches(topic string) bool {
	if len(c.patterns) == 0 {
		return true
	}
	for _, p := range c.patterns {
		if matchTopicPattern(p, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic NATS-style: "*" matches
// one segment and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// handleEventStream handles GET /v1/events/stream.
// ?topics=plangraph.dependency.* narrows the stream; Last-Event-ID resumes it.
func (s *DependencyServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var patterns []string
	for _, p := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	client, replay := s.stream.subscribe(patterns, lastID)
	defer s.stream.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, evt := range replay {
		writeStreamEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-client.ch:
			if !ok {
				return
			}
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, evt streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
