package web

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/SlideGo/internal/logic/slider"
)

// Event is one SSE message: a log line, a link notice or a status snapshot.
type Event struct {
	Time    string          `json:"t"`
	Kind    string          `json:"kind"`
	Level   string          `json:"l,omitempty"`
	Msg     string          `json:"msg,omitempty"`
	Session string          `json:"session,omitempty"`
	Status  *slider.Summary `json:"status,omitempty"`
}

// Broadcaster fans events out to SSE clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel of JSON events and its cleanup function.
// The caller must call cleanup when the client goes away.
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish sends evt to every subscriber. Slow clients miss events.
func (b *Broadcaster) Publish(evt Event) {
	if evt.Time == "" {
		evt.Time = time.Now().Format(time.RFC3339)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Log publishes a log line.
func (b *Broadcaster) Log(level, msg string) {
	b.Publish(Event{Kind: "log", Level: level, Msg: msg})
}

// Writer returns an io.Writer publishing each write as an info log line,
// for teeing the debug logger.
func (b *Broadcaster) Writer() io.Writer {
	return &logWriter{b: b}
}

type logWriter struct {
	b *Broadcaster
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Log("info", msg)
	}
	return len(p), nil
}
