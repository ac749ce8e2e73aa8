package web

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/SlideGo/internal/hostlink"
	"github.com/cjeanneret/SlideGo/internal/protocol"
)

// maxFrame bounds request bodies and websocket messages.
const maxFrame = 1024

// DefaultReplyTimeout is how long POST /command waits for the controller.
const DefaultReplyTimeout = 5 * time.Second

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *Broadcaster
	Status       *StatusDisplay
	Inbound      chan<- hostlink.Packet
	ReplyTimeout time.Duration
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If inbound is nil, POST /command and GET /link return 503 Service Unavailable.
func NewHandlers(b *Broadcaster, status *StatusDisplay, inbound chan<- hostlink.Packet, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  b,
		Status:       status,
		Inbound:      inbound,
		ReplyTimeout: DefaultReplyTimeout,
		staticFS:     staticFS,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatus returns the last display snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.Status.Snapshot()
	if !ok {
		http.Error(w, "no status yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sum)
}

// HandleCommand handles POST /command. The body is one binary frame, or one
// legacy text line when Content-Type is text/plain. The controller's reply
// is returned as the response body.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if h.Inbound == nil {
		http.Error(w, "controller not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrame+1))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) == 0 || len(body) > maxFrame {
		http.Error(w, "frame must be 1 to 1024 bytes", http.StatusBadRequest)
		return
	}

	replies := make(chan []byte, 1)
	p := hostlink.Packet{
		Data:   body,
		Text:   r.Header.Get("Content-Type") == "text/plain",
		Source: "http " + r.RemoteAddr,
		Reply: func(b []byte) {
			select {
			case replies <- append([]byte(nil), b...):
			default:
			}
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.ReplyTimeout)
	defer cancel()

	if err := hostlink.Send(ctx, h.Inbound, p); err != nil {
		http.Error(w, "controller busy", http.StatusServiceUnavailable)
		return
	}

	select {
	case reply := <-replies:
		ct := "text/plain; charset=utf-8"
		if !p.Text && protocol.Opcode(body[0]) == protocol.OpGetAllData {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Write(reply)
	case <-ctx.Done():
		http.Error(w, "no reply from controller", http.StatusGatewayTimeout)
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	if sum, ok := h.Status.Snapshot(); ok {
		if data, err := json.Marshal(Event{Time: time.Now().Format(time.RFC3339), Kind: "status", Status: &sum}); err == nil {
			w.Write([]byte("data: " + string(data) + "\n\n"))
		}
	}
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
