package web

import (
	"reflect"
	"sync"

	"github.com/cjeanneret/SlideGo/internal/logic/slider"
)

// StatusDisplay is a slider display that keeps the last snapshot for HTTP
// readers and publishes changes on the event stream.
type StatusDisplay struct {
	mu   sync.RWMutex
	last slider.Summary
	seen bool
	b    *Broadcaster
}

func NewStatusDisplay(b *Broadcaster) *StatusDisplay {
	return &StatusDisplay{b: b}
}

// Render is called from the controller goroutine.
func (d *StatusDisplay) Render(s slider.Summary) error {
	d.mu.Lock()
	changed := !d.seen || !reflect.DeepEqual(d.last, s)
	d.last, d.seen = s, true
	d.mu.Unlock()

	if changed && d.b != nil {
		snap := s
		d.b.Publish(Event{Kind: "status", Status: &snap})
	}
	return nil
}

// Snapshot returns the last rendered summary.
func (d *StatusDisplay) Snapshot() (slider.Summary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.seen
}
