package slider

import (
	"fmt"

	"github.com/cjeanneret/SlideGo/internal/debug"
)

// Summary is the display snapshot.
type Summary struct {
	State    string   `json:"state"`
	Position int64    `json:"position"`
	Job      string   `json:"job,omitempty"`
	Overlay  string   `json:"overlay"`
	Items    []string `json:"items,omitempty"`
	Index    int      `json:"index"`
	Choice   string   `json:"choice,omitempty"`
	Notice   string   `json:"notice,omitempty"`
}

// Line is the two-row text rendering used by character displays and logs.
func (s Summary) Line() string {
	top := fmt.Sprintf("%s POS:%d", s.State, s.Position)
	var bottom string
	switch {
	case s.Notice != "":
		bottom = s.Notice
	case s.Overlay == "MENU" && s.Index < len(s.Items):
		bottom = fmt.Sprintf("> %s", s.Items[s.Index])
	case s.Overlay == "PAUSE_MENU":
		bottom = fmt.Sprintf("> %s", s.Choice)
	case s.Job != "":
		bottom = s.Job
	}
	if bottom == "" {
		return top
	}
	return top + " | " + bottom
}

// Display consumes snapshots. Render errors are logged and ignored.
type Display interface {
	Render(Summary) error
}

// LogDisplay writes the snapshot to the debug log when it changes.
type LogDisplay struct {
	last string
}

func (d *LogDisplay) Render(s Summary) error {
	line := s.Line()
	if line == d.last {
		return nil
	}
	d.last = line
	debug.Live("Display: %s", line)
	return nil
}
