package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// ErrEmptyLine is returned by ParseLegacy for blank lines.
var ErrEmptyLine = errors.New("protocol: empty legacy line")

// Legacy is a tokenized line of the old text dialect, e.g.
// `LOOP 1 "my pan" 200 50`. It is logged but never executed.
type Legacy struct {
	Verb string
	Args []string
}

// ParseLegacy tokenizes a text line with shell-style quoting.
func ParseLegacy(line string) (Legacy, error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return Legacy{}, fmt.Errorf("protocol: legacy line %q: %w", line, err)
	}
	if len(fields) == 0 {
		return Legacy{}, ErrEmptyLine
	}
	return Legacy{Verb: strings.ToUpper(fields[0]), Args: fields[1:]}, nil
}

// Reply is the diagnostic sent back for a legacy line.
func (l Legacy) Reply() []byte {
	return Errorf("LEGACY %s", l.Verb)
}
