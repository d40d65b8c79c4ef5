package traceevent

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

type Phase string

const (
	PhaseBegin             Phase = "B"
	PhaseEnd               Phase = "E"
	PhaseComplete          Phase = "X"
	PhaseMetadata          Phase = "M"
	PhaseInstant           Phase = "i"
	PhaseInstantDeprecated Phase = "I"
)

type (
	// Microseconds is a trace timestamp or duration. Tracers disagree on
	// whether to write them as JSON numbers or numeric strings, both are
	// accepted.
	Microseconds float64

	Event struct {
		Phase     Phase                  `json:"ph"`
		Timestamp Microseconds           `json:"ts"`
		Duration  *Microseconds          `json:"dur,omitempty"`
		Name      string                 `json:"name"`
		Category  string                 `json:"cat,omitempty"`
		PID       int                    `json:"pid,omitempty"`
		TID       int                    `json:"tid,omitempty"`
		Args      map[string]interface{} `json:"args,omitempty"`
	}
)

func (m *Microseconds) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if s != "" && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unquoted
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", b, err)
	}
	*m = Microseconds(f)
	return nil
}

func (m Microseconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(m))
}

// StringArg returns the string argument named key.
func (e *Event) StringArg(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	s, ok := e.Args[key].(string)
	return s, ok
}

// NumberArg returns the numeric argument named key. Numeric strings are
// accepted as well.
func (e *Event) NumberArg(key string) (float64, bool) {
	if e == nil {
		return 0, false
	}
	switch v := e.Args[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
