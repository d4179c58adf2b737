package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DataPrefix marks an event line on the wire.
const DataPrefix = "data: "

// Event is one decoded line of the answer stream: Heartbeat, Error, Answer
// or Ignored.
type Event interface {
	event()
}

// Heartbeat is a keep-alive carrying no content.
type Heartbeat struct {
	Tag string
}

// Error is a backend-reported failure; the stream may continue after it.
type Error struct {
	Message string
}

// Answer carries an answer text and, optionally, the backend's canonical
// session id.
type Answer struct {
	Text      string
	SessionID string
}

// Ignored is a well-formed event with no recognised field.
type Ignored struct{}

func (Heartbeat) event() {}
func (Error) event()     {}
func (Answer) event()    {}
func (Ignored) event()   {}

var heartbeatTags = map[string]bool{
	"heartbeat":       true,
	"ping":            true,
	"ping_disconnect": true,
}

type wireEvent struct {
	Event     string `json:"event"`
	Error     string `json:"error"`
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

// ParseLine decodes one stream line. ok is false for lines that are not
// events (comments, blank separators, other SSE fields). A data line whose
// payload is not a JSON object yields an error.
func ParseLine(line string) (ev Event, ok bool, err error) {
	if !strings.HasPrefix(line, DataPrefix) {
		return nil, false, nil
	}
	payload := line[len(DataPrefix):]

	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return nil, true, fmt.Errorf("stream: malformed event %q: %w", payload, err)
	}

	switch {
	case heartbeatTags[w.Event]:
		return Heartbeat{Tag: w.Event}, true, nil
	case w.Error != "":
		return Error{Message: w.Error}, true, nil
	case w.Answer != "":
		return Answer{Text: w.Answer, SessionID: w.SessionID}, true, nil
	default:
		return Ignored{}, true, nil
	}
}
