package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// decoded is the outcome of reading one stored session blob. Partial
// signals that the row was readable but its messages field was unusable
// and has been reset to empty.
type decoded struct {
	Session Session
	Partial bool
	Reason  string
}

// rawSession defers message decoding so a malformed messages field does
// not discard the rest of the row.
type rawSession struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  json.RawMessage `json:"messages"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// decodeSession reads a stored session blob defensively. A blob that is
// not a JSON object at all is an error; a blob whose messages field is
// missing, null, or not a list decodes with empty messages and Partial set.
func decodeSession(id string, data []byte) (decoded, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		// Retry with messages masked out: the envelope may be fine and
		// only the messages payload broken.
		var probe map[string]json.RawMessage
		if probeErr := json.Unmarshal(data, &probe); probeErr != nil {
			return decoded{}, fmt.Errorf("decoding session %s: %w", id, err)
		}
		delete(probe, "messages")
		masked, _ := json.Marshal(probe)
		if err2 := json.Unmarshal(masked, &raw); err2 != nil {
			return decoded{}, fmt.Errorf("decoding session %s: %w", id, err)
		}
		raw.Messages = nil
	}

	s := Session{
		ID:        raw.ID,
		Title:     raw.Title,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if s.ID == "" {
		s.ID = id
	}

	if len(raw.Messages) == 0 || string(raw.Messages) == "null" {
		return decoded{Session: s, Partial: true, Reason: "messages missing"}, nil
	}

	var msgs []Message
	if err := json.Unmarshal(raw.Messages, &msgs); err != nil {
		return decoded{Session: s, Partial: true, Reason: "messages is not a list"}, nil
	}
	s.Messages = msgs
	return decoded{Session: s}, nil
}
