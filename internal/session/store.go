package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alcove-ai/alcove/internal/store"
)

// Storage is the persistence surface the session store needs, satisfied
// by *store.Store.
type Storage interface {
	PutSession(ctx context.Context, id string, data []byte, updatedAt time.Time) error
	SessionRow(ctx context.Context, id string) (store.SessionRow, error)
	SessionRows(ctx context.Context) ([]store.SessionRow, error)
	DeleteSession(ctx context.Context, id string) error
}

// Store persists sessions as JSON blobs.
type Store struct {
	storage Storage
	logger  *slog.Logger
}

// NewStore creates a session store.
func NewStore(storage Storage, logger *slog.Logger) *Store {
	return &Store{storage: storage, logger: logger}
}

// CreateFromFirstMessage builds an in-memory draft session seeded with the
// first user message. Nothing is persisted until Persist is called with a
// complete exchange.
func (s *Store) CreateFromFirstMessage(content string) *Session {
	now := time.Now()
	return &Session{
		ID:        NewID(now),
		Title:     TitleFromMessage(content),
		Messages:  []Message{NewMessage(RoleUser, content)},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message to the session and bumps its update time.
func (s *Store) Append(sess *Session, msg Message) {
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = time.Now()
}

// Persist writes the session to the store. The session must have at least
// one message and no message may still be streaming. The stored update
// time is taken from the session as-is, so persisting the same snapshot
// twice leaves the row byte-identical.
func (s *Store) Persist(ctx context.Context, sess *Session) error {
	if len(sess.Messages) == 0 {
		return fmt.Errorf("persisting session %s: %w", sess.ID, ErrEmptySession)
	}
	for _, m := range sess.Messages {
		if m.Streaming {
			return fmt.Errorf("persisting session %s (message %s): %w", sess.ID, m.ID, ErrStreamingMessage)
		}
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}
	if err := s.storage.PutSession(ctx, sess.ID, data, sess.UpdatedAt); err != nil {
		return fmt.Errorf("persisting session %s: %w", sess.ID, err)
	}
	return nil
}

// Load reads one session. A row whose messages field is unusable loads
// with empty messages rather than failing, so a damaged session can still
// be continued or deleted. A row whose blob is not JSON at all reports
// ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	sess, _, err := s.LoadChecked(ctx, id)
	return sess, err
}

// LoadChecked is Load plus a flag reporting whether the stored record was
// malformed and had to be recovered. Callers holding an active-session
// pointer use the flag to self-heal the pointer.
func (s *Store) LoadChecked(ctx context.Context, id string) (*Session, bool, error) {
	row, err := s.storage.SessionRow(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("loading session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, false, err
	}

	dec, err := decodeSession(row.ID, row.Data)
	if err != nil {
		// A blob that is not JSON at all is unrecoverable. Report it as
		// not found so callers holding a pointer to it start over.
		s.logger.Warn("session record undecodable", "session_id", id, "error", err)
		return nil, false, fmt.Errorf("loading session %s: %w", id, ErrNotFound)
	}
	if dec.Partial {
		s.logger.Warn("session loaded with recovered state",
			"session_id", id,
			"reason", dec.Reason)
	}
	return &dec.Session, dec.Partial, nil
}

// List returns session summaries, most recently updated first. Rows that
// cannot be decoded, or whose messages field is unusable, are skipped with
// a warning instead of failing the listing. Such rows stay loadable
// through Load so they can still be inspected or deleted by id.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.storage.SessionRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		dec, err := decodeSession(row.ID, row.Data)
		if err != nil {
			s.logger.Warn("skipping undecodable session", "session_id", row.ID, "error", err)
			continue
		}
		if dec.Partial {
			s.logger.Warn("skipping damaged session in listing",
				"session_id", row.ID,
				"reason", dec.Reason)
			continue
		}
		title := dec.Session.Title
		if title == "" {
			title = "Untitled conversation"
		}
		summaries = append(summaries, Summary{
			ID:           dec.Session.ID,
			Title:        title,
			MessageCount: len(dec.Session.Messages),
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return summaries, nil
}

// Delete removes a session. Deleting a missing session is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.storage.DeleteSession(ctx, id)
}
