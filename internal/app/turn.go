package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alcove-ai/alcove/internal/answer"
	"github.com/alcove-ai/alcove/internal/retrieval"
	"github.com/alcove-ai/alcove/internal/session"
)

const (
	// titleTimeout bounds AI title generation; on expiry the message-prefix
	// title stays.
	titleTimeout = 5 * time.Second

	// titleInputMaxRunes caps how much of the first message is sent for
	// title generation.
	titleInputMaxRunes = 500
)

// QueryOptions shapes one query turn.
type QueryOptions struct {
	// SessionID targets an existing session. Empty means continue the
	// active session, or start a new one when none is active.
	SessionID string
	// LiveSearch forces web grounding for this query.
	LiveSearch bool
	// OnSnapshot receives every streaming snapshot, including the
	// terminal one. May be nil.
	OnSnapshot func(answer.Snapshot)
}

// Query runs one full conversation turn: resolve the session, retrieve and
// rerank context, stream the answer, persist the exchange, and return the
// session re-read from the store.
//
// Only one query may be in flight; concurrent calls get ErrBusy. A
// retrieval failure degrades to answering without context. A generation
// failure is still persisted as an assistant message carrying the failure
// text, so the conversation stays consistent.
func (a *App) Query(ctx context.Context, query string, opts QueryOptions) (*session.Session, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	if err := a.acquire(); err != nil {
		return nil, err
	}
	defer a.release()

	sess, isNew, err := a.resolveSession(ctx, opts.SessionID, query)
	if err != nil {
		return nil, err
	}

	// History excludes the user message just added for this turn.
	history := toTurns(sess.Messages[:len(sess.Messages)-1])

	results := a.retrieveContext(ctx, query)

	snaps := a.Synthesizer.Generate(ctx, answer.Request{
		Query:       query,
		Results:     results,
		DocTitles:   a.documentTitles(ctx),
		History:     history,
		LiveSearch:  opts.LiveSearch,
		ProfileName: a.Config.Profile.Name,
		Persona:     a.Config.Profile.Persona,
	})

	var terminal answer.Snapshot
	for snap := range snaps {
		if opts.OnSnapshot != nil {
			opts.OnSnapshot(snap)
		}
		if snap.Done {
			terminal = snap
		}
	}
	if !terminal.Done {
		// The stream ended without a terminal snapshot, which only
		// happens when the context was canceled mid-answer.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("answer stream ended unexpectedly")
	}

	reply := session.NewMessage(session.RoleAssistant, terminal.Text)
	reply.Sources = terminal.Sources
	reply.GroundingSources = toGroundingSources(terminal.GroundingSources)
	a.Sessions.Append(sess, reply)

	if err := a.Sessions.Persist(ctx, sess); err != nil {
		return nil, err
	}
	if err := a.State.SetActive(sess.ID); err != nil {
		a.Logger.Warn("recording active session", "error", err)
	}

	if isNew {
		a.improveTitle(ctx, sess)
	}

	// Re-read so the caller sees exactly what the store holds.
	return a.Sessions.Load(ctx, sess.ID)
}

// resolveSession finds or creates the session for this turn and appends
// the user message. A stale active-session pointer left behind by a
// deleted session is cleared and a fresh session started in its place.
func (a *App) resolveSession(ctx context.Context, explicitID, query string) (*session.Session, bool, error) {
	id := explicitID
	if id == "" {
		active, err := a.State.Active()
		if err != nil {
			a.Logger.Warn("reading active session pointer", "error", err)
		}
		id = active
	}

	if id != "" {
		sess, malformed, err := a.Sessions.LoadChecked(ctx, id)
		if err != nil {
			// An explicit id that fails is the caller's problem; so is a
			// hard store failure. A stale active pointer self-heals.
			if explicitID != "" || !errors.Is(err, session.ErrNotFound) {
				return nil, false, err
			}
		} else if malformed && explicitID == "" {
			// The active pointer names a session whose history could not
			// be decoded; clear it and start fresh.
		} else {
			a.Sessions.Append(sess, session.NewMessage(session.RoleUser, query))
			return sess, false, nil
		}

		a.Logger.Warn("active session unusable, starting fresh", "session_id", id, "error", err)
		if clearErr := a.State.Clear(); clearErr != nil {
			a.Logger.Warn("clearing stale session pointer", "error", clearErr)
		}
	}

	return a.Sessions.CreateFromFirstMessage(query), true, nil
}

// retrieveContext runs retrieval and reranking. Failures degrade to no
// context rather than failing the turn.
func (a *App) retrieveContext(ctx context.Context, query string) []retrieval.Result {
	results, err := a.Retriever.Retrieve(ctx, query)
	if err != nil {
		a.Logger.Warn("retrieval failed, answering without context", "error", err)
		return nil
	}
	if a.Reranker != nil {
		results = a.Reranker.Rerank(ctx, query, results)
	}
	return results
}

// documentTitles lists the knowledge base's document titles for the
// prompt. Failures degrade to an empty list.
func (a *App) documentTitles(ctx context.Context) []string {
	docs, err := a.Store.Documents(ctx)
	if err != nil {
		a.Logger.Warn("listing documents for prompt", "error", err)
		return nil
	}
	titles := make([]string, 0, len(docs))
	for _, d := range docs {
		titles = append(titles, d.Title)
	}
	return titles
}

// improveTitle asks the model for a concise session title. Best effort:
// on any failure the message-prefix title stands.
func (a *App) improveTitle(ctx context.Context, sess *session.Session) {
	if len(sess.Messages) == 0 {
		return
	}

	input := sess.Messages[0].Content
	if runes := []rune(input); len(runes) > titleInputMaxRunes {
		input = string(runes[:titleInputMaxRunes])
	}

	titleCtx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	raw, err := a.generator.Generate(titleCtx, fmt.Sprintf(
		"Write a title of at most five words for a conversation starting with: %q\nReply with only the title.", input))
	if err != nil {
		a.Logger.Debug("title generation failed, keeping prefix title", "error", err)
		return
	}

	title := strings.Trim(strings.TrimSpace(raw), `"`)
	if title == "" {
		return
	}
	if runes := []rune(title); len(runes) > session.TitleMaxLength {
		title = string(runes[:session.TitleMaxLength])
	}

	sess.Title = title
	if err := a.Sessions.Persist(ctx, sess); err != nil {
		a.Logger.Warn("persisting improved title", "error", err)
	}
}

func toTurns(messages []session.Message) []answer.Turn {
	turns := make([]answer.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, answer.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func toGroundingSources(in []answer.GroundingSource) []session.GroundingSource {
	if len(in) == 0 {
		return nil
	}
	out := make([]session.GroundingSource, 0, len(in))
	for _, g := range in {
		out = append(out, session.GroundingSource{Title: g.Title, URL: g.URL})
	}
	return out
}
