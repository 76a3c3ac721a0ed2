// Package answer assembles prompts and synthesizes streamed answers from
// retrieved context.
package answer

import (
	"fmt"
	"strings"

	"github.com/alcove-ai/alcove/internal/retrieval"
)

// Turn is one prior conversation exchange included in the prompt.
type Turn struct {
	Role    string
	Content string
}

// PromptSpec is the fully assembled model input. It is a value with no
// behavior so prompt construction stays testable without a model.
type PromptSpec struct {
	System    string
	History   []Turn
	UserQuery string
}

// PromptInput collects everything that shapes one prompt.
type PromptInput struct {
	Query      string
	Results    []retrieval.Result
	WebResults []WebResult
	// DocTitles lists every document in the knowledge base, so the model
	// can tell the user what it could be asked about.
	DocTitles     []string
	History       []Turn
	HistoryWindow int
	ProfileName   string
	Persona       string
}

// BuildPrompt assembles the model input. It is pure: same input, same
// prompt.
//
// The context block lists retrieved chunks under their document titles.
// When nothing was retrieved the prompt says so explicitly instead of
// leaving the model to guess, which measurably reduces fabricated
// citations. History is trimmed to the most recent window.
func BuildPrompt(in PromptInput) PromptSpec {
	var sys strings.Builder

	sys.WriteString("You are a personal knowledge assistant. Answer directly and concretely; do not open with restatements of the question.\n")
	if in.Persona != "" {
		sys.WriteString(in.Persona)
		sys.WriteString("\n")
		sys.WriteString("Answer general or unrelated questions directly; do not force a connection to your persona or the knowledge base.\n")
	}
	if in.ProfileName != "" {
		fmt.Fprintf(&sys, "The user's name is %s.\n", in.ProfileName)
	}

	if len(in.DocTitles) > 0 {
		fmt.Fprintf(&sys, "The knowledge base contains these documents: %s.\n", strings.Join(in.DocTitles, ", "))
	}

	if len(in.Results) == 0 && len(in.WebResults) == 0 {
		sys.WriteString("\nNo relevant notes were found in the user's knowledge base for this question. Say so, then answer from general knowledge.\n")
	}

	if len(in.Results) > 0 {
		sys.WriteString("\nRelevant notes from the user's knowledge base:\n")
		for _, r := range in.Results {
			title := r.Chunk.DocTitle
			if title == "" {
				title = "untitled"
			}
			if r.Chunk.Section != "" {
				title += " / " + r.Chunk.Section
			}
			fmt.Fprintf(&sys, "\n--- %s ---\n%s\n", title, r.Chunk.Content)
		}
		sys.WriteString("\nGround your answer in these notes and mention which note it came from when relevant.\n")
	}

	if len(in.WebResults) > 0 {
		sys.WriteString("\nLive web results:\n")
		for _, w := range in.WebResults {
			fmt.Fprintf(&sys, "\n--- %s (%s) ---\n%s\n", w.Title, w.URL, w.Content)
		}
	}

	history := in.History
	if in.HistoryWindow > 0 && len(history) > in.HistoryWindow {
		history = history[len(history)-in.HistoryWindow:]
	}

	return PromptSpec{
		System:    sys.String(),
		History:   history,
		UserQuery: in.Query,
	}
}

// SourceTitles returns the distinct document titles behind the results, in
// first-seen order, for attribution on the assistant message.
func SourceTitles(results []retrieval.Result) []string {
	seen := make(map[string]bool, len(results))
	var titles []string
	for _, r := range results {
		t := r.Chunk.DocTitle
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		titles = append(titles, t)
	}
	return titles
}
