package answer

import (
	"strings"
	"testing"

	"github.com/alcove-ai/alcove/internal/index"
	"github.com/alcove-ai/alcove/internal/retrieval"
)

func resultsFrom(titleContent ...string) []retrieval.Result {
	var out []retrieval.Result
	for i := 0; i+1 < len(titleContent); i += 2 {
		out = append(out, retrieval.Result{Chunk: index.Chunk{
			DocTitle: titleContent[i],
			Content:  titleContent[i+1],
		}})
	}
	return out
}

func TestBuildPromptWithContext(t *testing.T) {
	spec := BuildPrompt(PromptInput{
		Query:   "how do retries work?",
		Results: resultsFrom("Ops Runbook", "retries use exponential backoff"),
	})

	if !strings.Contains(spec.System, "Ops Runbook") {
		t.Error("system prompt missing document title")
	}
	if !strings.Contains(spec.System, "retries use exponential backoff") {
		t.Error("system prompt missing chunk content")
	}
	if strings.Contains(spec.System, "No relevant notes") {
		t.Error("no-match statement present despite context")
	}
	if spec.UserQuery != "how do retries work?" {
		t.Errorf("UserQuery = %q", spec.UserQuery)
	}
}

func TestBuildPromptNoMatchStatement(t *testing.T) {
	spec := BuildPrompt(PromptInput{Query: "anything"})

	if !strings.Contains(spec.System, "No relevant notes were found") {
		t.Error("system prompt must state explicitly that nothing was found")
	}
}

func TestBuildPromptSectionInTitle(t *testing.T) {
	spec := BuildPrompt(PromptInput{
		Query: "q",
		Results: []retrieval.Result{{Chunk: index.Chunk{
			DocTitle: "Guide",
			Section:  "Install",
			Content:  "run the installer",
		}}},
	})

	if !strings.Contains(spec.System, "Guide / Install") {
		t.Error("section missing from context header")
	}
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	history := make([]Turn, 20)
	for i := range history {
		history[i] = Turn{Role: "user", Content: string(rune('a' + i))}
	}

	spec := BuildPrompt(PromptInput{
		Query:         "q",
		History:       history,
		HistoryWindow: 4,
	})

	if len(spec.History) != 4 {
		t.Fatalf("history length = %d, want 4", len(spec.History))
	}
	// Most recent turns survive the trim.
	if spec.History[3].Content != history[19].Content {
		t.Error("trim dropped the newest turn")
	}
}

func TestBuildPromptProfile(t *testing.T) {
	spec := BuildPrompt(PromptInput{
		Query:       "q",
		ProfileName: "Sam",
		Persona:     "Keep answers brief.",
	})

	if !strings.Contains(spec.System, "Sam") {
		t.Error("profile name missing")
	}
	if !strings.Contains(spec.System, "Keep answers brief.") {
		t.Error("persona missing")
	}
	if !strings.Contains(spec.System, "Answer general or unrelated questions directly") {
		t.Error("direct-answer instruction missing alongside persona")
	}
}

func TestBuildPromptNoPersonaNoDirectAnswerLine(t *testing.T) {
	spec := BuildPrompt(PromptInput{Query: "q"})

	if strings.Contains(spec.System, "do not force a connection to your persona") {
		t.Error("persona instruction present without a persona")
	}
}

func TestBuildPromptWebResults(t *testing.T) {
	spec := BuildPrompt(PromptInput{
		Query: "q",
		WebResults: []WebResult{
			{Title: "Release notes", URL: "https://example.com/notes", Content: "v2 shipped"},
		},
	})

	if !strings.Contains(spec.System, "https://example.com/notes") {
		t.Error("web result URL missing")
	}
	if strings.Contains(spec.System, "No relevant notes were found") {
		t.Error("no-match statement present despite web results")
	}
}

func TestBuildPromptDocTitles(t *testing.T) {
	spec := BuildPrompt(PromptInput{
		Query:     "q",
		DocTitles: []string{"Runbook", "Meeting Notes"},
	})

	if !strings.Contains(spec.System, "Runbook, Meeting Notes") {
		t.Error("document title listing missing")
	}
}

func TestBuildPromptPure(t *testing.T) {
	in := PromptInput{
		Query:   "same",
		Results: resultsFrom("Doc", "content"),
	}
	a := BuildPrompt(in)
	b := BuildPrompt(in)
	if a.System != b.System || a.UserQuery != b.UserQuery {
		t.Error("BuildPrompt is not deterministic")
	}
}

func TestSourceTitlesDedup(t *testing.T) {
	results := resultsFrom("A", "1", "B", "2", "A", "3", "", "4")

	got := SourceTitles(results)
	want := []string{"A", "B"}
	if len(got) != len(want) {
		t.Fatalf("SourceTitles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SourceTitles()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
