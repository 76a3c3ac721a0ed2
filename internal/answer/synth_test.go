package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/alcove-ai/alcove/internal/index"
	"github.com/alcove-ai/alcove/internal/log"
	"github.com/alcove-ai/alcove/internal/retrieval"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedCompleter struct {
	deltas []string
	err    error
	calls  int
	// failFirstN makes the first N calls fail with err, then succeed.
	failFirstN int
}

func (c *scriptedCompleter) Complete(_ context.Context, _ PromptSpec, onDelta func(string)) (string, error) {
	c.calls++
	if c.err != nil && (c.failFirstN == 0 || c.calls <= c.failFirstN) {
		return "", c.err
	}
	var full strings.Builder
	for _, d := range c.deltas {
		full.WriteString(d)
		onDelta(d)
	}
	return full.String(), nil
}

type fakeSearcher struct {
	results []WebResult
	err     error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ string) ([]WebResult, error) {
	f.calls++
	return f.results, f.err
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func newSynth(c Completer, s WebSearcher) *Synthesizer {
	return NewSynthesizer(c, s, rate.NewLimiter(rate.Inf, 1), fastRetry(), 10, log.NewNop())
}

func collect(ch <-chan Snapshot) []Snapshot {
	var out []Snapshot
	for snap := range ch {
		out = append(out, snap)
	}
	return out
}

func TestGenerateStreamsCumulativeSnapshots(t *testing.T) {
	synth := newSynth(&scriptedCompleter{deltas: []string{"Hel", "lo ", "there"}}, nil)

	snaps := collect(synth.Generate(context.Background(), Request{Query: "hi"}))
	if len(snaps) != 4 {
		t.Fatalf("got %d snapshots, want 4 (3 deltas + terminal)", len(snaps))
	}

	wantTexts := []string{"Hel", "Hello ", "Hello there", "Hello there"}
	for i, want := range wantTexts {
		if snaps[i].Text != want {
			t.Errorf("snapshot %d text = %q, want %q", i, snaps[i].Text, want)
		}
	}

	last := snaps[len(snaps)-1]
	if !last.Done || last.Err != nil {
		t.Errorf("terminal snapshot = %+v, want Done without error", last)
	}
	for i, s := range snaps[:len(snaps)-1] {
		if s.Done {
			t.Errorf("snapshot %d has Done set before the end", i)
		}
	}
}

func TestGenerateCarriesSources(t *testing.T) {
	synth := newSynth(&scriptedCompleter{deltas: []string{"answer"}}, nil)

	results := []retrieval.Result{
		{Chunk: index.Chunk{DocTitle: "Runbook", Content: "x"}},
		{Chunk: index.Chunk{DocTitle: "Runbook", Content: "y"}},
		{Chunk: index.Chunk{DocTitle: "Notes", Content: "z"}},
	}
	snaps := collect(synth.Generate(context.Background(), Request{Query: "q", Results: results}))

	last := snaps[len(snaps)-1]
	if len(last.Sources) != 2 || last.Sources[0] != "Runbook" || last.Sources[1] != "Notes" {
		t.Errorf("Sources = %v, want [Runbook Notes]", last.Sources)
	}
}

func TestGenerateFailureEmitsTerminalSnapshot(t *testing.T) {
	wantErr := errors.New("model exploded")
	synth := newSynth(&scriptedCompleter{err: wantErr}, nil)

	snaps := collect(synth.Generate(context.Background(), Request{Query: "q"}))
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1 terminal", len(snaps))
	}

	last := snaps[0]
	if !last.Done || !errors.Is(last.Err, wantErr) {
		t.Fatalf("terminal = %+v, want Done with wrapped error", last)
	}
	if last.Text != failureMessage {
		t.Errorf("terminal text = %q, want failure message", last.Text)
	}
}

func TestGenerateRetriesRetryableErrors(t *testing.T) {
	c := &scriptedCompleter{
		deltas:     []string{"recovered"},
		err:        errors.New("503 service unavailable"),
		failFirstN: 2,
	}
	synth := newSynth(c, nil)

	snaps := collect(synth.Generate(context.Background(), Request{Query: "q"}))

	last := snaps[len(snaps)-1]
	if last.Err != nil {
		t.Fatalf("terminal error = %v, want recovery", last.Err)
	}
	if last.Text != "recovered" {
		t.Errorf("terminal text = %q", last.Text)
	}
	if c.calls != 3 {
		t.Errorf("completer called %d times, want 3", c.calls)
	}
}

func TestGenerateDoesNotRetryNonRetryable(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("invalid api key")}
	synth := newSynth(c, nil)

	collect(synth.Generate(context.Background(), Request{Query: "q"}))
	if c.calls != 1 {
		t.Errorf("completer called %d times, want 1", c.calls)
	}
}

func TestGenerateLiveSearchOnThinContext(t *testing.T) {
	searcher := &fakeSearcher{results: []WebResult{{Title: "t", URL: "https://x", Content: "c"}}}
	synth := newSynth(&scriptedCompleter{deltas: []string{"a"}}, searcher)

	snaps := collect(synth.Generate(context.Background(), Request{Query: "q"}))

	if searcher.calls != 1 {
		t.Fatalf("searcher called %d times, want 1 for thin context", searcher.calls)
	}
	last := snaps[len(snaps)-1]
	if len(last.GroundingSources) != 1 {
		t.Fatalf("GroundingSources = %v, want 1", last.GroundingSources)
	}
	if got := last.GroundingSources[0]; got.Title != "t" || got.URL != "https://x" {
		t.Errorf("GroundingSources[0] = %+v, want title and url carried through", got)
	}
}

func TestGenerateSkipsSearchWithRichContext(t *testing.T) {
	searcher := &fakeSearcher{}
	synth := newSynth(&scriptedCompleter{deltas: []string{"a"}}, searcher)

	results := []retrieval.Result{
		{Chunk: index.Chunk{DocTitle: "A", Content: "x"}},
		{Chunk: index.Chunk{DocTitle: "B", Content: "y"}},
	}
	collect(synth.Generate(context.Background(), Request{Query: "q", Results: results}))

	if searcher.calls != 0 {
		t.Errorf("searcher called %d times, want 0", searcher.calls)
	}
}

func TestGenerateForcedLiveSearch(t *testing.T) {
	searcher := &fakeSearcher{}
	synth := newSynth(&scriptedCompleter{deltas: []string{"a"}}, searcher)

	results := []retrieval.Result{
		{Chunk: index.Chunk{DocTitle: "A", Content: "x"}},
		{Chunk: index.Chunk{DocTitle: "B", Content: "y"}},
	}
	collect(synth.Generate(context.Background(), Request{Query: "q", Results: results, LiveSearch: true}))

	if searcher.calls != 1 {
		t.Errorf("searcher called %d times, want 1 when forced", searcher.calls)
	}
}

func TestGenerateSearchFailureDegrades(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("searxng down")}
	synth := newSynth(&scriptedCompleter{deltas: []string{"still answered"}}, searcher)

	snaps := collect(synth.Generate(context.Background(), Request{Query: "q"}))

	last := snaps[len(snaps)-1]
	if last.Err != nil {
		t.Fatalf("terminal error = %v, want nil despite search failure", last.Err)
	}
	if last.Text != "still answered" {
		t.Errorf("terminal text = %q", last.Text)
	}
	if len(last.GroundingSources) != 0 {
		t.Errorf("GroundingSources = %v, want empty", last.GroundingSources)
	}
}

func TestGenerateChannelAlwaysCloses(t *testing.T) {
	synth := newSynth(&scriptedCompleter{deltas: []string{"x"}}, nil)

	ch := synth.Generate(context.Background(), Request{Query: "q"})
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed")
		}
	}
}

func TestGenerateNoRetryAfterPartialStream(t *testing.T) {
	c := &partialFailCompleter{}
	synth := newSynth(c, nil)

	snaps := collect(synth.Generate(context.Background(), Request{Query: "q"}))

	if c.calls != 1 {
		t.Errorf("completer called %d times, want 1 after partial output", c.calls)
	}
	last := snaps[len(snaps)-1]
	if last.Err == nil || !last.Done {
		t.Errorf("terminal = %+v, want Done with error", last)
	}
}

// partialFailCompleter streams one delta and then fails retryably.
type partialFailCompleter struct {
	calls int
}

func (c *partialFailCompleter) Complete(_ context.Context, _ PromptSpec, onDelta func(string)) (string, error) {
	c.calls++
	onDelta("partial ")
	return "", errors.New("503 mid-stream")
}
