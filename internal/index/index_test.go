package index

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"both empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestCosineScaleInvariant(t *testing.T) {
	a := []float32{0.3, 0.7, 0.1}
	scaled := []float32{3, 7, 1}

	if got := Cosine(a, scaled); math.Abs(got-1) > 1e-6 {
		t.Errorf("Cosine(a, 10a) = %g, want 1", got)
	}
}

func TestRebuildReplacesContent(t *testing.T) {
	x := New(&stubEmbedder{})
	x.Add(Chunk{ID: "old", DocumentID: "d1"})

	x.Rebuild([]Chunk{{ID: "a", DocumentID: "d2"}, {ID: "b", DocumentID: "d2"}})

	if x.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", x.Len())
	}
	for _, c := range x.Chunks() {
		if c.DocumentID != "d2" {
			t.Errorf("old chunk survived rebuild: %+v", c)
		}
	}
}

func TestRemoveDocument(t *testing.T) {
	x := New(&stubEmbedder{})
	x.Add(
		Chunk{ID: "a-0", DocumentID: "a"},
		Chunk{ID: "b-0", DocumentID: "b"},
		Chunk{ID: "a-1", DocumentID: "a"},
	)

	x.RemoveDocument("a")

	chunks := x.Chunks()
	if len(chunks) != 1 || chunks[0].ID != "b-0" {
		t.Fatalf("Chunks() = %+v, want only b-0", chunks)
	}
}

func TestChunksReturnsCopy(t *testing.T) {
	x := New(&stubEmbedder{})
	x.Add(Chunk{ID: "a", Content: "original"})

	snap := x.Chunks()
	snap[0].Content = "mutated"

	if got := x.Chunks()[0].Content; got != "original" {
		t.Errorf("index content = %q, snapshot mutation leaked", got)
	}
}

func TestEmbedQuery(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 2}}
	x := New(emb)

	vec, err := x.EmbedQuery(context.Background(), "query")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 2 || emb.calls != 1 {
		t.Errorf("vec = %v, calls = %d", vec, emb.calls)
	}
}

func TestEmbedQueryError(t *testing.T) {
	wantErr := errors.New("provider down")
	x := New(&stubEmbedder{err: wantErr})

	_, err := x.EmbedQuery(context.Background(), "query")
	if !errors.Is(err, wantErr) {
		t.Fatalf("EmbedQuery() error = %v, want wrapped %v", err, wantErr)
	}
}
