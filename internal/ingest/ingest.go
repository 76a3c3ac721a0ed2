// Package ingest turns raw documents into indexed, persisted chunks.
//
// Ingestion is write-through: the document row lands first, then each chunk
// is embedded and persisted before being added to the in-memory index. A
// mid-ingest failure leaves the already-persisted chunks in place, so the
// partially ingested document is searchable and a retry overwrites cleanly.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alcove-ai/alcove/internal/chunk"
	"github.com/alcove-ai/alcove/internal/index"
	"github.com/alcove-ai/alcove/internal/store"
)

// Storage is the persistence surface ingestion needs, satisfied by
// *store.Store.
type Storage interface {
	PutDocument(ctx context.Context, d store.Document) error
	PutChunks(ctx context.Context, chunks []store.Chunk) error
	DeleteDocument(ctx context.Context, id string) error
	Documents(ctx context.Context) ([]store.Document, error)
	AllChunks(ctx context.Context) ([]store.Chunk, error)
}

// Embedder turns chunk text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result reports what one ingestion produced. Err is set when the file
// could not be read or ingestion stopped partway; ChunksIndexed still
// counts what landed before the failure.
type Result struct {
	DocumentID    string
	Title         string
	ChunksTotal   int
	ChunksIndexed int
	Err           error
}

// Ingestor drives the chunk-embed-persist-index pipeline.
type Ingestor struct {
	storage  Storage
	embedder Embedder
	chunker  *chunk.Chunker
	index    *index.Index
	logger   *slog.Logger
}

// New creates an Ingestor.
func New(storage Storage, embedder Embedder, chunker *chunk.Chunker, idx *index.Index, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		storage:  storage,
		embedder: embedder,
		chunker:  chunker,
		index:    idx,
		logger:   logger,
	}
}

// AddText ingests one document given as text. The document ID is derived
// from the source and content hash, so re-ingesting identical content lands
// on the same ID and replaces rather than duplicates.
//
// On a mid-ingest embedding failure the chunks embedded so far stay
// persisted and indexed; the returned Result reflects the partial count and
// the error says where it stopped.
func (ing *Ingestor) AddText(ctx context.Context, title, source, text string) (Result, error) {
	chunks := ing.chunker.Split(text)

	docID := documentID(source, text)
	res := Result{DocumentID: docID, Title: title, ChunksTotal: len(chunks)}

	// Nothing to index is not a failure; the document is simply skipped.
	if len(chunks) == 0 {
		return res, nil
	}

	doc := store.Document{
		ID:        docID,
		Title:     title,
		Source:    source,
		CreatedAt: time.Now(),
	}
	if err := ing.storage.PutDocument(ctx, doc); err != nil {
		return res, fmt.Errorf("persisting document %q: %w", title, err)
	}

	for i, c := range chunks {
		vec, err := ing.embedder.Embed(ctx, c.Text)
		if err != nil {
			return res, fmt.Errorf("embedding chunk %d of %q (kept %d): %w", i, title, res.ChunksIndexed, err)
		}

		sc := store.Chunk{
			ID:         fmt.Sprintf("%s-%04d", docID, i),
			DocumentID: docID,
			Seq:        i,
			Content:    c.Text,
			Section:    c.Section,
			Offset:     c.Offset,
			Embedding:  vec,
		}
		if err := ing.storage.PutChunks(ctx, []store.Chunk{sc}); err != nil {
			return res, fmt.Errorf("persisting chunk %d of %q (kept %d): %w", i, title, res.ChunksIndexed, err)
		}

		ing.index.Add(index.Chunk{
			ID:         sc.ID,
			DocumentID: docID,
			DocTitle:   title,
			Section:    c.Section,
			Content:    c.Text,
			Embedding:  vec,
		})
		res.ChunksIndexed++
	}

	ing.logger.Info("document ingested",
		"document_id", docID,
		"title", title,
		"chunks", res.ChunksIndexed)
	return res, nil
}

// AddFiles ingests each file independently. One unreadable or failing file
// does not stop the rest; its Result carries the error so callers can
// report it per file. The returned slice has one entry per input path, in
// order.
func (ing *Ingestor) AddFiles(ctx context.Context, paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			ing.logger.Warn("skipping unreadable file", "path", path, "error", err)
			results = append(results, Result{Title: filepath.Base(path), Err: err})
			continue
		}

		res, err := ing.AddText(ctx, filepath.Base(path), path, string(data))
		if err != nil {
			ing.logger.Warn("file ingestion incomplete", "path", path, "error", err)
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}

// RemoveDocument deletes a document with its chunks and prunes the index.
func (ing *Ingestor) RemoveDocument(ctx context.Context, documentID string) error {
	if err := ing.storage.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("removing document %s: %w", documentID, err)
	}
	ing.index.RemoveDocument(documentID)
	ing.logger.Info("document removed", "document_id", documentID)
	return nil
}

// Rebuild reloads the index from persisted chunks. Chunks whose document
// row is missing are indexed with an empty title rather than dropped; the
// content is still retrievable.
func (ing *Ingestor) Rebuild(ctx context.Context) error {
	docs, err := ing.storage.Documents(ctx)
	if err != nil {
		return fmt.Errorf("loading documents for rebuild: %w", err)
	}
	titles := make(map[string]string, len(docs))
	for _, d := range docs {
		titles[d.ID] = d.Title
	}

	rows, err := ing.storage.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("loading chunks for rebuild: %w", err)
	}

	chunks := make([]index.Chunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, index.Chunk{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			DocTitle:   titles[r.DocumentID],
			Section:    r.Section,
			Content:    r.Content,
			Embedding:  r.Embedding,
		})
	}

	ing.index.Rebuild(chunks)
	ing.logger.Info("index rebuilt", "chunks", len(chunks), "documents", len(docs))
	return nil
}

// documentID derives a stable ID from the source and a content hash.
func documentID(source, text string) string {
	h := sha256.Sum256([]byte(source + "\x00" + text))
	return hex.EncodeToString(h[:8])
}
