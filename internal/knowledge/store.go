package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrDimensionMismatch indicates a vector whose length differs from the
// dimension established for the collection by its first upsert.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Store manages document collections backed by PostgreSQL + pgvector.
//
// A collection is an isolated namespace of documents and their embeddings.
// The embedding dimension of a collection is established by its first upsert
// and enforced on every write and search afterwards.
//
// Store is safe for concurrent use by multiple goroutines. Each Upsert call
// runs in a single transaction and takes a row lock on the collection, so
// concurrent batches against the same collection apply as units and never
// interleave writes for overlapping ids.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store on the given connection pool.
// A nil logger falls back to slog.Default().
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Ensure returns a handle to the named collection, creating it if absent.
// Idempotent: repeated calls with the same name return handles to the same
// underlying collection. The second return reports whether this call
// created the collection.
func (s *Store) Ensure(ctx context.Context, name string) (*Collection, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("collection name is empty")
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO collections (name) VALUES ($1)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id`,
		name,
	).Scan(&id)
	if err == nil {
		s.logger.Debug("created collection", "name", name, "id", id)
		return &Collection{id: id, Name: name}, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("creating collection %q: %w", name, err)
	}

	// Conflict path: the collection already exists.
	if err := s.pool.QueryRow(ctx,
		`SELECT id FROM collections WHERE name = $1`, name,
	).Scan(&id); err != nil {
		return nil, false, fmt.Errorf("loading collection %q: %w", name, err)
	}
	return &Collection{id: id, Name: name}, false, nil
}

// Drop deletes a collection and every document in it.
// Dropping a collection that does not exist is a no-op. A later Ensure with
// the same name creates a fresh empty collection.
func (s *Store) Drop(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM collections WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("dropping collection %q: %w", name, err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.Debug("dropped collection", "name", name)
	}
	return nil
}

// Upsert writes a batch of documents and their embeddings to the collection.
// docs and vectors must have equal length. Writing an existing id replaces
// that document's text, metadata, and vector together.
//
// The whole batch runs in one transaction with the collection row locked,
// so it either applies completely or not at all relative to other callers.
// Returns ErrDimensionMismatch when a vector's length differs from the
// collection's established dimension (or from the rest of the batch).
func (s *Store) Upsert(ctx context.Context, col *Collection, docs []Document, vectors [][]float32) error {
	if col == nil {
		return fmt.Errorf("nil collection handle")
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("%d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("upsert rollback", "error", rbErr)
		}
	}()

	// Lock the collection row: serializes concurrent batches and pins the
	// dimension check to a consistent read.
	var dim *int32
	if err := tx.QueryRow(ctx,
		`SELECT dimension FROM collections WHERE id = $1 FOR UPDATE`, col.id,
	).Scan(&dim); err != nil {
		return fmt.Errorf("locking collection %q: %w", col.Name, err)
	}

	batchDim := int32(len(vectors[0]))
	if dim == nil {
		if _, err := tx.Exec(ctx,
			`UPDATE collections SET dimension = $1 WHERE id = $2`, batchDim, col.id,
		); err != nil {
			return fmt.Errorf("pinning dimension for %q: %w", col.Name, err)
		}
	} else {
		batchDim = *dim
	}

	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document %d has empty id", i)
		}
		if int32(len(vectors[i])) != batchDim {
			return fmt.Errorf("%w: document %q has dimension %d, collection %q expects %d",
				ErrDimensionMismatch, doc.ID, len(vectors[i]), col.Name, batchDim)
		}

		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO documents (collection_id, id, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (collection_id, id) DO UPDATE
			 SET content = EXCLUDED.content,
			     embedding = EXCLUDED.embedding,
			     metadata = EXCLUDED.metadata,
			     updated_at = now()`,
			col.id, doc.ID, doc.Text, pgvector.NewVector(vectors[i]), metadataJSON,
		); err != nil {
			return fmt.Errorf("upserting document %q: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}

	s.logger.Debug("upserted documents", "collection", col.Name, "count", len(docs))
	return nil
}

// Search returns up to topK documents nearest to vec by cosine distance,
// nearest first. Ties break by ascending document id, so results are
// deterministic for a fixed index state. Searching an empty collection
// returns an empty slice, not an error.
func (s *Store) Search(ctx context.Context, col *Collection, vec []float32, topK int) ([]Result, error) {
	if col == nil {
		return nil, fmt.Errorf("nil collection handle")
	}
	if topK < 1 {
		return nil, fmt.Errorf("topK must be >= 1, got %d", topK)
	}

	var dim *int32
	if err := s.pool.QueryRow(ctx,
		`SELECT dimension FROM collections WHERE id = $1`, col.id,
	).Scan(&dim); err != nil {
		return nil, fmt.Errorf("loading collection %q: %w", col.Name, err)
	}
	if dim == nil {
		// Nothing has ever been upserted.
		return []Result{}, nil
	}
	if int32(len(vec)) != *dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection %q expects %d",
			ErrDimensionMismatch, len(vec), col.Name, *dim)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT content, metadata, embedding <=> $2 AS distance
		 FROM documents
		 WHERE collection_id = $1
		 ORDER BY embedding <=> $2, id ASC
		 LIMIT $3`,
		col.id, pgvector.NewVector(vec), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", col.Name, err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var r Result
		var metadataJSON []byte
		if err := rows.Scan(&r.Text, &metadataJSON, &r.Distance); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}

// Delete removes a single document by id. Deleting an id that is not
// present is a no-op.
func (s *Store) Delete(ctx context.Context, col *Collection, id string) error {
	if col == nil {
		return fmt.Errorf("nil collection handle")
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection_id = $1 AND id = $2`, col.id, id,
	); err != nil {
		return fmt.Errorf("deleting document %q: %w", id, err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context, col *Collection) (int64, error) {
	if col == nil {
		return 0, fmt.Errorf("nil collection handle")
	}
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection_id = $1`, col.id,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents in %q: %w", col.Name, err)
	}
	return n, nil
}
