package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/onnwee/highlights/internal/tracing"
)

// PostgresStore implements EmbeddingStore and NeighborIndex on the
// post_embeddings table using the pgvector extension.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get retrieves the embedding for a post.
func (s *PostgresStore) Get(ctx context.Context, postID string) (e *PostEmbedding, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_embeddings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT post_id, model_id, content_hash, embedding, updated_at
		FROM post_embeddings
		WHERE post_id = $1
	`

	var vec pgvector.Vector
	e = &PostEmbedding{}
	err = s.db.QueryRowContext(ctx, query, postID).Scan(&e.PostID, &e.ModelID, &e.ContentHash, &vec, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post embedding: %w", err)
	}
	e.Vector = vec.Slice()
	return e, nil
}

// Upsert writes the embedding, model and hash of a post as a single row.
func (s *PostgresStore) Upsert(ctx context.Context, e PostEmbedding) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_embeddings", tracing.DBOperationUpsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO post_embeddings (post_id, model_id, content_hash, embedding, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (post_id) DO UPDATE SET
			model_id = EXCLUDED.model_id,
			content_hash = EXCLUDED.content_hash,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`

	if _, err = s.db.ExecContext(ctx, query, e.PostID, e.ModelID, e.ContentHash, pgvector.NewVector(e.Vector)); err != nil {
		return fmt.Errorf("failed to upsert post embedding: %w", err)
	}
	return nil
}

// GetMany retrieves up to limit embeddings for the given posts.
func (s *PostgresStore) GetMany(ctx context.Context, postIDs []string, limit int) (out []PostEmbedding, err error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "post_embeddings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT post_id, model_id, content_hash, embedding, updated_at
		FROM post_embeddings
		WHERE post_id = ANY($1)
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(postIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query post embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e PostEmbedding
		var vec pgvector.Vector
		if err = rows.Scan(&e.PostID, &e.ModelID, &e.ContentHash, &vec, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post embedding: %w", err)
		}
		e.Vector = vec.Slice()
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post embeddings: %w", err)
	}
	return out, nil
}

// NearestNeighbors orders stored embeddings by cosine distance to vec.
// Rows of a different dimension are excluded.
func (s *PostgresStore) NearestNeighbors(ctx context.Context, vec []float32, k int) (out []Neighbor, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_embeddings", tracing.DBOperationSimilarity)
	defer func() { endSpan(err) }()

	query := `
		SELECT post_id, embedding <=> $1 AS distance
		FROM post_embeddings
		WHERE vector_dims(embedding) = $2
		ORDER BY embedding <=> $1, post_id
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(vec), len(vec), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest neighbors: %w", err)
	}
	defer rows.Close()

	out = make([]Neighbor, 0, k)
	for rows.Next() {
		var n Neighbor
		if err = rows.Scan(&n.PostID, &n.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		out = append(out, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate neighbors: %w", err)
	}
	return out, nil
}

// PostgresInterestStore implements InterestStore on user_interest_vectors.
type PostgresInterestStore struct {
	db *sql.DB
}

// NewPostgresInterestStore creates a new PostgresInterestStore.
func NewPostgresInterestStore(db *sql.DB) *PostgresInterestStore {
	return &PostgresInterestStore{db: db}
}

// Get retrieves a user's interest vector.
func (s *PostgresInterestStore) Get(ctx context.Context, userID string) (v *UserInterest, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "user_interest_vectors", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT user_id, model_id, embedding, updated_at
		FROM user_interest_vectors
		WHERE user_id = $1
	`

	var vec pgvector.Vector
	v = &UserInterest{}
	err = s.db.QueryRowContext(ctx, query, userID).Scan(&v.UserID, &v.ModelID, &vec, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interest vector: %w", err)
	}
	v.Vector = vec.Slice()
	return v, nil
}

// Upsert replaces the user's interest vector wholesale.
func (s *PostgresInterestStore) Upsert(ctx context.Context, v UserInterest) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "user_interest_vectors", tracing.DBOperationUpsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO user_interest_vectors (user_id, model_id, embedding, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			model_id = EXCLUDED.model_id,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`

	if _, err = s.db.ExecContext(ctx, query, v.UserID, v.ModelID, pgvector.NewVector(v.Vector)); err != nil {
		return fmt.Errorf("failed to upsert interest vector: %w", err)
	}
	return nil
}
