package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/highlights/internal/tracing"
)

// PostgresStore implements Store on the hashtags and post_hashtags tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertPostTags replaces a post's tags in a single transaction.
func (s *PostgresStore) UpsertPostTags(ctx context.Context, postID string, tags []string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_hashtags", tracing.DBOperationUpsert)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM post_hashtags WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("failed to clear post tags: %w", err)
	}

	for _, name := range tags {
		var id int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO hashtags (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, name).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to upsert hashtag %q: %w", name, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_hashtags (post_id, hashtag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, postID, id)
		if err != nil {
			return fmt.Errorf("failed to tag post: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post tags: %w", err)
	}
	return nil
}

// Resolve looks up a hashtag by name.
func (s *PostgresStore) Resolve(ctx context.Context, name string) (id int64, found bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "hashtags", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowContext(ctx, `SELECT id FROM hashtags WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve hashtag: %w", err)
	}
	return id, true, nil
}

// PostIDs lists posts tagged with tagID.
func (s *PostgresStore) PostIDs(ctx context.Context, tagID int64, limit int) (out []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_hashtags", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id FROM post_hashtags WHERE hashtag_id = $1 LIMIT $2
	`, tagID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tagged posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tagged post: %w", err)
		}
		out = append(out, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tagged posts: %w", err)
	}
	return out, nil
}
