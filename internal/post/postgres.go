package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/highlights/internal/tracing"
)

// PostgresRepository implements Repository on top of the posts table and the
// post_metrics_7d view.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves a post, excluding soft-deleted rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (p *Post, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, owner_id, COALESCE(description, ''), COALESCE(sport, ''), COALESCE(team, ''), created_at
		FROM posts
		WHERE id = $1 AND deleted_at IS NULL
	`

	p = &Post{}
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.OwnerID,
		&p.Description,
		&p.Sport,
		&p.Team,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

// ListCandidates reads the 7-day metrics view. No ORDER BY is applied.
func (r *PostgresRepository) ListCandidates(ctx context.Context, sport string, limit int) (out []Candidate, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_metrics_7d", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT post_id, COALESCE(sport, ''), created_at,
		       views_7d, likes_7d, shares_7d, completion_rate_7d, avg_watch_seconds_7d
		FROM post_metrics_7d
		WHERE ($1 = '' OR sport = $1)
		ORDER BY created_at DESC, post_id
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, sport, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	out = make([]Candidate, 0, limit)
	for rows.Next() {
		var c Candidate
		if err = rows.Scan(
			&c.PostID,
			&c.Sport,
			&c.CreatedAt,
			&c.Views7d,
			&c.Likes7d,
			&c.Shares7d,
			&c.CompletionRate7d,
			&c.AvgWatchSeconds7d,
		); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return out, nil
}
