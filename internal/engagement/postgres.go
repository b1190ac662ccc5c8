package engagement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/highlights/internal/tracing"
)

// PostgresLog implements Log on the engagement_events table.
type PostgresLog struct {
	db *sql.DB
}

// NewPostgresLog creates a new PostgresLog.
func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append inserts an event row.
func (l *PostgresLog) Append(ctx context.Context, e Event) (err error) {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "engagement_events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	var meta sql.NullString
	if len(e.Meta) > 0 {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal event meta: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	var createdAt any
	if !e.CreatedAt.IsZero() {
		createdAt = e.CreatedAt
	}

	query := `
		INSERT INTO engagement_events (id, user_id, post_id, event_type, value_num, value_text, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
	`

	_, err = l.db.ExecContext(ctx, query,
		e.ID,
		e.UserID,
		e.PostID,
		string(e.Type),
		e.ValueNum,
		e.ValueText,
		meta,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert engagement event: %w", err)
	}
	return nil
}

// PositivePostIDs reads the newest positive events of a user.
func (l *PostgresLog) PositivePostIDs(ctx context.Context, userID string, since time.Time, limit int) (out []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "engagement_events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	types := make([]string, len(PositiveTypes))
	for i, t := range PositiveTypes {
		types[i] = string(t)
	}

	query := `
		SELECT post_id
		FROM engagement_events
		WHERE user_id = $1 AND event_type = ANY($2) AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4
	`

	rows, err := l.db.QueryContext(ctx, query, userID, pq.Array(types), since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query positive events: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return distinct(ids), nil
}
