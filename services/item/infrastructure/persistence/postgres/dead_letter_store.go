package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ghuser/itemflow/pkg/database"
	"github.com/ghuser/itemflow/pkg/events"
)

// DeadLetterRecord is one message diverted off the queue after exhausting
// its retry budget (or failing permanently), kept for operator inspection.
type DeadLetterRecord struct {
	ID           uuid.UUID         `json:"id"`
	Topic        string            `json:"topic"`
	MessageID    string            `json:"message_id"`
	Payload      json.RawMessage   `json:"payload"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ReceiveCount int               `json:"receive_count"`
	Reason       string            `json:"reason"`
	CreatedAt    time.Time         `json:"created_at"`
	ResolvedAt   *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy   string            `json:"resolved_by,omitempty"`
}

// DeadLetterStore persists diverted messages in PostgreSQL.
// It implements events.DeadLetterer.
type DeadLetterStore struct {
	db *database.Database
}

// NewDeadLetterStore returns a DeadLetterStore backed by the given pool.
func NewDeadLetterStore(db *database.Database) *DeadLetterStore {
	return &DeadLetterStore{db: db}
}

// Divert stores the dead letter. Inserting the same message id twice (the
// queue redelivered while a previous diversion raced) updates the existing
// row instead of duplicating it.
func (s *DeadLetterStore) Divert(ctx context.Context, dl events.DeadLetter) error {
	meta, err := json.Marshal(dl.Metadata)
	if err != nil {
		return fmt.Errorf("marshal dead letter metadata: %w", err)
	}

	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO dead_letters (id, topic, message_id, payload, metadata, receive_count, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (message_id) DO UPDATE
		SET receive_count = EXCLUDED.receive_count,
		    reason = EXCLUDED.reason
	`, uuid.New(), dl.Topic, dl.MessageID, dl.Payload, meta, dl.ReceiveCount, dl.Reason)
	if err != nil {
		return classify("insert dead letter", err)
	}
	return nil
}

// List returns dead letters, unresolved first unless resolved=true, newest
// first, bounded by limit.
func (s *DeadLetterStore) List(ctx context.Context, resolved bool, limit int) ([]DeadLetterRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	cond := "resolved_at IS NULL"
	if resolved {
		cond = "resolved_at IS NOT NULL"
	}

	rows, err := s.db.Pool().Query(ctx, fmt.Sprintf(`
		SELECT id, topic, message_id, payload, metadata, receive_count, reason, created_at, resolved_at, resolved_by
		FROM dead_letters
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $1
	`, cond), limit)
	if err != nil {
		return nil, classify("query dead letters", err)
	}
	defer rows.Close()

	letters := []DeadLetterRecord{}
	for rows.Next() {
		rec, err := scanDeadLetter(rows)
		if err != nil {
			return nil, classify("scan dead letter", err)
		}
		letters = append(letters, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate dead letters", err)
	}
	return letters, nil
}

// Get returns one dead letter by id, or (nil, nil) when absent.
func (s *DeadLetterStore) Get(ctx context.Context, id uuid.UUID) (*DeadLetterRecord, error) {
	row := s.db.Pool().QueryRow(ctx, `
		SELECT id, topic, message_id, payload, metadata, receive_count, reason, created_at, resolved_at, resolved_by
		FROM dead_letters WHERE id = $1
	`, id)

	rec, err := scanDeadLetter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("query dead letter", err)
	}
	return &rec, nil
}

// Resolve marks a dead letter handled. Returns false when the id does not
// exist or was already resolved.
func (s *DeadLetterStore) Resolve(ctx context.Context, id uuid.UUID, resolvedBy string) (bool, error) {
	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE dead_letters
		SET resolved_at = now(), resolved_by = $2
		WHERE id = $1 AND resolved_at IS NULL
	`, id, resolvedBy)
	if err != nil {
		return false, classify("resolve dead letter", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanDeadLetter(row rowScanner) (DeadLetterRecord, error) {
	var (
		rec        DeadLetterRecord
		meta       []byte
		resolvedBy *string
	)
	if err := row.Scan(&rec.ID, &rec.Topic, &rec.MessageID, &rec.Payload, &meta,
		&rec.ReceiveCount, &rec.Reason, &rec.CreatedAt, &rec.ResolvedAt, &resolvedBy); err != nil {
		return DeadLetterRecord{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return DeadLetterRecord{}, fmt.Errorf("unmarshal dead letter metadata: %w", err)
		}
	}
	if resolvedBy != nil {
		rec.ResolvedBy = *resolvedBy
	}
	return rec, nil
}
