package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// PostgresStorage implements Storage on PostgreSQL via pgx. Fan-out atomicity
// comes from wrapping the message insert and all delivery record inserts in
// one transaction.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Postgres-backed notification storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const selectMessageColumns = `
	m.id, m.category, m.severity, m.title, m.body, m.payload,
	m.target_user_id, m.requires_role, m.action_url, m.action_text,
	m.occurrences, m.created_at, m.expires_at,
	d.delivered_at IS NOT NULL AS delivered,
	d.read_at IS NOT NULL AS read`

func (s *PostgresStorage) Store(ctx context.Context, msg notification.Message, recipientIDs []string) error {
	if msg.ID == "" {
		return ErrMessageIDRequired
	}
	if len(recipientIDs) == 0 {
		return ErrNoRecipients
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Occurrences == 0 {
		msg.Occurrences = 1
	}

	var payload []byte
	if len(msg.Payload) > 0 {
		var err error
		payload, err = json.Marshal(msg.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO notification_messages
			(id, category, severity, title, body, payload, target_user_id,
			 requires_role, action_url, action_text, occurrences, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''),
			NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)`,
		msg.ID, string(msg.Category), string(msg.Severity), msg.Title, msg.Body, payload,
		msg.TargetUserID, string(msg.RequiresRole), msg.ActionURL, msg.ActionText,
		msg.Occurrences, msg.CreatedAt, msg.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("insert message: %w", err)
	}

	rows := make([][]any, 0, len(recipientIDs))
	for _, rid := range recipientIDs {
		rows = append(rows, []any{msg.ID, rid})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"notification_deliveries"},
		[]string{"message_id", "recipient_id"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("insert delivery records: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStorage) GetPending(ctx context.Context, recipientID string, limit int) ([]notification.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectMessageColumns+`
		FROM notification_messages m
		JOIN notification_deliveries d ON d.message_id = m.id
		WHERE d.recipient_id = $1
		  AND d.delivered_at IS NULL
		  AND (m.expires_at IS NULL OR m.expires_at > now())
		ORDER BY m.created_at ASC
		LIMIT $2`,
		recipientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (s *PostgresStorage) History(ctx context.Context, recipientID string, limit, offset int) ([]notification.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectMessageColumns+`
		FROM notification_messages m
		JOIN notification_deliveries d ON d.message_id = m.id
		WHERE d.recipient_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3`,
		recipientID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (s *PostgresStorage) MarkDelivered(ctx context.Context, messageID, recipientID string) error {
	// delivered_at is only set when still null, which makes the call idempotent.
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET delivered_at = COALESCE(delivered_at, now())
		WHERE message_id = $1 AND recipient_id = $2`,
		messageID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (s *PostgresStorage) MarkRead(ctx context.Context, messageID, recipientID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET delivered_at = COALESCE(delivered_at, now()),
		    read_at = COALESCE(read_at, now())
		WHERE message_id = $1 AND recipient_id = $2`,
		messageID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (s *PostgresStorage) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET delivered_at = COALESCE(delivered_at, now()), read_at = now()
		WHERE recipient_id = $1 AND read_at IS NULL`,
		recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) RecordAttempt(ctx context.Context, messageID, recipientID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET attempts = attempts + 1, last_attempt_at = now()
		WHERE message_id = $1 AND recipient_id = $2`,
		messageID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (s *PostgresStorage) IncrementOccurrences(ctx context.Context, messageID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_messages
		SET occurrences = occurrences + 1
		WHERE id = $1`,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("increment occurrences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM notification_messages m
		JOIN notification_deliveries d ON d.message_id = m.id
		WHERE d.recipient_id = $1
		  AND d.read_at IS NULL
		  AND (m.expires_at IS NULL OR m.expires_at > now())`,
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) PurgeExpired(ctx context.Context, retention time.Duration) (int, error) {
	// Expired messages go once retention has elapsed past their expiry;
	// settled messages go once older than the retention window. A pending,
	// non-expired message is never removed regardless of age.
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notification_messages m
		WHERE (m.expires_at IS NOT NULL AND m.expires_at < now() - make_interval(secs => $1))
		   OR (m.created_at < now() - make_interval(secs => $1)
		       AND NOT EXISTS (
		           SELECT 1 FROM notification_deliveries d
		           WHERE d.message_id = m.id AND d.delivered_at IS NULL))`,
		retention.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanMessages(rows pgx.Rows) ([]notification.Message, error) {
	var out []notification.Message
	for rows.Next() {
		var (
			msg          notification.Message
			payload      []byte
			targetUserID *string
			requiresRole *string
			actionURL    *string
			actionText   *string
		)
		if err := rows.Scan(
			&msg.ID, &msg.Category, &msg.Severity, &msg.Title, &msg.Body, &payload,
			&targetUserID, &requiresRole, &actionURL, &actionText,
			&msg.Occurrences, &msg.CreatedAt, &msg.ExpiresAt,
			&msg.Delivered, &msg.Read,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &msg.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		if targetUserID != nil {
			msg.TargetUserID = *targetUserID
		}
		if requiresRole != nil {
			msg.RequiresRole = notification.Role(*requiresRole)
		}
		if actionURL != nil {
			msg.ActionURL = *actionURL
		}
		if actionText != nil {
			msg.ActionText = *actionText
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
