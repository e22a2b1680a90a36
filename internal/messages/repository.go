package messages

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	pkgerrors "inbox/pkg/errors"
)

type InsertOutcome int

const (
	OutcomeCreated InsertOutcome = iota
	OutcomeAlreadyExists
)

type Repository interface {
	Insert(ctx context.Context, msg *Message) (InsertOutcome, error)
	List(ctx context.Context, filter ListFilter) ([]Message, int, error)
	Stats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// Insert writes the message relying on the primary key on message_id for
// idempotency. There is no exists pre-check; the unique constraint is the
// sole serialization point, so concurrent writers from any number of
// processes cannot race a duplicate in.
func (r *PostgresRepository) Insert(ctx context.Context, msg *Message) (InsertOutcome, error) {
	query := `
		INSERT INTO messages (message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		msg.MessageID, msg.From, msg.To, msg.Ts, msg.Text, msg.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				return OutcomeAlreadyExists, nil
			}
		}
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return OutcomeAlreadyExists, nil
		}
		return 0, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to insert message: %w", err))
	}

	return OutcomeCreated, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Message, int, error) {
	whereClause, args := buildWhere(filter)

	countQuery := "SELECT COUNT(*) FROM messages" + whereClause

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to count messages: %w", err))
	}

	query := fmt.Sprintf(`
		SELECT message_id, from_msisdn, to_msisdn, ts, text, created_at
		FROM messages%s
		ORDER BY ts ASC, message_id ASC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to list messages: %w", err))
	}
	defer rows.Close()

	items := make([]Message, 0, filter.Limit)
	for rows.Next() {
		var msg Message
		var text sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.From, &msg.To, &msg.Ts, &text, &msg.CreatedAt); err != nil {
			return nil, 0, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to scan message: %w", err))
		}
		msg.Text = text.String
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to read messages: %w", err))
	}

	return items, total, nil
}

func buildWhere(filter ListFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.From != "" {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("from_msisdn = $%d", len(args)))
	}

	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("ts >= $%d", len(args)))
	}

	if filter.TextQuery != "" {
		args = append(args, "%"+escapeLike(filter.TextQuery)+"%")
		conditions = append(conditions, fmt.Sprintf("text ILIKE $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		MessagesPerSender: make([]SenderCount, 0, 10),
	}

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT from_msisdn) FROM messages",
	).Scan(&stats.TotalMessages, &stats.SendersCount)
	if err != nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to count messages: %w", err))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT from_msisdn, COUNT(*) AS count
		FROM messages
		GROUP BY from_msisdn
		ORDER BY count DESC, from_msisdn ASC
		LIMIT 10
	`)
	if err != nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to aggregate senders: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var sc SenderCount
		if err := rows.Scan(&sc.From, &sc.Count); err != nil {
			return nil, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to scan sender count: %w", err))
		}
		stats.MessagesPerSender = append(stats.MessagesPerSender, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to read sender counts: %w", err))
	}

	var first, last sql.NullTime
	err = r.db.QueryRowContext(ctx,
		"SELECT MIN(ts), MAX(ts) FROM messages",
	).Scan(&first, &last)
	if err != nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(fmt.Errorf("failed to read timestamp range: %w", err))
	}
	if first.Valid {
		stats.FirstMessageTs = &first.Time
	}
	if last.Valid {
		stats.LastMessageTs = &last.Time
	}

	return stats, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return pkgerrors.ErrServiceUnavailable.WithCause(err)
	}
	return nil
}
