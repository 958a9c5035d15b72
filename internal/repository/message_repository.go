package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/messaging-service/internal/domain"
)

// MessageRepository manages posted messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListRecent(ctx context.Context, limit int) ([]domain.Message, error)
	Delete(ctx context.Context, id string) error
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (id, author_id, author_email, author_name, content)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		msg.ID,
		msg.AuthorID,
		msg.AuthorEmail,
		msg.AuthorName,
		msg.Content,
	).Scan(&msg.CreatedAt)
	return mapError(err)
}

func (r *messageRepository) ListRecent(ctx context.Context, limit int) ([]domain.Message, error) {
	const query = `
        SELECT id, author_id, author_email, author_name, content, created_at
        FROM messages ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Message, 0, limit)
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.AuthorID,
			&msg.AuthorEmail,
			&msg.AuthorName,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
