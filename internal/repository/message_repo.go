package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/echo-chat/backend/internal/model"
)

// MessageRepository provides data access for stored chat messages.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message. The message is validated first.
func (r *MessageRepository) Create(ctx context.Context, msg *model.StoredMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO messages (id, client_id, text, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.ClientID, msg.Text, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by its ID.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.StoredMessage, error) {
	query := `
		SELECT id, client_id, text, created_at
		FROM messages
		WHERE id = ?
	`

	msg := &model.StoredMessage{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&msg.ID, &msg.ClientID, &msg.Text, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// Recent returns up to limit of the newest messages, oldest first.
func (r *MessageRepository) Recent(ctx context.Context, limit int) ([]*model.StoredMessage, error) {
	if limit <= 0 {
		return []*model.StoredMessage{}, nil
	}

	query := `
		SELECT id, client_id, text, created_at FROM (
			SELECT seq, id, client_id, text, created_at
			FROM messages
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*model.StoredMessage, 0, limit)
	for rows.Next() {
		msg := &model.StoredMessage{}
		if err := rows.Scan(&msg.ID, &msg.ClientID, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// RecentTexts returns the text of the newest messages, oldest first.
func (r *MessageRepository) RecentTexts(ctx context.Context, limit int) ([]string, error) {
	messages, err := r.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(messages))
	for i, msg := range messages {
		texts[i] = msg.Text
	}
	return texts, nil
}

// Count returns the number of stored messages.
func (r *MessageRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}
