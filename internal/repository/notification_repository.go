package repository

import (
	"context"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/database"
)

// NotificationRepository handles the append-only notification audit trail.
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Append inserts one notification record.
func (r *NotificationRepository) Append(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (user_id, title, message, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_read, created_at
	`

	err := r.db.QueryRow(ctx, query, n.UserID, n.Title, n.Message, n.Category).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to append notification")
	}
	return nil
}

// ListForUser returns a user's inbox, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*Notification, error) {
	query := `
		SELECT id, user_id, title, message, category, is_read, created_at
		FROM notifications
		WHERE user_id = $1
	`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list notifications")
	}
	defer rows.Close()

	items := make([]*Notification, 0)
	for rows.Next() {
		n := &Notification{}
		err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Category, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan notification")
		}
		items = append(items, n)
	}
	return items, nil
}

// MarkRead flips is_read on one record. Records are otherwise immutable.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to mark notification read")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification", id)
	}
	return nil
}
