package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/database"
)

// PreferenceRepository handles per-user, per-category channel preferences.
type PreferenceRepository struct {
	db *database.DB
}

// NewPreferenceRepository creates a new PreferenceRepository.
func NewPreferenceRepository(db *database.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get retrieves the preference row for one (user, category) pair.
func (r *PreferenceRepository) Get(ctx context.Context, userID int64, category string) (*Preference, error) {
	query := `
		SELECT user_id, category, via_push, via_email
		FROM notification_preferences
		WHERE user_id = $1 AND category = $2
	`

	pref := &Preference{}
	err := r.db.QueryRow(ctx, query, userID, category).Scan(
		&pref.UserID, &pref.Category, &pref.ViaPush, &pref.ViaEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("preference", category)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get preference")
	}
	return pref, nil
}

// ListForUser returns all preference rows of one user.
func (r *PreferenceRepository) ListForUser(ctx context.Context, userID int64) ([]*Preference, error) {
	query := `
		SELECT user_id, category, via_push, via_email
		FROM notification_preferences
		WHERE user_id = $1
		ORDER BY category
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list preferences")
	}
	defer rows.Close()

	prefs := make([]*Preference, 0)
	for rows.Next() {
		pref := &Preference{}
		if err := rows.Scan(&pref.UserID, &pref.Category, &pref.ViaPush, &pref.ViaEmail); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan preference")
		}
		prefs = append(prefs, pref)
	}
	return prefs, nil
}

// Upsert creates or updates one preference row.
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *Preference) error {
	query := `
		INSERT INTO notification_preferences (user_id, category, via_push, via_email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, category)
		DO UPDATE SET via_push = EXCLUDED.via_push, via_email = EXCLUDED.via_email
	`

	_, err := r.db.Exec(ctx, query, pref.UserID, pref.Category, pref.ViaPush, pref.ViaEmail)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to upsert preference")
	}
	return nil
}

// MaterializeDefaults inserts the default row for every given user for one
// category, skipping pairs that already have a row. Later per-user edits then
// always have a row to update.
func (r *PreferenceRepository) MaterializeDefaults(ctx context.Context, category string, userIDs []int64, viaPush, viaEmail bool) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO notification_preferences (user_id, category, via_push, via_email)
		SELECT unnest($1::bigint[]), $2, $3, $4
		ON CONFLICT (user_id, category) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query, userIDs, category, viaPush, viaEmail)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to materialize default preferences")
	}
	return nil
}

// Delete removes one preference row, reverting the pair to defaults.
func (r *PreferenceRepository) Delete(ctx context.Context, userID int64, category string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notification_preferences WHERE user_id = $1 AND category = $2`,
		userID, category)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to delete preference")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("preference", category)
	}
	return nil
}
