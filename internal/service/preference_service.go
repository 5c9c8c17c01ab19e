package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

// Catalog-wide defaults applied when a user has no stored preference for a
// category: push on, email off.
const (
	defaultViaPush  = true
	defaultViaEmail = false
)

// PreferenceStore is the preference repository surface the service uses.
type PreferenceStore interface {
	Get(ctx context.Context, userID int64, category string) (*repository.Preference, error)
	ListForUser(ctx context.Context, userID int64) ([]*repository.Preference, error)
	Upsert(ctx context.Context, pref *repository.Preference) error
	MaterializeDefaults(ctx context.Context, category string, userIDs []int64, viaPush, viaEmail bool) error
}

// Channels says which delivery channels a user accepts for a category.
type Channels struct {
	Push  bool `json:"push"`
	Email bool `json:"email"`
}

// PreferenceService reads and writes per-user channel preferences,
// materializing rows lazily the first time a category is consulted.
type PreferenceService struct {
	prefs PreferenceStore
	users UserDirectory
	log   zerolog.Logger
}

func NewPreferenceService(prefs PreferenceStore, users UserDirectory, log zerolog.Logger) *PreferenceService {
	return &PreferenceService{
		prefs: prefs,
		users: users,
		log:   log.With().Str("component", "preference_service").Logger(),
	}
}

// GetChannels returns the user's stored preference for the category. On a
// miss it materializes default rows for every known user so later lookups
// and admin listings see concrete rows, then returns the defaults.
func (p *PreferenceService) GetChannels(ctx context.Context, userID int64, category string) (Channels, error) {
	pref, err := p.prefs.Get(ctx, userID, category)
	if err == nil {
		return Channels{Push: pref.ViaPush, Email: pref.ViaEmail}, nil
	}
	if !apperr.IsNotFound(err) {
		return Channels{}, err
	}

	ids, err := p.users.AllIDs(ctx)
	if err != nil {
		return Channels{}, err
	}
	if err := p.prefs.MaterializeDefaults(ctx, category, ids, defaultViaPush, defaultViaEmail); err != nil {
		return Channels{}, err
	}
	p.log.Info().Str("category", category).Int("users", len(ids)).Msg("materialized default preferences")
	return Channels{Push: defaultViaPush, Email: defaultViaEmail}, nil
}

func (p *PreferenceService) SetChannels(ctx context.Context, userID int64, category string, ch Channels) error {
	if category == "" {
		return apperr.InvalidInput("category", "must not be empty")
	}
	if _, err := p.users.GetByID(ctx, userID); err != nil {
		return err
	}
	return p.prefs.Upsert(ctx, &repository.Preference{
		UserID:   userID,
		Category: category,
		ViaPush:  ch.Push,
		ViaEmail: ch.Email,
	})
}

func (p *PreferenceService) ListForUser(ctx context.Context, userID int64) ([]*repository.Preference, error) {
	return p.prefs.ListForUser(ctx, userID)
}
