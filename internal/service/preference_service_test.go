package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

func newPreferenceFixture() (*PreferenceService, *memPrefs, *memUsers) {
	prefs := newMemPrefs()
	users := newMemUsers()
	svc := NewPreferenceService(prefs, users, zerolog.Nop())
	return svc, prefs, users
}

func TestGetChannelsMaterializesDefaultsForAllUsers(t *testing.T) {
	svc, prefs, users := newPreferenceFixture()
	users.add(repository.User{ID: 1, Name: "Anna"})
	users.add(repository.User{ID: 2, Name: "Luca"})
	users.add(repository.User{ID: 3, Name: "Marco"})

	ch, err := svc.GetChannels(context.Background(), 2, CategoryStateChanged)
	require.NoError(t, err)
	assert.True(t, ch.Push)
	assert.False(t, ch.Email)

	// The miss created concrete rows for every user, not just the one asked.
	for _, id := range []int64{1, 2, 3} {
		row, err := prefs.Get(context.Background(), id, CategoryStateChanged)
		require.NoError(t, err)
		assert.True(t, row.ViaPush)
		assert.False(t, row.ViaEmail)
	}
}

func TestGetChannelsReturnsStoredPreference(t *testing.T) {
	svc, prefs, users := newPreferenceFixture()
	users.add(repository.User{ID: 1, Name: "Anna"})
	require.NoError(t, prefs.Upsert(context.Background(), &repository.Preference{
		UserID: 1, Category: CategoryOrderCreated, ViaPush: false, ViaEmail: true,
	}))

	ch, err := svc.GetChannels(context.Background(), 1, CategoryOrderCreated)
	require.NoError(t, err)
	assert.False(t, ch.Push)
	assert.True(t, ch.Email)
}

func TestMaterializationDoesNotOverwriteExistingRows(t *testing.T) {
	svc, prefs, users := newPreferenceFixture()
	users.add(repository.User{ID: 1, Name: "Anna"})
	users.add(repository.User{ID: 2, Name: "Luca"})
	require.NoError(t, prefs.Upsert(context.Background(), &repository.Preference{
		UserID: 1, Category: CategoryStateChanged, ViaPush: false, ViaEmail: true,
	}))

	// User 2 has no row: the lookup materializes defaults but user 1's
	// explicit choice survives.
	_, err := svc.GetChannels(context.Background(), 2, CategoryStateChanged)
	require.NoError(t, err)

	row, err := prefs.Get(context.Background(), 1, CategoryStateChanged)
	require.NoError(t, err)
	assert.False(t, row.ViaPush)
	assert.True(t, row.ViaEmail)
}

func TestSetChannels(t *testing.T) {
	svc, prefs, users := newPreferenceFixture()
	users.add(repository.User{ID: 1, Name: "Anna"})

	require.NoError(t, svc.SetChannels(context.Background(), 1, CategoryOrderStatus, Channels{Push: false, Email: true}))

	row, err := prefs.Get(context.Background(), 1, CategoryOrderStatus)
	require.NoError(t, err)
	assert.False(t, row.ViaPush)
	assert.True(t, row.ViaEmail)

	err = svc.SetChannels(context.Background(), 99, CategoryOrderStatus, Channels{})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))

	err = svc.SetChannels(context.Background(), 1, "", Channels{})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}
