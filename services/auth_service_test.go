package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticateStation(t *testing.T) {
	syncRepo := newFakeSyncRepo()
	svc := NewAuthService(syncRepo, testLogger())
	ctx := context.Background()

	station, key, err := svc.RegisterStation(ctx, "Tatami 1")
	require.NoError(t, err)
	assert.NotEmpty(t, station.EdgeID)
	assert.NotEmpty(t, key)
	assert.NotEqual(t, key, station.KeyHash, "в БД хранится только хеш ключа")

	authenticated, err := svc.Authenticate(ctx, station.EdgeID, key)
	require.NoError(t, err)
	assert.Equal(t, station.EdgeID, authenticated.EdgeID)

	_, err = svc.Authenticate(ctx, station.EdgeID, "wrong-key")
	assert.ErrorIs(t, err, ErrStationInvalidCredentials)

	_, err = svc.Authenticate(ctx, "unknown-edge", key)
	assert.ErrorIs(t, err, ErrStationInvalidCredentials)
}

func TestRegisterStationRequiresName(t *testing.T) {
	svc := NewAuthService(newFakeSyncRepo(), testLogger())

	_, _, err := svc.RegisterStation(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrStationNameRequired)
}
