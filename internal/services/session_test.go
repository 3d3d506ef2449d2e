package services

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestSessionStore_CreateAndValidate(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()
	userID := uuid.New()

	token, err := store.Create(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, ok, err := store.Validate(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, userID, got)
	assert.Equal(t, SessionDuration, mr.TTL(SessionKeyPrefix+token))

	_, ok, err = store.Validate(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_NewLoginReplacesOldSession(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()
	userID := uuid.New()

	first, err := store.Create(ctx, userID)
	require.NoError(t, err)
	second, err := store.Create(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, ok, err := store.Validate(ctx, first)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Validate(ctx, second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSessionStore_ExpiresAfterDuration(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	token, err := store.Create(ctx, uuid.New())
	require.NoError(t, err)

	mr.FastForward(SessionDuration + time.Second)
	_, ok, err := store.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_Invalidate(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()
	userID := uuid.New()

	token, err := store.Create(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, store.Invalidate(ctx, token))

	_, ok, err := store.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(UserSessionKeyPrefix+userID.String()))
	assert.NoError(t, store.Invalidate(ctx, ""))
}

func TestSessionStore_Refresh(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	userID := uuid.New()
	token, err := store.Create(ctx, userID)
	require.NoError(t, err)
	mr.FastForward(24 * time.Hour)
	require.NoError(t, store.Refresh(ctx, token, userID))
	assert.Equal(t, SessionDuration, mr.TTL(SessionKeyPrefix+token))
	assert.Equal(t, SessionDuration, mr.TTL(UserSessionKeyPrefix+userID.String()))

	assert.Error(t, store.Refresh(ctx, "missing", userID))
}

func TestSessionIdentityProvider_SlidesSession(t *testing.T) {
	mr, client := newTestRedis(t)
	sessions := NewSessionStore(client)
	provider := NewSessionIdentityProvider(sessions)
	userID := uuid.New()

	token, err := sessions.Create(context.Background(), userID)
	require.NoError(t, err)

	// Active for longer than one SessionDuration in total, never idle that long.
	for i := 0; i < 3; i++ {
		mr.FastForward(SessionDuration - time.Hour)
		req := httptest.NewRequest("GET", "/api/dreams", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		identity, err := provider.CurrentUser(req.Context(), req)
		require.NoError(t, err)
		assert.Equal(t, userID.String(), identity.UserID)
		assert.Equal(t, SessionDuration, mr.TTL(SessionKeyPrefix+token))
	}

	mr.FastForward(SessionDuration + time.Second)
	idle := httptest.NewRequest("GET", "/api/dreams", nil)
	idle.Header.Set("Authorization", "Bearer "+token)
	_, err = provider.CurrentUser(idle.Context(), idle)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSessionIdentityProvider(t *testing.T) {
	_, client := newTestRedis(t)
	sessions := NewSessionStore(client)
	provider := NewSessionIdentityProvider(sessions)
	userID := uuid.New()

	token, err := sessions.Create(context.Background(), userID)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/dreams", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	identity, err := provider.CurrentUser(req.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), identity.UserID)

	ws := httptest.NewRequest("GET", "/ws/dreams?token="+token, nil)
	identity, err = provider.CurrentUser(ws.Context(), ws)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), identity.UserID)

	anon := httptest.NewRequest("GET", "/api/dreams", nil)
	identity, err = provider.CurrentUser(anon.Context(), anon)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.True(t, identity.IsZero())

	bad := httptest.NewRequest("GET", "/api/dreams", nil)
	bad.Header.Set("Authorization", "Bearer nope")
	_, err = provider.CurrentUser(bad.Context(), bad)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", ExtractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", ExtractBearerToken("bearer   abc "))
	assert.Empty(t, ExtractBearerToken("Basic abc"))
	assert.Empty(t, ExtractBearerToken("Bearer"))
	assert.Empty(t, ExtractBearerToken(""))
}

func TestIdentity_IsZero(t *testing.T) {
	assert.True(t, Identity{}.IsZero())
	assert.True(t, Identity{UserID: "  "}.IsZero())
	assert.False(t, Identity{UserID: "u1"}.IsZero())
}
