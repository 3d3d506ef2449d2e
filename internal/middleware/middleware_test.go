package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/knowreal/knowreal-backend/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stubProvider struct {
	identity services.Identity
	err      error
}

func (p stubProvider) CurrentUser(ctx context.Context, r *http.Request) (services.Identity, error) {
	return p.identity, p.err
}

func okHandler(t *testing.T, reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireIdentity_Unauthenticated(t *testing.T) {
	reached := false
	h := RequireIdentity(stubProvider{err: services.ErrUnauthenticated})(okHandler(t, &reached))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/dreams", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, LoginPath, body["redirect"])
}

func TestRequireIdentity_ZeroIdentityWithoutError(t *testing.T) {
	reached := false
	h := RequireIdentity(stubProvider{})(okHandler(t, &reached))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/dreams", nil))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireIdentity_PassesIdentity(t *testing.T) {
	want := services.Identity{UserID: "u1"}
	var got services.Identity
	h := RequireIdentity(stubProvider{identity: want})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFrom(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/dreams", nil))
	assert.Equal(t, want, got)
	assert.True(t, IdentityFrom(context.Background()).IsZero())
}

func TestCORS(t *testing.T) {
	reached := false
	h := CORS([]string{"https://app.knowreal.dev"})(okHandler(t, &reached))

	preflight := httptest.NewRequest("OPTIONS", "/api/dreams", nil)
	preflight.Header.Set("Origin", "https://app.knowreal.dev")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	assert.Equal(t, "https://app.knowreal.dev", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, reached)

	other := httptest.NewRequest("GET", "/api/dreams", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	reached := false
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler(t, &reached)).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.True(t, reached)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHostCheck(t *testing.T) {
	reached := false
	h := HostCheck("api.knowreal.dev")(okHandler(t, &reached))

	ok := httptest.NewRequest("GET", "/", nil)
	ok.Host = "API.knowreal.dev:443"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, ok)
	assert.Equal(t, http.StatusOK, rec.Code)

	bad := httptest.NewRequest("GET", "/", nil)
	bad.Host = "other.dev"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(rate.Every(time.Hour), 2)
	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	l.sweep(time.Now().Add(limiterTTL + time.Minute))
	assert.True(t, l.Allow("1.1.1.1"))
}

func TestIPLimiter_OnlyListedPaths(t *testing.T) {
	reached := false
	h := NewIPLimiter(rate.Every(time.Hour), 1).Middleware("slow down", SigninPath)(okHandler(t, &reached))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/dreams", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", SigninPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", SigninPath, nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestWriteLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewWriteLimiter(client, time.Minute, 2, time.Hour)
	reached := false
	h := limiter.Middleware(okHandler(t, &reached))

	post := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest("POST", "/api/dreams", nil)
		r = r.WithContext(WithIdentity(r.Context(), services.Identity{UserID: "u1"}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusOK, post().Code)
	second := post()
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, post().Code)
	assert.True(t, mr.Exists(BlockedKeyPrefix+"user:u1"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/dreams", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mr.FastForward(time.Hour + time.Second)
	assert.False(t, mr.Exists(BlockedKeyPrefix+"user:u1"))
	assert.Equal(t, http.StatusOK, post().Code)
}

func TestWriteLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	reached := false
	h := NewWriteLimiter(client, time.Minute, 1, time.Hour).Middleware(okHandler(t, &reached))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/dreams/x", nil))
	assert.True(t, reached)
}
