package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/mod-review/src/config"
	"github.com/stake-plus/mod-review/src/data"
	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/store"
	"github.com/stake-plus/mod-review/src/types"
)

func testConfig() config.ReviewConfig {
	return config.ReviewConfig{
		StoreBackend:   config.BackendMemory,
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		IntakeToken:    "intake",
		AllowedOrigins: []string{"http://localhost:3000"},
		DiscordTimeout: time.Second,
		StoreTimeout:   time.Second,
		LockTimeout:    time.Second,
		RateLimit:      100,
		RateBurst:      100,
		StreamMaxLen:   100,
		Placeholders:   review.DefaultPlaceholders,
	}
}

func TestOpenStoreSelectsBackend(t *testing.T) {
	cfg := testConfig()

	repo, err := OpenStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, repo)

	cfg.StoreBackend = config.BackendMySQL
	_, err = OpenStore(cfg, nil)
	assert.Error(t, err)

	cfg.StoreBackend = config.BackendSupabase
	cfg.SupabaseURL = "http://127.0.0.1:1"
	cfg.SupabaseKey = "service"
	cfg.SupabaseTable = "applications"
	repo, err = OpenStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.SupabaseStore{}, repo)

	cfg.StoreBackend = "sqlite"
	_, err = OpenStore(cfg, nil)
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestOpenWithoutDiscordStillCommits(t *testing.T) {
	svc, err := Open(context.Background(), testConfig(), nil, nil)
	require.NoError(t, err)
	defer svc.Close()

	assert.Nil(t, svc.Discord)
	assert.Len(t, svc.Modules("127.0.0.1:0", time.Second), 1)

	app, err := svc.Store.Insert(context.Background(), types.Submission{DiscordID: "412345678901234567", DiscordUsername: "alice"})
	require.NoError(t, err)

	out, err := svc.Engine.Accept(context.Background(), app.ID, "AdminBob")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.False(t, out.RoleAssigned)

	got, err := svc.Store.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAccepted, got.Status)

	rec := httptest.NewRecorder()
	svc.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "disabled", health["discord"])
	assert.Equal(t, "memory", health["store"])
}

func TestOpenWithRedisPublishesTransitions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	svc, err := Open(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer svc.Close()
	require.NotNil(t, svc.Redis)

	app, err := svc.Store.Insert(context.Background(), types.Submission{DiscordID: "512345678901234567", DiscordUsername: "carol"})
	require.NoError(t, err)

	out, err := svc.Engine.Reject(context.Background(), app.ID, "AdminBob", "Low score")
	require.NoError(t, err)
	assert.True(t, out.Success)

	entries, err := svc.Redis.XRange(context.Background(), data.StreamTransition, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(types.ActionReject), entries[0].Values["action"])
}

func TestOpenFailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "redis://127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Open(ctx, cfg, nil, nil)
	assert.Error(t, err)
}
