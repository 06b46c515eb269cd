package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/storefront-auth/internal/cache"
	"github.com/pribylovaa/storefront-auth/internal/config"
	"github.com/pribylovaa/storefront-auth/internal/models"
	"github.com/pribylovaa/storefront-auth/internal/pkg/log"
)

// capHandler: slog.Handler, собирающий сообщения записей.
type capHandler struct {
	mu   *sync.Mutex
	msgs *[]string
}

func newCapHandler() *capHandler {
	return &capHandler{mu: &sync.Mutex{}, msgs: &[]string{}}
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.msgs = append(*h.msgs, r.Message)
	return nil
}
func (h *capHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capHandler) WithGroup(string) slog.Handler      { return h }

func (h *capHandler) has(msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range *h.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:         "unit-test-secret",
		AccessTokenTTL:    120 * time.Minute,
		RefreshTokenTTL:   720 * time.Hour,
		RefreshTokenBytes: 32,
		Issuer:            "storefront-auth",
		Audience:          []string{"storefront"},
	}
}

func newTestIssuer(t *testing.T, opts ...Option) (*Issuer, *memStore) {
	t.Helper()
	st := newMemStore()
	iss, err := New(testAuthCfg(), st, st, opts...)
	require.NoError(t, err)
	return iss, st
}

func user42() *models.User {
	return &models.User{ID: 42, Username: "alice", Email: "alice@example.com", DisplayName: "Alice"}
}

func ptr[T any](v T) *T { return &v }

func ctxWithCap() (context.Context, *capHandler) {
	h := newCapHandler()
	return log.Into(context.Background(), slog.New(h)), h
}

func mapClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	mc := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, mc)
	require.NoError(t, err)
	return mc
}

func TestNew_Configuration(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	tests := []struct {
		name   string
		mutate func(*config.AuthConfig)
	}{
		{name: "empty_key", mutate: func(c *config.AuthConfig) { c.JWTSecret = "" }},
		{name: "zero_access_ttl", mutate: func(c *config.AuthConfig) { c.AccessTokenTTL = 0 }},
		{name: "negative_refresh_ttl", mutate: func(c *config.AuthConfig) { c.RefreshTokenTTL = -time.Hour }},
		{name: "short_refresh", mutate: func(c *config.AuthConfig) { c.RefreshTokenBytes = 16 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testAuthCfg()
			tt.mutate(&cfg)
			_, err := New(cfg, st, st)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := New(testAuthCfg(), nil, st)
	require.ErrorIs(t, err, ErrConfiguration)

	cfg := testAuthCfg()
	cfg.RefreshTokenBytes = 0
	iss, err := New(cfg, st, st)
	require.NoError(t, err)
	require.Equal(t, minRefreshTokenBytes, iss.cfg.RefreshTokenBytes)
}

func TestMint_Scenario_User42(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, []int64{7})
	ctx := context.Background()

	pair, err := iss.Mint(ctx, user42(), []int64{7}, ptr[int64](7), "10.0.0.1")
	require.NoError(t, err)

	mc := mapClaims(t, pair.AccessToken)
	require.Equal(t, "7", mc["tenantId"])
	require.Equal(t, "42", mc["sub"])
	require.Equal(t, "alice", mc["unique_name"])
	require.Equal(t, "alice@example.com", mc["email"])
	require.Equal(t, "Alice", mc["displayName"])
	require.Equal(t, []any{"7"}, mc["tenantIds"])
	require.Equal(t, []any{"customer"}, mc["role"])
	require.NotEmpty(t, mc["jti"])
	require.NotNil(t, mc["iat"])

	require.GreaterOrEqual(t, len(pair.RefreshToken), 42)
	require.NotContains(t, pair.RefreshToken, "+")
	require.NotContains(t, pair.RefreshToken, "/")
	require.WithinDuration(t, time.Now().Add(120*time.Minute), pair.AccessExpiresAt, 5*time.Second)

	row := st.token(HashToken(pair.RefreshToken))
	require.NotNil(t, row)
	require.Equal(t, int64(42), row.UserID)
	require.Equal(t, "10.0.0.1", row.CreatedByIP)
	require.Equal(t, int64(7), *row.TenantID)
	require.True(t, row.IsActive(time.Now()))
	require.WithinDuration(t, time.Now().Add(720*time.Hour), row.ExpiresAt, 5*time.Second)

	// Ротация: новое значение, тот же субъект.
	next, err := iss.Rotate(ctx, pair.RefreshToken, "10.0.0.2")
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	require.NotEqual(t, pair.AccessToken, next.AccessToken)

	p, err := iss.Validate(next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, int64(42), p.UserID)
	require.Equal(t, int64(7), *p.ActiveTenantID)
}

func TestMint_ClaimsMatchDirectory(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"owner", "customer", "owner"}, nil)

	pair, err := iss.Mint(context.Background(), user42(), []int64{3, 1, 3, 2}, nil, "")
	require.NoError(t, err)

	mc := mapClaims(t, pair.AccessToken)
	require.Equal(t, []any{"owner", "customer"}, mc["role"])
	require.Equal(t, []any{"3", "1", "2"}, mc["tenantIds"])
	_, hasActive := mc["tenantId"]
	require.False(t, hasActive)

	p, err := iss.Validate(pair.AccessToken)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3}, p.TenantIDs)
	require.ElementsMatch(t, []string{"owner", "customer"}, p.Roles)
	require.Nil(t, p.ActiveTenantID)
}

func TestMint_UniqueTokenIDs(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)

	a, err := iss.Mint(context.Background(), user42(), nil, nil, "")
	require.NoError(t, err)
	b, err := iss.Mint(context.Background(), user42(), nil, nil, "")
	require.NoError(t, err)

	require.NotEqual(t, mapClaims(t, a.AccessToken)["jti"], mapClaims(t, b.AccessToken)["jti"])
	require.NotEqual(t, a.RefreshToken, b.RefreshToken)
}

func TestMint_ActiveTenantNotMember(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, []int64{7})

	_, err := iss.Mint(context.Background(), user42(), []int64{7}, ptr[int64](8), "")
	require.ErrorIs(t, err, ErrTenantNotMember)
	require.Zero(t, st.count())

	_, err = iss.Mint(context.Background(), nil, nil, nil, "")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestMint_RefreshCollisionRetry(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)

	st.collisions = 2
	_, err := iss.Mint(context.Background(), user42(), nil, nil, "")
	require.NoError(t, err)
	require.Equal(t, 1, st.count())

	st.collisions = maxCollisionAttempts
	_, err = iss.Mint(context.Background(), user42(), nil, nil, "")
	require.ErrorIs(t, err, ErrRefreshTokenCollision)
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)
	now := time.Now().UTC()

	t.Run("expired", func(t *testing.T) {
		past, err := New(testAuthCfg(), st, st, WithClock(func() time.Time { return now.Add(-3 * time.Hour) }))
		require.NoError(t, err)
		pair, err := past.Mint(context.Background(), user42(), nil, nil, "")
		require.NoError(t, err)

		_, err = iss.Validate(pair.AccessToken)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	sign := func(t *testing.T, method jwt.SigningMethod, key []byte, mutate func(jwt.MapClaims)) string {
		mc := jwt.MapClaims{
			"sub": "42",
			"iss": "storefront-auth",
			"aud": []string{"storefront"},
			"exp": now.Add(time.Hour).Unix(),
			"iat": now.Unix(),
		}
		if mutate != nil {
			mutate(mc)
		}
		s, err := jwt.NewWithClaims(method, mc).SignedString(key)
		require.NoError(t, err)
		return s
	}
	secret := []byte(testAuthCfg().JWTSecret)

	cases := map[string]string{
		"wrong_alg":      sign(t, jwt.SigningMethodHS512, secret, nil),
		"wrong_key":      sign(t, jwt.SigningMethodHS256, []byte("other"), nil),
		"wrong_issuer":   sign(t, jwt.SigningMethodHS256, secret, func(mc jwt.MapClaims) { mc["iss"] = "evil" }),
		"wrong_audience": sign(t, jwt.SigningMethodHS256, secret, func(mc jwt.MapClaims) { mc["aud"] = "other" }),
		"no_exp":         sign(t, jwt.SigningMethodHS256, secret, func(mc jwt.MapClaims) { delete(mc, "exp") }),
		"bad_subject":    sign(t, jwt.SigningMethodHS256, secret, func(mc jwt.MapClaims) { mc["sub"] = "not-a-number" }),
		"garbage":        "not.a.jwt",
	}
	for name, token := range cases {
		token := token
		t.Run(name, func(t *testing.T) {
			_, err := iss.Validate(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPrincipalFromExpired(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, []int64{5})

	past, err := New(testAuthCfg(), st, st, WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) }))
	require.NoError(t, err)
	expired, err := past.Mint(context.Background(), user42(), []int64{5}, ptr[int64](5), "")
	require.NoError(t, err)

	p := iss.PrincipalFromExpired(expired.AccessToken)
	require.NotNil(t, p)
	require.Equal(t, int64(42), p.UserID)
	require.Equal(t, "alice", p.Username)
	require.True(t, p.ExpiresAt.Before(time.Now()))

	fresh, err := iss.Mint(context.Background(), user42(), nil, nil, "")
	require.NoError(t, err)
	require.NotNil(t, iss.PrincipalFromExpired(fresh.AccessToken))

	// Подпись чужим ключом отвергается безусловно.
	cfg := testAuthCfg()
	cfg.JWTSecret = "another-secret"
	foreign, err := New(cfg, st, st)
	require.NoError(t, err)
	require.Nil(t, foreign.PrincipalFromExpired(expired.AccessToken))

	cfg = testAuthCfg()
	cfg.Issuer = "someone-else"
	otherIssuer, err := New(cfg, st, st)
	require.NoError(t, err)
	require.Nil(t, otherIssuer.PrincipalFromExpired(expired.AccessToken))

	cfg = testAuthCfg()
	cfg.Audience = []string{"admin-panel"}
	otherAudience, err := New(cfg, st, st)
	require.NoError(t, err)
	require.Nil(t, otherAudience.PrincipalFromExpired(expired.AccessToken))

	require.Nil(t, iss.PrincipalFromExpired(""))
	require.Nil(t, iss.PrincipalFromExpired("a.b.c"))
}

func TestRotate_RevokedOneSecondAgo(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	iss, st := newTestIssuer(t, WithMetrics(rec))
	st.addUser(user42(), []string{"customer"}, nil)
	now := time.Now().UTC()
	revokedAt := now.Add(-time.Second)

	st.put(&models.RefreshToken{
		TokenHash: HashToken("revoked-value"),
		UserID:    42,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
		RevokedAt: &revokedAt,
	})

	ctx, h := ctxWithCap()
	_, err := iss.Rotate(ctx, "revoked-value", "10.0.0.3")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.True(t, h.has("refresh_reuse_detected"))
	require.Equal(t, 1, rec.reuse)
	require.Equal(t, 1, st.count())
}

func TestRotate_ExpiredOneSecondAgo(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)
	now := time.Now().UTC()

	st.put(&models.RefreshToken{
		TokenHash: HashToken("expired-value"),
		UserID:    42,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-time.Second),
	})

	ctx, h := ctxWithCap()
	_, err := iss.Rotate(ctx, "expired-value", "")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.True(t, h.has("refresh_expired"))
	require.False(t, h.has("refresh_not_found"))
}

func TestRotate_NotFound(t *testing.T) {
	t.Parallel()

	iss, _ := newTestIssuer(t)

	ctx, h := ctxWithCap()
	_, err := iss.Rotate(ctx, "unknown", "")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.True(t, h.has("refresh_not_found"))

	_, err = iss.Rotate(ctx, "", "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotate_Concurrent_ExactlyOneWins(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)

	pair, err := iss.Mint(context.Background(), user42(), nil, nil, "")
	require.NoError(t, err)

	const n = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			<-start
			_, errs[k] = iss.Rotate(context.Background(), pair.RefreshToken, "")
		}(k)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidToken)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 2, st.count())
}

func TestRotate_Chain(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)
	ctx := context.Background()

	pair, err := iss.Mint(ctx, user42(), nil, nil, "10.0.0.1")
	require.NoError(t, err)
	first := HashToken(pair.RefreshToken)

	const rotations = 5
	for k := 0; k < rotations; k++ {
		pair, err = iss.Rotate(ctx, pair.RefreshToken, fmt.Sprintf("10.0.0.%d", k+2))
		require.NoError(t, err)
	}

	require.Equal(t, rotations+1, st.count())

	now := time.Now()
	active := 0
	hash := first
	for k := 0; k <= rotations; k++ {
		row := st.token(hash)
		require.NotNil(t, row, "link %d must exist", k)
		if row.IsActive(now) {
			active++
		}
		if k < rotations {
			require.NotEmpty(t, row.ReplacedByToken)
			require.Equal(t, fmt.Sprintf("10.0.0.%d", k+2), row.RevokedByIP)
			hash = row.ReplacedByToken
		} else {
			require.Empty(t, row.ReplacedByToken)
		}
	}
	require.Equal(t, 1, active)
	require.Equal(t, HashToken(pair.RefreshToken), hash)
}

func TestRotate_UsesCurrentRolesAndTenants(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"guest"}, []int64{7})
	ctx := context.Background()

	pair, err := iss.Mint(ctx, user42(), []int64{7}, ptr[int64](7), "")
	require.NoError(t, err)

	st.setRoles(42, []string{"customer", "owner"})
	st.setTenants(42, []int64{7, 9})

	next, err := iss.Rotate(ctx, pair.RefreshToken, "")
	require.NoError(t, err)

	p, err := iss.Validate(next.AccessToken)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"customer", "owner"}, p.Roles)
	require.ElementsMatch(t, []int64{7, 9}, p.TenantIDs)
	require.Equal(t, int64(7), *p.ActiveTenantID)
}

func TestRotate_ActiveTenantRemoved(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, []int64{7})
	ctx := context.Background()

	pair, err := iss.Mint(ctx, user42(), []int64{7}, ptr[int64](7), "")
	require.NoError(t, err)

	st.setTenants(42, nil)

	_, err = iss.Rotate(ctx, pair.RefreshToken, "")
	require.ErrorIs(t, err, ErrTenantNotMember)
	require.True(t, st.token(HashToken(pair.RefreshToken)).IsActive(time.Now()))
}

func TestRotate_UserDeleted(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)
	ctx := context.Background()

	pair, err := iss.Mint(ctx, user42(), nil, nil, "")
	require.NoError(t, err)

	st.deleteUser(42)

	_, err = iss.Rotate(ctx, pair.RefreshToken, "")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRotate_ExpectedOwner(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)
	ctx := context.Background()

	pair, err := iss.Mint(ctx, user42(), nil, nil, "")
	require.NoError(t, err)

	cctx, h := ctxWithCap()
	_, err = iss.Rotate(cctx, pair.RefreshToken, "", WithExpectedOwner(7))
	require.ErrorIs(t, err, ErrInvalidToken)
	require.True(t, h.has("refresh_owner_mismatch"))
	require.True(t, st.token(HashToken(pair.RefreshToken)).IsActive(time.Now()))

	_, err = iss.Rotate(ctx, pair.RefreshToken, "", WithExpectedOwner(42))
	require.NoError(t, err)
}

func TestRotate_StorageErrorPropagates(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	st.addUser(user42(), []string{"customer"}, nil)

	pair, err := iss.Mint(context.Background(), user42(), nil, nil, "")
	require.NoError(t, err)

	boom := errors.New("db down")
	st.failRotate = boom

	_, err = iss.Rotate(context.Background(), pair.RefreshToken, "")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrInvalidToken)
}

func TestRevoke_Flow(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	iss, st := newTestIssuer(t, WithMetrics(rec))
	st.addUser(user42(), []string{"customer"}, nil)
	ctx := context.Background()

	require.ErrorIs(t, iss.Revoke(ctx, "unknown", ""), ErrNotFound)
	require.ErrorIs(t, iss.Revoke(ctx, "", ""), ErrNotFound)

	pair, err := iss.Mint(ctx, user42(), nil, nil, "")
	require.NoError(t, err)

	require.NoError(t, iss.Revoke(ctx, pair.RefreshToken, "10.0.0.5"))

	row := st.token(HashToken(pair.RefreshToken))
	require.NotNil(t, row.RevokedAt)
	require.Equal(t, "10.0.0.5", row.RevokedByIP)
	require.Empty(t, row.ReplacedByToken)

	_, err = iss.Rotate(ctx, pair.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidToken)

	require.ErrorIs(t, iss.Revoke(ctx, pair.RefreshToken, "10.0.0.6"), ErrAlreadyRevoked)
	require.Equal(t, "10.0.0.5", st.token(HashToken(pair.RefreshToken)).RevokedByIP)

	require.Equal(t, 1, rec.minted)
	require.Equal(t, 1, rec.revoked)
	require.Equal(t, 1, rec.reuse)
}

func TestRevoke_Expired(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	now := time.Now().UTC()
	st.put(&models.RefreshToken{TokenHash: HashToken("old"), UserID: 42, ExpiresAt: now.Add(-time.Minute)})

	require.ErrorIs(t, iss.Revoke(context.Background(), "old", ""), ErrAlreadyRevoked)
}

func TestRotate_WithRedisCache(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rc := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = rc.Close() })

	iss, st := newTestIssuer(t, WithRefreshCache(rc))
	st.addUser(user42(), []string{"customer"}, nil)
	ctx := context.Background()

	pair, err := iss.Mint(ctx, user42(), nil, nil, "")
	require.NoError(t, err)

	e, ok, err := rc.Get(ctx, HashToken(pair.RefreshToken))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), e.UserID)
	require.False(t, e.Revoked)

	next, err := iss.Rotate(ctx, pair.RefreshToken, "")
	require.NoError(t, err)

	e, ok, err = rc.Get(ctx, HashToken(pair.RefreshToken))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, e.Revoked)

	// Повтор старого токена отсекается кэшем до обращения к БД.
	cctx, h := ctxWithCap()
	_, err = iss.Rotate(cctx, pair.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.True(t, h.has("refresh_reuse_detected"))

	require.NoError(t, iss.Revoke(ctx, next.RefreshToken, ""))
	e, ok, err = rc.Get(ctx, HashToken(next.RefreshToken))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, e.Revoked)
}

func TestRotate_CacheUnavailable_FallsBackToStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rc := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), "")
	t.Cleanup(func() { _ = rc.Close() })

	iss, st := newTestIssuer(t, WithRefreshCache(rc))
	st.addUser(user42(), []string{"customer"}, nil)

	pair, err := iss.Mint(context.Background(), user42(), nil, nil, "")
	require.NoError(t, err)

	mr.Close()

	ctx, h := ctxWithCap()
	_, err = iss.Rotate(ctx, pair.RefreshToken, "")
	require.NoError(t, err)
	require.True(t, h.has("refresh_cache_get_failed"))
}

func TestSweep(t *testing.T) {
	t.Parallel()

	iss, st := newTestIssuer(t)
	now := time.Now().UTC()
	st.put(&models.RefreshToken{TokenHash: "old", UserID: 1, ExpiresAt: now.Add(-48 * time.Hour)})
	st.put(&models.RefreshToken{TokenHash: "recent", UserID: 1, ExpiresAt: now.Add(-time.Hour)})
	st.put(&models.RefreshToken{TokenHash: "live", UserID: 1, ExpiresAt: now.Add(time.Hour)})
	// "linked" давно истёк, но на него ссылается сохраняемый "parent".
	st.put(&models.RefreshToken{TokenHash: "linked", UserID: 1, ExpiresAt: now.Add(-72 * time.Hour)})
	st.put(&models.RefreshToken{TokenHash: "parent", UserID: 1, ExpiresAt: now.Add(-time.Hour), ReplacedByToken: "linked"})

	n, err := iss.Sweep(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Nil(t, st.token("old"))
	require.NotNil(t, st.token("recent"))
	require.NotNil(t, st.token("linked"))
	require.NotNil(t, st.token("parent"))
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	h := HashToken("value")
	require.Len(t, h, 43)
	require.Equal(t, h, HashToken("value"))
	require.NotEqual(t, h, HashToken("value2"))
	require.False(t, strings.ContainsAny(h, "+/="))
}
