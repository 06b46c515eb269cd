package issuer

import (
	"context"
	"sync"
	"time"

	"github.com/pribylovaa/storefront-auth/internal/models"
	"github.com/pribylovaa/storefront-auth/internal/storage"
)

// memStore: потокобезопасная in-memory реализация UserDirectory и
// storage.RefreshTokenStorage с теми же условными обновлениями, что и у Postgres.
type memStore struct {
	mu      sync.Mutex
	users   map[int64]*models.User
	roles   map[int64][]string
	tenants map[int64][]int64
	tokens  map[string]*models.RefreshToken

	// failRotate, если задан, возвращается из RotateRefreshToken.
	failRotate error
	// collisions: сколько первых вставок вернут ErrAlreadyExists.
	collisions int
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[int64]*models.User{},
		roles:   map[int64][]string{},
		tenants: map[int64][]int64{},
		tokens:  map[string]*models.RefreshToken{},
	}
}

func (m *memStore) addUser(u *models.User, roles []string, tenants []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.roles[u.ID] = roles
	m.tenants[u.ID] = tenants
}

func (m *memStore) setRoles(userID int64, roles []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[userID] = roles
}

func (m *memStore) setTenants(userID int64, tenants []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[userID] = tenants
}

func (m *memStore) deleteUser(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
}

func (m *memStore) token(hash string) *models.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (m *memStore) put(t *models.RefreshToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.TokenHash] = &cp
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func (m *memStore) UserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UserByName(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) RolesByUserID(_ context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.roles[userID]...), nil
}

func (m *memStore) TenantsByUserID(_ context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.tenants[userID]...), nil
}

func (m *memStore) insertLocked(t *models.RefreshToken) error {
	if m.collisions > 0 {
		m.collisions--
		return storage.ErrAlreadyExists
	}
	if _, ok := m.tokens[t.TokenHash]; ok {
		return storage.ErrAlreadyExists
	}
	cp := *t
	m.tokens[t.TokenHash] = &cp
	return nil
}

func (m *memStore) SaveRefreshToken(_ context.Context, t *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(t)
}

func (m *memStore) RefreshTokenByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	if t := m.token(hash); t != nil {
		return t, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) RotateRefreshToken(_ context.Context, oldHash string, next *models.RefreshToken, ip string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failRotate != nil {
		return m.failRotate
	}

	old, ok := m.tokens[oldHash]
	if !ok || !old.IsActive(now) {
		return storage.ErrNotActive
	}

	if err := m.insertLocked(next); err != nil {
		return err
	}

	at := now
	old.RevokedAt = &at
	old.RevokedByIP = ip
	old.ReplacedByToken = next.TokenHash
	return nil
}

func (m *memStore) RevokeRefreshToken(_ context.Context, hash, ip string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[hash]
	if !ok {
		return false, storage.ErrNotFound
	}
	if !t.IsActive(now) {
		return false, nil
	}

	at := now
	t.RevokedAt = &at
	t.RevokedByIP = ip
	return true, nil
}

func (m *memStore) DeleteExpiredTokens(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Строки, на которые ссылается сохраняемая запись, остаются.
	referenced := make(map[string]bool)
	for _, t := range m.tokens {
		if t.ExpiresAt.After(before) && t.ReplacedByToken != "" {
			referenced[t.ReplacedByToken] = true
		}
	}

	var n int64
	for h, t := range m.tokens {
		if !t.ExpiresAt.After(before) && !referenced[h] {
			delete(m.tokens, h)
			n++
		}
	}
	return n, nil
}

// countingRecorder считает события метрик.
type countingRecorder struct {
	mu                              sync.Mutex
	minted, rotated, revoked, reuse int
}

func (r *countingRecorder) TokenMinted()   { r.mu.Lock(); r.minted++; r.mu.Unlock() }
func (r *countingRecorder) TokenRotated()  { r.mu.Lock(); r.rotated++; r.mu.Unlock() }
func (r *countingRecorder) TokenRevoked()  { r.mu.Lock(); r.revoked++; r.mu.Unlock() }
func (r *countingRecorder) ReuseDetected() { r.mu.Lock(); r.reuse++; r.mu.Unlock() }
