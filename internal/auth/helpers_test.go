package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"project-service/internal/domain/identity"
	apperrors "project-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("k3Jx9QvT2mLp8RzW5nYb7HcF4dGs6AeU")

// memoryStore is an in-memory IdentityReader.
type memoryStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*identity.Identity
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byID: make(map[uuid.UUID]*identity.Identity)}
}

func (m *memoryStore) add(i *identity.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *i
	m.byID[i.ID] = &cp
}

func (m *memoryStore) setEnabled(id uuid.UUID, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Enabled = enabled
}

func (m *memoryStore) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memoryStore) GetByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	i, ok := m.byID[id]
	if !ok {
		return nil, apperrors.NotFound("identity not found")
	}
	cp := *i
	return &cp, nil
}

func (m *memoryStore) GetByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, i := range m.byID {
		if i.Username == identity.NormalizeUsername(username) {
			cp := *i
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("identity not found")
}

// Update supports the password hash replacement done by the login flow.
func (m *memoryStore) Update(ctx context.Context, id uuid.UUID, input identity.UpdateIdentityInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	i, ok := m.byID[id]
	if !ok {
		return apperrors.NotFound("identity not found")
	}
	if input.PasswordHash != nil {
		i.PasswordHash = *input.PasswordHash
	}
	return nil
}

func (m *memoryStore) passwordHash(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].PasswordHash
}

// blockingStore waits for ctx to end before answering.
type blockingStore struct{}

func (blockingStore) GetByID(ctx context.Context, _ uuid.UUID) (*identity.Identity, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) GetByUsername(ctx context.Context, _ string) (*identity.Identity, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// recordingObserver keeps every event it sees.
type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Observe(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestIdentity(t *testing.T, username, password string, role identity.Role) *identity.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()
	return &identity.Identity{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newTestTokenService(t *testing.T, clock abtime.AbstractTime, ttl time.Duration, opts ...TokenOption) *TokenService {
	t.Helper()
	opts = append([]TokenOption{WithClock(clock)}, opts...)
	svc, err := NewTokenService(testSecret, ttl, opts...)
	require.NoError(t, err)
	return svc
}
