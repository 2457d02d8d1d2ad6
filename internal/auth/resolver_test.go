package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"project-service/internal/domain/identity"
	apperrors "project-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverByID(t *testing.T) {
	store := newMemoryStore()
	i := newTestIdentity(t, "alice", "pw", identity.RoleProjectManager)
	store.add(i)
	r := NewIdentityResolver(store, time.Second)

	details, err := r.ByID(context.Background(), i.ID)
	require.NoError(t, err)

	assert.Equal(t, i.ID, details.ID())
	assert.Equal(t, "alice", details.Username())
	assert.Equal(t, identity.RoleProjectManager, details.Role())
	assert.Equal(t, []identity.Role{identity.RoleProjectManager}, details.Authorities())
	assert.True(t, details.AccountEnabled())
	assert.True(t, details.CredentialsValid())
	assert.Equal(t, identity.Summary{ID: i.ID.String(), Username: "alice", Role: identity.RoleProjectManager}, details.Summary())
}

func TestResolverByUsername(t *testing.T) {
	store := newMemoryStore()
	i := newTestIdentity(t, "bob", "pw", identity.RoleUser)
	store.add(i)
	r := NewIdentityResolver(store, time.Second)

	details, err := r.ByUsername(context.Background(), "BOB")
	require.NoError(t, err)
	assert.Equal(t, i.ID, details.ID())

	_, err = r.ByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestResolverNotFoundCases(t *testing.T) {
	store := newMemoryStore()

	disabled := newTestIdentity(t, "disabled", "pw", identity.RoleAdmin)
	disabled.Enabled = false
	store.add(disabled)

	badRole := newTestIdentity(t, "badrole", "pw", identity.RoleUser)
	badRole.Role = "SUPERUSER"
	store.add(badRole)

	r := NewIdentityResolver(store, time.Second)

	for _, id := range []uuid.UUID{uuid.New(), disabled.ID, badRole.ID} {
		_, err := r.ByID(context.Background(), id)
		assert.ErrorIs(t, err, ErrIdentityNotFound)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	}
}

func TestResolverStoreUnavailable(t *testing.T) {
	store := newMemoryStore()
	cause := errors.New("connection refused")
	store.failWith(cause)
	r := NewIdentityResolver(store, time.Second)

	_, err := r.ByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrIdentityNotFound)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, msgIdentityLookupFailed, appErr.Message)
}

func TestResolverTimeout(t *testing.T) {
	r := NewIdentityResolver(blockingStore{}, 20*time.Millisecond)

	start := time.Now()
	_, err := r.ByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolverPropagatesCancellation(t *testing.T) {
	r := NewIdentityResolver(blockingStore{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ByUsername(ctx, "anyone")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolverDefaultTimeout(t *testing.T) {
	r := NewIdentityResolver(newMemoryStore(), 0)
	assert.Equal(t, DefaultLookupTimeout, r.timeout)
}
