package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfozan/insights/internal/rbac"
)

type fakeStore struct {
	mu         sync.Mutex
	identity   *Identity
	restoreErr error
	saveErr    error
	clearErr   error
	clears     int
}

func (s *fakeStore) Restore(context.Context) (Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreErr != nil {
		return Identity{}, false, s.restoreErr
	}
	if s.identity == nil {
		return Identity{}, false, nil
	}
	return *s.identity, true, nil
}

func (s *fakeStore) Save(_ context.Context, identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.identity = &identity
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	s.identity = nil
	return nil
}

func analyst() Identity {
	return Identity{ID: "3", Email: "analyst@alfozan.com", Name: "Omar Al-Mansouri", Role: rbac.RoleAnalyst, Department: "Business Intelligence"}
}

func TestContextStartsLoading(t *testing.T) {
	ac := NewContext(&fakeStore{}, nil, nil)
	assert.Equal(t, StateLoading, ac.Snapshot().State)
	assert.False(t, ac.HasPermission(rbac.ActionRead))
}

func TestRestoreWithAndWithoutRecord(t *testing.T) {
	ctx := context.Background()

	empty := NewContext(&fakeStore{}, nil, nil)
	assert.Equal(t, StateAnonymous, empty.Restore(ctx).State)
	assert.False(t, empty.HasPermission(rbac.ActionRead))

	id := analyst()
	ac := NewContext(&fakeStore{identity: &id}, nil, nil)
	snap := ac.Restore(ctx)
	require.True(t, snap.Authenticated())
	assert.Equal(t, id, snap.Identity)
	assert.True(t, ac.HasPermission(rbac.ActionExport))
	assert.False(t, ac.HasPermission(rbac.ActionCreate))
}

func TestRestoreFailureIsAnonymous(t *testing.T) {
	ac := NewContext(&fakeStore{restoreErr: errors.New("redis down")}, nil, nil)
	assert.Equal(t, StateAnonymous, ac.Restore(context.Background()).State)
}

func TestRestoreOnlyLeavesLoadingOnce(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	ac := NewContext(store, nil, nil)
	ac.Restore(ctx)
	require.NoError(t, ac.Login(ctx, analyst()))

	store.identity = nil
	assert.True(t, ac.Restore(ctx).Authenticated(), "restore after loading must not reset state")
}

func TestLoginPersistsAndReplaces(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	ac := NewContext(store, nil, nil)
	ac.Restore(ctx)

	require.NoError(t, ac.Login(ctx, analyst()))
	require.NotNil(t, store.identity)
	assert.Equal(t, analyst(), *store.identity)

	admin := Identity{ID: "1", Email: "admin@alfozan.com", Name: "Ahmed Al-Fozan", Role: rbac.RoleAdministrator}
	require.NoError(t, ac.Login(ctx, admin))
	assert.Equal(t, admin, ac.Snapshot().Identity)
	assert.True(t, ac.HasPermission(rbac.ActionManageUsers))
	assert.False(t, ac.HasPermission(rbac.ActionViewAnalytics))
}

func TestLoginRejectsInvalidIdentity(t *testing.T) {
	ctx := context.Background()
	ac := NewContext(&fakeStore{}, nil, nil)
	ac.Restore(ctx)

	err := ac.Login(ctx, Identity{ID: "9", Email: "x@alfozan.com", Name: "X", Role: rbac.Role("owner")})
	require.ErrorIs(t, err, ErrInvalidIdentity)
	assert.Equal(t, StateAnonymous, ac.Snapshot().State)
}

func TestLoginAcceptsAdministratorToken(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	ac := NewContext(store, nil, nil)
	ac.Restore(ctx)

	admin := Identity{ID: "1", Email: "admin@alfozan.com", Name: "Ahmed Al-Fozan", Role: rbac.Role("administrator")}
	require.NoError(t, admin.Normalize().Validate())
	require.NoError(t, ac.Login(ctx, admin))
	assert.Equal(t, rbac.RoleAdministrator, ac.Snapshot().Identity.Role)
	require.NotNil(t, store.identity)
	assert.Equal(t, rbac.RoleAdministrator, store.identity.Role)
	assert.True(t, ac.HasPermission(rbac.ActionManageUsers))

	require.NoError(t, ac.Logout(ctx))
	assert.False(t, ac.HasPermission(rbac.ActionManageUsers))
}

func TestLoginSaveFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	ac := NewContext(&fakeStore{saveErr: errors.New("disk full")}, nil, nil)
	ac.Restore(ctx)

	require.Error(t, ac.Login(ctx, analyst()))
	assert.Equal(t, StateAnonymous, ac.Snapshot().State)
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	ac := NewContext(store, nil, nil)
	ac.Restore(ctx)
	require.NoError(t, ac.Login(ctx, analyst()))

	require.NoError(t, ac.Logout(ctx))
	require.NoError(t, ac.Logout(ctx))
	assert.Equal(t, StateAnonymous, ac.Snapshot().State)
	assert.Nil(t, store.identity)
	assert.Equal(t, 2, store.clears)
}

func TestLogoutClearFailureStillAnonymous(t *testing.T) {
	ctx := context.Background()
	ac := NewContext(&fakeStore{clearErr: errors.New("io")}, nil, nil)
	ac.Restore(ctx)
	require.NoError(t, ac.Login(ctx, analyst()))

	assert.Error(t, ac.Logout(ctx))
	assert.Equal(t, StateAnonymous, ac.Snapshot().State)
}

func TestSubscribeDeliversLatest(t *testing.T) {
	ctx := context.Background()
	ac := NewContext(&fakeStore{}, nil, nil)
	ch, cancel := ac.Subscribe()
	defer cancel()

	assert.Equal(t, StateLoading, (<-ch).State)

	ac.Restore(ctx)
	require.NoError(t, ac.Login(ctx, analyst()))
	snap := <-ch
	assert.Equal(t, StateAuthenticated, snap.State, "slow readers see only the latest snapshot")

	require.NoError(t, ac.Logout(ctx))
	assert.Equal(t, StateAnonymous, (<-ch).State)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	ac := NewContext(&fakeStore{}, nil, nil)
	ch, cancel := ac.Subscribe()
	<-ch
	ac.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, _ := ac.Subscribe()
	assert.Equal(t, StateLoading, (<-late).State)
	_, ok = <-late
	assert.False(t, ok)
}

func TestMissingProviderPanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrNoProvider, func() {
		FromContext(context.Background())
	})
	var nilCtx *Context
	assert.PanicsWithValue(t, ErrNoProvider, func() {
		nilCtx.HasPermission(rbac.ActionRead)
	})

	ac := NewContext(nil, nil, nil)
	assert.Same(t, ac, FromContext(WithContext(context.Background(), ac)))
}

func TestRemoteUserDefaults(t *testing.T) {
	id, err := RemoteUser{ID: float64(42), Email: "new@alfozan.com", Name: "New"}.Identity()
	require.NoError(t, err)
	assert.Equal(t, "42", id.ID)
	assert.Equal(t, rbac.RoleAnalyst, id.Role)
	assert.Equal(t, DefaultDepartment, id.Department)

	id, err = RemoteUser{Email: "boss@alfozan.com", Name: "Boss", Role: "Administrator"}.Identity()
	require.NoError(t, err)
	assert.Equal(t, "boss@alfozan.com", id.ID)
	assert.Equal(t, rbac.RoleAdministrator, id.Role)

	_, err = RemoteUser{Email: "x@alfozan.com", Name: "X", Role: "owner"}.Identity()
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}
