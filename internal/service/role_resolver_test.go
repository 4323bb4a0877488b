package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/hotelease-portal/config"
	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/mocks"
	"github.com/target/hotelease-portal/internal/ports"
)

func newTestResolver(t *testing.T, dir ports.Directory, identity ports.IdentityService, policy config.SuspensionCheck) *RoleResolver {
	t.Helper()
	r, err := NewRoleResolver(RoleResolverOptions{
		Directory: dir,
		Identity:  identity,
		Policy:    policy,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)
	return r
}

func TestRoleResolver_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		record      *domainauth.DirectoryRecord
		lookupErr   error
		wantRole    domainauth.Role
		wantOutcome ResolutionOutcome
		wantErr     bool
		wantSignOut bool
	}{
		{
			name:        "active staff",
			record:      &domainauth.DirectoryRecord{UserID: "u1", Role: domainauth.RoleStaff, Status: domainauth.StatusActive},
			wantRole:    domainauth.RoleStaff,
			wantOutcome: OutcomeResolved,
		},
		{
			name:        "no record is not an error",
			lookupErr:   ports.ErrDirectoryRecordNotFound,
			wantRole:    domainauth.RoleUnauthorized,
			wantOutcome: OutcomeNoRecord,
		},
		{
			name:        "suspended forces sign-out",
			record:      &domainauth.DirectoryRecord{UserID: "u1", Role: domainauth.RoleAdmin, Status: domainauth.StatusSuspended},
			wantRole:    domainauth.RoleUnauthorized,
			wantOutcome: OutcomeSuspended,
			wantSignOut: true,
		},
		{
			name:        "directory failure",
			lookupErr:   errors.New("connection reset"),
			wantRole:    domainauth.RoleUnauthorized,
			wantOutcome: OutcomeError,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			dir := mocks.NewMockDirectory(ctrl)
			identity := mocks.NewMockIdentityService(ctrl)

			var rec domainauth.DirectoryRecord
			if tt.record != nil {
				rec = *tt.record
			}
			dir.EXPECT().LookupRole(gomock.Any(), "u1").Return(rec, tt.lookupErr)
			if tt.wantSignOut {
				identity.EXPECT().SignOut(gomock.Any()).Return(nil).Times(1)
			}

			r := newTestResolver(t, dir, identity, config.SuspensionCheckAlways)
			res, err := r.Resolve(context.Background(), domainauth.Identity{UserID: "u1"})

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantRole, res.Role)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
		})
	}
}

func TestRoleResolver_EmptyUserIDSkipsLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := newTestResolver(t, mocks.NewMockDirectory(ctrl), mocks.NewMockIdentityService(ctrl), "")

	res, err := r.Resolve(context.Background(), domainauth.Identity{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoRecord, res.Outcome)
}

func TestRoleResolver_LoginOnlyPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	identity := mocks.NewMockIdentityService(ctrl)
	suspended := domainauth.DirectoryRecord{UserID: "u1", Role: domainauth.RoleAdmin, Status: domainauth.StatusSuspended}
	dir.EXPECT().LookupRole(gomock.Any(), "u1").Return(suspended, nil).Times(2)
	identity.EXPECT().SignOut(gomock.Any()).Return(nil).Times(1)

	r := newTestResolver(t, dir, identity, config.SuspensionCheckLogin)

	res, err := r.Resolve(context.Background(), domainauth.Identity{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, res.Role, "restores do not enforce suspension under the login policy")

	_, err = r.ResolveLogin(context.Background(), domainauth.Identity{UserID: "u1"})
	require.ErrorIs(t, err, ErrAccountSuspended)
}

func TestRoleResolver_ResolveLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	identity := mocks.NewMockIdentityService(ctrl)
	dir.EXPECT().LookupRole(gomock.Any(), "known").
		Return(domainauth.DirectoryRecord{UserID: "known", Role: domainauth.RoleSuperadmin, Status: domainauth.StatusActive}, nil)
	dir.EXPECT().LookupRole(gomock.Any(), "unknown").
		Return(domainauth.DirectoryRecord{}, ports.ErrDirectoryRecordNotFound)

	r := newTestResolver(t, dir, identity, config.SuspensionCheckAlways)

	res, err := r.ResolveLogin(context.Background(), domainauth.Identity{UserID: "known"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleSuperadmin, res.Role)

	res, err = r.ResolveLogin(context.Background(), domainauth.Identity{UserID: "unknown"})
	require.ErrorIs(t, err, ErrNoRoleAssigned)
	assert.Equal(t, domainauth.RoleUnauthorized, res.Role)
}

func TestRoleResolver_ConcurrentSuspendedResolutionsSignOutOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	identity := mocks.NewMockIdentityService(ctrl)

	release := make(chan struct{})
	entered := make(chan struct{})
	dir.EXPECT().LookupRole(gomock.Any(), "u1").DoAndReturn(func(context.Context, string) (domainauth.DirectoryRecord, error) {
		close(entered)
		<-release
		return domainauth.DirectoryRecord{UserID: "u1", Role: domainauth.RoleStaff, Status: domainauth.StatusSuspended}, nil
	}).Times(1)
	identity.EXPECT().SignOut(gomock.Any()).Return(nil).Times(1)

	r := newTestResolver(t, dir, identity, config.SuspensionCheckAlways)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Resolution, callers)
	wg.Add(callers)
	for i := range callers {
		go func() {
			defer wg.Done()
			results[i], _ = r.Resolve(context.Background(), domainauth.Identity{UserID: "u1"})
		}()
	}
	<-entered
	// Let the remaining callers join the in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, OutcomeSuspended, res.Outcome)
	}
}

func TestNewRoleResolver_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := NewRoleResolver(RoleResolverOptions{Identity: mocks.NewMockIdentityService(ctrl)})
	require.Error(t, err)
	_, err = NewRoleResolver(RoleResolverOptions{Directory: mocks.NewMockDirectory(ctrl)})
	require.Error(t, err)
}
