package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/target/hotelease-portal/config"
	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/observability/metrics"
	"github.com/target/hotelease-portal/internal/ports"
)

var (
	// ErrAccountSuspended is returned by an explicit login for a suspended identity.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrNoRoleAssigned is returned by an explicit login for an unprovisioned identity.
	ErrNoRoleAssigned = errors.New("no role assigned")
)

// ResolutionOutcome classifies a role resolution.
type ResolutionOutcome string

const (
	OutcomeResolved  ResolutionOutcome = "resolved"
	OutcomeNoRecord  ResolutionOutcome = "no_record"
	OutcomeSuspended ResolutionOutcome = "suspended"
	OutcomeError     ResolutionOutcome = "error"
)

// Resolution is the result of mapping an identity to a role.
// Role is RoleUnauthorized for every outcome except OutcomeResolved.
type Resolution struct {
	Role    domainauth.Role
	Outcome ResolutionOutcome
}

// RoleResolverOptions groups dependencies for RoleResolver.
type RoleResolverOptions struct {
	Directory ports.Directory        // Required
	Identity  ports.IdentityService  // Required: signed out when an identity is suspended
	Policy    config.SuspensionCheck // Optional: defaults to always
	Logger    *slog.Logger           // Optional
	Metrics   *metrics.Metrics       // Optional
}

// RoleResolver maps identities to roles through the directory. Concurrent
// resolutions for the same identity share one lookup and at most one sign-out.
type RoleResolver struct {
	directory ports.Directory
	identity  ports.IdentityService
	policy    config.SuspensionCheck
	logger    *slog.Logger
	metrics   *metrics.Metrics
	group     singleflight.Group
}

// NewRoleResolver constructs a RoleResolver.
func NewRoleResolver(opts RoleResolverOptions) (*RoleResolver, error) {
	if opts.Directory == nil {
		return nil, errors.New("Directory is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("IdentityService is required")
	}
	if opts.Policy == "" {
		opts.Policy = config.SuspensionCheckAlways
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RoleResolver{
		directory: opts.Directory,
		identity:  opts.Identity,
		policy:    opts.Policy,
		logger:    opts.Logger.With("component", "role_resolver"),
		metrics:   opts.Metrics,
	}, nil
}

// Resolve performs an automatic resolution (session restore or provider push).
// A missing record is not an error. A directory failure returns the error with
// OutcomeError; the caller decides how to route it.
func (r *RoleResolver) Resolve(ctx context.Context, id domainauth.Identity) (Resolution, error) {
	return r.resolve(ctx, id, r.policy == config.SuspensionCheckAlways)
}

// ResolveLogin resolves for an explicit login. Suspension is always enforced and
// both suspension and a missing record are reported as errors.
func (r *RoleResolver) ResolveLogin(ctx context.Context, id domainauth.Identity) (Resolution, error) {
	res, err := r.resolve(ctx, id, true)
	if err != nil {
		return res, err
	}
	switch res.Outcome {
	case OutcomeSuspended:
		return res, ErrAccountSuspended
	case OutcomeNoRecord:
		return res, ErrNoRoleAssigned
	}
	return res, nil
}

func (r *RoleResolver) resolve(ctx context.Context, id domainauth.Identity, enforceSuspension bool) (Resolution, error) {
	if id.UserID == "" {
		return Resolution{Role: domainauth.RoleUnauthorized, Outcome: OutcomeNoRecord}, nil
	}
	key := id.UserID
	if enforceSuspension {
		key += "|enforce"
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.lookup(ctx, id, enforceSuspension)
	})
	res, _ := v.(Resolution)
	r.metrics.RoleResolution(string(res.Outcome), err)
	return res, err
}

func (r *RoleResolver) lookup(ctx context.Context, id domainauth.Identity, enforceSuspension bool) (Resolution, error) {
	rec, err := r.directory.LookupRole(ctx, id.UserID)
	if errors.Is(err, ports.ErrDirectoryRecordNotFound) {
		r.logger.InfoContext(ctx, "identity has no directory record", "user_id", id.UserID)
		return Resolution{Role: domainauth.RoleUnauthorized, Outcome: OutcomeNoRecord}, nil
	}
	if err != nil {
		r.logger.WarnContext(ctx, "role lookup failed", "user_id", id.UserID, "error", err)
		return Resolution{Role: domainauth.RoleUnauthorized, Outcome: OutcomeError}, fmt.Errorf("lookup role: %w", err)
	}

	if rec.Suspended() && enforceSuspension {
		r.logger.WarnContext(ctx, "suspended identity, signing out", "user_id", id.UserID)
		if signOutErr := r.identity.SignOut(ctx); signOutErr != nil {
			r.logger.ErrorContext(ctx, "sign-out of suspended identity failed", "user_id", id.UserID, "error", signOutErr)
		}
		return Resolution{Role: domainauth.RoleUnauthorized, Outcome: OutcomeSuspended}, nil
	}

	return Resolution{Role: rec.Role, Outcome: OutcomeResolved}, nil
}
