package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/hotelease-portal/config"
	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/domain/event"
	"github.com/target/hotelease-portal/internal/domain/view"
	"github.com/target/hotelease-portal/internal/eventbus"
	"github.com/target/hotelease-portal/internal/observability/metrics"
	"github.com/target/hotelease-portal/internal/ports"
)

// ErrViewNotPermitted is returned when navigation targets a dashboard the current role cannot see.
var ErrViewNotPermitted = errors.New("view not permitted for current role")

// LoadingMessage is the only user-visible text produced while access is being checked.
const LoadingMessage = "Checking access…"

// Phase is the arbitrator lifecycle state.
type Phase string

const (
	PhaseInitializing    Phase = "initializing"
	PhaseRestoringLocal  Phase = "restoring_local"
	PhaseRestoringRemote Phase = "restoring_remote"
	PhaseResolved        Phase = "resolved"
)

// Transition reasons carried on navigate events.
const (
	ReasonStartupRemote = "startup_remote"
	ReasonStartupLocal  = "startup_local"
	ReasonStartupNone   = "startup_anonymous"
	ReasonExplicitLogin = "explicit_login"
	ReasonProviderPush  = "provider_signed_in"
	ReasonSignedOut     = "signed_out"
	ReasonLogout        = "logout"
	ReasonSuspended     = "suspended"
	ReasonResolveFailed = "resolve_failed"
	ReasonRequested     = "requested"
	ReasonInvariant     = "invariant_violation"
)

const (
	sourceRemote = "remote"
	sourceLocal  = "local"
)

// Snapshot is a consistent view of arbitrator state.
type Snapshot struct {
	PortalID      string          `json:"portal_id"`
	View          view.State      `json:"view"`
	Role          domainauth.Role `json:"role,omitempty"`
	Phase         Phase           `json:"phase"`
	FreshLogin    bool            `json:"fresh_login"`
	Authenticated bool            `json:"authenticated"`
	UserID        string          `json:"user_id,omitempty"`
	Source        string          `json:"source,omitempty"`
	Loading       bool            `json:"loading"`
	Message       string          `json:"message,omitempty"`
}

// ArbitratorOptions groups dependencies for Arbitrator.
type ArbitratorOptions struct {
	PortalID string                // Required
	Bus      *eventbus.Bus         // Required: navigate events are published here
	Identity ports.IdentityService // Required
	Resolver *RoleResolver         // Required
	Local    *LocalSessionStore    // Required
	Accounts *LocalAccounts        // Optional: offline login fallback
	Config   config.ArbitrationConfig
	// Strict panics on invariant violations instead of degrading to Home.
	Strict  bool
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Arbitrator is the per-portal state machine deciding the current view.
//
// All state lives behind mu and is changed only by the transition methods.
// Network I/O never happens under mu; results of automatic checks are applied
// only if no newer decision (explicit login, sign-out, later push) happened
// meanwhile, tracked by epoch. Navigate events are queued under mu and
// published in order by a single flusher, outside the lock.
type Arbitrator struct {
	portalID string
	bus      *eventbus.Bus
	identity ports.IdentityService
	resolver *RoleResolver
	local    *LocalSessionStore
	accounts *LocalAccounts
	cfg      config.ArbitrationConfig
	strict   bool
	logger   *slog.Logger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}

	mu           sync.Mutex
	phase        Phase
	current      view.State
	role         domainauth.Role
	ident        *domainauth.Identity
	sessionID    string
	source       string
	fresh        bool
	freshRole    domainauth.Role
	freshEpoch   uint64
	epoch        uint64
	navRequested bool
	started      bool
	closed       bool
	unsubscribe  func()
	outbox       []event.NavigatePayload
	flushing     bool

	// signOutPending marks a provider SIGNED_OUT that arrived while the startup
	// check was resolving; that check applies it.
	signOutPending bool
}

// NewArbitrator validates options and constructs an Arbitrator in the Initializing phase.
func NewArbitrator(opts ArbitratorOptions) (*Arbitrator, error) {
	switch {
	case opts.PortalID == "":
		return nil, errors.New("portal ID is required")
	case opts.Bus == nil:
		return nil, errors.New("event bus is required")
	case opts.Identity == nil:
		return nil, errors.New("IdentityService is required")
	case opts.Resolver == nil:
		return nil, errors.New("RoleResolver is required")
	case opts.Local == nil:
		return nil, errors.New("LocalSessionStore is required")
	}
	opts.Config.Sanitize()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Arbitrator{
		portalID: opts.PortalID,
		bus:      opts.Bus,
		identity: opts.Identity,
		resolver: opts.Resolver,
		local:    opts.Local,
		accounts: opts.Accounts,
		cfg:      opts.Config,
		strict:   opts.Strict,
		logger:   opts.Logger.With("component", "arbitrator", "portal_id", opts.PortalID),
		metrics:  opts.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
		phase:    PhaseInitializing,
		current:  view.Home,
	}, nil
}

// Start subscribes to identity changes and restores the session. It blocks until
// the startup decision is made or superseded, bounded by the startup timeout.
// Calling Start more than once is a no-op.
func (a *Arbitrator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.started || a.closed {
		a.mu.Unlock()
		return
	}
	a.started = true
	startEpoch := a.epoch
	a.mu.Unlock()

	// Subscribe before any lookup so no push during startup is missed.
	unsub := a.identity.SubscribeToChanges(a.onIdentityChange)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		return
	}
	a.unsubscribe = unsub
	a.mu.Unlock()

	began := time.Now()
	remote, local := a.restore(ctx)
	a.metrics.ObserveStartup(startupSource(remote, local), time.Since(began))

	switch {
	case remote != nil:
		a.setPhase(startEpoch, PhaseRestoringRemote)
		a.applyRemote(ctx, startEpoch, *remote, ReasonStartupRemote)
	case local != nil:
		a.setPhase(startEpoch, PhaseRestoringLocal)
		a.applyLocal(startEpoch, *local)
	default:
		a.applyAnonymous(startEpoch)
	}
}

// restore runs the local and remote lookups concurrently. A lookup that fails or
// does not finish within the startup timeout counts as absent.
func (a *Arbitrator) restore(ctx context.Context) (*domainauth.Session, *domainauth.LocalIdentity) {
	lctx, cancel := context.WithTimeout(a.ctx, a.cfg.StartupTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	type remoteResult struct {
		sess *domainauth.Session
	}
	type localResult struct {
		id *domainauth.LocalIdentity
	}
	remoteCh := make(chan remoteResult, 1)
	localCh := make(chan localResult, 1)

	go func() {
		sess, err := a.identity.GetCurrentSession(lctx)
		switch {
		case err == nil:
			remoteCh <- remoteResult{sess: &sess}
		case errors.Is(err, ports.ErrSessionNotFound):
			remoteCh <- remoteResult{}
		default:
			a.logger.Warn("remote session lookup failed, treating as absent", "error", err)
			remoteCh <- remoteResult{}
		}
	}()
	go func() {
		if !a.cfg.LocalFallback {
			localCh <- localResult{}
			return
		}
		id, ok, err := a.local.Load(lctx)
		if err != nil {
			a.logger.Warn("local session lookup failed, treating as absent", "error", err)
		}
		if ok && err == nil {
			localCh <- localResult{id: &id}
			return
		}
		localCh <- localResult{}
	}()

	var remote *domainauth.Session
	var local *domainauth.LocalIdentity
	var gotRemote, gotLocal bool
	for !gotRemote || !gotLocal {
		select {
		case r := <-remoteCh:
			remote, gotRemote = r.sess, true
		case l := <-localCh:
			local, gotLocal = l.id, true
		case <-lctx.Done():
			// Lookups that already answered keep their result.
			a.logger.Warn("startup lookups timed out", "remote_done", gotRemote, "local_done", gotLocal)
			return remote, local
		}
	}
	return remote, local
}

func startupSource(remote *domainauth.Session, local *domainauth.LocalIdentity) string {
	switch {
	case remote != nil:
		return sourceRemote
	case local != nil:
		return sourceLocal
	default:
		return "none"
	}
}

// onIdentityChange handles provider pushes. It runs on the identity dispatcher,
// so pushes are processed one at a time in provider order.
func (a *Arbitrator) onIdentityChange(ch domainauth.Change) {
	switch ch.Kind {
	case domainauth.SignedIn:
		if ch.Session == nil {
			return
		}
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return
		}
		e := a.advanceLocked()
		a.mu.Unlock()
		a.applyRemote(a.ctx, e, *ch.Session, ReasonProviderPush)
	case domainauth.SignedOut:
		a.signedOut(ReasonSignedOut, false)
	}
}

// applyRemote resolves the role for sess and routes by it, unless superseded.
func (a *Arbitrator) applyRemote(ctx context.Context, e uint64, sess domainauth.Session, reason string) {
	res, err := a.resolver.Resolve(ctx, sess.Identity)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.epoch != e {
		if a.fresh && e < a.freshEpoch {
			// A check begun before the explicit login is still the next automatic check.
			a.fresh = false
			a.freshRole = ""
		}
		a.logger.Debug("discarding stale session check", "reason", reason, "user_id", sess.Identity.UserID)
		a.mu.Unlock()
		return
	}

	pendingSignOut := a.signOutPending
	a.signOutPending = false
	clearLocal := false
	switch {
	case res.Outcome == OutcomeSuspended:
		a.clearAuthLocked()
		a.advanceLocked()
		clearLocal = true
		a.setViewLocked(view.AdminLogin, ReasonSuspended)
	case pendingSignOut:
		// The session ended while its role was being resolved.
		target := a.logoutTargetLocked()
		a.clearAuthLocked()
		a.setViewLocked(target, ReasonSignedOut)
	case err != nil:
		// Transient resolver failure: keep the session, fall back to the admin login.
		a.logger.Warn("role resolution failed", "user_id", sess.Identity.UserID, "error", err)
		a.authenticateLocked(sess.Identity, sess.ID, sourceRemote, domainauth.RoleUnauthorized)
		a.fresh = false
		a.setViewLocked(view.AdminLogin, ReasonResolveFailed)
	default:
		a.authenticateLocked(sess.Identity, sess.ID, sourceRemote, res.Role)
		if a.fresh && res.Role == a.freshRole {
			// The explicit login already routed; this check only confirms the role.
			a.fresh = false
		} else {
			a.fresh = false
			a.setViewLocked(view.ForRole(res.Role), reason)
		}
	}
	a.resolveLocked()
	a.mu.Unlock()

	if clearLocal {
		a.clearLocalStore()
	}
	a.flush()
}

// applyLocal routes by the cached local identity without contacting the directory.
func (a *Arbitrator) applyLocal(e uint64, id domainauth.LocalIdentity) {
	a.mu.Lock()
	if a.closed || a.epoch != e {
		a.mu.Unlock()
		return
	}
	a.authenticateLocked(domainauth.Identity{UserID: id.UserID, Email: id.Email, Name: id.Name}, "", sourceLocal, id.Role)
	a.fresh = false
	target := view.Home
	if id.Role != "" {
		target = view.ForRole(id.Role)
	}
	a.setViewLocked(target, ReasonStartupLocal)
	a.resolveLocked()
	a.mu.Unlock()
	a.flush()
}

// applyAnonymous completes startup with no session. A navigation requested during
// startup stays in effect; otherwise the view is Home.
func (a *Arbitrator) applyAnonymous(e uint64) {
	a.mu.Lock()
	if a.closed || a.epoch != e {
		a.mu.Unlock()
		return
	}
	a.fresh = false
	if !a.navRequested {
		a.setViewLocked(view.Home, ReasonStartupNone)
	}
	a.resolveLocked()
	a.mu.Unlock()
	a.flush()
}

func (a *Arbitrator) setPhase(e uint64, p Phase) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.epoch == e && a.phase != PhaseResolved {
		a.phase = p
	}
}

// ExplicitLogin records a successful user-initiated login and routes by role
// immediately. A provider push for the same sign-in that arrives afterwards
// confirms the role without navigating again.
func (a *Arbitrator) ExplicitLogin(id domainauth.Identity, sessionID string, role domainauth.Role) Snapshot {
	a.mu.Lock()
	if a.closed {
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap
	}
	a.freshEpoch = a.advanceLocked()
	source := sourceRemote
	if sessionID == "" {
		source = sourceLocal
	}
	a.authenticateLocked(id, sessionID, source, role)
	a.fresh = true
	a.freshRole = role
	a.setViewLocked(view.ForRole(role), ReasonExplicitLogin)
	a.resolveLocked()
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.flush()
	return snap
}

// RequestNavigate changes the view on behalf of the rendering layer.
func (a *Arbitrator) RequestNavigate(target view.State) (Snapshot, error) {
	if !target.Valid() {
		return a.Snapshot(), fmt.Errorf("unknown view %q", target)
	}
	a.mu.Lock()
	if target.IsDashboard() && !a.permitsLocked(target) {
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, ErrViewNotPermitted
	}
	if a.phase != PhaseResolved {
		a.navRequested = true
	}
	a.setViewLocked(target, ReasonRequested)
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.flush()
	return snap, nil
}

// RequestLogin signs in with email and password, resolves the role and applies
// ExplicitLogin. When the identity service is unreachable and local fallback is
// enabled, local accounts are used instead.
func (a *Arbitrator) RequestLogin(ctx context.Context, creds domainauth.Credentials) (Snapshot, error) {
	sess, err := a.identity.SignInWithPassword(ctx, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, ports.ErrIdentityUnavailable) && a.cfg.LocalFallback && a.accounts != nil {
			return a.loginLocal(ctx, creds)
		}
		a.metrics.LoginAttempt("password", loginResult(err))
		return a.Snapshot(), err
	}

	res, err := a.resolver.ResolveLogin(ctx, sess.Identity)
	if err != nil {
		a.metrics.LoginAttempt("password", loginResult(err))
		a.rejectLogin(sess, res, err)
		return a.Snapshot(), err
	}

	if saveErr := a.local.Save(ctx, domainauth.LocalIdentity{
		UserID: sess.Identity.UserID,
		Email:  sess.Identity.Email,
		Name:   sess.Identity.Name,
		Role:   res.Role,
	}); saveErr != nil {
		a.logger.WarnContext(ctx, "failed to cache local session", "error", saveErr)
	}
	a.metrics.LoginAttempt("password", metrics.ResultSuccess)
	return a.ExplicitLogin(sess.Identity, sess.ID, res.Role), nil
}

func (a *Arbitrator) loginLocal(ctx context.Context, creds domainauth.Credentials) (Snapshot, error) {
	acct, err := a.accounts.Validate(ctx, creds.Email, creds.Password)
	if err != nil {
		a.metrics.LoginAttempt("local", loginResult(err))
		return a.Snapshot(), err
	}
	if saveErr := a.local.Save(ctx, domainauth.LocalIdentity{
		UserID: acct.UserID,
		Email:  acct.Email,
		Name:   acct.Name,
		Role:   acct.Role,
	}); saveErr != nil {
		a.logger.WarnContext(ctx, "failed to cache local session", "error", saveErr)
	}
	a.logger.InfoContext(ctx, "identity service unavailable, signed in with local account", "user_id", acct.UserID)
	a.metrics.LoginAttempt("local", metrics.ResultSuccess)
	return a.ExplicitLogin(acct.Identity(), "", acct.Role), nil
}

// rejectLogin routes a signed-in identity that may not enter to the admin login.
// Suspended identities were already signed out by the resolver.
func (a *Arbitrator) rejectLogin(sess domainauth.Session, res Resolution, err error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.advanceLocked()
	a.fresh = false
	reason := ReasonResolveFailed
	if errors.Is(err, ErrAccountSuspended) {
		a.clearAuthLocked()
		reason = ReasonSuspended
	} else {
		a.authenticateLocked(sess.Identity, sess.ID, sourceRemote, res.Role)
	}
	a.setViewLocked(view.AdminLogin, reason)
	a.resolveLocked()
	a.mu.Unlock()
	a.flush()
}

// RequestLogout signs out, clears the local session and routes per the logout policy.
// The transition happens even when the identity service fails; that error is returned.
func (a *Arbitrator) RequestLogout(ctx context.Context) (Snapshot, error) {
	signOutErr := a.identity.SignOut(ctx)
	if signOutErr != nil {
		a.logger.WarnContext(ctx, "identity sign-out failed", "error", signOutErr)
	}
	a.signedOut(ReasonLogout, true)
	return a.Snapshot(), signOutErr
}

// signedOut applies SIGNED_OUT. A push for a portal that is already signed out
// and resolved only clears leftovers; an explicit logout always routes.
func (a *Arbitrator) signedOut(reason string, explicit bool) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if !explicit && a.phase == PhaseRestoringRemote {
		// The startup check decides the view, so a suspension still lands on AdminLogin.
		a.signOutPending = true
		a.fresh = false
		a.freshRole = ""
		a.mu.Unlock()
		a.clearLocalStore()
		return
	}
	a.advanceLocked()
	a.fresh = false
	a.freshRole = ""
	if !explicit && a.ident == nil && a.phase == PhaseResolved {
		a.mu.Unlock()
		a.clearLocalStore()
		return
	}
	target := a.logoutTargetLocked()
	a.clearAuthLocked()
	a.setViewLocked(target, reason)
	a.resolveLocked()
	a.mu.Unlock()

	a.clearLocalStore()
	a.flush()
}

// advanceLocked starts a new decision, making in-flight automatic checks stale.
func (a *Arbitrator) advanceLocked() uint64 {
	a.epoch++
	a.signOutPending = false
	return a.epoch
}

func (a *Arbitrator) logoutTargetLocked() view.State {
	switch a.cfg.LogoutRedirect {
	case config.LogoutRedirectHome:
		return view.Home
	case config.LogoutRedirectAdminLogin:
		return view.AdminLogin
	default:
		if a.current.IsAdminSurface() {
			return view.AdminLogin
		}
		return view.Home
	}
}

func (a *Arbitrator) clearLocalStore() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.StartupTimeout)
	defer cancel()
	if err := a.local.Clear(ctx); err != nil {
		a.logger.Warn("failed to clear local session", "error", err)
	}
}

func (a *Arbitrator) authenticateLocked(id domainauth.Identity, sessionID, source string, role domainauth.Role) {
	a.ident = &id
	a.sessionID = sessionID
	a.source = source
	a.role = role
}

func (a *Arbitrator) clearAuthLocked() {
	a.ident = nil
	a.sessionID = ""
	a.source = ""
	a.role = ""
	a.fresh = false
	a.freshRole = ""
}

func (a *Arbitrator) resolveLocked() {
	if a.phase == PhaseResolved {
		return
	}
	a.phase = PhaseResolved
	close(a.ready)
}

func (a *Arbitrator) permitsLocked(v view.State) bool {
	need, ok := v.DashboardRole()
	if !ok {
		return true
	}
	return a.ident != nil && a.role.AtLeast(need)
}

// setViewLocked makes v current and queues a navigate event when the view changes.
// A dashboard without a matching role is an invariant violation.
func (a *Arbitrator) setViewLocked(v view.State, reason string) {
	if !a.permitsLocked(v) {
		msg := fmt.Sprintf("dashboard %s requires a matching role, have %q", v, a.role)
		if a.strict {
			panic("arbitrator: " + msg)
		}
		a.logger.Error("invariant violation, degrading to home", "view", string(v), "role", string(a.role))
		v, reason = view.Home, ReasonInvariant
	}
	if v == a.current {
		return
	}
	a.logger.Info("view transition", "from", string(a.current), "view", string(v), "role", string(a.role), "reason", reason)
	a.current = v
	a.outbox = append(a.outbox, event.NavigatePayload{View: v, Role: a.role, PortalID: a.portalID, Reason: reason})
	a.metrics.Transition(string(v), reason)
}

// flush publishes queued navigate events in order. Only one goroutine flushes at
// a time; a caller that finds a flush in progress leaves its events to it.
func (a *Arbitrator) flush() {
	a.mu.Lock()
	if a.flushing {
		a.mu.Unlock()
		return
	}
	a.flushing = true
	for len(a.outbox) > 0 {
		batch := a.outbox
		a.outbox = nil
		a.mu.Unlock()
		for _, p := range batch {
			a.bus.Publish(event.Navigate, p)
		}
		a.mu.Lock()
	}
	a.flushing = false
	a.mu.Unlock()
}

// Snapshot returns the current state.
func (a *Arbitrator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Arbitrator) snapshotLocked() Snapshot {
	s := Snapshot{
		PortalID:      a.portalID,
		View:          a.current,
		Role:          a.role,
		Phase:         a.phase,
		FreshLogin:    a.fresh,
		Authenticated: a.ident != nil,
		Source:        a.source,
		Loading:       a.phase != PhaseResolved,
	}
	if a.ident != nil {
		s.UserID = a.ident.UserID
	}
	if s.Loading {
		s.Message = LoadingMessage
	}
	return s
}

// CurrentView returns the current view.
func (a *Arbitrator) CurrentView() view.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Ready is closed when the first decision has been made.
func (a *Arbitrator) Ready() <-chan struct{} { return a.ready }

// OnViewStateChanged subscribes h to this portal's navigate events.
func (a *Arbitrator) OnViewStateChanged(h func(event.NavigatePayload)) (unsubscribe func()) {
	return a.bus.Subscribe(func(ev event.Event) {
		if p, ok := ev.Payload.(event.NavigatePayload); ok {
			h(p)
		}
	}, eventbus.SubscribeOptions{EventTypes: []event.Type{event.Navigate}})
}

// Close releases the identity subscription and cancels in-flight checks.
func (a *Arbitrator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	unsub := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	a.cancel()
	if unsub != nil {
		unsub()
	}
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ports.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountSuspended):
		return "suspended"
	case errors.Is(err, ErrNoRoleAssigned):
		return "no_role"
	default:
		return metrics.ResultError
	}
}
