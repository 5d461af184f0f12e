// Package session is the client-side authority for who is signed in, their
// profile, and which route they must be on.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var (
	ErrNotAuthenticated   = apperrors.Authentication("not_signed_in", "You are not signed in.")
	ErrSessionChanged     = apperrors.New(apperrors.KindTransient, "session_changed", "Your session changed. Please try again.")
	ErrProfileUnavailable = apperrors.Resource("profile_unavailable", "Your profile could not be loaded. Please try again.")
)

// Option configures a Machine
type Option func(*Machine)

// WithEventSink sets where operation events go
func WithEventSink(sink EventSink) Option {
	return func(m *Machine) { m.sink = sink }
}

// WithRetryPolicy sets the retry policy for profile calls
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(m *Machine) { m.retry = policy }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithCorrelationIDs replaces the correlation id generator
func WithCorrelationIDs(next func() string) Option {
	return func(m *Machine) { m.newID = next }
}

// Machine is the Session/Profile State Machine. One instance serves the
// whole process.
type Machine struct {
	auth     AuthClient
	profiles ProfileClient
	nav      Navigator
	sink     EventSink
	retry    RetryPolicy
	now      func() time.Time
	newID    func() string

	mu         sync.Mutex
	state      State
	user       *models.User
	profile    *models.UserProfile
	generation uint64
	ctx        context.Context
	started    bool
	unsubAuth  func()
	subs       map[int]func(Snapshot)
	nextSub    int

	navMu sync.Mutex
}

// New creates a machine in the INITIALIZING state
func New(auth AuthClient, profiles ProfileClient, nav Navigator, opts ...Option) *Machine {
	m := &Machine{
		auth:     auth,
		profiles: profiles,
		nav:      nav,
		sink:     NopSink{},
		retry:    DefaultRetryPolicy,
		now:      time.Now,
		newID:    uuid.NewString,
		state:    StateInitializing,
		ctx:      context.Background(),
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current state
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, User: cloneUser(m.user), Profile: cloneProfile(m.profile)}
}

// Subscribe registers fn for every state change and returns its
// unsubscribe func
func (m *Machine) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Start subscribes to session changes, loads the current session and its
// profile, then applies the redirect policy. A failed session fetch counts as
// no session.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.ctx = ctx
	gen := m.nextGenerationLocked(StateInitializing, nil)
	m.mu.Unlock()
	m.publish()

	unsub := m.auth.OnAuthStateChange(m.handleAuthEvent)
	m.mu.Lock()
	m.unsubAuth = unsub
	m.mu.Unlock()

	corr := m.newID()
	start := m.now()
	session, err := m.auth.GetSession(ctx)
	switch {
	case err != nil:
		m.emit(OpSessionFetch, OutcomeFailure, start, corr, "", "", err)
		session = nil
	case session == nil:
		m.emit(OpSessionFetch, OutcomeNoSession, start, corr, "", "", nil)
	default:
		m.emit(OpSessionFetch, OutcomeSuccess, start, corr, session.User.ID, "", nil)
	}

	if session == nil {
		m.settle(gen, nil, nil, corr)
		return nil
	}
	m.loadProfile(ctx, gen, session.User, corr)
	return nil
}

// Close stops listening for session changes
func (m *Machine) Close() {
	m.mu.Lock()
	unsub := m.unsubAuth
	m.unsubAuth = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (m *Machine) handleAuthEvent(event models.AuthEvent, session *models.Session) {
	m.mu.Lock()
	ctx := m.ctx
	current := cloneUser(m.user)
	m.mu.Unlock()

	switch event {
	case models.AuthEventSignedIn:
		if session == nil {
			m.signedOut(m.newID())
			return
		}
		m.signedIn(ctx, session.User)
	case models.AuthEventTokenRefreshed:
		if session != nil && (current == nil || current.ID != session.User.ID) {
			m.signedIn(ctx, session.User)
		}
	case models.AuthEventSignedOut:
		m.signedOut(m.newID())
	}
}

func (m *Machine) signedIn(ctx context.Context, user models.User) {
	m.mu.Lock()
	gen := m.nextGenerationLocked(StateProfilePending, &user)
	m.mu.Unlock()

	m.loadProfile(ctx, gen, user, m.newID())
}

func (m *Machine) signedOut(corr string) {
	m.mu.Lock()
	gen := m.nextGenerationLocked(StateAnonymous, nil)
	m.mu.Unlock()

	m.settle(gen, nil, nil, corr)
}

// nextGenerationLocked starts a new session epoch. Responses started in an
// earlier epoch are discarded.
func (m *Machine) nextGenerationLocked(state State, user *models.User) uint64 {
	m.generation++
	m.state = state
	m.user = cloneUser(user)
	m.profile = nil
	return m.generation
}

func (m *Machine) loadProfile(ctx context.Context, gen uint64, user models.User, corr string) {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.state = StateProfilePending
	m.user = cloneUser(&user)
	m.profile = nil
	m.mu.Unlock()
	m.publish()

	profile, _ := m.upsert(ctx, &user, models.ProfileOverrides{}, corr)
	m.settle(gen, &user, profile, corr)
}

// settle applies a finished load when gen is still current
func (m *Machine) settle(gen uint64, user *models.User, profile *models.UserProfile, corr string) bool {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		userID := ""
		if user != nil {
			userID = user.ID
		}
		m.emit(OpProfileUpsert, OutcomeDiscarded, m.now(), corr, userID, "superseded session", nil)
		return false
	}
	m.user = cloneUser(user)
	m.profile = cloneProfile(profile)
	m.state = derive(m.user, m.profile)
	m.mu.Unlock()

	m.publish()
	m.evaluateRedirect(corr)
	return true
}

func (m *Machine) upsert(ctx context.Context, user *models.User, overrides models.ProfileOverrides, corr string) (*models.UserProfile, error) {
	start := m.now()

	var profile *models.UserProfile
	err := m.retry.do(ctx, func() error {
		p, err := m.profiles.UpsertProfile(ctx, user.ID, user.Email, overrides)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})

	if err != nil {
		m.emit(OpProfileUpsert, OutcomeFailure, start, corr, user.ID, "", err)
		return nil, err
	}
	m.emit(OpProfileUpsert, OutcomeSuccess, start, corr, user.ID, "", nil)
	return profile, nil
}

// RefetchProfile sends overrides through the Profile Store Adapter and
// replaces the local profile with the result. A failure leaves the profile
// unavailable until the next successful fetch.
func (m *Machine) RefetchProfile(ctx context.Context, overrides models.ProfileOverrides) (*models.UserProfile, error) {
	m.mu.Lock()
	user := cloneUser(m.user)
	gen := m.generation
	m.mu.Unlock()

	if user == nil {
		return nil, ErrNotAuthenticated
	}

	corr := m.newID()
	profile, err := m.upsert(ctx, user, overrides, corr)
	if !m.settle(gen, user, profile, corr) {
		return nil, ErrSessionChanged
	}
	if err != nil {
		return nil, err
	}
	return cloneProfile(profile), nil
}

// UpdateCredits changes the local credit balance only. Callers commit the
// change with RefetchProfile.
func (m *Machine) UpdateCredits(credits int) {
	if credits < 0 {
		credits = 0
	}

	m.mu.Lock()
	if m.profile == nil {
		m.mu.Unlock()
		return
	}
	m.profile.Credits = credits
	m.mu.Unlock()

	m.publish()
}

// SignOut ends the session
func (m *Machine) SignOut(ctx context.Context) error {
	corr := m.newID()
	start := m.now()

	m.mu.Lock()
	userID := ""
	if m.user != nil {
		userID = m.user.ID
	}
	m.mu.Unlock()

	if err := m.auth.SignOut(ctx); err != nil {
		m.emit(OpSignOut, OutcomeFailure, start, corr, userID, "", err)
		return err
	}
	m.emit(OpSignOut, OutcomeSuccess, start, corr, userID, "", nil)

	// the auth client normally reports SIGNED_OUT itself
	m.mu.Lock()
	stillSignedIn := m.user != nil
	m.mu.Unlock()
	if stillSignedIn {
		m.signedOut(corr)
	}
	return nil
}

// Visit moves to path and re-applies the redirect policy
func (m *Machine) Visit(path string) string {
	m.navMu.Lock()
	m.nav.Push(path)
	m.navMu.Unlock()

	m.evaluateRedirect(m.newID())
	return m.nav.Pathname()
}

func (m *Machine) evaluateRedirect(corr string) {
	m.navMu.Lock()
	defer m.navMu.Unlock()

	snap := m.Snapshot()
	if snap.IsLoading() {
		return
	}

	current := m.nav.Pathname()
	target := RedirectTarget(snap.Authenticated(), snap.Profile, current)
	if target == "" {
		return
	}

	userID := ""
	if snap.User != nil {
		userID = snap.User.ID
	}
	m.nav.Push(target)
	m.emit(OpNavigate, OutcomeSuccess, m.now(), corr, userID, current+" -> "+target, nil)
}

func (m *Machine) publish() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	subs := make([]func(Snapshot), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, m.subs[id])
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Machine) emit(op, outcome string, start time.Time, corr, userID, detail string, err error) {
	m.sink.Emit(OperationEvent{
		Operation:     op,
		Outcome:       outcome,
		Duration:      m.now().Sub(start),
		CorrelationID: corr,
		UserID:        userID,
		Detail:        detail,
		Err:           err,
	})
}
