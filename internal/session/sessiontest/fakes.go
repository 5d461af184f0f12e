// Package sessiontest provides in-memory auth and profile collaborators for
// tests of code built on the session machine.
package sessiontest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// Auth is an in-memory session source
type Auth struct {
	mu         sync.Mutex
	session    *models.Session
	GetErr     error
	SignOutErr error
	listeners  map[int]func(models.AuthEvent, *models.Session)
	nextID     int
}

// NewAuth starts signed in as user, or signed out when user is nil
func NewAuth(user *models.User) *Auth {
	a := &Auth{listeners: make(map[int]func(models.AuthEvent, *models.Session))}
	if user != nil {
		a.session = newSession(*user)
	}
	return a
}

func newSession(user models.User) *models.Session {
	return &models.Session{
		AccessToken: "token-" + user.ID,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        user,
	}
}

func (a *Auth) GetSession(ctx context.Context) (*models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.GetErr != nil {
		return nil, a.GetErr
	}
	if a.session == nil {
		return nil, nil
	}
	s := *a.session
	return &s, nil
}

func (a *Auth) OnAuthStateChange(fn func(models.AuthEvent, *models.Session)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	if a.SignOutErr != nil {
		a.mu.Unlock()
		return a.SignOutErr
	}
	a.session = nil
	a.mu.Unlock()

	a.Emit(models.AuthEventSignedOut, nil)
	return nil
}

// SignIn switches to user and notifies listeners
func (a *Auth) SignIn(user models.User) {
	a.mu.Lock()
	a.session = newSession(user)
	s := *a.session
	a.mu.Unlock()

	a.Emit(models.AuthEventSignedIn, &s)
}

// Emit delivers an event to every listener synchronously
func (a *Auth) Emit(event models.AuthEvent, session *models.Session) {
	a.mu.Lock()
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(models.AuthEvent, *models.Session), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, a.listeners[id])
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

// Listeners returns the number of subscribed listeners
func (a *Auth) Listeners() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

// Call is one recorded UpsertProfile invocation
type Call struct {
	UserID    string
	Email     string
	Overrides models.ProfileOverrides
}

// Profiles is an in-memory Profile Store Adapter with upsert-merge
// semantics
type Profiles struct {
	mu       sync.Mutex
	profiles map[string]models.UserProfile
	calls    []Call

	// Errs are returned by successive calls before any succeeds
	Errs []error
	// Hook runs before each call returns, outside the lock
	Hook func(call Call)
}

// NewProfiles creates an empty adapter
func NewProfiles() *Profiles {
	return &Profiles{profiles: make(map[string]models.UserProfile)}
}

// Put stores a profile as-is
func (p *Profiles) Put(profile models.UserProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.ID] = profile
}

// Stored returns the persisted profile
func (p *Profiles) Stored(userID string) (models.UserProfile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[userID]
	return profile, ok
}

// Calls returns every invocation so far
func (p *Profiles) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

func (p *Profiles) UpsertProfile(ctx context.Context, userID, email string, overrides models.ProfileOverrides) (*models.UserProfile, error) {
	call := Call{UserID: userID, Email: email, Overrides: overrides}

	p.mu.Lock()
	p.calls = append(p.calls, call)
	var err error
	if len(p.Errs) > 0 {
		err = p.Errs[0]
		p.Errs = p.Errs[1:]
	}
	hook := p.Hook
	p.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.profiles[userID]
	if !ok {
		current = models.NewProfile(userID, email, models.DefaultCredits)
	}
	merged := overrides.Apply(current)
	p.profiles[userID] = merged
	return &merged, nil
}
