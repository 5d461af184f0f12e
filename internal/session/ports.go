package session

import (
	"context"
	"sync"

	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// AuthClient is the source of the authentication session
type AuthClient interface {
	GetSession(ctx context.Context) (*models.Session, error)
	OnAuthStateChange(fn func(event models.AuthEvent, session *models.Session)) func()
	SignOut(ctx context.Context) error
}

// ProfileClient is the Profile Store Adapter as seen from the client
type ProfileClient interface {
	UpsertProfile(ctx context.Context, userID, email string, overrides models.ProfileOverrides) (*models.UserProfile, error)
}

// Navigator reads and changes the current route
type Navigator interface {
	Pathname() string
	Push(path string)
}

// RouteTracker is an in-memory Navigator. It remembers every push.
type RouteTracker struct {
	mu      sync.Mutex
	current string
	history []string
}

// NewRouteTracker starts at path
func NewRouteTracker(path string) *RouteTracker {
	return &RouteTracker{current: NormalizeRoute(path)}
}

func (r *RouteTracker) Pathname() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *RouteTracker) Push(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = NormalizeRoute(path)
	r.history = append(r.history, r.current)
}

// History returns the pushed routes in order
func (r *RouteTracker) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}
