package session

import (
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// State is the derived session state
type State string

const (
	StateInitializing       State = "INITIALIZING"
	StateAnonymous          State = "ANONYMOUS"
	StateProfilePending     State = "AUTHENTICATED_PROFILE_PENDING"
	StateNoPlan             State = "AUTHENTICATED_NO_PLAN"
	StateWithPlan           State = "AUTHENTICATED_WITH_PLAN"
	StateProfileUnavailable State = "PROFILE_UNAVAILABLE"
)

// Snapshot is a consistent view of the session
type Snapshot struct {
	State   State
	User    *models.User
	Profile *models.UserProfile
}

// IsLoading is true while no redirect decision may be made
func (s Snapshot) IsLoading() bool {
	return s.State == StateInitializing || s.State == StateProfilePending
}

// Authenticated reports whether a user is signed in
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// derive picks the state for a settled user/profile pair
func derive(user *models.User, profile *models.UserProfile) State {
	switch {
	case user == nil:
		return StateAnonymous
	case profile == nil:
		return StateProfileUnavailable
	case profile.PlanSelected:
		return StateWithPlan
	default:
		return StateNoPlan
	}
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneProfile(p *models.UserProfile) *models.UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
