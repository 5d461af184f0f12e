package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session/sessiontest"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var alice = models.User{ID: "user-alice", Email: "alice@example.com"}

type eventLog struct {
	mu     sync.Mutex
	events []session.OperationEvent
}

func (l *eventLog) Emit(e session.OperationEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) find(op, outcome string) []session.OperationEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []session.OperationEvent
	for _, e := range l.events {
		if e.Operation == op && e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	auth     *sessiontest.Auth
	profiles *sessiontest.Profiles
	nav      *session.RouteTracker
	events   *eventLog
	machine  *session.Machine
}

func newHarness(user *models.User, path string, opts ...session.Option) *harness {
	h := &harness{
		auth:     sessiontest.NewAuth(user),
		profiles: sessiontest.NewProfiles(),
		nav:      session.NewRouteTracker(path),
		events:   &eventLog{},
	}
	opts = append([]session.Option{session.WithEventSink(h.events)}, opts...)
	h.machine = session.New(h.auth, h.profiles, h.nav, opts...)
	return h
}

func TestInitialState(t *testing.T) {
	h := newHarness(nil, "/")
	snap := h.machine.Snapshot()

	assert.Equal(t, session.StateInitializing, snap.State)
	assert.True(t, snap.IsLoading())
	assert.False(t, snap.Authenticated())
}

func TestStartAnonymousOnProtectedRoute(t *testing.T) {
	h := newHarness(nil, "/record")

	require.NoError(t, h.machine.Start(context.Background()))

	snap := h.machine.Snapshot()
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.False(t, snap.IsLoading())
	assert.Equal(t, session.RouteLogin, h.nav.Pathname())
	assert.Empty(t, h.profiles.Calls())
	assert.Len(t, h.events.find(session.OpSessionFetch, session.OutcomeNoSession), 1)
}

func TestStartAnonymousOnPublicRoute(t *testing.T) {
	h := newHarness(nil, "/")

	require.NoError(t, h.machine.Start(context.Background()))

	assert.Equal(t, "/", h.nav.Pathname())
	assert.Empty(t, h.nav.History())
}

func TestNewUserIsSentToPlanSelection(t *testing.T) {
	for _, requested := range []string{"/", "/record", "/history", "/settings", "/login"} {
		t.Run(requested, func(t *testing.T) {
			h := newHarness(&alice, requested)

			require.NoError(t, h.machine.Start(context.Background()))

			snap := h.machine.Snapshot()
			assert.Equal(t, session.StateNoPlan, snap.State)
			require.NotNil(t, snap.Profile)
			assert.Equal(t, 25, snap.Profile.Credits)
			assert.Equal(t, models.PlanFree, snap.Profile.CurrentPlan)
			assert.False(t, snap.Profile.PlanSelected)
			assert.Equal(t, session.RoutePricing, h.nav.Pathname())

			calls := h.profiles.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, alice.ID, calls[0].UserID)
			assert.Equal(t, alice.Email, calls[0].Email)
			assert.True(t, calls[0].Overrides.IsEmpty())
		})
	}
}

func TestUserWithPlanLeavesLogin(t *testing.T) {
	h := newHarness(&alice, "/login")
	existing := models.NewProfile(alice.ID, alice.Email, 40)
	existing.PlanSelected = true
	h.profiles.Put(existing)

	require.NoError(t, h.machine.Start(context.Background()))

	assert.Equal(t, session.StateWithPlan, h.machine.Snapshot().State)
	assert.Equal(t, session.RouteRecord, h.nav.Pathname())
	assert.Equal(t, 40, h.machine.Snapshot().Profile.Credits)
}

func TestSessionFetchFailureIsNoSession(t *testing.T) {
	h := newHarness(&alice, "/history")
	h.auth.GetErr = errors.New("network down")

	require.NoError(t, h.machine.Start(context.Background()))

	assert.Equal(t, session.StateAnonymous, h.machine.Snapshot().State)
	assert.Equal(t, session.RouteLogin, h.nav.Pathname())
	assert.Len(t, h.events.find(session.OpSessionFetch, session.OutcomeFailure), 1)
}

func TestProfileFailureIsDegradedButAuthenticated(t *testing.T) {
	h := newHarness(&alice, "/history")
	h.profiles.Errs = []error{apperrors.Transient(errors.New("timeout"), "Network error")}

	require.NoError(t, h.machine.Start(context.Background()))

	snap := h.machine.Snapshot()
	assert.Equal(t, session.StateProfileUnavailable, snap.State)
	assert.True(t, snap.Authenticated())
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.IsLoading())
	assert.Equal(t, "/history", h.nav.Pathname())
	assert.Len(t, h.profiles.Calls(), 1, "no automatic retry")

	profile, err := h.machine.RefetchProfile(context.Background(), models.ProfileOverrides{})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, profile.ID)
	assert.Equal(t, session.StateNoPlan, h.machine.Snapshot().State)
	assert.Equal(t, session.RoutePricing, h.nav.Pathname())
}

func TestRedirectEvaluationIsIdempotent(t *testing.T) {
	h := newHarness(&alice, "/record")
	require.NoError(t, h.machine.Start(context.Background()))
	require.Len(t, h.events.find(session.OpNavigate, session.OutcomeSuccess), 1)

	_, err := h.machine.RefetchProfile(context.Background(), models.ProfileOverrides{})
	require.NoError(t, err)
	h.machine.UpdateCredits(25)

	assert.Len(t, h.events.find(session.OpNavigate, session.OutcomeSuccess), 1)
	assert.Equal(t, []string{session.RoutePricing}, h.nav.History())
}

func TestSignedInEventLoadsProfile(t *testing.T) {
	h := newHarness(nil, "/login")
	require.NoError(t, h.machine.Start(context.Background()))

	h.auth.SignIn(alice)

	snap := h.machine.Snapshot()
	assert.Equal(t, session.StateNoPlan, snap.State)
	assert.Equal(t, alice.ID, snap.User.ID)
	assert.Equal(t, session.RoutePricing, h.nav.Pathname())
}

func TestSignedOutEventClearsState(t *testing.T) {
	h := newHarness(&alice, "/settings")
	existing := models.NewProfile(alice.ID, alice.Email, 10)
	existing.PlanSelected = true
	h.profiles.Put(existing)
	require.NoError(t, h.machine.Start(context.Background()))
	require.Equal(t, "/settings", h.nav.Pathname())

	require.NoError(t, h.machine.SignOut(context.Background()))

	snap := h.machine.Snapshot()
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.Equal(t, session.RouteLogin, h.nav.Pathname())
	assert.Len(t, h.events.find(session.OpSignOut, session.OutcomeSuccess), 1)
}

func TestSignOutFailureKeepsSession(t *testing.T) {
	h := newHarness(&alice, "/pricing")
	require.NoError(t, h.machine.Start(context.Background()))
	h.auth.SignOutErr = errors.New("disk full")

	err := h.machine.SignOut(context.Background())
	assert.Error(t, err)
	assert.True(t, h.machine.Snapshot().Authenticated())
}

func TestRefetchMergesOnlyOverrides(t *testing.T) {
	h := newHarness(&alice, "/record")
	existing := models.NewProfile(alice.ID, alice.Email, 10)
	existing.PlanSelected = true
	existing.DeletionPolicyDays = 30
	h.profiles.Put(existing)
	require.NoError(t, h.machine.Start(context.Background()))

	profile, err := h.machine.RefetchProfile(context.Background(), models.ProfileOverrides{Credits: models.Int(7)})
	require.NoError(t, err)

	want := existing
	want.Credits = 7
	assert.Equal(t, want, *profile)
	assert.Equal(t, want, *h.machine.Snapshot().Profile)
}

func TestRefetchWhenSignedOut(t *testing.T) {
	h := newHarness(nil, "/")
	require.NoError(t, h.machine.Start(context.Background()))

	_, err := h.machine.RefetchProfile(context.Background(), models.ProfileOverrides{})
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestRefetchFailureClearsProfile(t *testing.T) {
	h := newHarness(&alice, "/pricing")
	require.NoError(t, h.machine.Start(context.Background()))

	h.profiles.Errs = []error{apperrors.Transient(errors.New("503"), "Network error")}
	_, err := h.machine.RefetchProfile(context.Background(), models.ProfileOverrides{Credits: models.Int(1)})

	assert.True(t, apperrors.IsKind(err, apperrors.KindTransient))
	assert.Equal(t, session.StateProfileUnavailable, h.machine.Snapshot().State)
	stored, _ := h.profiles.Stored(alice.ID)
	assert.Equal(t, 25, stored.Credits)
}

func TestUpdateCreditsIsLocalOnly(t *testing.T) {
	h := newHarness(&alice, "/pricing")
	require.NoError(t, h.machine.Start(context.Background()))

	h.machine.UpdateCredits(3)

	assert.Equal(t, 3, h.machine.Snapshot().Profile.Credits)
	stored, _ := h.profiles.Stored(alice.ID)
	assert.Equal(t, 25, stored.Credits)

	h.machine.UpdateCredits(-4)
	assert.Equal(t, 0, h.machine.Snapshot().Profile.Credits)
}

func TestLateProfileFromSupersededSessionIsDiscarded(t *testing.T) {
	h := newHarness(&alice, "/record")

	started := make(chan struct{})
	release := make(chan struct{})
	h.profiles.Hook = func(call sessiontest.Call) {
		if call.UserID == alice.ID {
			close(started)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- h.machine.Start(context.Background()) }()

	<-started
	assert.Equal(t, session.StateProfilePending, h.machine.Snapshot().State)
	h.auth.Emit(models.AuthEventSignedOut, nil)
	close(release)
	require.NoError(t, <-done)

	snap := h.machine.Snapshot()
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.Nil(t, snap.Profile)
	assert.Equal(t, session.RouteLogin, h.nav.Pathname())
	assert.Len(t, h.events.find(session.OpProfileUpsert, session.OutcomeDiscarded), 1)
}

func TestRetryPolicyRetriesTransientFailures(t *testing.T) {
	h := newHarness(&alice, "/", session.WithRetryPolicy(session.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}))
	h.profiles.Errs = []error{
		apperrors.Transient(errors.New("reset"), "Network error"),
		apperrors.Transient(errors.New("reset"), "Network error"),
	}

	require.NoError(t, h.machine.Start(context.Background()))

	assert.Equal(t, session.StateNoPlan, h.machine.Snapshot().State)
	assert.Len(t, h.profiles.Calls(), 3)
}

func TestRetryPolicySkipsPermanentFailures(t *testing.T) {
	h := newHarness(&alice, "/", session.WithRetryPolicy(session.RetryPolicy{MaxAttempts: 3}))
	h.profiles.Errs = []error{apperrors.Validation("bad", "Missing userId or userEmail")}

	require.NoError(t, h.machine.Start(context.Background()))

	assert.Equal(t, session.StateProfileUnavailable, h.machine.Snapshot().State)
	assert.Len(t, h.profiles.Calls(), 1)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(&alice, "/")

	var states []session.State
	unsubscribe := h.machine.Subscribe(func(s session.Snapshot) {
		states = append(states, s.State)
	})

	require.NoError(t, h.machine.Start(context.Background()))
	unsubscribe()
	h.machine.UpdateCredits(1)

	require.NotEmpty(t, states)
	assert.Equal(t, session.StateInitializing, states[0])
	assert.Contains(t, states, session.StateProfilePending)
	assert.Equal(t, session.StateNoPlan, states[len(states)-1])
}

func TestCloseUnsubscribesFromAuth(t *testing.T) {
	h := newHarness(nil, "/")
	require.NoError(t, h.machine.Start(context.Background()))
	require.Equal(t, 1, h.auth.Listeners())

	h.machine.Close()

	assert.Equal(t, 0, h.auth.Listeners())
}

func TestVisitAppliesPolicy(t *testing.T) {
	h := newHarness(nil, "/")
	require.NoError(t, h.machine.Start(context.Background()))

	assert.Equal(t, session.RouteLogin, h.machine.Visit("/history"))
	assert.Equal(t, "/", h.machine.Visit("/"))
}

func TestCorrelationIDsAreAttached(t *testing.T) {
	h := newHarness(&alice, "/", session.WithCorrelationIDs(func() string { return "corr-1" }))
	require.NoError(t, h.machine.Start(context.Background()))

	events := h.events.find(session.OpProfileUpsert, session.OutcomeSuccess)
	require.Len(t, events, 1)
	assert.Equal(t, "corr-1", events[0].CorrelationID)
	assert.Equal(t, alice.ID, events[0].UserID)
}
