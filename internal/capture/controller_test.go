package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/ai"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session/sessiontest"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var testUser = models.User{ID: "user-1", Email: "user@example.com"}

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

type fakeClock struct {
	now    time.Time
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC),
		ticker: &fakeTicker{ch: make(chan time.Time)},
	}
}

func (c *fakeClock) Now() time.Time                 { return c.now }
func (c *fakeClock) NewTicker(time.Duration) Ticker { return c.ticker }

// advance delivers n one-second ticks
func (c *fakeClock) advance(n int) {
	for i := 0; i < n; i++ {
		c.ticker.ch <- c.now
	}
}

type fakeAudioSession struct {
	audio     Audio
	finishErr error
	finished  bool
	discarded bool
}

func (s *fakeAudioSession) Finish() (Audio, error) {
	s.finished = true
	return s.audio, s.finishErr
}

func (s *fakeAudioSession) Discard() error {
	s.discarded = true
	return nil
}

type fakeMicrophone struct {
	granted  bool
	checks   int
	sessions []*fakeAudioSession
}

func (m *fakeMicrophone) Permission(context.Context) (bool, error) {
	m.checks++
	return m.granted, nil
}

func (m *fakeMicrophone) Start(context.Context) (AudioSession, error) {
	s := &fakeAudioSession{audio: Audio{MimeType: "audio/webm", Data: []byte("voice")}}
	m.sessions = append(m.sessions, s)
	return s, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
	got   struct {
		uri      string
		duration int
		userID   string
	}
}

func (f *fakeTranscriber) TranscribeAudio(_ context.Context, uri string, duration int, userID string) (string, error) {
	f.calls++
	f.got.uri, f.got.duration, f.got.userID = uri, duration, userID
	return f.text, f.err
}

type fakeTitles struct {
	title string
	err   error
}

func (f *fakeTitles) GenerateTitle(context.Context, string) (string, error) {
	return f.title, f.err
}

type fakeStore struct {
	saved map[string][]models.AudioRecording
	err   error
}

func (s *fakeStore) Save(_ context.Context, userID string, rec models.AudioRecording) error {
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[string][]models.AudioRecording)
	}
	s.saved[userID] = append(s.saved[userID], rec)
	return nil
}

type fakeSync struct {
	synced []string
	err    error
}

func (s *fakeSync) SyncRecording(_ context.Context, rec models.AudioRecording) (string, error) {
	s.synced = append(s.synced, rec.ID)
	return "job-1", s.err
}

type fixture struct {
	mic         *fakeMicrophone
	clock       *fakeClock
	transcriber *fakeTranscriber
	titles      *fakeTitles
	store       *fakeStore
	sync        *fakeSync
	profiles    *sessiontest.Profiles
	machine     *session.Machine
	controller  *Controller
}

func newFixture(t *testing.T, profile models.UserProfile) *fixture {
	t.Helper()
	f := &fixture{
		mic:         &fakeMicrophone{granted: true},
		clock:       newFakeClock(),
		transcriber: &fakeTranscriber{text: "buy milk and eggs"},
		titles:      &fakeTitles{title: "Shopping list"},
		store:       &fakeStore{},
		sync:        &fakeSync{},
		profiles:    sessiontest.NewProfiles(),
	}
	f.profiles.Put(profile)
	f.machine = session.New(sessiontest.NewAuth(&testUser), f.profiles, session.NewRouteTracker("/record"))
	require.NoError(t, f.machine.Start(context.Background()))

	f.controller = NewController(f.mic, f.transcriber, f.titles, f.store, f.machine,
		WithClock(f.clock), WithCloudSync(f.sync))
	return f
}

func freeProfile(credits int) models.UserProfile {
	p := models.NewProfile(testUser.ID, testUser.Email, credits)
	p.PlanSelected = true
	return p
}

func proProfile(credits int) models.UserProfile {
	p := freeProfile(credits)
	p.CurrentPlan = models.PlanFullAppPurchase
	p.HasPurchasedApp = true
	return p
}

// record runs a full start/stop cycle of the given length
func (f *fixture) record(t *testing.T, seconds int) *Draft {
	t.Helper()
	require.NoError(t, f.controller.Start(context.Background()))
	f.clock.advance(seconds)
	draft, err := f.controller.Stop(context.Background())
	require.NoError(t, err)
	return draft
}

func TestCost(t *testing.T) {
	tests := []struct {
		seconds int
		want    int
	}{
		{0, 2}, {1, 2}, {59, 2}, {60, 2}, {61, 3}, {90, 3}, {120, 3}, {121, 4}, {600, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Cost(tt.seconds), "duration %d", tt.seconds)
	}
}

func TestRecordAndStop(t *testing.T) {
	f := newFixture(t, freeProfile(10))

	var ticks []int
	f.controller.onTick = func(e int) { ticks = append(ticks, e) }

	require.NoError(t, f.controller.Start(context.Background()))
	assert.Equal(t, StateRecording, f.controller.State())

	f.clock.advance(3)
	draft, err := f.controller.Stop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateReview, f.controller.State())
	assert.Equal(t, 3, draft.Duration)
	assert.Equal(t, f.clock.now, draft.Date)
	assert.Equal(t, []byte("voice"), draft.Audio.Data)
	assert.Equal(t, []int{1, 2, 3}, ticks)
	assert.True(t, f.clock.ticker.stopped)
	assert.True(t, f.mic.sessions[0].finished)
}

func TestPermissionDenied(t *testing.T) {
	f := newFixture(t, freeProfile(10))
	f.mic.granted = false

	err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StatePermissionDenied, f.controller.State())

	err = f.controller.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 1, f.mic.checks, "permission is not re-requested automatically")

	f.mic.granted = true
	require.NoError(t, f.controller.CheckPermission(context.Background()))
	assert.Equal(t, StateIdle, f.controller.State())
	require.NoError(t, f.controller.Start(context.Background()))
}

func TestTranscribeDebitsCredits(t *testing.T) {
	f := newFixture(t, freeProfile(10))
	f.record(t, 90)

	draft, err := f.controller.Transcribe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "buy milk and eggs", *draft.Transcription)
	assert.Equal(t, "Shopping list", *draft.Title)
	assert.Equal(t, StateReview, f.controller.State())

	assert.Equal(t, 90, f.transcriber.got.duration)
	assert.Equal(t, testUser.ID, f.transcriber.got.userID)
	assert.True(t, strings.HasPrefix(f.transcriber.got.uri, "data:audio/webm;base64,"))

	stored, _ := f.profiles.Stored(testUser.ID)
	assert.Equal(t, 7, stored.Credits)
	assert.Equal(t, 7, f.machine.Snapshot().Profile.Credits)

	calls := f.profiles.Calls()
	last := calls[len(calls)-1]
	require.NotNil(t, last.Overrides.Credits)
	assert.Equal(t, 7, *last.Overrides.Credits)
}

func TestInsufficientCreditsBlocksWithoutMutation(t *testing.T) {
	f := newFixture(t, freeProfile(1))
	f.record(t, 90)
	callsBefore := len(f.profiles.Calls())

	_, err := f.controller.Transcribe(context.Background())

	require.Error(t, err)
	assert.True(t, IsInsufficientCredits(err))
	assert.True(t, apperrors.IsKind(err, apperrors.KindResource))
	assert.Equal(t, 0, f.transcriber.calls)
	assert.Equal(t, StateReview, f.controller.State())
	assert.Nil(t, f.controller.Draft().Transcription)
	assert.Equal(t, 1, f.machine.Snapshot().Profile.Credits)
	assert.Len(t, f.profiles.Calls(), callsBefore)
}

func TestProUsersAreNotCharged(t *testing.T) {
	f := newFixture(t, proProfile(0))
	f.record(t, 300)

	draft, err := f.controller.Transcribe(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, draft.Transcription)

	stored, _ := f.profiles.Stored(testUser.ID)
	assert.Equal(t, 0, stored.Credits)
}

func TestRevokedEntitlementIsChargedAgain(t *testing.T) {
	f := newFixture(t, proProfile(1))
	f.record(t, 30)

	// purchase refunded server-side after the session loaded
	f.profiles.Put(freeProfile(1))

	_, err := f.controller.Transcribe(context.Background())
	assert.True(t, IsInsufficientCredits(err))
	assert.Equal(t, 0, f.transcriber.calls)
}

func TestTranscriptionFailureLeavesDraftInReview(t *testing.T) {
	f := newFixture(t, freeProfile(10))
	f.record(t, 10)
	f.transcriber.err = apperrors.Transient(errors.New("502"), "AI request failed")

	_, err := f.controller.Transcribe(context.Background())

	assert.True(t, apperrors.IsKind(err, apperrors.KindTransient))
	assert.Equal(t, StateReview, f.controller.State())
	draft := f.controller.Draft()
	assert.Nil(t, draft.Transcription)
	assert.Nil(t, draft.Title)
	stored, _ := f.profiles.Stored(testUser.ID)
	assert.Equal(t, 10, stored.Credits)
}

func TestEmptyTranscriptionIsFailure(t *testing.T) {
	f := newFixture(t, freeProfile(10))
	f.record(t, 10)
	f.transcriber.text = "  "

	_, err := f.controller.Transcribe(context.Background())

	assert.ErrorIs(t, err, ai.ErrEmptyTranscription)
	stored, _ := f.profiles.Stored(testUser.ID)
	assert.Equal(t, 10, stored.Credits)
}

func TestTitleFailureFallsBack(t *testing.T) {
	f := newFixture(t, freeProfile(10))
	f.record(t, 10)
	f.titles.err = errors.New("quota exceeded")

	draft, err := f.controller.Transcribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Untitled Note", *draft.Title)
	assert.Equal(t, "buy milk and eggs", *draft.Transcription)
}

func TestSave(t *testing.T) {
	f := newFixture(t, freeProfile(10))
	f.record(t, 10)
	_, err := f.controller.Transcribe(context.Background())
	require.NoError(t, err)

	rec, err := f.controller.Save(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Shopping list", rec.Name)
	assert.Equal(t, 10, rec.Duration)
	assert.Equal(t, models.PriorityMedium, rec.Priority)
	assert.False(t, rec.IsArchived)
	assert.Equal(t, StateIdle, f.controller.State())
	assert.Nil(t, f.controller.Draft())
	require.Len(t, f.store.saved[testUser.ID], 1)
	assert.Equal(t, *rec, f.store.saved[testUser.ID][0])
	assert.Empty(t, f.sync.synced, "free users are not synced")
}

func TestSaveWithoutTranscription(t *testing.T) {
	f := newFixture(t, freeProfile(10))
	f.record(t, 5)

	rec, err := f.controller.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Recording Mar 9, 2024 14:30", rec.Name)
	assert.Nil(t, rec.Transcription)
}

func TestSaveFailureKeepsDraft(t *testing.T) {
	f := newFixture(t, freeProfile(10))
	f.record(t, 5)
	f.store.err = apperrors.DataCorruption(errors.New("bad json"), "Saved recordings are corrupted")

	_, err := f.controller.Save(context.Background())

	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
	assert.Equal(t, StateReview, f.controller.State())
	assert.NotNil(t, f.controller.Draft())
}

func TestAutoCloudSync(t *testing.T) {
	profile := proProfile(0)
	profile.CloudSyncEnabled = true
	profile.AutoCloudSync = true
	f := newFixture(t, profile)
	f.sync.err = errors.New("queue down")
	f.record(t, 5)

	rec, err := f.controller.Save(context.Background())
	require.NoError(t, err, "sync failure does not fail save")
	assert.Equal(t, []string{rec.ID}, f.sync.synced)
}

func TestDiscard(t *testing.T) {
	f := newFixture(t, freeProfile(10))

	require.NoError(t, f.controller.Start(context.Background()))
	f.clock.advance(2)
	require.NoError(t, f.controller.Discard())

	assert.Equal(t, StateIdle, f.controller.State())
	assert.True(t, f.mic.sessions[0].discarded)
	assert.Nil(t, f.controller.Draft())
	assert.Empty(t, f.store.saved)

	f.record(t, 1)
	require.NoError(t, f.controller.Discard())
	assert.Equal(t, StateIdle, f.controller.State())
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t, freeProfile(10))

	_, err := f.controller.Stop(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.controller.Transcribe(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.controller.Save(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, f.controller.Discard(), ErrInvalidState)

	require.NoError(t, f.controller.Start(context.Background()))
	assert.ErrorIs(t, f.controller.Start(context.Background()), ErrInvalidState)
	require.NoError(t, f.controller.Discard())
}

func TestDataURI(t *testing.T) {
	assert.Equal(t, "data:audio/ogg;base64,aGk=", Audio{MimeType: "audio/ogg", Data: []byte("hi")}.DataURI())
	assert.Equal(t, "data:application/octet-stream;base64,", Audio{}.DataURI())
}
