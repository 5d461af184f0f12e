// Package capture orchestrates a voice note from microphone to saved
// recording.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/ai"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// State of the controller
type State string

const (
	StateIdle             State = "idle"
	StateRecording        State = "recording"
	StateReview           State = "review"
	StateTranscribing     State = "transcribing"
	StatePermissionDenied State = "permission_denied"
)

var (
	ErrPermissionDenied    = apperrors.New(apperrors.KindForbidden, "microphone_denied", "Microphone access was denied. Allow access and try again.")
	ErrInsufficientCredits = apperrors.Resource("insufficient_credits", "Not enough credits to transcribe this recording.")
	ErrInvalidState        = apperrors.Validation("invalid_state", "That action is not available right now.")
	ErrNothingToTranscribe = apperrors.Validation("empty_recording", "There is no audio to transcribe.")
)

// Draft is the recording under review
type Draft struct {
	Audio         Audio
	Duration      int
	Date          time.Time
	Transcription *string
	Title         *string
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the system clock
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithCloudSync enables best-effort upload after Save
func WithCloudSync(sync CloudSync) Option {
	return func(c *Controller) { c.sync = sync }
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithDefaultPriority sets the priority of new recordings
func WithDefaultPriority(p models.Priority) Option {
	return func(c *Controller) { c.priority = p }
}

// OnTick registers fn to receive the elapsed seconds while recording
func OnTick(fn func(elapsed int)) Option {
	return func(c *Controller) { c.onTick = fn }
}

// Controller is the Recording Capture Controller
type Controller struct {
	mic         Microphone
	transcriber Transcriber
	titles      TitleGenerator
	store       RecordingStore
	session     Session
	sync        CloudSync
	clock       Clock
	logger      *logging.Logger
	priority    models.Priority
	onTick      func(int)

	mu              sync.Mutex
	state           State
	permissionKnown bool
	permission      bool
	active          AudioSession
	startedAt       time.Time
	elapsed         int
	tickStop        chan struct{}
	tickDone        chan struct{}
	draft           *Draft
}

// NewController creates an idle controller
func NewController(mic Microphone, transcriber Transcriber, titles TitleGenerator, store RecordingStore, sess Session, opts ...Option) *Controller {
	c := &Controller{
		mic:         mic,
		transcriber: transcriber,
		titles:      titles,
		store:       store,
		session:     sess,
		clock:       systemClock{},
		logger:      logging.NewNop(),
		priority:    models.PriorityMedium,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns whole seconds recorded so far
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Draft returns a copy of the recording under review
func (c *Controller) Draft() *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return nil
	}
	d := *c.draft
	return &d
}

// CheckPermission asks for microphone access. A denial is remembered until
// the next call.
func (c *Controller) CheckPermission(ctx context.Context) error {
	granted, err := c.mic.Permission(ctx)
	if err != nil {
		granted = false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.permissionKnown = true
	c.permission = granted

	if !granted {
		if c.state == StateIdle || c.state == StatePermissionDenied {
			c.state = StatePermissionDenied
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.KindForbidden, ErrPermissionDenied.Code, ErrPermissionDenied.Message)
		}
		return ErrPermissionDenied
	}
	if c.state == StatePermissionDenied {
		c.state = StateIdle
	}
	return nil
}

// Start begins recording
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	known := c.permissionKnown
	c.mu.Unlock()
	if !known {
		if err := c.CheckPermission(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.state == StatePermissionDenied || !c.permission {
		c.mu.Unlock()
		return ErrPermissionDenied
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = StateRecording
	c.mu.Unlock()

	active, err := c.mic.Start(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return apperrors.Wrap(err, apperrors.KindInternal, "capture_failed", "Could not start recording.")
	}

	ticker := c.clock.NewTicker(time.Second)
	stop := make(chan struct{})
	done := make(chan struct{})

	c.mu.Lock()
	c.active = active
	c.startedAt = c.clock.Now()
	c.elapsed = 0
	c.draft = nil
	c.tickStop = stop
	c.tickDone = done
	c.mu.Unlock()

	go c.count(ticker, stop, done)
	c.logger.Debug("Recording started")
	return nil
}

func (c *Controller) count(ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			c.mu.Lock()
			c.elapsed++
			elapsed := c.elapsed
			fn := c.onTick
			c.mu.Unlock()
			if fn != nil {
				fn(elapsed)
			}
		case <-stop:
			return
		}
	}
}

// stopCounter halts the elapsed-time counter and waits for it to exit
func (c *Controller) stopCounter() {
	c.mu.Lock()
	stop, done := c.tickStop, c.tickDone
	c.tickStop, c.tickDone = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Stop finalizes the audio and moves to review
func (c *Controller) Stop(ctx context.Context) (*Draft, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	c.mu.Unlock()

	c.stopCounter()

	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()

	audio, err := active.Finish()
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "capture_failed", "Could not finish recording.")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = &Draft{Audio: audio, Duration: c.elapsed, Date: c.startedAt}
	c.state = StateReview
	d := *c.draft
	return &d, nil
}

// Transcribe sends the draft to the transcription service, debits credits
// on success and attaches a title. Any failure leaves the draft in review
// unchanged.
func (c *Controller) Transcribe(ctx context.Context) (*Draft, error) {
	c.mu.Lock()
	if c.state != StateReview || c.draft == nil {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	draft := *c.draft
	c.mu.Unlock()

	if len(draft.Audio.Data) == 0 {
		return nil, ErrNothingToTranscribe
	}

	snap := c.session.Snapshot()
	if snap.User == nil {
		return nil, session.ErrNotAuthenticated
	}
	if snap.Profile == nil {
		return nil, session.ErrProfileUnavailable
	}

	cost := Cost(draft.Duration)
	if !snap.Profile.IsPro() && snap.Profile.Credits < cost {
		return nil, insufficient(cost, snap.Profile.Credits)
	}

	c.setState(StateTranscribing)

	// entitlement may have changed server-side since the last fetch
	profile, err := c.session.RefetchProfile(ctx, models.ProfileOverrides{})
	if err != nil {
		c.backToReview()
		return nil, err
	}
	pro := profile.IsPro()
	if !pro && profile.Credits < cost {
		c.backToReview()
		return nil, insufficient(cost, profile.Credits)
	}

	text, err := c.transcriber.TranscribeAudio(ctx, draft.Audio.DataURI(), draft.Duration, snap.User.ID)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ai.ErrEmptyTranscription
	}
	if err != nil {
		c.backToReview()
		c.logger.WithUserID(snap.User.ID).WithError(err).Warn("Transcription failed")
		return nil, err
	}
	metrics.RecordAudioTranscribed(draft.Duration)

	if !pro {
		remaining := profile.Credits - cost
		c.session.UpdateCredits(remaining)
		if _, err := c.session.RefetchProfile(ctx, models.ProfileOverrides{Credits: models.Int(remaining)}); err != nil {
			c.logger.WithUserID(snap.User.ID).WithError(err).Error("Failed to commit credit debit")
		} else {
			metrics.RecordCreditsDebited(cost)
			c.logger.LogCreditChange(snap.User.ID, "transcription", profile.Credits, remaining)
		}
	}

	title := c.generateTitle(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		// discarded while transcribing
		return nil, ErrInvalidState
	}
	c.draft.Transcription = models.String(text)
	c.draft.Title = models.String(title)
	c.state = StateReview
	d := *c.draft
	return &d, nil
}

func (c *Controller) generateTitle(ctx context.Context, text string) string {
	title, err := c.titles.GenerateTitle(ctx, text)
	if err != nil {
		c.logger.WithError(err).Warn("Title generation failed")
		return ai.DefaultTitle
	}
	if title = strings.TrimSpace(title); title == "" {
		return ai.DefaultTitle
	}
	return title
}

// Save persists the draft and returns to idle
func (c *Controller) Save(ctx context.Context) (*models.AudioRecording, error) {
	c.mu.Lock()
	if c.state != StateReview || c.draft == nil {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	draft := *c.draft
	c.mu.Unlock()

	snap := c.session.Snapshot()
	if snap.User == nil {
		return nil, session.ErrNotAuthenticated
	}

	rec := models.AudioRecording{
		ID:            uuid.NewString(),
		Name:          recordingName(draft),
		Transcription: draft.Transcription,
		AudioDataURI:  draft.Audio.DataURI(),
		Duration:      draft.Duration,
		Date:          draft.Date,
		Priority:      c.priority,
	}

	if err := c.store.Save(ctx, snap.User.ID, rec); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.draft = nil
	c.state = StateIdle
	c.mu.Unlock()

	c.autoSync(ctx, snap.Profile, rec)
	return &rec, nil
}

func (c *Controller) autoSync(ctx context.Context, profile *models.UserProfile, rec models.AudioRecording) {
	if c.sync == nil || !profile.IsPro() || !profile.CloudSyncEnabled || !profile.AutoCloudSync {
		return
	}
	if _, err := c.sync.SyncRecording(ctx, rec); err != nil {
		c.logger.WithError(err).WithField("recording_id", rec.ID).Warn("Cloud sync failed")
	}
}

// Discard drops the current recording without saving
func (c *Controller) Discard() error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state != StateRecording && state != StateReview && state != StateTranscribing {
		return ErrInvalidState
	}

	c.stopCounter()

	c.mu.Lock()
	active := c.active
	c.active = nil
	c.draft = nil
	c.state = StateIdle
	c.mu.Unlock()

	if active != nil {
		if err := active.Discard(); err != nil {
			return fmt.Errorf("discard audio: %w", err)
		}
	}
	return nil
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// backToReview ends a transcription attempt unless the draft was discarded
func (c *Controller) backToReview() {
	c.mu.Lock()
	if c.state == StateTranscribing {
		c.state = StateReview
	}
	c.mu.Unlock()
}

func insufficient(cost, credits int) error {
	return apperrors.Resource(ErrInsufficientCredits.Code, ErrInsufficientCredits.Message).
		WithDetails(fmt.Sprintf("needs %d credits, has %d", cost, credits))
}

func recordingName(d Draft) string {
	if d.Title != nil && strings.TrimSpace(*d.Title) != "" {
		return *d.Title
	}
	return "Recording " + d.Date.Format("Jan 2, 2006 15:04")
}

// IsInsufficientCredits reports whether err blocked a paid action for lack of
// credits
func IsInsufficientCredits(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}
