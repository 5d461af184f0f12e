package capture

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// Audio is a finalized recording payload
type Audio struct {
	MimeType string
	Data     []byte
}

// DataURI encodes the audio as a self-contained data URI
func (a Audio) DataURI() string {
	mime := a.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Microphone grants access to and records from an input device
type Microphone interface {
	Permission(ctx context.Context) (bool, error)
	Start(ctx context.Context) (AudioSession, error)
}

// AudioSession is one live capture
type AudioSession interface {
	// Finish stops capturing and returns everything recorded
	Finish() (Audio, error)
	// Discard stops capturing and drops the audio
	Discard() error
}

// Transcriber turns audio into text
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audioDataURI string, durationSeconds int, userID string) (string, error)
}

// TitleGenerator names a transcription
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, transcription string) (string, error)
}

// RecordingStore persists finished recordings
type RecordingStore interface {
	Save(ctx context.Context, userID string, rec models.AudioRecording) error
}

// CloudSync uploads a saved recording
type CloudSync interface {
	SyncRecording(ctx context.Context, rec models.AudioRecording) (string, error)
}

// Session is the part of the session machine the controller drives
type Session interface {
	Snapshot() session.Snapshot
	UpdateCredits(credits int)
	RefetchProfile(ctx context.Context, overrides models.ProfileOverrides) (*models.UserProfile, error)
}

// Clock supplies time and tickers
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks until stopped
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
