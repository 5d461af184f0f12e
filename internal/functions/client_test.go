package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

type failingToken struct{ err error }

func (f failingToken) AccessToken(context.Context) (string, error) { return "", f.err }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, staticToken("tok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestTranscribeAudio(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/functions/transcribe-audio", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req models.TranscribeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.DurationSeconds)
		assert.Equal(t, 90, *req.DurationSeconds)
		assert.Equal(t, "user-1", req.UserID)

		writeJSON(w, http.StatusOK, models.TranscribeResponse{Transcription: "hello"})
	})

	text, err := c.TranscribeAudio(context.Background(), "data:audio/webm;base64,QUJD", 90, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestErrorBodyIsDecoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid or already used gift code.",
			Kind:  string(apperrors.KindResource),
			Code:  "invalid_gift_code",
		})
	})

	_, err := c.RedeemGiftCode(context.Background(), "BOGUS", "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.Resource("invalid_gift_code", ""))
	assert.Equal(t, "Invalid or already used gift code.", apperrors.PublicOf(err).Message)
}

func TestErrorStatusWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GenerateTitle(context.Background(), "text")
	assert.True(t, apperrors.IsKind(err, apperrors.KindTransient))
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, nil)
	_, err := c.GenerateTitle(context.Background(), "text")
	assert.True(t, apperrors.IsKind(err, apperrors.KindTransient))
}

func TestTokenSourceError(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	want := errors.New("no session")
	c.SetTokenSource(failingToken{err: want})

	_, err := c.GenerateTitle(context.Background(), "text")
	assert.ErrorIs(t, err, want)
	assert.False(t, called)
}

func TestUpsertProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/profile", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body["userId"])
		assert.Equal(t, "a@example.com", body["userEmail"])
		assert.EqualValues(t, 5, body["credits"])
		assert.NotContains(t, body, "plan_selected")

		p := models.NewProfile("user-1", "a@example.com", 5)
		writeJSON(w, http.StatusOK, models.ProfileResponse{Success: true, Profile: &p})
	})

	p, err := c.UpsertProfile(context.Background(), "user-1", "a@example.com", models.ProfileOverrides{Credits: models.Int(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, p.Credits)
}

func TestRedeemGiftCodeSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.RedeemResponse{Success: true, NewCredits: 60})
	})

	credits, err := c.RedeemGiftCode(context.Background(), "CODE", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 60, credits)
}

func TestSyncRecording(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync/recordings", r.URL.Path)
		writeJSON(w, http.StatusAccepted, models.SyncResponse{JobID: "job-1"})
	})

	id, err := c.SyncRecording(context.Background(), models.AudioRecording{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
}
