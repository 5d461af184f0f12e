package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// TokenSource supplies the bearer token for authenticated calls
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client calls the Idea Saver API
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient creates an API client. tokens may be nil for anonymous calls.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// SetTokenSource sets where bearer tokens come from
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// Do sends in as JSON and decodes a 2xx reply into out. Error replies are
// decoded into *apperrors.Error.
func (c *Client) Do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return apperrors.Transient(err, "Could not reach the server. Please try again.")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Transient(err, "Could not reach the server. Please try again.")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "bad_response", "Unexpected response from server")
	}
	return nil
}

func kindForStatus(status int) apperrors.Kind {
	switch {
	case status == http.StatusBadRequest:
		return apperrors.KindValidation
	case status == http.StatusUnauthorized:
		return apperrors.KindAuthentication
	case status == http.StatusForbidden:
		return apperrors.KindForbidden
	case status == http.StatusNotFound:
		return apperrors.KindNotFound
	case status == http.StatusTooManyRequests:
		return apperrors.KindResource
	case status >= 500:
		return apperrors.KindTransient
	default:
		return apperrors.KindInternal
	}
}

func decodeError(status int, raw []byte) error {
	var body models.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return apperrors.New(kindForStatus(status), "http_error", http.StatusText(status))
	}

	kind := apperrors.Kind(body.Kind)
	if kind == "" {
		kind = kindForStatus(status)
	}
	code := body.Code
	if code == "" {
		code = "http_error"
	}
	return apperrors.New(kind, code, body.Error).WithDetails(body.Details)
}

// TranscribeAudio sends a recording for transcription
func (c *Client) TranscribeAudio(ctx context.Context, audioDataURI string, durationSeconds int, userID string) (string, error) {
	var out models.TranscribeResponse
	err := c.Do(ctx, http.MethodPost, "/api/v1/functions/transcribe-audio", models.TranscribeRequest{
		AudioDataURI:    audioDataURI,
		DurationSeconds: &durationSeconds,
		UserID:          userID,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Transcription, nil
}

// GenerateTitle asks for a short title for a transcription
func (c *Client) GenerateTitle(ctx context.Context, transcription string) (string, error) {
	var out models.TitleResponse
	if err := c.Do(ctx, http.MethodPost, "/api/v1/functions/generate-title", models.TitleRequest{
		TranscriptionText: transcription,
	}, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

// RedeemGiftCode redeems a gift code and returns the new credit balance
func (c *Client) RedeemGiftCode(ctx context.Context, code, userID string) (int, error) {
	var out models.RedeemResponse
	if err := c.Do(ctx, http.MethodPost, "/api/v1/functions/redeem-gift-code", models.RedeemRequest{
		Code:   code,
		UserID: userID,
	}, &out); err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, apperrors.New(apperrors.KindInternal, "redeem_failed", "Redemption was not confirmed by the server")
	}
	return out.NewCredits, nil
}

// UpsertProfile fetches or creates the caller's profile, merging overrides
func (c *Client) UpsertProfile(ctx context.Context, userID, email string, overrides models.ProfileOverrides) (*models.UserProfile, error) {
	var out models.ProfileResponse
	if err := c.Do(ctx, http.MethodPost, "/api/v1/profile", models.ProfileRequest{
		UserID:           userID,
		UserEmail:        email,
		ProfileOverrides: overrides,
	}, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Profile == nil {
		return nil, apperrors.New(apperrors.KindInternal, "profile_missing", "Server did not return a profile")
	}
	return out.Profile, nil
}

// SyncRecording uploads a recording to cloud backup
func (c *Client) SyncRecording(ctx context.Context, recording models.AudioRecording) (string, error) {
	var out models.SyncResponse
	if err := c.Do(ctx, http.MethodPost, "/api/v1/sync/recordings", recording, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}
