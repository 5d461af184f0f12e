package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/ai"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/auth"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/cloudsync"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/profile"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SignUp(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockAuthService) SignIn(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockAuthService) Refresh(userID, email string) (*models.Session, error) {
	args := m.Called(userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Upsert(ctx context.Context, userID, email string, overrides models.ProfileOverrides) (*models.UserProfile, error) {
	args := m.Called(ctx, userID, email, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *MockProfileService) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *MockProfileService) RedeemGiftCode(ctx context.Context, code, userID string) (int, error) {
	args := m.Called(ctx, code, userID)
	return args.Int(0), args.Error(1)
}

type MockAIService struct {
	mock.Mock
}

func (m *MockAIService) Transcribe(ctx context.Context, mimeType, base64Audio string) (string, error) {
	args := m.Called(ctx, mimeType, base64Audio)
	return args.String(0), args.Error(1)
}

func (m *MockAIService) GenerateTitle(ctx context.Context, transcription string) (string, error) {
	args := m.Called(ctx, transcription)
	return args.String(0), args.Error(1)
}

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) Submit(ctx context.Context, p *models.UserProfile, rec models.AudioRecording) (string, error) {
	args := m.Called(ctx, p, rec)
	return args.String(0), args.Error(1)
}

type testAPI struct {
	api      *API
	router   *gin.Engine
	auth     *MockAuthService
	profiles *MockProfileService
	ai       *MockAIService
	sync     *MockSyncService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ta := &testAPI{
		auth:     new(MockAuthService),
		profiles: new(MockProfileService),
		ai:       new(MockAIService),
		sync:     new(MockSyncService),
	}
	ta.api = &API{
		auth:     ta.auth,
		profiles: ta.profiles,
		ai:       ta.ai,
		sync:     ta.sync,
		tokens:   middleware.NewTokenManager("test-secret", time.Hour),
		logger:   logging.NewNop(),
		checks:   map[string]HealthCheck{},
	}
	ta.router = setupRouter(ta.api, middleware.NewRateLimiter(1000, 1000), []string{"*"})
	return ta
}

func (ta *testAPI) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := ta.api.tokens.GenerateToken(userID, userID+"@example.com")
	require.NoError(t, err)
	return token
}

func (ta *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestUpsertProfile(t *testing.T) {
	ta := newTestAPI(t)
	stored := models.NewProfile("user-1", "user-1@example.com", models.DefaultCredits)
	stored.Credits = 7
	overrides := models.ProfileOverrides{Credits: models.Int(7)}
	ta.profiles.On("Upsert", mock.Anything, "user-1", "user-1@example.com", overrides).Return(&stored, nil)

	w := ta.do(t, http.MethodPost, "/api/v1/profile", ta.token(t, "user-1"), models.ProfileRequest{
		UserID:           "user-1",
		UserEmail:        "user-1@example.com",
		ProfileOverrides: overrides,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, 7, resp.Profile.Credits)
	ta.profiles.AssertExpectations(t)
}

func TestUpsertProfile_MissingIdentity(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodPost, "/api/v1/profile", ta.token(t, "user-1"), map[string]string{"userId": "user-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing userId or userEmail", decodeError(t, w).Error)
	ta.profiles.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertProfile_OtherUser(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodPost, "/api/v1/profile", ta.token(t, "user-1"), models.ProfileRequest{
		UserID:    "user-2",
		UserEmail: "user-2@example.com",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	ta.profiles.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertProfile_OtherEmail(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodPost, "/api/v1/profile", ta.token(t, "user-1"), models.ProfileRequest{
		UserID:    "user-1",
		UserEmail: "someone-else@example.com",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "email_mismatch", decodeError(t, w).Code)
	ta.profiles.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertProfile_EmailFromToken(t *testing.T) {
	ta := newTestAPI(t)
	stored := models.NewProfile("user-1", "user-1@example.com", models.DefaultCredits)
	ta.profiles.On("Upsert", mock.Anything, "user-1", "user-1@example.com", models.ProfileOverrides{}).Return(&stored, nil)

	// differing case still names the same account; the token's spelling is stored
	w := ta.do(t, http.MethodPost, "/api/v1/profile", ta.token(t, "user-1"), models.ProfileRequest{
		UserID:    "user-1",
		UserEmail: "User-1@Example.com",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	ta.profiles.AssertExpectations(t)
}

func TestUpsertProfile_RequiresToken(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodPost, "/api/v1/profile", "", models.ProfileRequest{UserID: "user-1", UserEmail: "a@b.co"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpsertProfile_RejectedOverrides(t *testing.T) {
	ta := newTestAPI(t)
	overrides := models.ProfileOverrides{Credits: models.Int(-1)}
	ta.profiles.On("Upsert", mock.Anything, "user-1", "user-1@example.com", overrides).
		Return(nil, profile.ValidateOverrides(overrides))

	w := ta.do(t, http.MethodPost, "/api/v1/profile", ta.token(t, "user-1"), models.ProfileRequest{
		UserID:           "user-1",
		UserEmail:        "user-1@example.com",
		ProfileOverrides: overrides,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Invalid profile fields", resp.Error)
	assert.Equal(t, "credits must not be negative", resp.Details)
}

func TestUpsertProfile_DatabaseDown(t *testing.T) {
	ta := newTestAPI(t)
	ta.profiles.On("Upsert", mock.Anything, "user-1", "user-1@example.com", models.ProfileOverrides{}).
		Return(nil, apperrors.Transient(errors.New("connection refused"), "Failed to create or update profile"))

	w := ta.do(t, http.MethodPost, "/api/v1/profile", ta.token(t, "user-1"), models.ProfileRequest{
		UserID:    "user-1",
		UserEmail: "user-1@example.com",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Failed to create or update profile", resp.Error)
	assert.Equal(t, string(apperrors.KindTransient), resp.Kind)
}

func TestGetProfile(t *testing.T) {
	ta := newTestAPI(t)
	stored := models.NewProfile("user-1", "user-1@example.com", models.DefaultCredits)
	ta.profiles.On("Get", mock.Anything, "user-1").Return(&stored, nil)

	w := ta.do(t, http.MethodGet, "/api/v1/profile", ta.token(t, "user-1"), nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.Profile.ID)
}

func TestTranscribeAudio(t *testing.T) {
	ta := newTestAPI(t)
	ta.ai.On("Transcribe", mock.Anything, "audio/ogg", "T2dnUw==").Return("buy milk", nil)

	w := ta.do(t, http.MethodPost, "/api/v1/functions/transcribe-audio", ta.token(t, "user-1"), models.TranscribeRequest{
		AudioDataURI:    "data:audio/ogg;base64,T2dnUw==",
		DurationSeconds: models.Int(42),
		UserID:          "user-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.TranscribeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "buy milk", resp.Transcription)
}

func TestTranscribeAudio_Errors(t *testing.T) {
	tests := []struct {
		name       string
		req        models.TranscribeRequest
		aiErr      error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing duration",
			req:        models.TranscribeRequest{AudioDataURI: "data:audio/ogg;base64,AA==", UserID: "user-1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required fields: audioDataUri, durationSeconds, or userId",
		},
		{
			name:       "no payload",
			req:        models.TranscribeRequest{AudioDataURI: "data:audio/ogg;base64,", DurationSeconds: models.Int(3), UserID: "user-1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid audio data format",
		},
		{
			name:       "empty transcription",
			req:        models.TranscribeRequest{AudioDataURI: "data:audio/ogg;base64,AA==", DurationSeconds: models.Int(3), UserID: "user-1"},
			aiErr:      ai.ErrEmptyTranscription,
			wantStatus: http.StatusInternalServerError,
			wantError:  "No transcription received from AI",
		},
		{
			name:       "other user",
			req:        models.TranscribeRequest{AudioDataURI: "data:audio/ogg;base64,AA==", DurationSeconds: models.Int(3), UserID: "user-2"},
			wantStatus: http.StatusForbidden,
			wantError:  "You can only act on your own account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestAPI(t)
			if tt.aiErr != nil {
				ta.ai.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("", tt.aiErr)
			}

			w := ta.do(t, http.MethodPost, "/api/v1/functions/transcribe-audio", ta.token(t, "user-1"), tt.req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w).Error)
		})
	}
}

func TestGenerateTitle(t *testing.T) {
	ta := newTestAPI(t)
	ta.ai.On("GenerateTitle", mock.Anything, "remember to call mom").Return("Call Mom", nil)

	w := ta.do(t, http.MethodPost, "/api/v1/functions/generate-title", ta.token(t, "user-1"),
		models.TitleRequest{TranscriptionText: "remember to call mom"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.TitleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Call Mom", resp.Title)

	w = ta.do(t, http.MethodPost, "/api/v1/functions/generate-title", ta.token(t, "user-1"), models.TitleRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedeemGiftCode(t *testing.T) {
	ta := newTestAPI(t)
	ta.profiles.On("RedeemGiftCode", mock.Anything, "GIFT50", "user-1").Return(60, nil)
	ta.profiles.On("RedeemGiftCode", mock.Anything, "USED", "user-1").Return(0, profile.ErrInvalidGiftCode)

	w := ta.do(t, http.MethodPost, "/api/v1/functions/redeem-gift-code", ta.token(t, "user-1"),
		models.RedeemRequest{Code: "GIFT50", UserID: "user-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.RedeemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 60, resp.NewCredits)

	w = ta.do(t, http.MethodPost, "/api/v1/functions/redeem-gift-code", ta.token(t, "user-1"),
		models.RedeemRequest{Code: "USED", UserID: "user-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or already used gift code.", decodeError(t, w).Error)

	w = ta.do(t, http.MethodPost, "/api/v1/functions/redeem-gift-code", ta.token(t, "user-1"),
		models.RedeemRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing code or userId", decodeError(t, w).Error)
}

func TestSyncRecording(t *testing.T) {
	ta := newTestAPI(t)
	pro := models.NewProfile("user-1", "user-1@example.com", 0)
	pro.HasPurchasedApp = true
	pro.CloudSyncEnabled = true
	rec := models.AudioRecording{ID: "rec-1", Name: "Idea", Date: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Priority: models.PriorityMedium}

	ta.profiles.On("Get", mock.Anything, "user-1").Return(&pro, nil)
	ta.sync.On("Submit", mock.Anything, &pro, mock.MatchedBy(func(r models.AudioRecording) bool {
		return r.ID == rec.ID && r.Date.Equal(rec.Date)
	})).Return("job-1", nil)

	w := ta.do(t, http.MethodPost, "/api/v1/sync/recordings", ta.token(t, "user-1"), rec)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp models.SyncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
}

func TestSyncRecording_NotAllowed(t *testing.T) {
	ta := newTestAPI(t)
	free := models.NewProfile("user-1", "user-1@example.com", 10)
	ta.profiles.On("Get", mock.Anything, "user-1").Return(&free, nil)
	ta.sync.On("Submit", mock.Anything, &free, mock.Anything).Return("", cloudsync.ErrSyncNotAllowed)

	w := ta.do(t, http.MethodPost, "/api/v1/sync/recordings", ta.token(t, "user-1"), models.AudioRecording{ID: "rec-1"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSyncRecording_Disabled(t *testing.T) {
	ta := newTestAPI(t)
	ta.api.sync = nil

	w := ta.do(t, http.MethodPost, "/api/v1/sync/recordings", ta.token(t, "user-1"), models.AudioRecording{ID: "rec-1"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "sync_unavailable", decodeError(t, w).Code)
}

func TestLogin(t *testing.T) {
	ta := newTestAPI(t)
	good := models.Credentials{Email: "a@example.com", Password: "secret1"}
	bad := models.Credentials{Email: "a@example.com", Password: "wrong12"}
	session := &models.Session{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour), User: models.User{ID: "user-1", Email: "a@example.com"}}

	ta.auth.On("SignIn", mock.Anything, good).Return(session, nil)
	ta.auth.On("SignIn", mock.Anything, bad).Return(nil, auth.ErrInvalidCredentials)

	w := ta.do(t, http.MethodPost, "/api/v1/auth/login", "", good)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "tok", got.AccessToken)

	w = ta.do(t, http.MethodPost, "/api/v1/auth/login", "", bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decodeError(t, w).Error)
}

func TestSignUp(t *testing.T) {
	ta := newTestAPI(t)
	creds := models.Credentials{Email: "new@example.com", Password: "secret1"}
	ta.auth.On("SignUp", mock.Anything, creds).Return(&models.Session{AccessToken: "tok"}, nil)

	w := ta.do(t, http.MethodPost, "/api/v1/auth/signup", "", creds)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRefresh(t *testing.T) {
	ta := newTestAPI(t)
	ta.auth.On("Refresh", "user-1", "user-1@example.com").Return(&models.Session{AccessToken: "fresh"}, nil)

	w := ta.do(t, http.MethodPost, "/api/v1/auth/refresh", ta.token(t, "user-1"), nil)

	require.Equal(t, http.StatusOK, w.Code)
	ta.auth.AssertExpectations(t)
}

func TestAuthRateLimit(t *testing.T) {
	ta := newTestAPI(t)
	ta.router = setupRouter(ta.api, middleware.NewRateLimiter(0.001, 1), []string{"*"})
	creds := models.Credentials{Email: "a@example.com", Password: "secret1"}
	ta.auth.On("SignIn", mock.Anything, creds).Return(&models.Session{AccessToken: "tok"}, nil)

	first := ta.do(t, http.MethodPost, "/api/v1/auth/login", "", creds)
	second := ta.do(t, http.MethodPost, "/api/v1/auth/login", "", creds)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHealthCheck(t *testing.T) {
	ta := newTestAPI(t)
	ta.api.checks["database"] = func(context.Context) error { return nil }

	w := ta.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ta.api.checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	w = ta.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestCORSPreflight(t *testing.T) {
	ta := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/profile", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
