package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// AuthService registers and signs in accounts
type AuthService interface {
	SignUp(ctx context.Context, creds models.Credentials) (*models.Session, error)
	SignIn(ctx context.Context, creds models.Credentials) (*models.Session, error)
	Refresh(userID, email string) (*models.Session, error)
}

// ProfileService is the profile store adapter
type ProfileService interface {
	Upsert(ctx context.Context, userID, email string, overrides models.ProfileOverrides) (*models.UserProfile, error)
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	RedeemGiftCode(ctx context.Context, code, userID string) (int, error)
}

// AIService transcribes audio and titles notes
type AIService interface {
	Transcribe(ctx context.Context, mimeType, base64Audio string) (string, error)
	GenerateTitle(ctx context.Context, transcription string) (string, error)
}

// SyncService queues recordings for cloud backup
type SyncService interface {
	Submit(ctx context.Context, profile *models.UserProfile, rec models.AudioRecording) (string, error)
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// API holds the handler dependencies
type API struct {
	auth     AuthService
	profiles ProfileService
	ai       AIService
	sync     SyncService
	tokens   *middleware.TokenManager
	logger   *logging.Logger
	checks   map[string]HealthCheck
}

var (
	errUserMismatch    = apperrors.Forbidden("user_mismatch", "You can only act on your own account")
	errEmailMismatch   = apperrors.Forbidden("email_mismatch", "userEmail does not match the signed-in account")
	errSyncUnavailable = apperrors.New(apperrors.KindConfiguration, "sync_unavailable", "Cloud sync is not enabled on this server")
)

func setupRouter(api *API, rateLimiter *middleware.RateLimiter, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(api.logger))
	router.Use(corsMiddleware(allowedOrigins))

	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")

	// Public routes
	authGroup := v1.Group("/auth")
	authGroup.Use(middleware.RateLimit(rateLimiter))
	{
		authGroup.POST("/signup", api.signUp)
		authGroup.POST("/login", api.login)
	}

	// Protected routes
	protected := v1.Group("")
	protected.Use(api.tokens.JWTAuth())
	{
		protected.POST("/auth/refresh", api.refresh)

		protected.POST("/profile", api.upsertProfile)
		protected.GET("/profile", api.getProfile)

		protected.POST("/functions/transcribe-audio", api.transcribeAudio)
		protected.POST("/functions/generate-title", api.generateTitle)
		protected.POST("/functions/redeem-gift-code", api.redeemGiftCode)

		protected.POST("/sync/recordings", api.syncRecording)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

// respondError writes err in the {error, details} boundary shape
func (api *API) respondError(c *gin.Context, err error) {
	public := apperrors.PublicOf(err)
	status := apperrors.HTTPStatus(err)

	resp := models.ErrorResponse{Error: public.Message, Details: public.Details}
	if e, ok := apperrors.As(err); ok {
		resp.Kind = string(e.Kind)
		resp.Code = e.Code
	}

	if status >= http.StatusInternalServerError {
		api.logger.WithRequestID(c.GetString("request_id")).WithError(err).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}

// requireSelf rejects requests acting on another user's id
func requireSelf(c *gin.Context, userID string) error {
	subject, ok := middleware.GetUserID(c)
	if !ok || subject != userID {
		return errUserMismatch
	}
	return nil
}

// selfEmail returns the signed-in account's email, rejecting a body email
// that names a different address
func selfEmail(c *gin.Context, bodyEmail string) (string, error) {
	email := middleware.GetUserEmail(c)
	if email == "" {
		return "", errEmailMismatch
	}
	if !strings.EqualFold(strings.TrimSpace(bodyEmail), email) {
		return "", errEmailMismatch
	}
	return email, nil
}

func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	for name, check := range api.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": status})
}
