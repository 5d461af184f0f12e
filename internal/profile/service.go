package profile

import (
	"context"
	"errors"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/database"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var (
	ErrMissingIdentity = apperrors.Validation("missing_fields", "Missing userId or userEmail")
	ErrProfileNotFound = apperrors.NotFound("profile_not_found", "User profile not found. Please log in again.")
	ErrInvalidGiftCode = apperrors.Resource("invalid_gift_code", "Invalid or already used gift code.")
	ErrMissingGiftCode = apperrors.Validation("missing_fields", "Missing code or userId")
	ErrTooManyAttempts = apperrors.Resource("rate_limited", "Too many attempts. Please try again later.")
)

// Repository persists profiles
type Repository interface {
	UpsertProfile(ctx context.Context, id, email string, defaultCredits int, overrides models.ProfileOverrides) (profile, previous *models.UserProfile, err error)
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	RedeemGiftCode(ctx context.Context, code, userID string) (int, int, error)
}

// Cache holds recently read profiles and counts redemption attempts
type Cache interface {
	SetProfile(ctx context.Context, profile *models.UserProfile, ttl time.Duration) error
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	DeleteProfile(ctx context.Context, userID string) error
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// Notifier publishes account events
type Notifier interface {
	Notify(ctx context.Context, event string, data interface{}) error
}

// Options tune the service
type Options struct {
	DefaultCredits   int
	CacheTTL         time.Duration
	GiftCodeAttempts int
	GiftCodeWindow   time.Duration
}

// Service is the profile store adapter: fetch-or-create with field overrides
type Service struct {
	repo     Repository
	cache    Cache
	notifier Notifier
	opts     Options
	logger   *logging.Logger
}

// NewService creates a profile service. cache and notifier may be nil.
func NewService(repo Repository, cache Cache, notifier Notifier, opts Options, logger *logging.Logger) *Service {
	if opts.DefaultCredits == 0 {
		opts.DefaultCredits = models.DefaultCredits
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.GiftCodeAttempts == 0 {
		opts.GiftCodeAttempts = 5
	}
	if opts.GiftCodeWindow == 0 {
		opts.GiftCodeWindow = time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{repo: repo, cache: cache, notifier: notifier, opts: opts, logger: logger}
}

// ValidateOverrides rejects values a profile can never hold
func ValidateOverrides(o models.ProfileOverrides) error {
	if o.Credits != nil && *o.Credits < 0 {
		return apperrors.Validation("invalid_overrides", "Invalid profile fields").WithDetails("credits must not be negative")
	}
	if o.DeletionPolicyDays != nil && *o.DeletionPolicyDays < 0 {
		return apperrors.Validation("invalid_overrides", "Invalid profile fields").WithDetails("deletion_policy_days must not be negative")
	}
	if o.CurrentPlan != nil && !o.CurrentPlan.Valid() {
		return apperrors.Validation("invalid_overrides", "Invalid profile fields").WithDetails("current_plan must be free or full_app_purchase")
	}
	return nil
}

// Upsert returns the profile for userID, creating it with defaults on first
// contact, after merging overrides into it. Calling it with no overrides is
// an idempotent fetch-or-create.
func (s *Service) Upsert(ctx context.Context, userID, email string, overrides models.ProfileOverrides) (*models.UserProfile, error) {
	if userID == "" || email == "" {
		return nil, ErrMissingIdentity
	}
	if err := ValidateOverrides(overrides); err != nil {
		return nil, err
	}

	span, ctx := tracing.StartSpan(ctx, "profile.upsert")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "user_id", userID)

	start := time.Now()
	profile, previous, err := s.repo.UpsertProfile(ctx, userID, email, s.opts.DefaultCredits, overrides)
	duration := time.Since(start)
	metrics.RecordProfileOperation("upsert", duration.Seconds(), err)
	s.logger.LogProfileOperation("upsert", userID, duration, err)
	if err != nil {
		tracing.LogError(span, err)
		return nil, apperrors.Wrap(err, apperrors.KindTransient, "profile_upsert_failed", "Failed to create or update profile")
	}

	if previous == nil {
		metrics.RecordProfileCreated()
		s.notify(ctx, models.WebhookEventProfileCreated, profile)
	}
	if profile.PlanSelected && (previous == nil || !previous.PlanSelected) {
		s.notify(ctx, models.WebhookEventPlanSelected, profile)
	}

	s.cacheProfile(ctx, profile)
	return profile, nil
}

// Get returns the profile for userID, preferring the cache
func (s *Service) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, ErrMissingIdentity
	}

	if s.cache != nil {
		cached, err := s.cache.GetProfile(ctx, userID)
		if err != nil {
			s.logger.WithUserID(userID).WithError(err).Warn("Profile cache read failed")
		}
		if cached != nil {
			return cached, nil
		}
	}

	start := time.Now()
	profile, err := s.repo.GetProfile(ctx, userID)
	metrics.RecordProfileOperation("get", time.Since(start).Seconds(), err)
	if errors.Is(err, database.ErrProfileNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindTransient, "profile_read_failed", "Failed to load profile")
	}

	s.cacheProfile(ctx, profile)
	return profile, nil
}

// RedeemGiftCode grants the credits of an unused code to userID and returns
// the new balance. Failed attempts change nothing.
func (s *Service) RedeemGiftCode(ctx context.Context, code, userID string) (int, error) {
	if code == "" || userID == "" {
		return 0, ErrMissingGiftCode
	}

	span, ctx := tracing.StartSpan(ctx, "profile.redeem_gift_code")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "user_id", userID)

	if s.cache != nil {
		allowed, err := s.cache.CheckRateLimit(ctx, "gift:"+userID, int64(s.opts.GiftCodeAttempts), s.opts.GiftCodeWindow)
		if err != nil {
			s.logger.WithUserID(userID).WithError(err).Warn("Gift code rate limit check failed")
		} else if !allowed {
			metrics.RecordGiftRedemption(0, ErrTooManyAttempts)
			return 0, ErrTooManyAttempts
		}
	}

	newCredits, granted, err := s.repo.RedeemGiftCode(ctx, code, userID)
	switch {
	case errors.Is(err, database.ErrInvalidGiftCode):
		err = ErrInvalidGiftCode
	case errors.Is(err, database.ErrProfileNotFound):
		err = apperrors.Resource("profile_not_found", "User profile not found. Please log in again.")
	case err != nil:
		err = apperrors.Wrap(err, apperrors.KindTransient, "redeem_failed", "An unexpected error occurred during redemption.")
	}
	metrics.RecordGiftRedemption(granted, err)
	if err != nil {
		tracing.LogError(span, err)
		s.logger.LogProfileOperation("redeem_gift_code", userID, 0, err)
		return 0, err
	}

	s.logger.LogCreditChange(userID, "gift_code", newCredits-granted, newCredits)
	s.notify(ctx, models.WebhookEventCreditsRedeemed, map[string]interface{}{
		"user_id":     userID,
		"granted":     granted,
		"new_credits": newCredits,
	})

	if s.cache != nil {
		if err := s.cache.DeleteProfile(ctx, userID); err != nil {
			s.logger.WithUserID(userID).WithError(err).Warn("Profile cache invalidation failed")
		}
	}

	return newCredits, nil
}

func (s *Service) cacheProfile(ctx context.Context, profile *models.UserProfile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetProfile(ctx, profile, s.opts.CacheTTL); err != nil {
		s.logger.WithUserID(profile.ID).WithError(err).Warn("Profile cache write failed")
	}
}

func (s *Service) notify(ctx context.Context, event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, data); err != nil {
		s.logger.WithError(err).Warnf("Failed to notify %s", event)
	}
}
