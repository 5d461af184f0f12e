// Package account holds the client workflows that change a user's plan,
// credits and sync settings. Every change is committed through the session
// machine's profile refetch.
package account

import (
	"context"
	"strings"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/session"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var (
	ErrPlanAlreadySelected = apperrors.Validation("plan_already_selected", "You have already selected a plan.")
	ErrMissingGiftCode     = apperrors.Validation("missing_gift_code", "Please enter a gift code.")
	ErrProRequired         = apperrors.Resource("pro_required", "Cloud sync is available with the full app purchase.")
	ErrInvalidDeletion     = apperrors.Validation("invalid_deletion_policy", "Deletion policy must be zero or more days.")
)

// GiftRedeemer grants the credits of a gift code
type GiftRedeemer interface {
	RedeemGiftCode(ctx context.Context, code, userID string) (int, error)
}

// Session is the part of the session machine the workflows drive
type Session interface {
	Snapshot() session.Snapshot
	UpdateCredits(credits int)
	RefetchProfile(ctx context.Context, overrides models.ProfileOverrides) (*models.UserProfile, error)
}

// SettingsUpdate changes sync preferences. Nil fields are kept.
type SettingsUpdate struct {
	CloudSyncEnabled   *bool
	AutoCloudSync      *bool
	DeletionPolicyDays *int
}

// Service runs account workflows for the signed-in user
type Service struct {
	session Session
	gifts   GiftRedeemer
	logger  *logging.Logger
}

// NewService creates the account workflows
func NewService(sess Session, gifts GiftRedeemer, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{session: sess, gifts: gifts, logger: logger}
}

func (s *Service) current() (*models.User, *models.UserProfile, error) {
	snap := s.session.Snapshot()
	if snap.User == nil {
		return nil, nil, session.ErrNotAuthenticated
	}
	if snap.Profile == nil {
		return snap.User, nil, session.ErrProfileUnavailable
	}
	return snap.User, snap.Profile, nil
}

// SelectFreePlan completes onboarding on the free plan. Users who already
// picked a plan get ErrPlanAlreadySelected and no request is made.
func (s *Service) SelectFreePlan(ctx context.Context) (*models.UserProfile, error) {
	user, profile, err := s.current()
	if err != nil {
		return nil, err
	}
	if profile.PlanSelected {
		return nil, ErrPlanAlreadySelected
	}

	updated, err := s.session.RefetchProfile(ctx, models.ProfileOverrides{
		CurrentPlan:  models.PlanPtr(models.PlanFree),
		PlanSelected: models.Bool(true),
		Credits:      models.Int(models.DefaultCredits),
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithUserID(user.ID).Info("Free plan selected")
	return updated, nil
}

// RedeemGiftCode adds a gift code's credits and returns the new balance. On
// failure the local profile is left untouched.
func (s *Service) RedeemGiftCode(ctx context.Context, code string) (int, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ErrMissingGiftCode
	}

	user, profile, err := s.current()
	if err != nil {
		return 0, err
	}

	newCredits, err := s.gifts.RedeemGiftCode(ctx, code, user.ID)
	if err != nil {
		s.logger.LogOperation("redeem_gift_code", "failure", "", user.ID, 0, err)
		return 0, err
	}

	s.session.UpdateCredits(newCredits)
	s.logger.LogCreditChange(user.ID, "gift_code", profile.Credits, newCredits)

	if _, err := s.session.RefetchProfile(ctx, models.ProfileOverrides{Credits: models.Int(newCredits)}); err != nil {
		// the grant is already committed server-side; the next fetch catches up
		s.logger.WithUserID(user.ID).WithError(err).Warn("Profile refresh after redemption failed")
	}
	return newCredits, nil
}

// UpdateSettings commits sync preferences. Turning cloud sync on requires
// pro entitlement.
func (s *Service) UpdateSettings(ctx context.Context, update SettingsUpdate) (*models.UserProfile, error) {
	_, profile, err := s.current()
	if err != nil {
		return nil, err
	}

	enabling := (update.CloudSyncEnabled != nil && *update.CloudSyncEnabled) ||
		(update.AutoCloudSync != nil && *update.AutoCloudSync)
	if enabling && !profile.IsPro() {
		return nil, ErrProRequired
	}
	if update.DeletionPolicyDays != nil && *update.DeletionPolicyDays < 0 {
		return nil, ErrInvalidDeletion
	}

	overrides := models.ProfileOverrides{
		CloudSyncEnabled:   update.CloudSyncEnabled,
		AutoCloudSync:      update.AutoCloudSync,
		DeletionPolicyDays: update.DeletionPolicyDays,
	}
	if overrides.IsEmpty() {
		return profile, nil
	}
	return s.session.RefetchProfile(ctx, overrides)
}
