package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidGiftCode = errors.New("invalid or already used gift code")
)

const uniqueViolation = "23505"

const profileColumns = `id, email, credits, current_plan, has_purchased_app, cloud_sync_enabled,
	auto_cloud_sync, deletion_policy_days, plan_selected, created_at`

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(
		&p.ID, &p.Email, &p.Credits, &p.CurrentPlan, &p.HasPurchasedApp, &p.CloudSyncEnabled,
		&p.AutoCloudSync, &p.DeletionPolicyDays, &p.PlanSelected, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Profiles

// UpsertProfile fetches or creates the profile for id and merges overrides
// into it. A new profile starts from the defaults with overrides applied.
// The whole read-modify-write runs in one transaction holding the row lock.
// previous is the row as it was before the merge, nil when it was created.
func (r *Repository) UpsertProfile(ctx context.Context, id, email string, defaultCredits int, overrides models.ProfileOverrides) (profile, previous *models.UserProfile, err error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	initial := overrides.Apply(models.NewProfile(id, email, defaultCredits))

	insert := `
		INSERT INTO profiles (id, email, credits, current_plan, has_purchased_app, cloud_sync_enabled,
		                      auto_cloud_sync, deletion_policy_days, plan_selected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insert,
		initial.ID, initial.Email, initial.Credits, initial.CurrentPlan, initial.HasPurchasedApp,
		initial.CloudSyncEnabled, initial.AutoCloudSync, initial.DeletionPolicyDays, initial.PlanSelected,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert profile: %w", err)
	}
	created := tag.RowsAffected() == 1

	existing, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock profile: %w", err)
	}

	if !created {
		prior := *existing
		previous = &prior
	}

	if !created && !overrides.IsEmpty() {
		merged := overrides.Apply(*existing)
		update := `
			UPDATE profiles
			SET credits = $2, current_plan = $3, has_purchased_app = $4, cloud_sync_enabled = $5,
			    auto_cloud_sync = $6, deletion_policy_days = $7, plan_selected = $8, updated_at = NOW()
			WHERE id = $1
		`
		_, err = tx.Exec(ctx, update,
			merged.ID, merged.Credits, merged.CurrentPlan, merged.HasPurchasedApp, merged.CloudSyncEnabled,
			merged.AutoCloudSync, merged.DeletionPolicyDays, merged.PlanSelected,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to update profile: %w", err)
		}
		existing = &merged
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit profile upsert: %w", err)
	}

	return existing, previous, nil
}

// GetProfile retrieves a profile by user ID
func (r *Repository) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	p, err := scanProfile(r.db.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// RetentionPolicy is a user's automatic cloud deletion window
type RetentionPolicy struct {
	UserID string
	Days   int
}

// ListRetentionPolicies returns every profile with a non-zero deletion policy
func (r *Repository) ListRetentionPolicies(ctx context.Context) ([]RetentionPolicy, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, deletion_policy_days
		FROM profiles
		WHERE deletion_policy_days > 0
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list retention policies: %w", err)
	}
	defer rows.Close()

	var policies []RetentionPolicy
	for rows.Next() {
		var p RetentionPolicy
		if err := rows.Scan(&p.UserID, &p.Days); err != nil {
			return nil, fmt.Errorf("failed to scan retention policy: %w", err)
		}
		policies = append(policies, p)
	}

	return policies, rows.Err()
}

// Users

// CreateUser creates a new user record
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query := `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query, user.ID, user.Email, user.PasswordHash).
		Scan(&user.CreatedAt, &user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User

	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Gift codes

// CreateGiftCode stores a redeemable code worth credits
func (r *Repository) CreateGiftCode(ctx context.Context, code string, credits int) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO gift_codes (code, credits) VALUES ($1, $2)`,
		strings.TrimSpace(code), credits)
	if err != nil {
		return fmt.Errorf("failed to create gift code: %w", err)
	}
	return nil
}

// RedeemGiftCode marks code as used by userID and adds its credits to the
// profile. It returns the new balance and the granted amount. Either every
// change is committed or none is.
func (r *Repository) RedeemGiftCode(ctx context.Context, code, userID string) (int, int, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var granted int
	err = tx.QueryRow(ctx, `
		SELECT credits FROM gift_codes
		WHERE code = $1 AND redeemed_at IS NULL
		FOR UPDATE
	`, strings.TrimSpace(code)).Scan(&granted)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, ErrInvalidGiftCode
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to lock gift code: %w", err)
	}

	var newCredits int
	err = tx.QueryRow(ctx, `
		UPDATE profiles SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`, userID, granted).Scan(&newCredits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, ErrProfileNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to credit profile: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE gift_codes SET redeemed_by = $2, redeemed_at = NOW()
		WHERE code = $1
	`, strings.TrimSpace(code), userID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to mark gift code redeemed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit redemption: %w", err)
	}

	return newCredits, granted, nil
}
