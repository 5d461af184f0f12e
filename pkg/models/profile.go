package models

import (
	"time"
)

// Plan is the subscription tier of a profile
type Plan string

const (
	PlanFree            Plan = "free"
	PlanFullAppPurchase Plan = "full_app_purchase"
)

// Valid reports whether p is a known plan
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanFullAppPurchase
}

// DefaultCredits is the credit grant for a newly created profile
const DefaultCredits = 25

// UserProfile is the server-persisted per-user record of plan, credits and preferences
type UserProfile struct {
	ID                 string    `json:"id" db:"id"`
	Email              string    `json:"email" db:"email"`
	Credits            int       `json:"credits" db:"credits"`
	CurrentPlan        Plan      `json:"current_plan" db:"current_plan"`
	HasPurchasedApp    bool      `json:"has_purchased_app" db:"has_purchased_app"`
	CloudSyncEnabled   bool      `json:"cloud_sync_enabled" db:"cloud_sync_enabled"`
	AutoCloudSync      bool      `json:"auto_cloud_sync" db:"auto_cloud_sync"`
	DeletionPolicyDays int       `json:"deletion_policy_days" db:"deletion_policy_days"`
	PlanSelected       bool      `json:"plan_selected" db:"plan_selected"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// IsPro reports whether the profile carries the full-app entitlement
func (p *UserProfile) IsPro() bool {
	if p == nil {
		return false
	}
	return p.CurrentPlan == PlanFullAppPurchase || p.HasPurchasedApp
}

// NewProfile returns a profile populated with first-contact defaults
func NewProfile(id, email string, credits int) UserProfile {
	return UserProfile{
		ID:          id,
		Email:       email,
		Credits:     credits,
		CurrentPlan: PlanFree,
	}
}

// ProfileOverrides holds the fields a caller wants to change. A nil field is left untouched.
type ProfileOverrides struct {
	Credits            *int  `json:"credits,omitempty"`
	CurrentPlan        *Plan `json:"current_plan,omitempty"`
	HasPurchasedApp    *bool `json:"has_purchased_app,omitempty"`
	CloudSyncEnabled   *bool `json:"cloud_sync_enabled,omitempty"`
	AutoCloudSync      *bool `json:"auto_cloud_sync,omitempty"`
	DeletionPolicyDays *int  `json:"deletion_policy_days,omitempty"`
	PlanSelected       *bool `json:"plan_selected,omitempty"`
}

// IsEmpty reports whether no field is overridden
func (o ProfileOverrides) IsEmpty() bool {
	return o.Credits == nil &&
		o.CurrentPlan == nil &&
		o.HasPurchasedApp == nil &&
		o.CloudSyncEnabled == nil &&
		o.AutoCloudSync == nil &&
		o.DeletionPolicyDays == nil &&
		o.PlanSelected == nil
}

// Apply returns a copy of p with every non-nil override written over it
func (o ProfileOverrides) Apply(p UserProfile) UserProfile {
	if o.Credits != nil {
		p.Credits = *o.Credits
	}
	if o.CurrentPlan != nil {
		p.CurrentPlan = *o.CurrentPlan
	}
	if o.HasPurchasedApp != nil {
		p.HasPurchasedApp = *o.HasPurchasedApp
	}
	if o.CloudSyncEnabled != nil {
		p.CloudSyncEnabled = *o.CloudSyncEnabled
	}
	if o.AutoCloudSync != nil {
		p.AutoCloudSync = *o.AutoCloudSync
	}
	if o.DeletionPolicyDays != nil {
		p.DeletionPolicyDays = *o.DeletionPolicyDays
	}
	if o.PlanSelected != nil {
		p.PlanSelected = *o.PlanSelected
	}
	return p
}

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Bool returns a pointer to v
func Bool(v bool) *bool { return &v }

// PlanPtr returns a pointer to p
func PlanPtr(p Plan) *Plan { return &p }

// ProfileRequest is the body of the profile endpoint
type ProfileRequest struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	ProfileOverrides
}

// ProfileResponse is the reply of the profile endpoint
type ProfileResponse struct {
	Success bool         `json:"success"`
	Profile *UserProfile `json:"profile,omitempty"`
}
