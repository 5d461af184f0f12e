package models

import (
	"time"
)

// WebhookEndpoint is a configured receiver of account events
type WebhookEndpoint struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"-" mapstructure:"secret"`
}

// WebhookDelivery records one delivery attempt sequence of an event
type WebhookDelivery struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Event       string     `json:"event"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	StatusCode  int        `json:"status_code"`
	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// WebhookDeliveryStatus constants
const (
	WebhookDeliveryStatusPending   = "pending"
	WebhookDeliveryStatusDelivered = "delivered"
	WebhookDeliveryStatusFailed    = "failed"
)

// WebhookEvent represents the payload sent to webhooks
type WebhookEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Webhook event types
const (
	WebhookEventProfileCreated  = "profile.created"
	WebhookEventPlanSelected    = "plan.selected"
	WebhookEventCreditsRedeemed = "credits.redeemed"
)
