package models

import (
	"time"
)

// Priority of a voice note
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// AudioRecording is a captured voice note owned by one user
type AudioRecording struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Transcription         *string   `json:"transcription"`
	AudioDataURI          string    `json:"audioDataUri"`
	Duration              int       `json:"duration"`
	Date                  time.Time `json:"date"`
	Summary               *string   `json:"summary"`
	ExpandedTranscription *string   `json:"expandedTranscription"`
	ProjectPlan           *string   `json:"projectPlan"`
	ActionItems           *string   `json:"actionItems"`
	IsArchived            bool      `json:"isArchived"`
	Priority              Priority  `json:"priority"`
}

// RecordingPatch carries the fields of a partial update. Nil fields are kept.
type RecordingPatch struct {
	Name                  *string   `json:"name,omitempty"`
	Transcription         *string   `json:"transcription,omitempty"`
	Summary               *string   `json:"summary,omitempty"`
	ExpandedTranscription *string   `json:"expandedTranscription,omitempty"`
	ProjectPlan           *string   `json:"projectPlan,omitempty"`
	ActionItems           *string   `json:"actionItems,omitempty"`
	IsArchived            *bool     `json:"isArchived,omitempty"`
	Priority              *Priority `json:"priority,omitempty"`
}

// Apply merges the patch into r
func (p RecordingPatch) Apply(r AudioRecording) AudioRecording {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Transcription != nil {
		r.Transcription = p.Transcription
	}
	if p.Summary != nil {
		r.Summary = p.Summary
	}
	if p.ExpandedTranscription != nil {
		r.ExpandedTranscription = p.ExpandedTranscription
	}
	if p.ProjectPlan != nil {
		r.ProjectPlan = p.ProjectPlan
	}
	if p.ActionItems != nil {
		r.ActionItems = p.ActionItems
	}
	if p.IsArchived != nil {
		r.IsArchived = *p.IsArchived
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	return r
}

// String returns a pointer to s
func String(s string) *string { return &s }

// Settings are the per-user client preferences kept in the local store
type Settings struct {
	DefaultPriority  Priority `json:"defaultPriority,omitempty"`
	MicrophoneDevice string   `json:"microphoneDevice,omitempty"`
	MicrophoneFormat string   `json:"microphoneFormat,omitempty"`
}

// SyncJob is a cloud-sync upload request carried over the queue
type SyncJob struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Recording  AudioRecording `json:"recording"`
	RetryCount int            `json:"retry_count"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SyncResponse is returned when a recording is accepted for cloud sync
type SyncResponse struct {
	JobID string `json:"jobId"`
}
