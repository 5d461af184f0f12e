// Package cloudsync backs up recordings of pro users to object storage. The
// API publishes jobs and the worker uploads them and enforces retention.
package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/storage"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var (
	ErrSyncNotAllowed   = apperrors.Forbidden("cloud_sync_disabled", "Cloud sync requires the full app and must be enabled in settings.")
	ErrInvalidRecording = apperrors.Validation("invalid_recording", "Recording id must be letters, digits, '-' or '_'")
)

// Publisher enqueues sync jobs
type Publisher interface {
	PublishSyncJob(ctx context.Context, job *models.SyncJob) error
}

// ObjectStore is where synced recordings live
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Service accepts recordings for sync on behalf of the API
type Service struct {
	publisher Publisher
	logger    *logging.Logger
	now       func() time.Time
}

// NewService creates the submit side of cloud sync
func NewService(publisher Publisher, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{publisher: publisher, logger: logger, now: time.Now}
}

// Allowed reports whether profile may use cloud sync
func Allowed(profile *models.UserProfile) bool {
	return profile.IsPro() && profile.CloudSyncEnabled
}

// Submit queues rec for upload and returns the job id
func (s *Service) Submit(ctx context.Context, profile *models.UserProfile, rec models.AudioRecording) (string, error) {
	if !Allowed(profile) {
		return "", ErrSyncNotAllowed
	}
	if !storage.ValidSegment(rec.ID) {
		return "", ErrInvalidRecording
	}

	job := &models.SyncJob{
		ID:        uuid.NewString(),
		UserID:    profile.ID,
		Recording: rec,
		CreatedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishSyncJob(ctx, job); err != nil {
		return "", apperrors.Transient(err, "Could not queue recording for sync")
	}

	metrics.RecordSyncJobPublished()
	s.logger.WithJobID(job.ID).WithUserID(job.UserID).Info("Sync job published")
	return job.ID, nil
}

// Uploader writes synced recordings to object storage on the worker
type Uploader struct {
	store  ObjectStore
	logger *logging.Logger
}

// NewUploader creates the worker side of cloud sync
func NewUploader(store ObjectStore, logger *logging.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Uploader{store: store, logger: logger}
}

// HandleJob uploads the job's recording as JSON
func (u *Uploader) HandleJob(ctx context.Context, job *models.SyncJob) error {
	if job.UserID == "" || job.Recording.ID == "" {
		// nothing a retry could fix
		u.logger.WithJobID(job.ID).Warn("Skipping sync job without user or recording id")
		return nil
	}

	data, err := json.Marshal(job.Recording)
	if err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}

	key, err := storage.RecordingKey(job.UserID, job.Recording.ID)
	if err != nil {
		u.logger.WithJobID(job.ID).WithUserID(job.UserID).WithError(err).Warn("Skipping sync job with an invalid recording id")
		return nil
	}
	err = u.store.Put(ctx, key, data)
	metrics.RecordSyncJobCompleted(err)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	u.logger.WithJobID(job.ID).WithUserID(job.UserID).WithField("key", key).Info("Recording synced")
	return nil
}
