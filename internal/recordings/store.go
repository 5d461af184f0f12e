// Package recordings is the local, per-user store of voice notes and client
// settings. All reads and writes are partitioned by user id.
package recordings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var ErrMissingUser = apperrors.Validation("missing_user", "A signed-in user is required")

// Store is the Local Recording Store
type Store struct {
	backend Backend
}

// NewStore creates a store over backend
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Open opens a store with the named backend under dataDir
func Open(kind, dataDir string) (*Store, error) {
	backend, err := OpenBackend(kind, dataDir)
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

func recordingsKey(userID string) string {
	return "recordings_" + userID
}

func settingsKey(userID string) string {
	return "settings_" + userID
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}
	return nil
}

// Save appends a recording to the user's list
func (s *Store) Save(ctx context.Context, userID string, rec models.AudioRecording) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	return s.modify(ctx, userID, func(list []models.AudioRecording) ([]models.AudioRecording, bool) {
		return append(list, rec), true
	})
}

// LoadAll returns the user's recordings in stored order. A user with no data
// gets an empty slice.
func (s *Store) LoadAll(ctx context.Context, userID string) ([]models.AudioRecording, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, recordingsKey(userID))
	if err != nil {
		return nil, apperrors.Transient(err, "Could not read saved recordings")
	}
	return decodeRecordings(data)
}

// Get returns one recording, or a not-found error
func (s *Store) Get(ctx context.Context, userID, recordingID string) (*models.AudioRecording, error) {
	list, err := s.LoadAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == recordingID {
			return &list[i], nil
		}
	}
	return nil, apperrors.NotFound("recording_not_found", "Recording not found")
}

// Delete removes a recording. Missing ids are ignored.
func (s *Store) Delete(ctx context.Context, userID, recordingID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	return s.modify(ctx, userID, func(list []models.AudioRecording) ([]models.AudioRecording, bool) {
		kept := list[:0]
		for _, rec := range list {
			if rec.ID != recordingID {
				kept = append(kept, rec)
			}
		}
		return kept, len(kept) != len(list)
	})
}

// Update merges patch into a recording. Missing ids are ignored.
func (s *Store) Update(ctx context.Context, userID, recordingID string, patch models.RecordingPatch) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	return s.modify(ctx, userID, func(list []models.AudioRecording) ([]models.AudioRecording, bool) {
		for i := range list {
			if list[i].ID == recordingID {
				list[i] = patch.Apply(list[i])
				return list, true
			}
		}
		return list, false
	})
}

// SaveSettings replaces the user's settings
func (s *Store) SaveSettings(ctx context.Context, userID string, settings models.Settings) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return apperrors.Internal(err)
	}
	err = s.backend.Update(ctx, settingsKey(userID), func([]byte) ([]byte, bool, error) {
		return data, true, nil
	})
	if err != nil {
		return apperrors.Transient(err, "Could not save settings")
	}
	return nil
}

// LoadSettings returns the user's settings, nil when none were saved
func (s *Store) LoadSettings(ctx context.Context, userID string) (*models.Settings, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, settingsKey(userID))
	if err != nil {
		return nil, apperrors.Transient(err, "Could not read settings")
	}
	if len(data) == 0 {
		return nil, nil
	}

	var settings models.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, apperrors.DataCorruption(err, "Saved settings are corrupted")
	}
	return &settings, nil
}

func (s *Store) modify(ctx context.Context, userID string, fn func([]models.AudioRecording) ([]models.AudioRecording, bool)) error {
	err := s.backend.Update(ctx, recordingsKey(userID), func(current []byte) ([]byte, bool, error) {
		list, err := decodeRecordings(current)
		if err != nil {
			return nil, false, err
		}

		next, changed := fn(list)
		if !changed {
			return nil, false, nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return nil, false, fmt.Errorf("encode recordings: %w", err)
		}
		return data, true, nil
	})

	if _, ok := apperrors.As(err); ok || err == nil {
		return err
	}
	return apperrors.Transient(err, "Could not save recordings")
}

func decodeRecordings(data []byte) ([]models.AudioRecording, error) {
	list := []models.AudioRecording{}
	if len(data) == 0 {
		return list, nil
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, apperrors.DataCorruption(err, "Saved recordings are corrupted")
	}
	if list == nil {
		list = []models.AudioRecording{}
	}
	return list, nil
}

// SortByDateDesc orders recordings newest first
func SortByDateDesc(list []models.AudioRecording) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Date.After(list[j].Date)
	})
}
