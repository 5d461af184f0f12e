package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/config"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
)

// RecordingsPrefix is the root of every synced recording
const RecordingsPrefix = "recordings/"

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Storage provides object storage operations
type Storage struct {
	client     *minio.Client
	bucketName string
}

// New creates a new storage client and makes sure the bucket exists
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

// ErrInvalidKey is returned for ids that cannot form a key inside the owner's prefix
var ErrInvalidKey = errors.New("invalid object key segment")

// ValidSegment reports whether id can be used as a single key segment:
// non-empty and made only of letters, digits, '-' and '_'
func ValidSegment(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// RecordingKey is the object key of a user's synced recording. The key is
// always under UserPrefix(userID).
func RecordingKey(userID, recordingID string) (string, error) {
	if !ValidSegment(userID) || !ValidSegment(recordingID) {
		return "", fmt.Errorf("recording %q of user %q: %w", recordingID, userID, ErrInvalidKey)
	}
	key := path.Join(RecordingsPrefix, userID, recordingID+".json")
	if !strings.HasPrefix(key, UserPrefix(userID)) {
		return "", fmt.Errorf("recording %q of user %q: %w", recordingID, userID, ErrInvalidKey)
	}
	return key, nil
}

// UserPrefix is the key prefix holding all of a user's recordings
func UserPrefix(userID string) string {
	return RecordingsPrefix + strings.TrimSuffix(userID, "/") + "/"
}

// Put stores data under key
func (s *Storage) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	metrics.RecordStorageOperation("put", statusOf(err), time.Since(start).Seconds(), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Get reads the object at key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	object, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		metrics.RecordStorageOperation("get", "error", time.Since(start).Seconds(), 0)
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	metrics.RecordStorageOperation("get", statusOf(err), time.Since(start).Seconds(), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	metrics.RecordStorageOperation("delete", statusOf(err), time.Since(start).Seconds(), 0)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List lists objects with a prefix
func (s *Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}

	return objects, nil
}

// Health checks that the bucket is reachable
func (s *Storage) Health(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucketName); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}
	return nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
