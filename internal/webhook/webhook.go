package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// DefaultRetryDelays is the backoff between delivery attempts
var DefaultRetryDelays = []time.Duration{
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// Service delivers signed account events to configured endpoints
type Service struct {
	client      *http.Client
	endpoints   []models.WebhookEndpoint
	retryDelays []time.Duration
	logger      *logging.Logger

	mu         sync.Mutex
	deliveries []*models.WebhookDelivery
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewService creates a new webhook service
func NewService(endpoints []models.WebhookEndpoint, timeout time.Duration, logger *logging.Logger) *Service {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		client:      &http.Client{Timeout: timeout},
		endpoints:   endpoints,
		retryDelays: DefaultRetryDelays,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetRetryDelays replaces the backoff schedule
func (s *Service) SetRetryDelays(delays []time.Duration) {
	s.retryDelays = delays
}

// Notify sends an event to every endpoint in the background
func (s *Service) Notify(ctx context.Context, event string, data interface{}) error {
	if len(s.endpoints) == 0 {
		return nil
	}

	payload := models.WebhookEvent{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for _, endpoint := range s.endpoints {
		delivery := &models.WebhookDelivery{
			ID:        uuid.New().String(),
			URL:       endpoint.URL,
			Event:     event,
			Payload:   string(payloadBytes),
			Status:    models.WebhookDeliveryStatusPending,
			CreatedAt: time.Now(),
		}

		s.mu.Lock()
		s.deliveries = append(s.deliveries, delivery)
		s.mu.Unlock()

		s.wg.Add(1)
		go func(endpoint models.WebhookEndpoint, delivery *models.WebhookDelivery) {
			defer s.wg.Done()
			s.deliverWithRetry(endpoint, delivery, payloadBytes)
		}(endpoint, delivery)
	}

	return nil
}

func (s *Service) deliverWithRetry(endpoint models.WebhookEndpoint, delivery *models.WebhookDelivery, payload []byte) {
	for {
		statusCode, err := s.deliver(s.ctx, endpoint, delivery, payload)

		s.mu.Lock()
		delivery.StatusCode = statusCode
		if err == nil {
			delivery.Status = models.WebhookDeliveryStatusDelivered
			now := time.Now()
			delivery.CompletedAt = &now
			s.mu.Unlock()
			metrics.RecordWebhookDelivery(delivery.Event, delivery.Status)
			return
		}
		delivery.RetryCount++
		retry := delivery.RetryCount
		if retry > len(s.retryDelays) {
			delivery.Status = models.WebhookDeliveryStatusFailed
			now := time.Now()
			delivery.CompletedAt = &now
		}
		s.mu.Unlock()

		s.logger.WithFields(map[string]interface{}{
			"delivery_id": delivery.ID,
			"event":       delivery.Event,
			"attempt":     retry,
		}).WithError(err).Warn("Webhook delivery failed")

		if retry > len(s.retryDelays) {
			metrics.RecordWebhookDelivery(delivery.Event, models.WebhookDeliveryStatusFailed)
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.retryDelays[retry-1]):
		}
	}
}

// deliver attempts one delivery
func (s *Service) deliver(ctx context.Context, endpoint models.WebhookEndpoint, delivery *models.WebhookDelivery, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "IdeaSaver-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery", delivery.ID)

	if endpoint.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(payload, endpoint.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign returns the HMAC-SHA256 signature header value for payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Deliveries returns a snapshot of delivery records
func (s *Service) Deliveries() []models.WebhookDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.WebhookDelivery, len(s.deliveries))
	for i, d := range s.deliveries {
		out[i] = *d
	}
	return out
}

// Wait blocks until in-flight deliveries finish
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close abandons pending retries and waits for in-flight deliveries
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
