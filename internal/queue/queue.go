package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/config"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

const (
	SyncQueueName = "sync_jobs"
	ExchangeName  = "ideasaver"
)

// Queue carries cloud sync jobs over RabbitMQ
type Queue struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	maxRetries int
	logger     *logging.Logger
}

// New connects to RabbitMQ and declares the sync topology
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		SyncQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(SyncQueueName, SyncQueueName, ExchangeName, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if logger == nil {
		logger = logging.NewNop()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Queue{
		conn:       conn,
		channel:    channel,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishSyncJob publishes a cloud sync job
func (q *Queue) PublishSyncJob(ctx context.Context, job *models.SyncJob) error {
	return q.publish(ctx, ExchangeName, SyncQueueName, job, amqp.Table{"x-retry-count": int32(job.RetryCount)}, "")
}

func (q *Queue) publish(ctx context.Context, exchange, key string, job *models.SyncJob, headers amqp.Table, expiration string) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
			Expiration:   expiration,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// ConsumeSyncJobs hands each job to handler. Failed jobs go to the retry
// queue, and to the dead-letter queue once retries are exhausted.
func (q *Queue) ConsumeSyncJobs(ctx context.Context, handler func(context.Context, *models.SyncJob) error) error {
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		SyncQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				q.deliver(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) deliver(ctx context.Context, msg amqp.Delivery, handler func(context.Context, *models.SyncJob) error) {
	var job models.SyncJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		q.logger.WithError(err).Error("Dropping malformed sync job")
		msg.Nack(false, false)
		return
	}
	job.RetryCount = retryCount(msg.Headers)

	herr := handler(ctx, &job)
	if herr == nil {
		msg.Ack(false)
		return
	}

	q.logger.WithJobID(job.ID).WithUserID(job.UserID).WithError(herr).Warn("Sync job failed")
	if err := q.PublishToRetryQueue(ctx, &job, herr.Error()); err != nil {
		q.logger.WithJobID(job.ID).WithError(err).Error("Failed to reschedule sync job")
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(SyncQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}

func retryCount(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
