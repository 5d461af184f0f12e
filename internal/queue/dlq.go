package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

const (
	DeadLetterQueueName    = "sync_jobs_dlq"
	DeadLetterExchangeName = "ideasaver_dlq"
	RetryQueueName         = "sync_jobs_retry"
	DefaultMaxRetries      = 3
)

// SetupDeadLetterQueue declares the retry and dead-letter queues
func (q *Queue) SetupDeadLetterQueue() error {
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(DeadLetterQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	err = q.channel.QueueBind(DeadLetterQueueName, DeadLetterQueueName, DeadLetterExchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// expired retry messages flow back into the sync queue
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": SyncQueueName,
	}
	_, err = q.channel.QueueDeclare(RetryQueueName, true, false, false, false, retryArgs)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	q.logger.Info("Dead letter queue infrastructure set up")
	return nil
}

// PublishToRetryQueue schedules job for another attempt after a backoff, or
// dead-letters it once it has used all retries
func (q *Queue) PublishToRetryQueue(ctx context.Context, job *models.SyncJob, reason string) error {
	if job.RetryCount >= q.maxRetries {
		return q.PublishToDeadLetterQueue(ctx, job, "max retries exceeded: "+reason)
	}

	delay := backoffDelay(job.RetryCount)
	next := *job
	next.RetryCount++

	err := q.publish(ctx, "", RetryQueueName, &next,
		amqp.Table{"x-retry-count": int32(next.RetryCount)},
		fmt.Sprintf("%d", delay.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}

	q.logger.WithJobID(job.ID).Infof("Sync job queued for retry #%d in %v", next.RetryCount, delay)
	return nil
}

// PublishToDeadLetterQueue parks a failed job for manual inspection
func (q *Queue) PublishToDeadLetterQueue(ctx context.Context, job *models.SyncJob, reason string) error {
	headers := amqp.Table{
		"x-failure-reason": reason,
		"x-failed-at":      time.Now().Format(time.RFC3339),
	}
	if err := q.publish(ctx, DeadLetterExchangeName, DeadLetterQueueName, job, headers, ""); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	q.logger.WithJobID(job.ID).WithField("reason", reason).Warn("Sync job moved to dead letter queue")
	return nil
}

// ConsumeDLQ consumes dead-lettered jobs for manual processing
func (q *Queue) ConsumeDLQ(ctx context.Context, handler func(*models.SyncJob, string) error) error {
	msgs, err := q.channel.Consume(DeadLetterQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register DLQ consumer: %w", err)
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

				var job models.SyncJob
				if err := json.Unmarshal(msg.Body, &job); err != nil {
					msg.Nack(false, false)
					continue
				}

				reason, _ := msg.Headers["x-failure-reason"].(string)
				if err := handler(&job, reason); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// RetryFromDLQ puts a dead-lettered job back on the sync queue
func (q *Queue) RetryFromDLQ(ctx context.Context, job *models.SyncJob) error {
	job.RetryCount = 0
	return q.PublishSyncJob(ctx, job)
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}

// backoffDelay doubles from 30s per attempt, capped at 15 minutes
func backoffDelay(retryCount int) time.Duration {
	delay := 30 * time.Second * time.Duration(1<<retryCount)
	if delay > 15*time.Minute {
		delay = 15 * time.Minute
	}
	return delay
}
