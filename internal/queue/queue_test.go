package queue

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoffDelay(0))
	assert.Equal(t, time.Minute, backoffDelay(1))
	assert.Equal(t, 2*time.Minute, backoffDelay(2))
	assert.Equal(t, 15*time.Minute, backoffDelay(10))
}

func TestRetryCountHeader(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 0, retryCount(amqp.Table{"x-retry-count": "2"}))
	assert.Equal(t, 2, retryCount(amqp.Table{"x-retry-count": int32(2)}))
	assert.Equal(t, 3, retryCount(amqp.Table{"x-retry-count": int64(3)}))
}
