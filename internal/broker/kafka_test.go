package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConsumer() *Consumer {
	return &Consumer{
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(handleAttempts-1, retry.NewConstant(time.Millisecond))
		},
		logger: zap.NewNop(),
	}
}

func TestConsumerHandle_RetriesInPlace(t *testing.T) {
	c := newTestConsumer()
	calls := 0
	handler := func(context.Context, kafka.Message) error {
		calls++
		if calls < handleAttempts {
			return errors.New("smtp timeout")
		}
		return nil
	}

	require.NoError(t, c.handle(context.Background(), handler, kafka.Message{Offset: 7}))
	assert.Equal(t, handleAttempts, calls)
}

func TestConsumerHandle_GivesUpAfterAttempts(t *testing.T) {
	c := newTestConsumer()
	calls := 0
	boom := errors.New("boom")
	handler := func(context.Context, kafka.Message) error {
		calls++
		return boom
	}

	err := c.handle(context.Background(), handler, kafka.Message{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, handleAttempts, calls)
}
