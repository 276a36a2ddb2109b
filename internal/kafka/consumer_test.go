package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reviews/internal/logger"
)

type fakeReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return kafka.Message{}, err
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestConsumer_DeliversUntilCancelled(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}}
	c := NewConsumerWithReader(reader, "reviews.order-status", logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(ctx context.Context, msg kafka.Message) error {
			mu.Lock()
			got = append(got, string(msg.Key))
			n := len(got)
			mu.Unlock()
			if string(msg.Key) == "b" {
				return errors.New("bad message")
			}
			if n == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestConsumer_ReturnsReadErrors(t *testing.T) {
	reader := &fakeReader{err: errors.New("broker gone")}
	c := NewConsumerWithReader(reader, "t", logger.NewNopLogger())

	err := c.Start(context.Background(), func(context.Context, kafka.Message) error { return nil })
	assert.ErrorContains(t, err, "broker gone")
}
