package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func TestKafkaDispatcher_PublishesKeyedByRecipient(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "reviews.notifications", "artist-1", mock.MatchedBy(func(v []byte) bool {
		var n models.Notification
		return json.Unmarshal(v, &n) == nil && n.Type == models.NotificationReviewComplete && !n.CreatedAt.IsZero()
	})).Return(nil)

	d := NewKafkaDispatcher(pub, "reviews.notifications", logger.NewNopLogger())
	err := d.Send(context.Background(), models.Notification{UserID: "artist-1", Title: "Your review is ready", Type: models.NotificationReviewComplete})

	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestKafkaDispatcher_Errors(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	d := NewKafkaDispatcher(pub, "t", logger.NewNopLogger())

	assert.Error(t, d.Send(context.Background(), models.Notification{Title: "no recipient"}))
	assert.ErrorContains(t, d.Send(context.Background(), models.Notification{UserID: "u"}), "broker down")
}

func TestLogDispatcher(t *testing.T) {
	assert.NoError(t, NewLogDispatcher(logger.NewNopLogger()).Send(context.Background(), models.Notification{UserID: "u"}))
}
