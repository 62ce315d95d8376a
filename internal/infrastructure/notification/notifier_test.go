package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleNotification() Notification {
	buyer := uuid.New()
	return Notification{
		ID:          uuid.New(),
		Type:        TypeOrderTransitioned,
		OrderID:     uuid.New(),
		OrderNumber: "ORD-20260301-0007",
		Recipients:  []Recipient{{Role: shared.RoleBuyer, ActorID: &buyer}, {Role: shared.RoleAdmin}},
		Subject:     "Order ORD-20260301-0007 is now DISPATCHED",
		OccurredAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestKafkaNotifier_SendsKeyedMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	n := sampleNotification()
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var got Notification
		if err := json.Unmarshal(value, &got); err != nil {
			return err
		}
		if got.ID != n.ID {
			return errors.New("unexpected notification id")
		}
		return nil
	})
	k := NewKafkaNotifierWithProducer(producer, "leorit.order-lifecycle", zap.NewNop())

	require.NoError(t, k.Notify(context.Background(), n))
	require.NoError(t, k.Close())
}

func TestKafkaNotifier_ProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrLeaderNotAvailable)
	k := NewKafkaNotifierWithProducer(producer, "leorit.order-lifecycle", nil)

	err := k.Notify(context.Background(), sampleNotification())

	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrLeaderNotAvailable))
	require.NoError(t, k.Close())
}

func TestKafkaNotifier_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	k := NewKafkaNotifierWithProducer(producer, "topic", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, k.Notify(ctx, sampleNotification()), context.Canceled)
	require.NoError(t, k.Close())
}

func TestKafkaProducerConfig_Valid(t *testing.T) {
	assert.NoError(t, NewKafkaProducerConfig().Validate())
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), sampleNotification()))

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ORD-20260301-0007", fields["order_number"])
	assert.Len(t, fields["recipients"], 2)
}

func TestNew_SelectsDriver(t *testing.T) {
	n, err := New(config.NotificationConfig{Driver: config.NotificationDriverLog}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	_, err = New(config.NotificationConfig{Driver: config.NotificationDriverRedis}, nil, nil)
	assert.ErrorContains(t, err, "requires a Redis connection")

	_, err = New(config.NotificationConfig{Driver: "sms"}, nil, nil)
	assert.ErrorContains(t, err, "unknown notification driver")
}
