package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_PublishPaymentReconciled(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event PaymentReconciledEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.EventType != EventTypePaymentReconciled {
			return errors.New("unexpected event type " + event.EventType)
		}
		if event.SessionID != "sess_123" || event.Amount != 5000 || !event.EntitlementPaid {
			return errors.New("unexpected payload")
		}
		if event.EventID == "" || event.Timestamp.IsZero() {
			return errors.New("event metadata not set")
		}
		return nil
	})

	p := NewPublisherWithProducer(producer)
	err := p.PublishPaymentReconciled(context.Background(), PaymentReconciledEvent{
		WebhookEventID:  "evt_1",
		PaymentID:       "p1",
		SessionID:       "sess_123",
		UserID:          "u1",
		Amount:          5000,
		Status:          "succeeded",
		EntitlementPaid: true,
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWithProducer(producer)
	err := p.PublishPaymentReconciled(context.Background(), PaymentReconciledEvent{SessionID: "sess_456", Status: "failed"})

	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}
