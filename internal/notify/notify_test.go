package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"order-service/internal/correlation"
	"order-service/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() *model.Order {
	return &model.Order{
		ID:        uuid.MustParse("7f1c2a1e-7d54-4e38-9a43-1f2f3c4d5e6f"),
		UserEmail: "jane.doe@example.com",
		OrderItems: []model.OrderItem{
			{ProductID: "p1", ProductName: "Keyboard", ProductPrice: decimal.RequireFromString("50.00"), Quantity: 2},
			{ProductID: "p2", ProductName: "Mouse", ProductPrice: decimal.RequireFromString("30"), Quantity: 1},
		},
		TotalAmount:     decimal.RequireFromString("130"),
		Status:          model.OrderStatusPending,
		ShippingAddress: "1 Infinite Loop, Cupertino",
		OrderDate:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewConfirmation(t *testing.T) {
	c := NewConfirmation(sampleOrder())

	assert.Equal(t, "jane.doe@example.com", c.Email)
	assert.Equal(t, "jane.doe", c.Name)
	assert.Equal(t, "7f1c2a1e-7d54-4e38-9a43-1f2f3c4d5e6f", c.OrderID)
	assert.Equal(t, "$130.00", c.OrderTotal)
	assert.Equal(t, "Keyboard x2 - $100.00\nMouse x1 - $30.00\n", c.OrderItems)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "alice", DisplayName("alice@example.com"))
	assert.Equal(t, "no-at-sign", DisplayName("no-at-sign"))
	assert.Equal(t, "", DisplayName("@example.com"))
}

type mockWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	messages  []kafka.Message
	closed    bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.messages = append(m.messages, msgs...)
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestKafkaNotifier_SendOrderConfirmation(t *testing.T) {
	w := &mockWriter{}
	n := newKafkaNotifier(w, "order-confirmations", zerolog.Nop())

	confirmation := NewConfirmation(sampleOrder())
	ctx := correlation.WithID(context.Background(), "corr-1")

	require.NoError(t, n.SendOrderConfirmation(ctx, confirmation))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, confirmation.OrderID, string(msg.Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EventOrderConfirmationRequested, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "order-service", env.Producer)
	assert.Equal(t, "corr-1", env.CorrelationID)
	_, err := uuid.Parse(env.EventID)
	assert.NoError(t, err)

	var payload model.OrderConfirmation
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, confirmation, payload)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, EventOrderConfirmationRequested, headers["event_type"])
	assert.Equal(t, "corr-1", headers[correlation.Header])

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifier_WriteFailure(t *testing.T) {
	w := &mockWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			return errors.New("broker unavailable")
		},
	}
	n := newKafkaNotifier(w, "order-confirmations", zerolog.Nop())

	err := n.SendOrderConfirmation(context.Background(), NewConfirmation(sampleOrder()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

type mockS3 struct {
	putFunc func(ctx context.Context, params *s3.PutObjectInput) error
	inputs  []*s3.PutObjectInput
	bodies  [][]byte
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.inputs = append(m.inputs, params)
	body, _ := io.ReadAll(params.Body)
	m.bodies = append(m.bodies, body)
	if m.putFunc != nil {
		if err := m.putFunc(ctx, params); err != nil {
			return nil, err
		}
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3ReceiptArchiver_Key(t *testing.T) {
	order := sampleOrder()

	tests := []struct {
		prefix   string
		expected string
	}{
		{prefix: "receipts/", expected: "receipts/jane.doe@example.com/7f1c2a1e-7d54-4e38-9a43-1f2f3c4d5e6f.json"},
		{prefix: "receipts", expected: "receipts/jane.doe@example.com/7f1c2a1e-7d54-4e38-9a43-1f2f3c4d5e6f.json"},
		{prefix: "", expected: "jane.doe@example.com/7f1c2a1e-7d54-4e38-9a43-1f2f3c4d5e6f.json"},
	}

	for _, tt := range tests {
		t.Run("prefix "+tt.prefix, func(t *testing.T) {
			a := newS3ReceiptArchiver(&mockS3{}, "bucket", tt.prefix, zerolog.Nop())
			assert.Equal(t, tt.expected, a.Key(order))
		})
	}
}

func TestS3ReceiptArchiver_Archive(t *testing.T) {
	client := &mockS3{}
	a := newS3ReceiptArchiver(client, "order-receipts", "receipts/", zerolog.Nop())
	order := sampleOrder()

	require.NoError(t, a.Archive(context.Background(), order))
	require.Len(t, client.inputs, 1)

	input := client.inputs[0]
	assert.Equal(t, "order-receipts", *input.Bucket)
	assert.Equal(t, a.Key(order), *input.Key)
	assert.Equal(t, "application/json", *input.ContentType)

	var stored model.Order
	require.NoError(t, json.Unmarshal(client.bodies[0], &stored))
	assert.Equal(t, order.ID, stored.ID)
	assert.True(t, order.TotalAmount.Equal(stored.TotalAmount))
	assert.Len(t, stored.OrderItems, 2)
}

func TestS3ReceiptArchiver_ArchiveFailure(t *testing.T) {
	client := &mockS3{
		putFunc: func(ctx context.Context, params *s3.PutObjectInput) error {
			return errors.New("access denied")
		},
	}
	a := newS3ReceiptArchiver(client, "order-receipts", "receipts/", zerolog.Nop())

	err := a.Archive(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Contains(t, err.Error(), "bucket=order-receipts")
}
