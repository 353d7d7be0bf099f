package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

func TestPaymentServiceIssueReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed := placeOrder(t, f, "kiosk-1")

	ref, err := f.payments.IssueReference(ctx, "kiosk-1", "BLIK")
	require.NoError(t, err)
	assert.Equal(t, "blik", ref.Provider)
	assert.Equal(t, placed.Order.ID, ref.OrderID)
	assert.Equal(t, "18.90", ref.Amount)
	assert.True(t, strings.HasPrefix(ref.Payload, "kioskpay://blik/"+ref.Reference+"?"))

	png, err := base64.StdEncoding.DecodeString(ref.QRPNG)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	stored, err := f.refs.Get(ctx, ref.Reference)
	require.NoError(t, err)
	assert.Equal(t, ref.OrderID, stored.OrderID)
}

func TestPaymentServiceIssueReferenceErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.IssueReference(ctx, "kiosk-1", "paypal")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = f.payments.IssueReference(ctx, "kiosk-1", "card")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = f.sessions.Create(ctx, "kiosk-1")
	require.NoError(t, err)
	_, err = f.payments.IssueReference(ctx, "kiosk-1", "card")
	assert.ErrorIs(t, err, ErrOrderNotPlaced)
}

func TestPaymentServiceCallbackFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed := placeOrder(t, f, "kiosk-1")

	ref, err := f.payments.IssueReference(ctx, "kiosk-1", "blik")
	require.NoError(t, err)

	event, err := f.payments.Callback(ctx, "blik", ref.Reference, PaymentEventScanned)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproving, event.Status)

	_, err = f.payments.Callback(ctx, "blik", ref.Reference, PaymentEventScanned)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	event, err = f.payments.Callback(ctx, "blik", ref.Reference, PaymentEventConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, event.Status)

	session, err := f.sessions.Get(ctx, "kiosk-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, session.Order.Status)
	assert.Equal(t, placed.Order.ID, session.Order.ID)

	_, err = f.payments.Callback(ctx, "blik", ref.Reference, PaymentEventConfirmed)
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	assert.Equal(t, []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusApproving,
		models.OrderStatusPaid,
	}, f.publisher.statuses())
}

func TestPaymentServiceCallbackErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeOrder(t, f, "kiosk-1")

	ref, err := f.payments.IssueReference(ctx, "kiosk-1", "card")
	require.NoError(t, err)

	_, err = f.payments.Callback(ctx, "card", "missing", PaymentEventConfirmed)
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	_, err = f.payments.Callback(ctx, "blik", ref.Reference, PaymentEventConfirmed)
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	_, err = f.payments.Callback(ctx, "card", ref.Reference, "refunded")
	assert.ErrorIs(t, err, ErrUnknownEvent)

	event, err := f.payments.Callback(ctx, "card", ref.Reference, PaymentEventConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, event.Status)
}

func TestPaymentServiceProvidersIsCopy(t *testing.T) {
	f := newFixture(t)

	providers := f.payments.Providers()
	providers[0] = "mutated"
	assert.Equal(t, []string{"blik", "card"}, f.payments.Providers())
}
