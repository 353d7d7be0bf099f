package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

// PaymentStore keeps issued payment references until the provider reports back.
type PaymentStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPaymentStore returns redis-backed store.
func NewPaymentStore(client *redis.Client, ttl time.Duration) *PaymentStore {
	return &PaymentStore{client: client, ttl: ttl}
}

func paymentKey(reference string) string {
	return fmt.Sprintf("kiosk:payment:%s", reference)
}

// Save caches a reference.
func (s *PaymentStore) Save(ctx context.Context, ref models.PaymentReference) error {
	ref.QRPNG = ""
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal payment reference: %w", err)
	}
	if err := s.client.Set(ctx, paymentKey(ref.Reference), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set payment reference: %w", err)
	}
	return nil
}

// Get returns a cached reference.
func (s *PaymentStore) Get(ctx context.Context, reference string) (*models.PaymentReference, error) {
	data, err := s.client.Get(ctx, paymentKey(reference)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get payment reference: %w", err)
	}
	var ref models.PaymentReference
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("unmarshal payment reference: %w", err)
	}
	return &ref, nil
}

// Delete drops a reference once it is settled.
func (s *PaymentStore) Delete(ctx context.Context, reference string) error {
	if err := s.client.Del(ctx, paymentKey(reference)).Err(); err != nil {
		return fmt.Errorf("redis delete payment reference: %w", err)
	}
	return nil
}
