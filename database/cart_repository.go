package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/T1collo/agrofresh/models"
)

// DefaultCartTTL is how long an untouched cart survives.
const DefaultCartTTL = 7 * 24 * time.Hour

type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *CartRepository) getKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

// GetCart returns nil, nil when the user has no cart yet.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, r.getKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart for %s: %w", userID, err)
	}
	return &cart, nil
}

// SaveCart overwrites the stored cart and resets its TTL.
func (r *CartRepository) SaveCart(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()

	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(cart.UserID), data, r.ttl).Err()
}

func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.getKey(userID)).Err()
}

// MemoryCartRepository keeps carts in process memory. Used when no Redis is
// configured; carts do not expire and are lost on restart.
type MemoryCartRepository struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{carts: make(map[string][]byte)}
}

func (r *MemoryCartRepository) GetCart(_ context.Context, userID string) (*models.Cart, error) {
	r.mu.Lock()
	data, ok := r.carts[userID]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart for %s: %w", userID, err)
	}
	return &cart, nil
}

func (r *MemoryCartRepository) SaveCart(_ context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.carts[cart.UserID] = data
	r.mu.Unlock()
	return nil
}

func (r *MemoryCartRepository) DeleteCart(_ context.Context, userID string) error {
	r.mu.Lock()
	delete(r.carts, userID)
	r.mu.Unlock()
	return nil
}
