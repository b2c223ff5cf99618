package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"ge-offer-relay/internal/model"

	"github.com/redis/go-redis/v9"
)

const buyWindowHashKey = "gerelay:buywindows"

// RedisBuyWindowStore implements BuyWindowStore on a Redis hash, one field
// per item ID.
type RedisBuyWindowStore struct {
	client *redis.Client
}

// redisBuyWindow is the stored form of a record.
type redisBuyWindow struct {
	FirstBuyMS     int64 `json:"first_buy_ms"`
	QuantityBought int   `json:"quantity_bought"`
}

// NewRedisBuyWindowStore connects to Redis and verifies the connection.
func NewRedisBuyWindowStore(addr, password string, db int) (*RedisBuyWindowStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[RedisBuyWindowStore] Connected to Redis at %s (db %d)", addr, db)
	return &RedisBuyWindowStore{client: client}, nil
}

// Upsert inserts or replaces the record for its item.
func (s *RedisBuyWindowStore) Upsert(ctx context.Context, rec model.BuyWindowRecord) error {
	data, err := json.Marshal(redisBuyWindow{
		FirstBuyMS:     rec.FirstBuy.UnixMilli(),
		QuantityBought: rec.QuantityBought,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize buy window: %w", err)
	}

	if err := s.client.HSet(ctx, buyWindowHashKey, strconv.Itoa(rec.ItemID), data).Err(); err != nil {
		return fmt.Errorf("failed to store buy window: %w", err)
	}
	return nil
}

// LoadAll returns every stored record; fields that fail to parse are
// skipped individually.
func (s *RedisBuyWindowStore) LoadAll(ctx context.Context) ([]model.BuyWindowRecord, error) {
	fields, err := s.client.HGetAll(ctx, buyWindowHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load buy windows: %w", err)
	}

	var records []model.BuyWindowRecord
	for field, raw := range fields {
		itemID, err := strconv.Atoi(field)
		if err != nil {
			log.Printf("[RedisBuyWindowStore] Skipping malformed field %q: %v", field, err)
			continue
		}

		var stored redisBuyWindow
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			log.Printf("[RedisBuyWindowStore] Skipping malformed record for item %d: %v", itemID, err)
			continue
		}

		records = append(records, model.BuyWindowRecord{
			ItemID:         itemID,
			FirstBuy:       time.UnixMilli(stored.FirstBuyMS),
			QuantityBought: stored.QuantityBought,
		})
	}
	return records, nil
}

// Delete removes the records for the given items.
func (s *RedisBuyWindowStore) Delete(ctx context.Context, itemIDs []int) error {
	if len(itemIDs) == 0 {
		return nil
	}

	fields := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		fields[i] = strconv.Itoa(id)
	}

	if err := s.client.HDel(ctx, buyWindowHashKey, fields...).Err(); err != nil {
		return fmt.Errorf("failed to delete buy windows: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisBuyWindowStore) Close() error {
	return s.client.Close()
}

// Ensure RedisBuyWindowStore implements BuyWindowStore
var _ BuyWindowStore = (*RedisBuyWindowStore)(nil)
