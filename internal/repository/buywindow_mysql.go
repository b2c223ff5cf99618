package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"ge-offer-relay/internal/model"
)

// MySQLBuyWindowStore implements BuyWindowStore using MySQL, for deployments
// that already run a central MySQL instance.
type MySQLBuyWindowStore struct {
	db *sql.DB
}

// NewMySQLBuyWindowStore wraps an open MySQL connection and ensures the
// buy_windows table exists.
func NewMySQLBuyWindowStore(db *sql.DB) (*MySQLBuyWindowStore, error) {
	query := `
	CREATE TABLE IF NOT EXISTS buy_windows (
		item_id INT NOT NULL PRIMARY KEY,
		first_buy_ms BIGINT NOT NULL,
		quantity_bought INT NOT NULL
	)`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create buy_windows table: %w", err)
	}

	log.Printf("[MySQLBuyWindowStore] Initialized")
	return &MySQLBuyWindowStore{db: db}, nil
}

// Upsert inserts or replaces the record for its item.
func (s *MySQLBuyWindowStore) Upsert(ctx context.Context, rec model.BuyWindowRecord) error {
	query := `
		INSERT INTO buy_windows (item_id, first_buy_ms, quantity_bought)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			first_buy_ms = VALUES(first_buy_ms),
			quantity_bought = VALUES(quantity_bought)`

	_, err := s.db.ExecContext(ctx, query, rec.ItemID, rec.FirstBuy.UnixMilli(), rec.QuantityBought)
	if err != nil {
		return fmt.Errorf("failed to upsert buy window: %w", err)
	}
	return nil
}

// LoadAll returns every stored record.
func (s *MySQLBuyWindowStore) LoadAll(ctx context.Context) ([]model.BuyWindowRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, first_buy_ms, quantity_bought FROM buy_windows`)
	if err != nil {
		return nil, fmt.Errorf("failed to load buy windows: %w", err)
	}
	defer rows.Close()

	var records []model.BuyWindowRecord
	for rows.Next() {
		var itemID, quantity int
		var firstBuyMS int64
		if err := rows.Scan(&itemID, &firstBuyMS, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan buy window row: %w", err)
		}
		records = append(records, model.BuyWindowRecord{
			ItemID:         itemID,
			FirstBuy:       time.UnixMilli(firstBuyMS),
			QuantityBought: quantity,
		})
	}
	return records, rows.Err()
}

// Delete removes the records for the given items.
func (s *MySQLBuyWindowStore) Delete(ctx context.Context, itemIDs []int) error {
	if len(itemIDs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	args := make([]interface{}, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM buy_windows WHERE item_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to delete buy windows: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *MySQLBuyWindowStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLBuyWindowStore implements BuyWindowStore
var _ BuyWindowStore = (*MySQLBuyWindowStore)(nil)
