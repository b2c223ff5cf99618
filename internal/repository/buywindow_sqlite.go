package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"ge-offer-relay/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteBuyWindowStore implements BuyWindowStore using SQLite.
// Thread-safe with WAL mode; the default backend.
type SQLiteBuyWindowStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteBuyWindowStore opens (and if needed creates) the database at
// dbPath, e.g. "./data/buylimits.db".
func NewSQLiteBuyWindowStore(dbPath string) (*SQLiteBuyWindowStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	query := `
	CREATE TABLE IF NOT EXISTS buy_windows (
		item_id INTEGER PRIMARY KEY,
		first_buy_ms INTEGER NOT NULL,
		quantity_bought INTEGER NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buy_windows table: %w", err)
	}

	log.Printf("[SQLiteBuyWindowStore] Initialized with database: %s", dbPath)
	return &SQLiteBuyWindowStore{db: db}, nil
}

// Upsert inserts or replaces the record for its item.
func (s *SQLiteBuyWindowStore) Upsert(ctx context.Context, rec model.BuyWindowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO buy_windows (item_id, first_buy_ms, quantity_bought)
		VALUES (?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			first_buy_ms = excluded.first_buy_ms,
			quantity_bought = excluded.quantity_bought`

	_, err := s.db.ExecContext(ctx, query, rec.ItemID, rec.FirstBuy.UnixMilli(), rec.QuantityBought)
	if err != nil {
		return fmt.Errorf("failed to upsert buy window: %w", err)
	}
	return nil
}

// LoadAll returns every stored record.
func (s *SQLiteBuyWindowStore) LoadAll(ctx context.Context) ([]model.BuyWindowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
func (s *SQLiteBuyWindowStore) Delete(ctx context.Context, itemIDs []int) error {
	if len(itemIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

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
func (s *SQLiteBuyWindowStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteBuyWindowStore implements BuyWindowStore
var _ BuyWindowStore = (*SQLiteBuyWindowStore)(nil)
