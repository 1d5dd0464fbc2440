package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maksimarefev/acdm-platform/internal/models"
)

// DB wraps a PostgreSQL connection pool. Postgres is the system of record;
// the engines hold the live state in memory.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// CreateUser inserts a new user with its platform address
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string, address models.Address) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash, address) VALUES ($1, $2, $3) RETURNING id, username, password_hash, address, created_at",
		username, passwordHash, string(address)).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Address, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, address, created_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Address, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// EventRecord is a persisted engine event.
type EventRecord struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// InsertEvent appends an engine event to the event log
func (db *DB) InsertEvent(ctx context.Context, event models.Event) (*EventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	record := &EventRecord{}
	err = db.Pool.QueryRow(ctx,
		"INSERT INTO platform_events (name, payload) VALUES ($1, $2::jsonb) RETURNING id, name, payload, created_at",
		event.EventName(), string(payload)).Scan(&record.ID, &record.Name, &record.Payload, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return record, nil
}

// ListEvents retrieves the most recent events, newest first
func (db *DB) ListEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, name, payload, created_at FROM platform_events ORDER BY id DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var record EventRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.Payload, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// SaveOrder upserts an order history row mirroring the in-memory order book
func (db *DB) SaveOrder(ctx context.Context, order *models.Order) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO orders (id, owner_address, amount, price, active, round, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET amount = $3, active = $5`,
		int64(order.ID), string(order.Owner), order.Amount.Dec(), order.Price.Dec(),
		order.Active, int64(order.Round), order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// GetUserOrders retrieves all order history rows for an owner address
func (db *DB) GetUserOrders(ctx context.Context, owner models.Address) ([]models.Order, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, owner_address, amount, price, active, round, created_at FROM orders WHERE owner_address = $1 ORDER BY id",
		string(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// GetOrders retrieves every order history row
func (db *DB) GetOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, owner_address, amount, price, active, round, created_at FROM orders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanOrders(rows rowScanner) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var (
			order         models.Order
			id, round     int64
			owner         string
			amount, price string
		)
		if err := rows.Scan(&id, &owner, &amount, &price, &order.Active, &round, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.ID = uint64(id)
		order.Round = uint64(round)
		order.Owner = models.Address(owner)

		var err error
		if order.Amount, err = uint256.FromDecimal(amount); err != nil {
			return nil, fmt.Errorf("invalid order amount %q: %w", amount, err)
		}
		if order.Price, err = uint256.FromDecimal(price); err != nil {
			return nil, fmt.Errorf("invalid order price %q: %w", price, err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
