package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	db  *sql.DB
	log *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	// busy_timeout keeps concurrent writers queued instead of failing fast
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{db: db, log: logger}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Профили покупателей и партнёров
		`CREATE TABLE IF NOT EXISTS profiles (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            email TEXT NOT NULL UNIQUE,
            firstname TEXT NOT NULL,
            lastname TEXT,
            payout_email TEXT,
            telegram_chat_id INTEGER,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS tours (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            price INTEGER NOT NULL,
            available INTEGER NOT NULL CHECK (available >= 0),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS hotels (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL,
            name TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            hotel_id INTEGER NOT NULL REFERENCES hotels(id),
            name TEXT NOT NULL,
            price INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS flights (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            price INTEGER NOT NULL
        )`,
		// Брони
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            buyer_id INTEGER NOT NULL,
            total_price INTEGER NOT NULL,
            captured BOOLEAN NOT NULL DEFAULT 0,
            hold_active BOOLEAN NOT NULL DEFAULT 1,
            payment_session_id TEXT NOT NULL UNIQUE,
            payer_token TEXT NOT NULL,
            redirect_url TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS booking_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id),
            type TEXT NOT NULL,
            tour_id INTEGER,
            room_id INTEGER,
            flight_id INTEGER,
            price INTEGER NOT NULL,
            quantity INTEGER NOT NULL,
            coupon_code TEXT,
            date_start TEXT,
            date_end TEXT,
            customers TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS coupon_codes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT NOT NULL UNIQUE,
            type TEXT NOT NULL,
            tour_id INTEGER,
            hotel_id INTEGER,
            percent INTEGER NOT NULL,
            creator_id INTEGER NOT NULL,
            date_start DATETIME NOT NULL,
            date_end DATETIME NOT NULL,
            quantity INTEGER NOT NULL,
            available INTEGER NOT NULL CHECK (available >= 0),
            active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Журнал платежей, только вставка
		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            email_sender TEXT NOT NULL,
            email_receiver TEXT NOT NULL,
            kind TEXT NOT NULL,
            amount INTEGER NOT NULL,
            payment_session_id TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS payout_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL,
            partner_id INTEGER NOT NULL,
            payout_email TEXT NOT NULL,
            amount INTEGER NOT NULL,
            payment_session_id TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS permissions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            role TEXT NOT NULL,
            resource TEXT NOT NULL,
            action TEXT NOT NULL,
            possession TEXT NOT NULL,
            UNIQUE(role, resource, action, possession)
        )`,
		`CREATE TABLE IF NOT EXISTS seed_versions (
            version INTEGER PRIMARY KEY,
            applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_payer_token ON bookings(payer_token)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_buyer_id ON bookings(buyer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_items_booking_id ON booking_items(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_items_room_id ON booking_items(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_items_flight_id ON booking_items(flight_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_session ON payments(payment_session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payout_queue_status ON payout_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %v", query, err)
		}
	}
	return nil
}
