package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"didauday/internal/models"
)

func (db *DB) CreateTour(ctx context.Context, tour *models.Tour) error {
	query := `INSERT INTO tours (owner_id, name, price, available) VALUES (?, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query, tour.OwnerID, tour.Name, tour.Price, tour.Available)
	if err != nil {
		return fmt.Errorf("failed to create tour: %w", err)
	}
	tour.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) GetTour(ctx context.Context, id int64) (*models.Tour, error) {
	query := `SELECT id, owner_id, name, price, available FROM tours WHERE id = ?`
	var t models.Tour
	err := db.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.OwnerID, &t.Name, &t.Price, &t.Available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}
	return &t, nil
}

// ReserveTourCapacity decrements available seats with a guarded update.
// The guard and the decrement are one statement, so two concurrent
// reservations of the last unit cannot both succeed.
func (db *DB) ReserveTourCapacity(ctx context.Context, tourID, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid quantity %d", quantity)
	}
	query := `UPDATE tours SET available = available - ?, updated_at = ?
              WHERE id = ? AND available >= ?`
	result, err := db.db.ExecContext(ctx, query, quantity, time.Now(), tourID, quantity)
	if err != nil {
		return fmt.Errorf("failed to reserve tour capacity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotAvailable
	}
	return nil
}

// ReleaseTourCapacity restores seats after a cancellation or a failed
// orchestration step. Safe to call as a saga compensation.
func (db *DB) ReleaseTourCapacity(ctx context.Context, tourID, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid quantity %d", quantity)
	}
	query := `UPDATE tours SET available = available + ?, updated_at = ? WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query, quantity, time.Now(), tourID)
	if err != nil {
		return fmt.Errorf("failed to release tour capacity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) CreateHotel(ctx context.Context, hotel *models.Hotel) error {
	result, err := db.db.ExecContext(ctx,
		`INSERT INTO hotels (owner_id, name) VALUES (?, ?)`, hotel.OwnerID, hotel.Name)
	if err != nil {
		return fmt.Errorf("failed to create hotel: %w", err)
	}
	hotel.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	result, err := db.db.ExecContext(ctx,
		`INSERT INTO rooms (hotel_id, name, price) VALUES (?, ?, ?)`,
		room.HotelID, room.Name, room.Price)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	room.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	var r models.Room
	err := db.db.QueryRowContext(ctx,
		`SELECT id, hotel_id, name, price FROM rooms WHERE id = ?`, id).
		Scan(&r.ID, &r.HotelID, &r.Name, &r.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &r, nil
}

func (db *DB) GetHotel(ctx context.Context, id int64) (*models.Hotel, error) {
	var h models.Hotel
	err := db.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name FROM hotels WHERE id = ?`, id).
		Scan(&h.ID, &h.OwnerID, &h.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hotel: %w", err)
	}
	return &h, nil
}

func (db *DB) CreateFlight(ctx context.Context, flight *models.Flight) error {
	result, err := db.db.ExecContext(ctx,
		`INSERT INTO flights (owner_id, name, price) VALUES (?, ?, ?)`,
		flight.OwnerID, flight.Name, flight.Price)
	if err != nil {
		return fmt.Errorf("failed to create flight: %w", err)
	}
	flight.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) GetFlight(ctx context.Context, id int64) (*models.Flight, error) {
	var f models.Flight
	err := db.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, price FROM flights WHERE id = ?`, id).
		Scan(&f.ID, &f.OwnerID, &f.Name, &f.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}
	return &f, nil
}
