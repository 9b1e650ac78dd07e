package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/rideshare/backend/internal/models"
)

// EventStore keeps the booking status history in PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Migrate creates the booking_events table if it doesn't exist.
func (s *EventStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS booking_events (
			id          BIGSERIAL    PRIMARY KEY,
			booking_id  VARCHAR(24)  NOT NULL,
			from_status VARCHAR(16)  NOT NULL,
			to_status   VARCHAR(16)  NOT NULL,
			actor       VARCHAR(255) NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create booking_events: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS booking_events_booking_idx
		ON booking_events (booking_id, created_at)
	`)
	if err != nil {
		return fmt.Errorf("index booking_events: %w", err)
	}
	return nil
}

func (s *EventStore) Record(ctx context.Context, ev *models.BookingEvent) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO booking_events (booking_id, from_status, to_status, actor)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		ev.BookingID, string(ev.From), string(ev.To), ev.Actor,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("record booking event: %w", err)
	}
	return nil
}

// ListByBooking returns a booking's events, oldest first.
func (s *EventStore) ListByBooking(ctx context.Context, bookingID string) ([]models.BookingEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, booking_id, from_status, to_status, actor, created_at
		 FROM booking_events WHERE booking_id = $1
		 ORDER BY created_at, id`, bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list booking events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.BookingEvent, error) {
		var ev models.BookingEvent
		var from, to string
		err := row.Scan(&ev.ID, &ev.BookingID, &from, &to, &ev.Actor, &ev.CreatedAt)
		ev.From, ev.To = models.Status(from), models.Status(to)
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("list booking events: %w", err)
	}
	return events, nil
}
