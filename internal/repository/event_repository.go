package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-reservation/internal/model"
)

// EventRepo persists events in the `events` table. All timestamps are
// stored in UTC.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, title, description, location, event_date, capacity, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var ev model.Event
	err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.Date,
		&ev.Capacity, &ev.Status, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

// Create inserts a new event row.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, ev.ID, ev.Title, ev.Description, ev.Location, ev.Date.UTC(),
		ev.Capacity, ev.Status, ev.CreatedAt.UTC(), ev.UpdatedAt.UTC())
	return err
}

// FindByID returns the event or ErrNotFound.
func (r *EventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return scanEvent(r.db.QueryRowContext(ctx, q, id))
}

// Update replaces the editable columns and returns the stored row.
func (r *EventRepo) Update(ctx context.Context, ev *model.Event) (*model.Event, error) {
	const q = `UPDATE events SET title = ?, description = ?, location = ?, event_date = ?, capacity = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, ev.Title, ev.Description, ev.Location, ev.Date.UTC(),
		ev.Capacity, time.Now().UTC(), ev.ID)
	if err != nil {
		return nil, err
	}
	// MySQL reports 0 affected rows when nothing changed, so existence is
	// decided by reading the row back.
	return r.FindByID(ctx, ev.ID)
}

// UpdateStatus moves the event from one status to another only if it is
// still in from.
func (r *EventRepo) UpdateStatus(ctx context.Context, id string, from, to model.EventStatus) (*model.Event, error) {
	const q = `UPDATE events SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, time.Now().UTC(), id, from)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusMismatch
	}
	return r.FindByID(ctx, id)
}

// List returns events in the given statuses (all when none are given),
// soonest first.
func (r *EventRepo) List(ctx context.Context, statuses ...model.EventStatus) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		q += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	q += ` ORDER BY event_date ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
