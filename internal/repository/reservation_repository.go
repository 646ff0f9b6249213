package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/event-reservation/internal/model"
)

// ReservationRepo persists reservations in the `reservations` table. A
// generated active_key column with a unique index backs the one-active-
// reservation-per-user-and-event rule at the schema level.
type ReservationRepo struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, tracer: otel.Tracer("repository.reservation")}
}

// DB exposes the underlying handle for callers that need a transaction.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, user_id, event_id, status, created_at, updated_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(&res.ID, &res.UserID, &res.EventID, &res.Status, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// FindActiveByUserAndEvent returns the user's non-CANCELED reservation for
// the event or ErrNotFound.
func (r *ReservationRepo) FindActiveByUserAndEvent(ctx context.Context, userID, eventID string) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
        WHERE user_id = ? AND event_id = ? AND status <> 'CANCELED' LIMIT 1`
	return scanReservation(r.db.QueryRowContext(ctx, q, userID, eventID))
}

// CountByEvent counts the event's reservations whose status is not in excluded.
func (r *ReservationRepo) CountByEvent(ctx context.Context, eventID string, excluded ...model.ReservationStatus) (int, error) {
	return countByEvent(ctx, r.db, eventID, excluded)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countByEvent(ctx context.Context, q queryer, eventID string, excluded []model.ReservationStatus) (int, error) {
	query := `SELECT COUNT(*) FROM reservations WHERE event_id = ?`
	args := []any{eventID}
	if len(excluded) > 0 {
		query += ` AND status NOT IN (` + placeholders(len(excluded)) + `)`
		for _, s := range excluded {
			args = append(args, s)
		}
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Insert stores res after re-checking, under a row lock on the event, that
// the event is PUBLISHED, that the user holds no active reservation for it
// and that a slot is free. Concurrent admissions for the same event queue
// on the lock; admissions for different events do not contend.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.Reservation) error {
	ctx, span := r.tracer.Start(ctx, "ReservationRepo.Insert", trace.WithAttributes(
		attribute.String("event.id", res.EventID),
		attribute.String("user.id", res.UserID),
	))
	defer span.End()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = r.insertTx(ctx, res)
		if !isDeadlock(err) {
			break
		}
	}
	if err != nil && !isGuardError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func isGuardError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEventClosed) ||
		errors.Is(err, ErrDuplicateActive) || errors.Is(err, ErrCapacityReached)
}

func (r *ReservationRepo) insertTx(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		capacity int
		status   model.EventStatus
	)
	err = tx.QueryRowContext(ctx, `SELECT capacity, status FROM events WHERE id = ? FOR UPDATE`, res.EventID).
		Scan(&capacity, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if status != model.EventPublished {
		return ErrEventClosed
	}

	var dup int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = ? AND event_id = ? AND status <> 'CANCELED'`,
		res.UserID, res.EventID).Scan(&dup)
	if err != nil {
		return err
	}
	if dup > 0 {
		return ErrDuplicateActive
	}

	active, err := countByEvent(ctx, tx, res.EventID, model.CapacityExcluded)
	if err != nil {
		return err
	}
	if active >= capacity {
		return ErrCapacityReached
	}

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = res.CreatedAt
	}
	const ins = `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, ins, res.ID, res.UserID, res.EventID, res.Status, res.CreatedAt.UTC(), res.UpdatedAt.UTC())
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateActive
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// FindByID returns the reservation or ErrNotFound.
func (r *ReservationRepo) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, id))
}

// UpdateStatus moves the reservation from one status to another only if it
// is still in from. Zero affected rows means either the row is gone
// (ErrNotFound) or it moved on (ErrStatusMismatch).
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id string, from, to model.ReservationStatus) (*model.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepo.UpdateStatus", trace.WithAttributes(
		attribute.String("reservation.id", id),
		attribute.String("reservation.from", string(from)),
		attribute.String("reservation.to", string(to)),
	))
	defer span.End()

	const q = `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, time.Now().UTC(), id, from)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrDuplicateActive
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
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

// ListByEvent returns the event's reservations, oldest first.
func (r *ReservationRepo) ListByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE event_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// ListByUser returns the user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// CountByStatus returns per-status counts for the event in one query.
func (r *ReservationRepo) CountByStatus(ctx context.Context, eventID string) (map[model.ReservationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM reservations WHERE event_id = ? GROUP BY status`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.ReservationStatus]int)
	for rows.Next() {
		var (
			status model.ReservationStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
