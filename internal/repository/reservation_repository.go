package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/model"
)

// ReservationRepo reads and writes the reservations table.  All timestamps
// are stored in UTC; callers convert to the policy location when needed.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so services can open transactions that
// span several repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, user_id, seat_id, begin_time, end_time, check_in_time, temporary_leave_time, created_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res            model.Reservation
		checkIn, leave sql.NullTime
	)
	if err := row.Scan(&res.ID, &res.UserID, &res.SeatID, &res.BeginTime, &res.EndTime,
		&checkIn, &leave, &res.CreatedAt); err != nil {
		return nil, err
	}
	res.CheckInTime = timePtr(checkIn)
	res.TemporaryLeaveTime = timePtr(leave)
	return &res, nil
}

func queryReservations(ctx context.Context, q querier, query string, args ...any) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTx inserts a reservation within the caller's transaction.  An empty
// ID is replaced with a fresh uuid.  A duplicate key maps to ErrConflict.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	const q = `INSERT INTO reservations (id, user_id, seat_id, begin_time, end_time) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, res.ID, res.UserID, res.SeatID, dbTime(res.BeginTime), dbTime(res.EndTime)); err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetByID fetches a reservation.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// LockByIDTx fetches a reservation with FOR UPDATE.
func (r *ReservationRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// ListOverlapping returns every reservation whose stored range intersects
// [start, end).  Effective ranges are never longer than stored ones, so the
// result is a superset of what the availability calculation needs.
func (r *ReservationRepo) ListOverlapping(ctx context.Context, w engine.TimeRange) ([]model.Reservation, error) {
	return queryReservations(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations WHERE begin_time < ? AND end_time > ? ORDER BY seat_id, begin_time`,
		w.End.UTC(), w.Start.UTC())
}

// ListBySeatOverlappingTx is ListOverlapping narrowed to one seat and run
// inside the locking transaction.
func (r *ReservationRepo) ListBySeatOverlappingTx(ctx context.Context, tx *sql.Tx, seatID string, w engine.TimeRange) ([]model.Reservation, error) {
	return queryReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE seat_id = ? AND begin_time < ? AND end_time > ? ORDER BY begin_time`,
		seatID, w.End.UTC(), w.Start.UTC())
}

// ListPendingByUserTx returns the user's reservations that have not ended
// at now.
func (r *ReservationRepo) ListPendingByUserTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) ([]model.Reservation, error) {
	return queryReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? AND end_time > ? ORDER BY begin_time`,
		userID, now.UTC())
}

// ListActiveBySeat returns the reservations of a seat that have not ended.
func (r *ReservationRepo) ListActiveBySeat(ctx context.Context, seatID string, now time.Time) ([]model.ReservationWithUser, error) {
	f := model.ReservationFilter{SeatID: seatID, EndTimeStart: &now}
	out, _, err := r.List(ctx, f)
	return out, err
}

// ListByUser returns one page of the user's reservations, newest first, and
// the total count.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Reservation, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := queryReservations(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY begin_time DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// buildFilter renders the WHERE clause of the admin listing.
func buildFilter(f model.ReservationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.UserID != "" {
		add("r.user_id = ?", f.UserID)
	}
	if f.UserRole != "" {
		add("u.user_role = ?", f.UserRole)
	}
	if f.SeatID != "" {
		add("r.seat_id = ?", f.SeatID)
	}
	if f.BeginTimeStart != nil {
		add("r.begin_time >= ?", f.BeginTimeStart.UTC())
	}
	if f.BeginTimeEnd != nil {
		add("r.begin_time < ?", f.BeginTimeEnd.UTC())
	}
	if f.EndTimeStart != nil {
		add("r.end_time > ?", f.EndTimeStart.UTC())
	}
	if f.EndTimeEnd != nil {
		add("r.end_time <= ?", f.EndTimeEnd.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns reservations joined with their user, filtered and paged, plus
// the number of rows matching the filter.  A zero Limit returns every row.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.ReservationWithUser, int, error) {
	where, args := buildFilter(f)
	const from = ` FROM reservations r JOIN users u ON u.id = r.user_id`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT r.id, r.user_id, r.seat_id, r.begin_time, r.end_time, r.check_in_time, r.temporary_leave_time, r.created_at,
        u.email, u.name, u.user_role, u.admin_role, u.points, u.banned_until, u.ban_reason` + from + where + ` ORDER BY r.begin_time`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.ReservationWithUser
	for rows.Next() {
		var (
			item             model.ReservationWithUser
			u                model.UserSummary
			checkIn, leave   sql.NullTime
			name, admin, why sql.NullString
			bannedUntil      sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.SeatID, &item.BeginTime, &item.EndTime,
			&checkIn, &leave, &item.CreatedAt,
			&u.Email, &name, &u.UserRole, &admin, &u.Points, &bannedUntil, &why); err != nil {
			return nil, 0, err
		}
		item.CheckInTime = timePtr(checkIn)
		item.TemporaryLeaveTime = timePtr(leave)
		u.ID = item.UserID
		u.Name = stringPtr(name)
		u.AdminRole = stringPtr(admin)
		u.BannedUntil = timePtr(bannedUntil)
		u.BanReason = stringPtr(why)
		item.User = &u
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// DeleteTx removes a reservation (cancellation before it begins).
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEndTx moves the end of a reservation.
func (r *ReservationRepo) SetEndTx(ctx context.Context, tx *sql.Tx, id string, end time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE reservations SET end_time = ? WHERE id = ?`, dbTime(end), id)
	return err
}

// SetCheckInTx records the check-in instant.
func (r *ReservationRepo) SetCheckInTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE reservations SET check_in_time = ? WHERE id = ?`, dbTime(at), id)
	return err
}

// SetTemporaryLeaveTx sets (at != nil) or clears the temporary leave mark.
func (r *ReservationRepo) SetTemporaryLeaveTx(ctx context.Context, tx *sql.Tx, id string, at *time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE reservations SET temporary_leave_time = ? WHERE id = ?`, nullTime(at), id)
	return err
}

// ListLeaveExpired returns reservations whose temporary leave started at or
// before cutoff and whose stored end still lies beyond leave + deadline.
// Once the sweeper has moved end_time the row no longer matches.
func (r *ReservationRepo) ListLeaveExpired(ctx context.Context, cutoff time.Time, deadline time.Duration) ([]model.Reservation, error) {
	return queryReservations(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations
        WHERE temporary_leave_time IS NOT NULL AND temporary_leave_time <= ?
        AND end_time > DATE_ADD(temporary_leave_time, INTERVAL ? SECOND)`,
		cutoff.UTC(), int64(deadline/time.Second))
}

// ListMissedCheckIn returns reservations that began at or before cutoff
// without a check-in and whose stored end lies beyond begin + deadline.
func (r *ReservationRepo) ListMissedCheckIn(ctx context.Context, cutoff time.Time, deadline time.Duration) ([]model.Reservation, error) {
	return queryReservations(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations
        WHERE check_in_time IS NULL AND begin_time <= ?
        AND end_time > DATE_ADD(begin_time, INTERVAL ? SECOND)`,
		cutoff.UTC(), int64(deadline/time.Second))
}
