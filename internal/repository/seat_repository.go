package repository // repository defines data access for seats

import (
	"context"
	"database/sql"

	"github.com/iliyamo/library-seat-reservation/internal/model"
)

// SeatRepo provides methods to work with seats in the database.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatColumns = `id, available, other_info, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (*model.Seat, error) {
	var (
		s     model.Seat
		other sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Available, &other, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.OtherInfo = stringPtr(other)
	return &s, nil
}

// Create inserts a seat.  A seat code that already exists yields ErrConflict.
func (r *SeatRepo) Create(ctx context.Context, s *model.Seat) error {
	const q = `INSERT INTO seats (id, available, other_info) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, s.ID, s.Available, nullString(s.OtherInfo)); err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// List returns every seat ordered by code.
func (r *SeatRepo) List(ctx context.Context) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+seatColumns+` FROM seats ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID retrieves a seat by its code.
func (r *SeatRepo) GetByID(ctx context.Context, id string) (*model.Seat, error) {
	s, err := scanSeat(r.db.QueryRowContext(ctx, `SELECT `+seatColumns+` FROM seats WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// LockByIDTx reads a seat with SELECT ... FOR UPDATE.  Reservation writers
// for the same seat serialize on this row lock, which is what makes the
// validate-then-insert sequence safe.
func (r *SeatRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Seat, error) {
	s, err := scanSeat(tx.QueryRowContext(ctx, `SELECT `+seatColumns+` FROM seats WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Update changes the administrative switch and the free text of a seat.
func (r *SeatRepo) Update(ctx context.Context, id string, available bool, otherInfo *string) error {
	const q = `UPDATE seats SET available = ?, other_info = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, available, nullString(otherInfo), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero affected rows when nothing changed; tell that
		// apart from a missing seat.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
