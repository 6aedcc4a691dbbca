package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/model"
	"github.com/iliyamo/library-seat-reservation/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var (
	ErrEmailExists  = errors.New("email already exists")
	ErrIDCardExists = errors.New("id card already registered")
)

const userColumns = `id,email,password_hash,name,phone,id_card,user_role,admin_role,points,banned_until,ban_reason,is_active,created_at,updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                        model.User
		role                     string
		name, phone, card, admin sql.NullString
		banReason                sql.NullString
		bannedUntil              sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &name, &phone, &card, &role, &admin,
		&u.Points, &bannedUntil, &banReason, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.UserRole = engine.Role(role)
	u.Name = stringPtr(name)
	u.Phone = stringPtr(phone)
	u.IDCard = stringPtr(card)
	u.AdminRole = stringPtr(admin)
	u.BannedUntil = timePtr(bannedUntil)
	u.BanReason = stringPtr(banReason)
	return &u, nil
}

// Create hashes the password, assigns a fresh id and inserts the user.  The
// id is written back into u.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	u.ID = uuid.NewString()
	u.PasswordHash = hash
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name, phone, id_card, user_role, admin_role) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, hash, nullString(u.Name), nullString(u.Phone), nullString(u.IDCard), string(u.UserRole), nullString(u.AdminRole))
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(err.Error(), "id_card") {
				return ErrIDCardExists
			}
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetByIDCard looks a user up by library card, as done at the front desk.
func (r *UserRepo) GetByIDCard(ctx context.Context, card string) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id_card=? LIMIT 1", strings.TrimSpace(card)))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// LockByIDTx reads the user row with FOR UPDATE so point updates and bans
// are not lost to concurrent sweeps.
func (r *UserRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	u, err := scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// AddPointsTx adds delta violation points to the user.
func (r *UserRepo) AddPointsTx(ctx context.Context, tx *sql.Tx, id string, delta int) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET points = points + ? WHERE id=?", delta, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BanTx bans the user until the given instant and resets their points.
func (r *UserRepo) BanTx(ctx context.Context, tx *sql.Tx, id string, until time.Time, reason string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET banned_until=?, ban_reason=?, points=0 WHERE id=?",
		until.UTC(), reason, id)
	return err
}

// SetBan sets or lifts (until == nil) a ban outside a sweep.
func (r *UserRepo) SetBan(ctx context.Context, id string, until *time.Time, reason *string) error {
	return r.updateOne(ctx, id,
		"UPDATE users SET banned_until=?, ban_reason=? WHERE id=?",
		nullTime(until), nullString(reason), id)
}

// SetAdminRole grants role, or revokes any admin role when role is nil.
func (r *UserRepo) SetAdminRole(ctx context.Context, id string, role *string) error {
	return r.updateOne(ctx, id, "UPDATE users SET admin_role=? WHERE id=?", nullString(role), id)
}

// UpdateProfile overwrites the contact details; nil clears a field.  A card
// number held by someone else yields ErrIDCardExists.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, name, phone, idCard *string) error {
	err := r.updateOne(ctx, id, "UPDATE users SET name=?, phone=?, id_card=? WHERE id=?",
		nullString(name), nullString(phone), nullString(idCard), id)
	if err != nil && isDuplicate(err) {
		return ErrIDCardExists
	}
	return err
}

// UpdatePassword stores a new bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.updateOne(ctx, id, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
}

// SetPointsTx overwrites the violation points.
func (r *UserRepo) SetPointsTx(ctx context.Context, tx *sql.Tx, id string, points int) error {
	_, err := tx.ExecContext(ctx, "UPDATE users SET points=? WHERE id=?", points, id)
	return err
}

// updateOne runs an UPDATE of a single user.  MySQL reports rows whose
// values did not change as unaffected, so a zero count is confirmed with a
// lookup before it becomes ErrNotFound.
func (r *UserRepo) updateOne(ctx context.Context, id, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// isInExpr is true while the user is checked in to a reservation running at
// the bound instant (given twice) and not on temporary leave.
const isInExpr = `EXISTS (SELECT 1 FROM reservations r WHERE r.user_id = u.id
        AND r.check_in_time IS NOT NULL AND r.temporary_leave_time IS NULL
        AND r.begin_time <= ? AND r.end_time > ?)`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildUserFilter(f model.UserFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		conds = append(conds, "(u.email LIKE ? OR u.name LIKE ? OR u.id_card LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if f.UserRole != "" {
		conds = append(conds, "u.user_role = ?")
		args = append(args, f.UserRole)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns users for the staff listing, oldest account first, and the
// number of users matching the filter.  now decides IsIn.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter, now time.Time) ([]model.UserListing, int, error) {
	where, args := buildUserFilter(f)

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users u"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT u.id, u.email, u.name, u.phone, u.id_card, u.user_role, u.admin_role, u.points,
        u.banned_until, u.ban_reason, ` + isInExpr + ` AS is_in FROM users u` + where +
		` ORDER BY u.created_at, u.id LIMIT ? OFFSET ?`
	qargs := append([]any{now.UTC(), now.UTC()}, args...)
	qargs = append(qargs, f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx, q, qargs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.UserListing
	for rows.Next() {
		var (
			item                     model.UserListing
			name, phone, card, admin sql.NullString
			banReason                sql.NullString
			bannedUntil              sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.Email, &name, &phone, &card, &item.UserRole, &admin, &item.Points,
			&bannedUntil, &banReason, &item.IsIn); err != nil {
			return nil, 0, err
		}
		item.Name = stringPtr(name)
		item.Phone = stringPtr(phone)
		item.IDCard = stringPtr(card)
		item.AdminRole = stringPtr(admin)
		item.BannedUntil = timePtr(bannedUntil)
		item.BanReason = stringPtr(banReason)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
