package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/library-seat-reservation/internal/model"
	"github.com/iliyamo/library-seat-reservation/internal/repository"
)

// ErrOwnAdminRole is returned when an admin tries to change their own role.
var ErrOwnAdminRole = errors.New("cannot change your own admin role")

// ListUsers pages through users for staff.
func (s *ReservationService) ListUsers(ctx context.Context, f model.UserFilter) ([]model.UserListing, int, error) {
	f.Limit = PageLimit(f.Limit)
	return s.users.List(ctx, f, s.now())
}

// SetAdminRole grants role to a user, or revokes it when role is nil.
func (s *ReservationService) SetAdminRole(ctx context.Context, id string, role *string, actor Actor) (*model.User, error) {
	if id == actor.UserID {
		return nil, ErrOwnAdminRole
	}
	if err := s.users.SetAdminRole(ctx, id, role); err != nil {
		return nil, err
	}
	granted := ""
	if role != nil {
		granted = *role
	}
	s.log.Info("admin role changed", zap.String("user_id", id), zap.String("admin_role", granted),
		zap.String("actor", actor.UserID))
	return s.users.GetByID(ctx, id)
}

// AdjustPoints adds delta violation points to a user; the total never drops
// below zero.  Adding points up to the policy's ban threshold bans the user
// for BanDuration and resets the points, as a missed check-in would.
func (s *ReservationService) AdjustPoints(ctx context.Context, id string, delta int, actor Actor) (*model.User, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	u, err := s.users.LockByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	total := max(u.Points+delta, 0)
	banned := delta > 0 && p.PointsToBanUser > 0 && total >= p.PointsToBanUser
	if banned {
		err = s.users.BanTx(ctx, tx, id, stamp(now.Add(BanDuration)), "violation points")
	} else {
		err = s.users.SetPointsTx(ctx, tx, id, total)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.cache.Bump(ctx)
	s.log.Info("points adjusted", zap.String("user_id", id), zap.Int("delta", delta),
		zap.Int("points", total), zap.Bool("banned", banned), zap.String("actor", actor.UserID))
	return s.users.GetByID(ctx, id)
}

// BootstrapAdmin grants the admin role to the account registered under
// email unless it already holds one.
func BootstrapAdmin(ctx context.Context, users *repository.UserRepo, email string, log *zap.Logger) error {
	u, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if u.IsAdmin() {
		return nil
	}
	role := model.AdminRoleAdmin
	if err := users.SetAdminRole(ctx, u.ID, &role); err != nil {
		return err
	}
	log.Info("bootstrap admin granted", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return nil
}
