package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/model"
	"github.com/iliyamo/library-seat-reservation/internal/queue"
	"github.com/iliyamo/library-seat-reservation/internal/repository"
)

// BanDuration is how long a user is banned after reaching the point limit.
const BanDuration = 7 * 24 * time.Hour

// SweepResult counts what one sweep changed.
type SweepResult struct {
	LeavesExpired  int
	CheckInsMissed int
	UsersBanned    int
}

// Sweeper persists time-driven transitions: temporary leaves past their
// deadline and reservations nobody checked in to.
type Sweeper struct {
	db           *sql.DB
	reservations *repository.ReservationRepo
	users        *repository.UserRepo
	policy       PolicySource
	events       Publisher
	cache        *CacheGeneration
	log          *zap.Logger
	now          func() time.Time
}

func NewSweeper(db *sql.DB, reservations *repository.ReservationRepo, users *repository.UserRepo,
	policy PolicySource, events Publisher, cache *CacheGeneration, log *zap.Logger) *Sweeper {
	if events == nil {
		events = NopPublisher{}
	}
	return &Sweeper{
		db:           db,
		reservations: reservations,
		users:        users,
		policy:       policy,
		events:       events,
		cache:        cache,
		log:          log.Named("sweeper"),
		now:          time.Now,
	}
}

// SetClock replaces the time source.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if res, err := s.Sweep(ctx); err != nil {
			s.log.Error("sweep failed", zap.Error(err))
		} else if res != (SweepResult{}) {
			s.log.Info("sweep finished",
				zap.Int("leaves_expired", res.LeavesExpired),
				zap.Int("checkins_missed", res.CheckInsMissed),
				zap.Int("users_banned", res.UsersBanned))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Sweep applies both transitions once.  Rows are handled one transaction
// each; a failing row is logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	p, err := s.policy.Current(ctx)
	if err != nil {
		return res, err
	}
	now := s.now()

	if p.TemporaryLeaveDeadline > 0 {
		rows, err := s.reservations.ListLeaveExpired(ctx, now.Add(-p.TemporaryLeaveDeadline), p.TemporaryLeaveDeadline)
		if err != nil {
			return res, fmt.Errorf("list expired leaves: %w", err)
		}
		for _, r := range rows {
			done, err := s.expireLeave(ctx, r.ID, p, now)
			if err != nil {
				s.log.Warn("expire leave failed", zap.String("reservation_id", r.ID), zap.Error(err))
				continue
			}
			if done {
				res.LeavesExpired++
			}
		}
	}

	if p.CheckInDeadline > 0 {
		rows, err := s.reservations.ListMissedCheckIn(ctx, now.Add(-p.CheckInDeadline), p.CheckInDeadline)
		if err != nil {
			return res, fmt.Errorf("list missed check-ins: %w", err)
		}
		for _, r := range rows {
			done, banned, err := s.missCheckIn(ctx, r, p, now)
			if err != nil {
				s.log.Warn("missed check-in failed", zap.String("reservation_id", r.ID), zap.Error(err))
				continue
			}
			if done {
				res.CheckInsMissed++
			}
			if banned {
				res.UsersBanned++
			}
		}
	}

	if res.LeavesExpired+res.CheckInsMissed > 0 {
		s.cache.Bump(ctx)
	}
	return res, nil
}

// expireLeave ends a reservation whose holder did not return in time.  The
// row is locked and re-read, so a return that landed after the listing wins;
// it reports whether anything changed.
func (s *Sweeper) expireLeave(ctx context.Context, id string, p engine.Policy, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	r, err := s.reservations.LockByIDTx(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if r.TemporaryLeaveTime == nil {
		return false, nil
	}
	end := r.Engine().EffectiveEnd(now, p)
	if !end.Before(r.EndTime) {
		return false, nil
	}
	if err := s.reservations.SetEndTx(ctx, tx, r.ID, end); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true

	r.EndTime = end.UTC()
	s.publish(ctx, queue.EventLeaveExpired, *r, now)
	return true, nil
}

// missCheckIn ends a reservation nobody checked in to at the check-in
// deadline and charges its user.  The user and then the reservation are
// locked; a check-in committed after the listing leaves both untouched.  It
// reports whether the reservation was ended and whether the user got banned.
func (s *Sweeper) missCheckIn(ctx context.Context, listed model.Reservation, p engine.Policy, now time.Time) (done, banned bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	user, err := s.users.LockByIDTx(ctx, tx, listed.UserID)
	if err != nil {
		return false, false, err
	}
	r, err := s.reservations.LockByIDTx(ctx, tx, listed.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	end := r.BeginTime.Add(p.CheckInDeadline)
	if r.CheckInTime != nil || now.Before(end) || !r.EndTime.After(end) {
		return false, false, nil
	}

	if err := s.reservations.SetEndTx(ctx, tx, r.ID, end); err != nil {
		return false, false, err
	}
	if p.CheckInViolationPoints > 0 {
		if user.Points+p.CheckInViolationPoints >= p.PointsToBanUser && p.PointsToBanUser > 0 {
			if err := s.users.BanTx(ctx, tx, user.ID, now.Add(BanDuration), "missed check-in"); err != nil {
				return false, false, err
			}
			banned = true
		} else if err := s.users.AddPointsTx(ctx, tx, user.ID, p.CheckInViolationPoints); err != nil {
			return false, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, false, err
	}
	committed = true

	r.EndTime = end.UTC()
	s.publish(ctx, queue.EventCheckInMissed, *r, now)
	if banned {
		s.log.Info("user banned", zap.String("user_id", user.ID), zap.Time("until", now.Add(BanDuration)))
	}
	return true, banned, nil
}

func (s *Sweeper) publish(ctx context.Context, t queue.EventType, r model.Reservation, now time.Time) {
	if err := s.events.Publish(ctx, queue.NewReservationEvent(t, r, "", now)); err != nil {
		s.log.Warn("event publish failed", zap.String("type", string(t)), zap.Error(err))
	}
}
