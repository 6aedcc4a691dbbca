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

// Actor identifies who performs a reservation action.
type Actor struct {
	UserID string
	Admin  bool
}

// CreateInput is a reservation request.
type CreateInput struct {
	UserID string
	SeatID string
	Begin  time.Time
	End    time.Time
}

// SeatView is a seat with its derived status.
type SeatView struct {
	model.Seat
	Status engine.SeatStatus `json:"status"`
}

// Availability is the result of a seat listing query.
type Availability struct {
	Window engine.TimeRange `json:"window"`
	Seats  []SeatView       `json:"seats"`
}

// ReservationService runs every reservation workflow that touches storage.
// Creation validates under row locks on the user and the seat, so two
// requests racing for the same seat or by the same user are serialized and
// at most one of them is inserted.
type ReservationService struct {
	db           *sql.DB
	seats        *repository.SeatRepo
	reservations *repository.ReservationRepo
	users        *repository.UserRepo
	policy       PolicySource
	events       Publisher
	cache        *CacheGeneration
	log          *zap.Logger
	now          func() time.Time
}

func NewReservationService(db *sql.DB, seats *repository.SeatRepo, reservations *repository.ReservationRepo,
	users *repository.UserRepo, policy PolicySource, events Publisher, cache *CacheGeneration, log *zap.Logger) *ReservationService {
	if db == nil || seats == nil || reservations == nil || users == nil || policy == nil {
		panic("nil dependency passed to NewReservationService")
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &ReservationService{
		db:           db,
		seats:        seats,
		reservations: reservations,
		users:        users,
		policy:       policy,
		events:       events,
		cache:        cache,
		log:          log.Named("reservations"),
		now:          time.Now,
	}
}

// SetClock replaces the time source.
func (s *ReservationService) SetClock(now func() time.Time) { s.now = now }

// Policy returns the policy in force.
func (s *ReservationService) Policy(ctx context.Context) (engine.Policy, error) {
	return s.policy.Current(ctx)
}

// Availability computes the status of every seat for window, or for the
// rest of today's opening hours when window is nil.
func (s *ReservationService) Availability(ctx context.Context, window *engine.TimeRange) (Availability, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return Availability{}, err
	}
	now := s.now()

	w, open := engine.TimeRange{}, true
	if window != nil {
		w = *window
	} else {
		w, open = engine.DefaultWindow(p, now)
	}

	seats, err := s.seats.List(ctx)
	if err != nil {
		return Availability{}, fmt.Errorf("list seats: %w", err)
	}
	var rows []model.Reservation
	if open && w.End.After(w.Start) {
		if rows, err = s.reservations.ListOverlapping(ctx, w); err != nil {
			return Availability{}, fmt.Errorf("list reservations: %w", err)
		}
	}

	statuses := engine.CalculateAvailability(model.EngineSeats(seats), model.EngineReservations(rows), window, p, now)
	out := Availability{Window: w, Seats: make([]SeatView, 0, len(seats))}
	for _, seat := range seats {
		out.Seats = append(out.Seats, SeatView{Seat: seat, Status: statuses[seat.ID]})
	}
	return out, nil
}

// SeatDetail returns a seat, its status for the default window and the
// reservations on it that have not ended.
func (s *ReservationService) SeatDetail(ctx context.Context, id string) (SeatView, []model.ReservationWithUser, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return SeatView{}, nil, err
	}
	now := s.now()
	seat, err := s.seats.GetByID(ctx, id)
	if err != nil {
		return SeatView{}, nil, err
	}
	rows, err := s.reservations.ListActiveBySeat(ctx, id, now)
	if err != nil {
		return SeatView{}, nil, fmt.Errorf("list reservations: %w", err)
	}
	plain := make([]model.Reservation, 0, len(rows))
	for _, r := range rows {
		plain = append(plain, r.Reservation)
	}
	statuses := engine.CalculateAvailability([]engine.Seat{seat.Engine()}, model.EngineReservations(plain), nil, p, now)
	return SeatView{Seat: *seat, Status: statuses[seat.ID]}, rows, nil
}

// Check validates a proposal against a snapshot without locking or writing.
// The verdict may be stale by the time Create runs.
func (s *ReservationService) Check(ctx context.Context, in CreateInput) (engine.Outcome, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return engine.Outcome{}, err
	}
	now := s.now()

	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return engine.Outcome{}, err
	}
	if err := checkUser(user, now); err != nil {
		return engine.Outcome{}, err
	}
	seat, err := s.seats.GetByID(ctx, in.SeatID)
	if err != nil {
		return engine.Outcome{}, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return engine.Outcome{}, err
	}
	defer func() { _ = tx.Rollback() }()

	vin, err := s.validationInput(ctx, tx, in, user, seat, p, now)
	if err != nil {
		return engine.Outcome{}, err
	}
	return engine.ValidateReservation(vin), nil
}

// Create validates and stores a reservation.  Policy rejections come back
// as *engine.Rejection.
func (s *ReservationService) Create(ctx context.Context, in CreateInput, actor Actor) (*model.Reservation, error) {
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

	// Lock order is user then seat everywhere.
	user, err := s.users.LockByIDTx(ctx, tx, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkUser(user, now); err != nil {
		return nil, err
	}
	seat, err := s.seats.LockByIDTx(ctx, tx, in.SeatID)
	if err != nil {
		return nil, err
	}
	vin, err := s.validationInput(ctx, tx, in, user, seat, p, now)
	if err != nil {
		return nil, err
	}
	if outcome := engine.ValidateReservation(vin); !outcome.Accepted {
		return nil, outcome.Err()
	}

	res := &model.Reservation{
		UserID:    user.ID,
		SeatID:    seat.ID,
		BeginTime: in.Begin.UTC(),
		EndTime:   in.End.UTC(),
		CreatedAt: stamp(now),
	}
	if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, engine.Reject(engine.ReasonSeatTimeConflict, "").Err()
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.log.Info("reservation created",
		zap.String("reservation_id", res.ID),
		zap.String("user_id", res.UserID),
		zap.String("seat_id", res.SeatID),
		zap.String("actor", actor.UserID))
	s.afterChange(ctx, queue.EventCreated, *res, actor.UserID, now)
	return res, nil
}

func checkUser(u *model.User, now time.Time) error {
	if !u.IsActive {
		return repository.ErrNotFound
	}
	if u.IsBanned(now) {
		return ErrUserBanned
	}
	if !u.UserRole.Valid() {
		return ErrInvalidRole
	}
	return nil
}

func (s *ReservationService) validationInput(ctx context.Context, tx *sql.Tx, in CreateInput, user *model.User,
	seat *model.Seat, p engine.Policy, now time.Time) (engine.ValidationInput, error) {
	r := engine.TimeRange{Start: in.Begin, End: in.End}
	var seatRows []model.Reservation
	if r.End.After(r.Start) {
		var err error
		if seatRows, err = s.reservations.ListBySeatOverlappingTx(ctx, tx, seat.ID, r); err != nil {
			return engine.ValidationInput{}, fmt.Errorf("seat reservations: %w", err)
		}
	}
	userRows, err := s.reservations.ListPendingByUserTx(ctx, tx, user.ID, now)
	if err != nil {
		return engine.ValidationInput{}, fmt.Errorf("user reservations: %w", err)
	}
	return engine.ValidationInput{
		Proposal: engine.Proposal{
			SeatID: seat.ID,
			UserID: user.ID,
			Role:   user.UserRole,
			Range:  r,
		},
		Seat:             seat.Engine(),
		SeatReservations: model.EngineReservations(seatRows),
		UserReservations: model.EngineReservations(userRows),
		Policy:           p,
		Now:              now,
	}, nil
}

// transition locks a reservation, checks ownership and applies step.  step
// returns the event to publish.
func (s *ReservationService) transition(ctx context.Context, id string, actor Actor,
	step func(tx *sql.Tx, r *model.Reservation, p engine.Policy, now time.Time) (queue.EventType, error)) (*model.Reservation, error) {
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

	r, err := s.reservations.LockByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && r.UserID != actor.UserID {
		return nil, ErrNotOwner
	}
	ev, err := step(tx, r, p, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.log.Info("reservation updated",
		zap.String("reservation_id", r.ID),
		zap.String("event", string(ev)),
		zap.String("actor", actor.UserID))
	s.afterChange(ctx, ev, *r, actor.UserID, now)
	return r, nil
}

// stamp is the stored form of an instant: UTC, whole seconds.
func stamp(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

// inProgress reports whether r has begun and not effectively ended.
func inProgress(r *model.Reservation, p engine.Policy, now time.Time) bool {
	return !now.Before(r.BeginTime) && now.Before(r.Engine().EffectiveEnd(now, p))
}

// Cancel deletes a reservation that has not begun.
func (s *ReservationService) Cancel(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	return s.transition(ctx, id, actor, func(tx *sql.Tx, r *model.Reservation, _ engine.Policy, now time.Time) (queue.EventType, error) {
		if !now.Before(r.BeginTime) {
			return "", ErrAlreadyStarted
		}
		return queue.EventCancelled, s.reservations.DeleteTx(ctx, tx, r.ID)
	})
}

// Terminate ends a running reservation now.
func (s *ReservationService) Terminate(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	return s.transition(ctx, id, actor, func(tx *sql.Tx, r *model.Reservation, p engine.Policy, now time.Time) (queue.EventType, error) {
		end := stamp(now)
		if !inProgress(r, p, now) || !end.After(r.BeginTime) {
			return "", ErrNotStarted
		}
		r.EndTime = end
		return queue.EventTerminated, s.reservations.SetEndTx(ctx, tx, r.ID, r.EndTime)
	})
}

// CheckIn records arrival.  It is accepted from CheckInDeadline before the
// start until the reservation ends.
func (s *ReservationService) CheckIn(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	return s.transition(ctx, id, actor, func(tx *sql.Tx, r *model.Reservation, p engine.Policy, now time.Time) (queue.EventType, error) {
		if r.CheckInTime != nil {
			return "", ErrInvalidState
		}
		if now.Before(r.BeginTime.Add(-p.CheckInDeadline)) || !now.Before(r.Engine().EffectiveEnd(now, p)) {
			return "", ErrNotStarted
		}
		at := stamp(now)
		r.CheckInTime = &at
		return queue.EventCheckedIn, s.reservations.SetCheckInTx(ctx, tx, r.ID, at)
	})
}

// Leave marks a checked-in user as temporarily away.
func (s *ReservationService) Leave(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	return s.transition(ctx, id, actor, func(tx *sql.Tx, r *model.Reservation, p engine.Policy, now time.Time) (queue.EventType, error) {
		if !inProgress(r, p, now) {
			return "", ErrNotStarted
		}
		if r.CheckInTime == nil || r.TemporaryLeaveTime != nil {
			return "", ErrInvalidState
		}
		at := stamp(now)
		r.TemporaryLeaveTime = &at
		return queue.EventLeft, s.reservations.SetTemporaryLeaveTx(ctx, tx, r.ID, &at)
	})
}

// Return clears a temporary leave taken within the leave deadline.
func (s *ReservationService) Return(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	return s.transition(ctx, id, actor, func(tx *sql.Tx, r *model.Reservation, p engine.Policy, now time.Time) (queue.EventType, error) {
		if r.TemporaryLeaveTime == nil {
			return "", ErrInvalidState
		}
		if !inProgress(r, p, now) {
			return "", ErrNotStarted
		}
		r.TemporaryLeaveTime = nil
		return queue.EventReturned, s.reservations.SetTemporaryLeaveTx(ctx, tx, r.ID, nil)
	})
}

// afterChange bumps the listing cache and publishes the event.  Neither
// failure is reported to the caller.
func (s *ReservationService) afterChange(ctx context.Context, t queue.EventType, r model.Reservation, actor string, now time.Time) {
	s.cache.Bump(ctx)
	if err := s.events.Publish(ctx, queue.NewReservationEvent(t, r, actor, now)); err != nil {
		s.log.Warn("event publish failed", zap.String("type", string(t)), zap.Error(err))
	}
}

// ListFor pages through one user's reservations.
func (s *ReservationService) ListFor(ctx context.Context, userID string, limit, offset int) ([]model.Reservation, int, error) {
	return s.reservations.ListByUser(ctx, userID, PageLimit(limit), max(offset, 0))
}

// List is the admin listing.
func (s *ReservationService) List(ctx context.Context, f model.ReservationFilter) ([]model.ReservationWithUser, int, error) {
	f.Limit = PageLimit(f.Limit)
	f.Offset = max(f.Offset, 0)
	return s.reservations.List(ctx, f)
}

const maxPageSize = 100

// PageLimit maps a requested page size onto 1..maxPageSize, defaulting to 20.
func PageLimit(n int) int {
	if n <= 0 {
		return 20
	}
	return min(n, maxPageSize)
}
