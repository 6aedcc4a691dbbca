package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/library-seat-reservation/internal/config"
	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/queue"
	"github.com/iliyamo/library-seat-reservation/internal/repository"
)

// Monday 2024-06-03 in UTC; the test policy opens 08:00-22:00 on weekdays.
func at(hour, min int) time.Time { return time.Date(2024, 6, 3, hour, min, 0, 0, time.UTC) }

var (
	userCols = []string{"id", "email", "password_hash", "name", "phone", "id_card", "user_role", "admin_role",
		"points", "banned_until", "ban_reason", "is_active", "created_at", "updated_at"}
	seatCols = []string{"id", "available", "other_info", "created_at", "updated_at"}
	resCols  = []string{"id", "user_id", "seat_id", "begin_time", "end_time", "check_in_time", "temporary_leave_time", "created_at"}
)

type staticPolicy struct{ p engine.Policy }

func (s staticPolicy) Current(context.Context) (engine.Policy, error) { return s.p, nil }

func testPolicy(t *testing.T) engine.Policy {
	t.Helper()
	doc := config.DefaultPolicyDocument()
	doc.Timezone = "UTC"
	p, err := doc.Compile()
	require.NoError(t, err)
	return p
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) types() []queue.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db     *sql.DB
	mock   sqlmock.Sqlmock
	redis  *miniredis.Miniredis
	events *recordingPublisher
	svc    *ReservationService
	sweep  *Sweeper
}

func newFixture(t *testing.T, now time.Time) *fixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	events := &recordingPublisher{}
	gen := NewCacheGeneration(rdb, "seatcache:gen", zap.NewNop())
	policy := staticPolicy{p: testPolicy(t)}
	reservations := repository.NewReservationRepo(db)
	users := repository.NewUserRepo(db)

	svc := NewReservationService(db, repository.NewSeatRepo(db), reservations, users, policy, events, gen, zap.NewNop())
	svc.SetClock(func() time.Time { return now })
	sw := NewSweeper(db, reservations, users, policy, events, gen, zap.NewNop())
	sw.SetClock(func() time.Time { return now })

	return &fixture{db: db, mock: mock, redis: mr, events: events, svc: svc, sweep: sw}
}

func userRow(id, role string, points int, bannedUntil any) *sqlmock.Rows {
	ts := at(0, 0)
	return sqlmock.NewRows(userCols).
		AddRow(id, id+"@example.com", "hash", nil, nil, nil, role, nil, points, bannedUntil, nil, true, ts, ts)
}

func seatRow(id string, available bool) *sqlmock.Rows {
	ts := at(0, 0)
	return sqlmock.NewRows(seatCols).AddRow(id, available, nil, ts, ts)
}

func resRows() *sqlmock.Rows { return sqlmock.NewRows(resCols) }

func addRes(rows *sqlmock.Rows, id, user, seat string, begin, end time.Time, checkIn, leave any) *sqlmock.Rows {
	return rows.AddRow(id, user, seat, begin, end, checkIn, leave, at(0, 0))
}
