package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/queue"
	"github.com/iliyamo/library-seat-reservation/internal/repository"
)

const (
	qLockUser    = "SELECT (.+) FROM users WHERE id=\\? FOR UPDATE"
	qLockSeat    = "SELECT (.+) FROM seats WHERE id = \\? FOR UPDATE"
	qSeatRes     = "SELECT (.+) FROM reservations WHERE seat_id = \\? AND begin_time < \\? AND end_time > \\?"
	qUserPending = "SELECT (.+) FROM reservations WHERE user_id = \\? AND end_time > \\?"
	qLockRes     = "SELECT (.+) FROM reservations WHERE id = \\? FOR UPDATE"
)

func expectCreateReads(f *fixture, now time.Time, seatAvailable bool, seatRes, userRes *sqlmock.Rows, begin, end time.Time) {
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockUser).WithArgs("u1").WillReturnRows(userRow("u1", "student", 0, nil))
	f.mock.ExpectQuery(qLockSeat).WithArgs("A01").WillReturnRows(seatRow("A01", seatAvailable))
	f.mock.ExpectQuery(qSeatRes).WithArgs("A01", end, begin).WillReturnRows(seatRes)
	f.mock.ExpectQuery(qUserPending).WithArgs("u1", now).WillReturnRows(userRes)
}

func TestCreate_Accepted(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, now)
	begin, end := at(14, 0), at(16, 0)

	seatRes := addRes(resRows(), "r0", "u2", "A01", at(12, 0), at(14, 0), nil, nil)
	expectCreateReads(f, now, true, seatRes, resRows(), begin, end)
	f.mock.ExpectExec("INSERT INTO reservations").
		WithArgs(sqlmock.AnyArg(), "u1", "A01", begin, end).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	res, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", SeatID: "A01", Begin: begin, End: end}, Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.True(t, res.BeginTime.Equal(begin))
	assert.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, []queue.EventType{queue.EventCreated}, f.events.types())
	gen, err := f.redis.Get("seatcache:gen")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
}

func TestCreate_SeatConflictRollsBack(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, now)
	begin, end := at(14, 0), at(16, 0)

	seatRes := addRes(resRows(), "r9", "u2", "A01", at(15, 0), at(17, 0), nil, nil)
	expectCreateReads(f, now, true, seatRes, resRows(), begin, end)
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", SeatID: "A01", Begin: begin, End: end}, Actor{UserID: "u1"})
	reason, ok := engine.RejectionReason(err)
	require.True(t, ok, "expected rejection, got %v", err)
	assert.Equal(t, engine.ReasonSeatTimeConflict, reason)
	assert.Empty(t, f.events.types())
	assert.False(t, f.redis.Exists("seatcache:gen"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate_DisabledSeat(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, now)
	begin, end := at(14, 0), at(15, 0)

	expectCreateReads(f, now, false, resRows(), resRows(), begin, end)
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", SeatID: "A01", Begin: begin, End: end}, Actor{UserID: "u1"})
	reason, _ := engine.RejectionReason(err)
	assert.Equal(t, engine.ReasonSeatDisabled, reason)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate_DuplicateInsertIsSeatConflict(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, now)
	begin, end := at(14, 0), at(15, 0)

	expectCreateReads(f, now, true, resRows(), resRows(), begin, end)
	f.mock.ExpectExec("INSERT INTO reservations").WillReturnError(&mysql.MySQLError{Number: 1062})
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", SeatID: "A01", Begin: begin, End: end}, Actor{UserID: "u1"})
	reason, ok := engine.RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, engine.ReasonSeatTimeConflict, reason)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate_BannedUser(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, now)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockUser).WithArgs("u1").WillReturnRows(userRow("u1", "student", 0, at(23, 0)))
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", SeatID: "A01", Begin: at(14, 0), End: at(15, 0)}, Actor{UserID: "u1"})
	assert.ErrorIs(t, err, ErrUserBanned)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate_UnknownSeat(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, now)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockUser).WithArgs("u1").WillReturnRows(userRow("u1", "student", 0, nil))
	f.mock.ExpectQuery(qLockSeat).WithArgs("Z9").WillReturnRows(sqlmock.NewRows(seatCols))
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", SeatID: "Z9", Begin: at(14, 0), End: at(15, 0)}, Actor{UserID: "u1"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheck_UserDoubleBooking(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, now)
	begin, end := at(15, 0), at(16, 0)
	ts := at(0, 0)

	f.mock.ExpectQuery("SELECT (.+) FROM users WHERE id=\\? LIMIT 1").WithArgs("u1").WillReturnRows(userRow("u1", "student", 0, nil))
	f.mock.ExpectQuery("SELECT (.+) FROM seats WHERE id = \\?").WithArgs("B02").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow("B02", true, nil, ts, ts))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qSeatRes).WithArgs("B02", end, begin).WillReturnRows(resRows())
	f.mock.ExpectQuery(qUserPending).WithArgs("u1", now).
		WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(14, 0), at(16, 0), nil, nil))
	f.mock.ExpectRollback()

	out, err := f.svc.Check(context.Background(), CreateInput{UserID: "u1", SeatID: "B02", Begin: begin, End: end})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, engine.ReasonUserDoubleBooking, out.Reason)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		begin   time.Time
		wantErr error
	}{
		{"owner before begin", Actor{UserID: "u1"}, at(14, 0), nil},
		{"admin before begin", Actor{UserID: "adm", Admin: true}, at(14, 0), nil},
		{"someone else", Actor{UserID: "u2"}, at(14, 0), ErrNotOwner},
		{"already started", Actor{UserID: "u1"}, at(9, 0), ErrAlreadyStarted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := at(10, 0)
			f := newFixture(t, now)
			f.mock.ExpectBegin()
			f.mock.ExpectQuery(qLockRes).WithArgs("r1").
				WillReturnRows(addRes(resRows(), "r1", "u1", "A01", tt.begin, tt.begin.Add(time.Hour), nil, nil))
			if tt.wantErr == nil {
				f.mock.ExpectExec("DELETE FROM reservations WHERE id = \\?").WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
				f.mock.ExpectCommit()
			} else {
				f.mock.ExpectRollback()
			}

			_, err := f.svc.Cancel(context.Background(), "r1", tt.actor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.events.types())
			} else {
				require.NoError(t, err)
				assert.Equal(t, []queue.EventType{queue.EventCancelled}, f.events.types())
			}
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestTerminate(t *testing.T) {
	now := at(10, 7)
	f := newFixture(t, now)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockRes).WithArgs("r1").
		WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(12, 0), at(9, 2), nil))
	f.mock.ExpectExec("UPDATE reservations SET end_time = \\?").WithArgs(now, "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	r, err := f.svc.Terminate(context.Background(), "r1", Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, r.EndTime.Equal(now))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTerminate_StoresWholeSeconds(t *testing.T) {
	now := at(10, 7).Add(700 * time.Millisecond)
	f := newFixture(t, now)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockRes).WithArgs("r1").
		WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(12, 0), at(9, 2), nil))
	f.mock.ExpectExec("UPDATE reservations SET end_time = \\?").WithArgs(at(10, 7), "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	r, err := f.svc.Terminate(context.Background(), "r1", Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, at(10, 7), r.EndTime)
	assert.False(t, r.EndTime.After(now))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTerminate_WithinFirstSecond(t *testing.T) {
	f := newFixture(t, at(9, 0).Add(300*time.Millisecond))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockRes).WithArgs("r1").
		WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(12, 0), nil, nil))
	f.mock.ExpectRollback()

	_, err := f.svc.Terminate(context.Background(), "r1", Actor{UserID: "u1"})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTerminate_NotInProgress(t *testing.T) {
	f := newFixture(t, at(10, 0))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockRes).WithArgs("r1").
		WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(14, 0), at(15, 0), nil, nil))
	f.mock.ExpectRollback()

	_, err := f.svc.Terminate(context.Background(), "r1", Actor{UserID: "u1"})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInLeaveReturn(t *testing.T) {
	t.Run("check in within the early window", func(t *testing.T) {
		now := at(8, 50)
		f := newFixture(t, now)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(qLockRes).WithArgs("r1").
			WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(11, 0), nil, nil))
		f.mock.ExpectExec("UPDATE reservations SET check_in_time = \\?").WithArgs(now, "r1").WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		r, err := f.svc.CheckIn(context.Background(), "r1", Actor{UserID: "u1"})
		require.NoError(t, err)
		require.NotNil(t, r.CheckInTime)
		assert.Equal(t, []queue.EventType{queue.EventCheckedIn}, f.events.types())
	})

	t.Run("check in too early", func(t *testing.T) {
		f := newFixture(t, at(8, 30))
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(qLockRes).WithArgs("r1").
			WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(11, 0), nil, nil))
		f.mock.ExpectRollback()

		_, err := f.svc.CheckIn(context.Background(), "r1", Actor{UserID: "u1"})
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("leave requires check in", func(t *testing.T) {
		f := newFixture(t, at(10, 0))
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(qLockRes).WithArgs("r1").
			WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(11, 0), nil, nil))
		f.mock.ExpectRollback()

		_, err := f.svc.Leave(context.Background(), "r1", Actor{UserID: "u1"})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("leave then return", func(t *testing.T) {
		now := at(10, 0)
		f := newFixture(t, now)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(qLockRes).WithArgs("r1").
			WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(12, 0), at(9, 1), nil))
		f.mock.ExpectExec("UPDATE reservations SET temporary_leave_time = \\?").WithArgs(now, "r1").WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()
		_, err := f.svc.Leave(context.Background(), "r1", Actor{UserID: "u1"})
		require.NoError(t, err)

		f.mock.ExpectBegin()
		f.mock.ExpectQuery(qLockRes).WithArgs("r1").
			WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(12, 0), at(9, 1), at(9, 30)))
		f.mock.ExpectExec("UPDATE reservations SET temporary_leave_time = \\?").WithArgs(nil, "r1").WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()
		r, err := f.svc.Return(context.Background(), "r1", Actor{UserID: "u1"})
		require.NoError(t, err)
		assert.Nil(t, r.TemporaryLeaveTime)
		assert.Equal(t, []queue.EventType{queue.EventLeft, queue.EventReturned}, f.events.types())
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("return after the leave deadline", func(t *testing.T) {
		f := newFixture(t, at(11, 0))
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(qLockRes).WithArgs("r1").
			WillReturnRows(addRes(resRows(), "r1", "u1", "A01", at(9, 0), at(12, 0), at(9, 1), at(9, 30)))
		f.mock.ExpectRollback()

		_, err := f.svc.Return(context.Background(), "r1", Actor{UserID: "u1"})
		assert.ErrorIs(t, err, ErrNotStarted)
	})
}

func TestAvailability(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, now)
	ts := at(0, 0)
	w := engine.TimeRange{Start: at(14, 0), End: at(15, 0)}

	f.mock.ExpectQuery("SELECT (.+) FROM seats ORDER BY id").
		WillReturnRows(sqlmock.NewRows(seatCols).
			AddRow("A01", true, nil, ts, ts).
			AddRow("A02", true, nil, ts, ts).
			AddRow("A03", true, nil, ts, ts).
			AddRow("A04", false, nil, ts, ts))
	f.mock.ExpectQuery("SELECT (.+) FROM reservations WHERE begin_time < \\? AND end_time > \\?").
		WithArgs(w.End, w.Start).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow("r1", "u1", "A01", at(14, 0), at(15, 0), nil, nil, ts).
			AddRow("r2", "u2", "A02", at(14, 0), at(14, 30), nil, nil, ts))

	got, err := f.svc.Availability(context.Background(), &w)
	require.NoError(t, err)
	status := map[string]engine.SeatStatus{}
	for _, s := range got.Seats {
		status[s.ID] = s.Status
	}
	assert.Equal(t, map[string]engine.SeatStatus{
		"A01": engine.StatusReserved,
		"A02": engine.StatusPartiallyReserved,
		"A03": engine.StatusAvailable,
		"A04": engine.StatusUnavailable,
	}, status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAvailability_AfterClosingSkipsReservations(t *testing.T) {
	f := newFixture(t, at(22, 30))
	ts := at(0, 0)
	f.mock.ExpectQuery("SELECT (.+) FROM seats ORDER BY id").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow("A01", true, nil, ts, ts))

	got, err := f.svc.Availability(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got.Seats, 1)
	assert.Equal(t, engine.StatusUnavailable, got.Seats[0].Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPageLimit(t *testing.T) {
	assert.Equal(t, 20, PageLimit(0))
	assert.Equal(t, 5, PageLimit(5))
	assert.Equal(t, 100, PageLimit(1000))
}
