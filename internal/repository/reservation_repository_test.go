package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/model"
)

var resCols = []string{"id", "user_id", "seat_id", "begin_time", "end_time", "check_in_time", "temporary_leave_time", "created_at"}

func utc(hour, min int) time.Time { return time.Date(2024, 6, 3, hour, min, 0, 0, time.UTC) }

func TestReservationRepo_CreateTx(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(sqlmock.AnyArg(), "u1", "A01", utc(9, 0), utc(11, 0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := repo.DB().Begin()
	require.NoError(t, err)
	res := &model.Reservation{UserID: "u1", SeatID: "A01", BeginTime: utc(9, 0), EndTime: utc(11, 0)}
	require.NoError(t, repo.CreateTx(context.Background(), tx, res))
	require.NoError(t, tx.Commit())
	assert.Len(t, res.ID, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_CreateTx_Duplicate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs("r1", "u1", "A01", utc(9, 0), utc(11, 0)).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	res := &model.Reservation{ID: "r1", UserID: "u1", SeatID: "A01", BeginTime: utc(9, 0), EndTime: utc(11, 0)}
	assert.ErrorIs(t, repo.CreateTx(context.Background(), tx, res), ErrConflict)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_ListOverlapping(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)
	leave := utc(10, 0)

	mock.ExpectQuery("SELECT (.+) FROM reservations WHERE begin_time < \\? AND end_time > \\?").
		WithArgs(utc(12, 0), utc(9, 0)).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow("r1", "u1", "A01", utc(9, 0), utc(11, 0), utc(9, 5), leave, utc(8, 0)).
			AddRow("r2", "u2", "A02", utc(11, 0), utc(13, 0), nil, nil, utc(8, 0)))

	got, err := repo.ListOverlapping(context.Background(), engine.TimeRange{Start: utc(9, 0), End: utc(12, 0)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	require.NotNil(t, got[0].TemporaryLeaveTime)
	assert.True(t, got[0].TemporaryLeaveTime.Equal(leave))
	assert.Nil(t, got[1].CheckInTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_LockByIDTx_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations WHERE id = \\? FOR UPDATE").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(resCols))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = repo.LockByIDTx(context.Background(), tx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_ListByUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations WHERE user_id = \\?").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT (.+) FROM reservations WHERE user_id = \\? ORDER BY begin_time DESC LIMIT \\? OFFSET \\?").
		WithArgs("u1", 2, 2).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow("r3", "u1", "A01", utc(9, 0), utc(10, 0), nil, nil, utc(8, 0)))

	items, total, err := repo.ListByUser(context.Background(), "u1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "r3", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildFilter(t *testing.T) {
	from := utc(9, 0)
	where, args := buildFilter(model.ReservationFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildFilter(model.ReservationFilter{UserRole: "student", SeatID: "A01", BeginTimeStart: &from})
	assert.Equal(t, " WHERE u.user_role = ? AND r.seat_id = ? AND r.begin_time >= ?", where)
	assert.Equal(t, []any{"student", "A01", from}, args)
}

func TestReservationRepo_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)
	cols := append(append([]string{}, resCols...),
		"email", "name", "user_role", "admin_role", "points", "banned_until", "ban_reason")

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations r JOIN users u ON u.id = r.user_id WHERE r.seat_id = \\?").
		WithArgs("A01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT r.id, (.+) FROM reservations r JOIN users u ON u.id = r.user_id WHERE r.seat_id = \\? ORDER BY r.begin_time LIMIT \\? OFFSET \\?").
		WithArgs("A01", 20, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r1", "u1", "A01", utc(9, 0), utc(11, 0), nil, nil, utc(8, 0),
				"ann@example.com", "Ann", "student", nil, 1, nil, nil))

	items, total, err := repo.List(context.Background(), model.ReservationFilter{SeatID: "A01", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].User)
	assert.Equal(t, "u1", items[0].User.ID)
	assert.Equal(t, "ann@example.com", items[0].User.Email)
	assert.Equal(t, "Ann", *items[0].User.Name)
	assert.Equal(t, 1, items[0].User.Points)
	assert.Nil(t, items[0].User.AdminRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_DeleteTx(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reservations WHERE id = \\?").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM reservations WHERE id = \\?").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.DeleteTx(context.Background(), tx, "r1"))
	assert.ErrorIs(t, repo.DeleteTx(context.Background(), tx, "r1"), ErrNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_Mutations(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)
	at := utc(9, 10)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reservations SET end_time = \\?").WithArgs(utc(10, 0), "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservations SET check_in_time = \\?").WithArgs(at, "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservations SET temporary_leave_time = \\?").WithArgs(at, "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservations SET temporary_leave_time = \\?").WithArgs(nil, "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.SetEndTx(ctx, tx, "r1", utc(10, 0)))
	require.NoError(t, repo.SetCheckInTx(ctx, tx, "r1", at))
	require.NoError(t, repo.SetTemporaryLeaveTx(ctx, tx, "r1", &at))
	require.NoError(t, repo.SetTemporaryLeaveTx(ctx, tx, "r1", nil))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_SetEndTx_WholeSeconds(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)
	local := time.FixedZone("UTC+8", 8*60*60)
	end := time.Date(2024, 6, 3, 18, 7, 30, 600_000_000, local)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reservations SET end_time = \\?").
		WithArgs(time.Date(2024, 6, 3, 10, 7, 30, 0, time.UTC), "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.SetEndTx(context.Background(), tx, "r1", end))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_SweepQueries(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepo(db)

	mock.ExpectQuery("WHERE temporary_leave_time IS NOT NULL AND temporary_leave_time <= \\?").
		WithArgs(utc(9, 0), int64(3600)).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow("r1", "u1", "A01", utc(7, 0), utc(12, 0), utc(7, 1), utc(8, 0), utc(6, 0)))
	mock.ExpectQuery("WHERE check_in_time IS NULL AND begin_time <= \\?").
		WithArgs(utc(9, 45), int64(900)).
		WillReturnRows(sqlmock.NewRows(resCols))

	ctx := context.Background()
	leaves, err := repo.ListLeaveExpired(ctx, utc(9, 0), time.Hour)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "r1", leaves[0].ID)

	missed, err := repo.ListMissedCheckIn(ctx, utc(9, 45), 15*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, missed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
