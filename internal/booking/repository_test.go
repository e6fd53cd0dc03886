package booking

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := &repository{db: sqlxDB}

	closer := func() {
		sqlxDB.Close()
	}

	return repo, mock, closer
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "booking_type", "status", "venue_id", "class_schedule_id",
		"payment_plan_id", "booked_by", "total_students", "trial_date", "start_date",
		"interest", "additional_note", "non_attend_reason", "created_at", "updated_at",
	})
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, close := setupMock(t)
	defer close()

	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\$1").
		WithArgs(99).
		WillReturnRows(bookingRows())

	_, err := repo.GetByID(context.Background(), 99)
	require.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_NoRows(t *testing.T) {
	repo, mock, close := setupMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(StatusCancelled, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := repo.db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.UpdateStatus(context.Background(), tx, 99, StatusCancelled)
	require.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, tx.Rollback())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParentEmailExists_Normalizes(t *testing.T) {
	repo, mock, close := setupMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM booking_parents WHERE email = $1)")).
		WithArgs("sarah@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ParentEmailExists(context.Background(), repo.db, "  Sarah@Example.COM ")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateConversion(t *testing.T) {
	repo, mock, close := setupMock(t)
	defer close()

	startDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings SET booking_type = \\$1, status = \\$2, payment_plan_id = \\$3, start_date = \\$4, trial_date = NULL, updated_at = NOW\\(\\) WHERE id = \\$5").
		WithArgs(TypePaid, StatusActive, 2, startDate, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := repo.db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateConversion(context.Background(), tx, 4, 2, startDate))
	require.NoError(t, tx.Commit())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueCancellations(t *testing.T) {
	repo, mock, close := setupMock(t)
	defer close()

	asOf := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	rows := bookingRows().AddRow(
		4, "REF123456789", "paid", "request_to_cancel", 3, 10,
		nil, 42, 1, nil, nil,
		"", "", "", time.Now(), time.Now(),
	)
	mock.ExpectQuery("SELECT .* FROM bookings b JOIN booking_events e ON .* WHERE b.status = \\$1 AND e.cancel_date <= \\$2").
		WithArgs(StatusRequestToCancel, asOf).
		WillReturnRows(rows)

	due, err := repo.DueCancellations(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, StatusRequestToCancel, due[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(errTest(`pq: duplicate key value violates unique constraint "bookings_reference_key"`)))
	require.False(t, IsUniqueViolation(errTest("pq: connection refused")))
	require.False(t, IsUniqueViolation(nil))
}

type errTest string

func (e errTest) Error() string { return string(e) }
