package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sekolahkita/ppdb-api/internal/models"
)

func attendanceFixture(studentID string) models.Attendance {
	return models.Attendance{
		SchoolID:   "sch-1",
		ClassID:    "c1",
		StudentID:  studentID,
		Date:       time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Status:     models.AttendancePresent,
		RecordedBy: "t1",
	}
}

func TestAttendanceRepositoryUpsertBatchCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	mock.ExpectCommit()

	result, err := repo.UpsertBatch(context.Background(), []models.Attendance{
		attendanceFixture("s1"),
		attendanceFixture("s2"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertBatchResubmission(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	batch := func() []models.Attendance {
		return []models.Attendance{
			attendanceFixture("s1"),
			attendanceFixture("s2"),
			attendanceFixture("s3"),
		}
	}

	mock.ExpectBegin()
	for range batch() {
		mock.ExpectQuery("INSERT INTO attendance").
			WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	}
	mock.ExpectCommit()

	first, err := repo.UpsertBatch(context.Background(), batch())
	require.NoError(t, err)
	require.Equal(t, 3, first.Created)
	require.Equal(t, 0, first.Updated)

	// Same natural keys again: every row conflicts and updates in place.
	mock.ExpectBegin()
	for range batch() {
		mock.ExpectQuery("INSERT INTO attendance").
			WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	}
	mock.ExpectCommit()

	second, err := repo.UpsertBatch(context.Background(), batch())
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 3, second.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertBatchAbortsOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.UpsertBatch(context.Background(), []models.Attendance{
		attendanceFixture("s1"),
		attendanceFixture("s2"),
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	result, err := repo.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, result.Created)
	require.Zero(t, result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}
