package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/sekolahkita/ppdb-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func provisionFixture() ProvisionRecord {
	now := time.Now().UTC()
	school := "sch-1"
	userID := "u-1"
	return ProvisionRecord{
		ApplicationID: "app-1",
		ReviewerID:    "adm-1",
		ReviewedAt:    now,
		User: &models.User{
			ID:           userID,
			SchoolID:     &school,
			Email:        "siti@example.com",
			PasswordHash: "hash",
			FullName:     "Siti Rahma",
			Role:         models.RoleStudent,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Student: &models.Student{
			ID:        "st-1",
			SchoolID:  school,
			UserID:    &userID,
			NIS:       "S-AB23CD",
			FullName:  "Siti Rahma",
			Grade:     "10",
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func TestApplicationRepositoryApproveAndProvision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	rec := provisionFixture()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications SET status").
		WithArgs(rec.ApplicationID, models.ApplicationApproved, rec.ReviewerID, rec.ReviewedAt, models.ApplicationPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApproveAndProvision(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApproveAndProvisionNotPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	rec := provisionFixture()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApproveAndProvision(context.Background(), rec)
	require.ErrorIs(t, err, ErrNoPendingApplication)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApproveAndProvisionDuplicateEmailRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	rec := provisionFixture()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintUserEmail})
	mock.ExpectRollback()

	err := repo.ApproveAndProvision(context.Background(), rec)
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err, ConstraintUserEmail))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryReject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	reviewedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE applications SET status").
		WithArgs("app-1", models.ApplicationRejected, "adm-1", reviewedAt, "incomplete", models.ApplicationPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reject(context.Background(), "app-1", "adm-1", "incomplete", reviewedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryRejectNotPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec("UPDATE applications SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reject(context.Background(), "app-1", "adm-1", "incomplete", time.Now().UTC())
	require.ErrorIs(t, err, ErrNoPendingApplication)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListSearchNormalizesTrackingCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Now()

	// Generated codes are uppercase; a lowercase-typed code must still
	// match the equality arm.
	rows := sqlmock.NewRows([]string{"id", "school_id", "tracking_code", "first_name", "last_name", "email", "phone", "guardian_name", "guardian_phone", "target_grade", "status", "reviewed_by", "reviewed_at", "reject_reason", "created_at", "updated_at"}).
		AddRow("app-1", "sch-1", "PPDB-ABCD2345", "Siti", "Rahma", "siti@example.com", nil, nil, nil, "10", models.ApplicationPending, nil, nil, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM applications WHERE").
		WithArgs("%ppdb-abcd2345%", "PPDB-ABCD2345").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM applications WHERE`).
		WithArgs("%ppdb-abcd2345%", "PPDB-ABCD2345").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	apps, total, err := repo.List(context.Background(), models.ApplicationFilter{Search: "ppdb-abcd2345"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, apps, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFindByTrackingCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "school_id", "tracking_code", "first_name", "last_name", "email", "phone", "guardian_name", "guardian_phone", "target_grade", "status", "reviewed_by", "reviewed_at", "reject_reason", "created_at", "updated_at"}).
		AddRow("app-1", "sch-1", "PPDB-ABCD2345", "Siti", "Rahma", "siti@example.com", nil, nil, nil, "10", models.ApplicationPending, nil, nil, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM applications WHERE tracking_code").
		WithArgs("PPDB-ABCD2345").
		WillReturnRows(rows)

	app, err := repo.FindByTrackingCode(context.Background(), "PPDB-ABCD2345")
	require.NoError(t, err)
	require.Equal(t, "PPDB-ABCD2345", app.TrackingCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
