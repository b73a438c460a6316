package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahkita/ppdb-api/internal/models"
)

func TestClassRepositoryIsTeacherAssigned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(`SELECT 1 FROM teacher_assignments`).
		WithArgs("t-1", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	assigned, err := repo.IsTeacherAssigned(context.Background(), "t-1", "c-1")
	require.NoError(t, err)
	assert.True(t, assigned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryIsTeacherAssignedNoRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(`SELECT 1 FROM teacher_assignments`).
		WithArgs("t-1", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	assigned, err := repo.IsTeacherAssigned(context.Background(), "t-1", "c-1")
	require.NoError(t, err)
	assert.False(t, assigned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryAssignTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(`INSERT INTO teacher_assignments`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assignment := &models.TeacherAssignment{TeacherID: "t-1", ClassID: "c-1"}
	err := repo.AssignTeacher(context.Background(), assignment)
	require.NoError(t, err)
	assert.NotEmpty(t, assignment.ID)
	assert.False(t, assignment.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
