package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sekolahkita/ppdb-api/internal/models"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type mockClassAdminRepo struct {
	classes     map[string]*models.Class
	assignments []*models.TeacherAssignment
}

func (m *mockClassAdminRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassAdminRepo) AssignTeacher(ctx context.Context, assignment *models.TeacherAssignment) error {
	m.assignments = append(m.assignments, assignment)
	return nil
}

type mockTeacherDirectory struct {
	users map[string]*models.User
}

func (m *mockTeacherDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newTestClassService(repo *mockClassAdminRepo, users *mockTeacherDirectory) *ClassService {
	return NewClassService(repo, users, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())
}

func TestClassServiceAssignTeacher(t *testing.T) {
	repo := &mockClassAdminRepo{classes: map[string]*models.Class{"c1": {ID: "c1", SchoolID: "sch-1"}}}
	users := &mockTeacherDirectory{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, SchoolID: strPtr("sch-1")},
	}}
	svc := newTestClassService(repo, users)

	assignment, err := svc.AssignTeacher(context.Background(), adminActor("sch-1"), AssignTeacherRequest{
		ClassID:   "c1",
		TeacherID: "t1",
	})
	require.NoError(t, err)
	require.Len(t, repo.assignments, 1)

	assert.Equal(t, "t1", assignment.TeacherID)
	assert.Equal(t, "c1", assignment.ClassID)
	assert.NotEmpty(t, assignment.ID)
	assert.Nil(t, assignment.SubjectID)
}

func TestClassServiceAssignTeacherUnknownClass(t *testing.T) {
	svc := newTestClassService(&mockClassAdminRepo{}, &mockTeacherDirectory{})

	_, err := svc.AssignTeacher(context.Background(), adminActor("sch-1"), AssignTeacherRequest{
		ClassID:   "missing",
		TeacherID: "t1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestClassServiceAssignTeacherCrossTenantAdmin(t *testing.T) {
	repo := &mockClassAdminRepo{classes: map[string]*models.Class{"c1": {ID: "c1", SchoolID: "sch-1"}}}
	users := &mockTeacherDirectory{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, SchoolID: strPtr("sch-1")},
	}}
	svc := newTestClassService(repo, users)

	_, err := svc.AssignTeacher(context.Background(), adminActor("sch-2"), AssignTeacherRequest{
		ClassID:   "c1",
		TeacherID: "t1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, repo.assignments)
}

func TestClassServiceAssignTeacherWrongRole(t *testing.T) {
	repo := &mockClassAdminRepo{classes: map[string]*models.Class{"c1": {ID: "c1", SchoolID: "sch-1"}}}
	users := &mockTeacherDirectory{users: map[string]*models.User{
		"u1": {ID: "u1", Role: models.RoleStudent, SchoolID: strPtr("sch-1")},
	}}
	svc := newTestClassService(repo, users)

	_, err := svc.AssignTeacher(context.Background(), adminActor("sch-1"), AssignTeacherRequest{
		ClassID:   "c1",
		TeacherID: "u1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.assignments)
}

func TestClassServiceAssignTeacherOtherSchool(t *testing.T) {
	repo := &mockClassAdminRepo{classes: map[string]*models.Class{"c1": {ID: "c1", SchoolID: "sch-1"}}}
	users := &mockTeacherDirectory{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, SchoolID: strPtr("sch-2")},
	}}
	svc := newTestClassService(repo, users)

	_, err := svc.AssignTeacher(context.Background(), adminActor("sch-1"), AssignTeacherRequest{
		ClassID:   "c1",
		TeacherID: "t1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.assignments)
}

func TestClassServiceAssignTeacherUnknownTeacher(t *testing.T) {
	repo := &mockClassAdminRepo{classes: map[string]*models.Class{"c1": {ID: "c1", SchoolID: "sch-1"}}}
	svc := newTestClassService(repo, &mockTeacherDirectory{})

	_, err := svc.AssignTeacher(context.Background(), adminActor("sch-1"), AssignTeacherRequest{
		ClassID:   "c1",
		TeacherID: "ghost",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
