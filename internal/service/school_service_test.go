package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolahkita/ppdb-api/internal/models"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type mockSchoolRepo struct {
	schools  map[string]*models.School
	approved []string
}

func (m *mockSchoolRepo) FindByID(ctx context.Context, id string) (*models.School, error) {
	if s, ok := m.schools[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSchoolRepo) Create(ctx context.Context, school *models.School) error {
	if m.schools == nil {
		m.schools = make(map[string]*models.School)
	}
	m.schools[school.ID] = school
	return nil
}

func (m *mockSchoolRepo) SetApproved(ctx context.Context, id string, approved bool) error {
	if s, ok := m.schools[id]; ok {
		s.Approved = approved
	}
	m.approved = append(m.approved, id)
	return nil
}

type mockSchoolUserWriter struct {
	created []*models.User
	err     error
}

func (m *mockSchoolUserWriter) Create(ctx context.Context, user *models.User) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, user)
	return nil
}

func superAdminActor() models.Actor {
	return models.Actor{ID: "root-1", Role: models.RoleSuperAdmin}
}

func TestSchoolServiceCreate(t *testing.T) {
	repo := &mockSchoolRepo{}
	svc := NewSchoolService(repo, &mockSchoolUserWriter{}, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	var hooked []string
	svc.OnSchoolCreated(func(ctx context.Context, school *models.School) {
		hooked = append(hooked, school.ID)
	})

	school, err := svc.Create(context.Background(), superAdminActor(), CreateSchoolRequest{DistrictID: "d-1", Name: "SMA Negeri 3"})
	require.NoError(t, err)
	assert.False(t, school.Approved)
	assert.Equal(t, "d-1", school.DistrictID)
	assert.Equal(t, []string{school.ID}, hooked)
}

func TestSchoolServiceCreateRequiresSuperAdmin(t *testing.T) {
	repo := &mockSchoolRepo{}
	svc := NewSchoolService(repo, &mockSchoolUserWriter{}, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), adminActor("sch-1"), CreateSchoolRequest{DistrictID: "d-1", Name: "SMA Negeri 3"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, repo.schools)
}

func TestSchoolServiceApprove(t *testing.T) {
	repo := &mockSchoolRepo{schools: map[string]*models.School{"sch-1": {ID: "sch-1", Approved: false}}}
	svc := NewSchoolService(repo, &mockSchoolUserWriter{}, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	school, err := svc.Approve(context.Background(), superAdminActor(), "sch-1")
	require.NoError(t, err)
	assert.True(t, school.Approved)
	assert.Contains(t, repo.approved, "sch-1")
}

func TestSchoolServiceApproveIdempotent(t *testing.T) {
	repo := &mockSchoolRepo{schools: map[string]*models.School{"sch-1": {ID: "sch-1", Approved: true}}}
	svc := NewSchoolService(repo, &mockSchoolUserWriter{}, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	school, err := svc.Approve(context.Background(), superAdminActor(), "sch-1")
	require.NoError(t, err)
	assert.True(t, school.Approved)
	assert.Empty(t, repo.approved)
}

func TestSchoolServiceApproveUnknown(t *testing.T) {
	svc := NewSchoolService(&mockSchoolRepo{}, &mockSchoolUserWriter{}, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	_, err := svc.Approve(context.Background(), superAdminActor(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSchoolServiceCreateAdmin(t *testing.T) {
	repo := &mockSchoolRepo{schools: map[string]*models.School{"sch-1": {ID: "sch-1"}}}
	users := &mockSchoolUserWriter{}
	svc := NewSchoolService(repo, users, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	user, err := svc.CreateAdmin(context.Background(), superAdminActor(), CreateSchoolAdminRequest{
		SchoolID: "sch-1",
		Email:    "Kepala@Sekolah.id",
		FullName: "Ibu Kepala",
		Password: "rahasia-sekali",
	})
	require.NoError(t, err)
	require.Len(t, users.created, 1)

	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, "kepala@sekolah.id", user.Email)
	require.NotNil(t, user.SchoolID)
	assert.Equal(t, "sch-1", *user.SchoolID)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("rahasia-sekali")))
}

func TestSchoolServiceCreateAdminRequiresSuperAdmin(t *testing.T) {
	repo := &mockSchoolRepo{schools: map[string]*models.School{"sch-1": {ID: "sch-1"}}}
	users := &mockSchoolUserWriter{}
	svc := NewSchoolService(repo, users, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	_, err := svc.CreateAdmin(context.Background(), adminActor("sch-1"), CreateSchoolAdminRequest{
		SchoolID: "sch-1",
		Email:    "kepala@sekolah.id",
		FullName: "Ibu Kepala",
		Password: "rahasia-sekali",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, users.created)
}

func TestSchoolServiceCreateAdminUnknownSchool(t *testing.T) {
	svc := NewSchoolService(&mockSchoolRepo{}, &mockSchoolUserWriter{}, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	_, err := svc.CreateAdmin(context.Background(), superAdminActor(), CreateSchoolAdminRequest{
		SchoolID: "missing",
		Email:    "kepala@sekolah.id",
		FullName: "Ibu Kepala",
		Password: "rahasia-sekali",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSchoolServiceCreateAdminDuplicateEmail(t *testing.T) {
	repo := &mockSchoolRepo{schools: map[string]*models.School{"sch-1": {ID: "sch-1"}}}
	users := &mockSchoolUserWriter{err: uniqueViolation("users_email_key")}
	svc := NewSchoolService(repo, users, NewGate(&mockGateClassReader{}, zap.NewNop()), nil, zap.NewNop())

	_, err := svc.CreateAdmin(context.Background(), superAdminActor(), CreateSchoolAdminRequest{
		SchoolID: "sch-1",
		Email:    "kepala@sekolah.id",
		FullName: "Ibu Kepala",
		Password: "rahasia-sekali",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateIdentity))
}
