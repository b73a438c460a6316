package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sekolahkita/ppdb-api/internal/models"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type mockAttendanceRepo struct {
	written []models.Attendance
	result  *models.BatchResult
}

func (m *mockAttendanceRepo) UpsertBatch(ctx context.Context, records []models.Attendance) (*models.BatchResult, error) {
	m.written = append(m.written, records...)
	if m.result != nil {
		return m.result, nil
	}
	return &models.BatchResult{Created: len(records)}, nil
}

func (m *mockAttendanceRepo) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.Attendance, error) {
	return m.written, nil
}

type mockRoster struct {
	students map[string]struct{}
}

func (m *mockRoster) IDsByClass(ctx context.Context, classID string) (map[string]struct{}, error) {
	return m.students, nil
}

func newTestAttendanceService(repo *mockAttendanceRepo, roster *mockRoster) *AttendanceService {
	classes := &mockGateClassReader{
		classes:     map[string]*models.Class{"c1": {ID: "c1", SchoolID: "sch-1"}},
		assignments: map[string]bool{"t1/c1": true},
	}
	gate := NewGate(classes, zap.NewNop())
	return NewAttendanceService(repo, roster, gate, nil, nil, zap.NewNop(), 200)
}

func teacherActor() models.Actor {
	return models.Actor{ID: "t1", Role: models.RoleTeacher, SchoolID: strPtr("sch-1")}
}

func TestAttendanceServiceUpsertBatch(t *testing.T) {
	repo := &mockAttendanceRepo{}
	roster := &mockRoster{students: map[string]struct{}{"s1": {}, "s2": {}}}
	svc := newTestAttendanceService(repo, roster)

	result, err := svc.UpsertBatch(context.Background(), teacherActor(), UpsertAttendanceBatchRequest{
		ClassID: "c1",
		Date:    "2026-08-31",
		Entries: []AttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "s2", Status: "late"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	require.Len(t, repo.written, 2)
	assert.Equal(t, "sch-1", repo.written[0].SchoolID)
	assert.Equal(t, models.AttendanceLate, repo.written[1].Status)
	assert.Equal(t, "t1", repo.written[0].RecordedBy)
}

func TestAttendanceServiceUpsertBatchInvalidStatus(t *testing.T) {
	repo := &mockAttendanceRepo{}
	roster := &mockRoster{students: map[string]struct{}{"s1": {}}}
	svc := newTestAttendanceService(repo, roster)

	_, err := svc.UpsertBatch(context.Background(), teacherActor(), UpsertAttendanceBatchRequest{
		ClassID: "c1",
		Date:    "2026-08-31",
		Entries: []AttendanceEntry{{StudentID: "s1", Status: "NAPPING"}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.written)
}

func TestAttendanceServiceUpsertBatchDuplicateStudent(t *testing.T) {
	repo := &mockAttendanceRepo{}
	roster := &mockRoster{students: map[string]struct{}{"s1": {}}}
	svc := newTestAttendanceService(repo, roster)

	_, err := svc.UpsertBatch(context.Background(), teacherActor(), UpsertAttendanceBatchRequest{
		ClassID: "c1",
		Date:    "2026-08-31",
		Entries: []AttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "s1", Status: "ABSENT"},
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.written)
}

func TestAttendanceServiceUpsertBatchStudentOutsideClass(t *testing.T) {
	repo := &mockAttendanceRepo{}
	roster := &mockRoster{students: map[string]struct{}{"s1": {}}}
	svc := newTestAttendanceService(repo, roster)

	_, err := svc.UpsertBatch(context.Background(), teacherActor(), UpsertAttendanceBatchRequest{
		ClassID: "c1",
		Date:    "2026-08-31",
		Entries: []AttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "intruder", Status: "PRESENT"},
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.written)
}

func TestAttendanceServiceUpsertBatchBadDate(t *testing.T) {
	repo := &mockAttendanceRepo{}
	roster := &mockRoster{students: map[string]struct{}{"s1": {}}}
	svc := newTestAttendanceService(repo, roster)

	_, err := svc.UpsertBatch(context.Background(), teacherActor(), UpsertAttendanceBatchRequest{
		ClassID: "c1",
		Date:    "31-08-2026",
		Entries: []AttendanceEntry{{StudentID: "s1", Status: "PRESENT"}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAttendanceServiceUpsertBatchUnassignedTeacher(t *testing.T) {
	repo := &mockAttendanceRepo{}
	roster := &mockRoster{students: map[string]struct{}{"s1": {}}}
	svc := newTestAttendanceService(repo, roster)
	outsider := models.Actor{ID: "t9", Role: models.RoleTeacher, SchoolID: strPtr("sch-1")}

	_, err := svc.UpsertBatch(context.Background(), outsider, UpsertAttendanceBatchRequest{
		ClassID: "c1",
		Date:    "2026-08-31",
		Entries: []AttendanceEntry{{StudentID: "s1", Status: "PRESENT"}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, repo.written)
}

func TestAttendanceServiceUpsertBatchTooLarge(t *testing.T) {
	repo := &mockAttendanceRepo{}
	roster := &mockRoster{students: map[string]struct{}{}}
	classes := &mockGateClassReader{
		classes:     map[string]*models.Class{"c1": {ID: "c1", SchoolID: "sch-1"}},
		assignments: map[string]bool{"t1/c1": true},
	}
	svc := NewAttendanceService(repo, roster, NewGate(classes, zap.NewNop()), nil, nil, zap.NewNop(), 2)

	_, err := svc.UpsertBatch(context.Background(), teacherActor(), UpsertAttendanceBatchRequest{
		ClassID: "c1",
		Date:    "2026-08-31",
		Entries: []AttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "s2", Status: "PRESENT"},
			{StudentID: "s3", Status: "PRESENT"},
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
