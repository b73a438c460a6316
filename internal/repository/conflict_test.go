package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: ConstraintUserEmail}

	assert.True(t, IsUniqueViolation(dup, ConstraintUserEmail))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create user: %w", dup), ConstraintUserEmail))
	assert.False(t, IsUniqueViolation(dup, ConstraintStudentNIS))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503", Constraint: ConstraintUserEmail}, ConstraintUserEmail))
	assert.False(t, IsUniqueViolation(errors.New("plain error"), ConstraintUserEmail))
	assert.False(t, IsUniqueViolation(nil, ConstraintUserEmail))
}
