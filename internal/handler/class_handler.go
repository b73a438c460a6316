package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekolahkita/ppdb-api/internal/service"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
	"github.com/sekolahkita/ppdb-api/pkg/response"
)

// ClassHandler exposes class roster administration endpoints.
type ClassHandler struct {
	classes *service.ClassService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// AssignTeacher grants a teacher write access to a class.
func (h *ClassHandler) AssignTeacher(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AssignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	req.ClassID = c.Param("id")

	assignment, err := h.classes.AssignTeacher(c.Request.Context(), claims.Actor(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}
