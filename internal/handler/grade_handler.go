package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekolahkita/ppdb-api/internal/service"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
	"github.com/sekolahkita/ppdb-api/pkg/response"
)

// GradeHandler exposes grade batch endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// UpsertBatch writes one class/subject/term grade batch.
func (h *GradeHandler) UpsertBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpsertGradeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}
	req.ClassID = c.Param("id")

	result, err := h.grades.UpsertBatch(c.Request.Context(), claims.Actor(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List returns grade entries for a class/subject/term.
func (h *GradeHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, err := h.grades.ListBySubjectAndTerm(c.Request.Context(), claims.Actor(), c.Param("id"), c.Query("subjectId"), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
