package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekolahkita/ppdb-api/internal/service"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
	"github.com/sekolahkita/ppdb-api/pkg/response"
)

// AttendanceHandler exposes attendance batch endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// UpsertBatch writes one class/date attendance batch. Resubmitting the
// same payload is safe; existing rows are overwritten, not duplicated.
func (h *AttendanceHandler) UpsertBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpsertAttendanceBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	req.ClassID = c.Param("id")

	result, err := h.attendance.UpsertBatch(c.Request.Context(), claims.Actor(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List returns attendance for a class on a date.
func (h *AttendanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, err := h.attendance.ListByClassAndDate(c.Request.Context(), claims.Actor(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
