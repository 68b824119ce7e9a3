package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/export"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/response"
	"github.com/stemsi/ielts-mock/internal/service"
	"github.com/stemsi/ielts-mock/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultHandler handles admin-facing result review and scoring.
type ResultHandler struct {
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

const defaultPerPage = 50

// ListResults godoc
// GET /api/v1/admin/results?search=&sort=&page=&per_page=
func (h *ResultHandler) ListResults(c *gin.Context) {
	var q model.ResultQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results, err := h.resultService.List(c.Request.Context(), q)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	if q.PerPage == 0 {
		q.PerPage = defaultPerPage
	}
	page, pagination := response.Paginate(results, q.Page, q.PerPage)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": page}, pagination)
}

// GetResult godoc
// GET /api/v1/admin/results/:id
func (h *ResultHandler) GetResult(c *gin.Context) {
	id, ok := resultIDParam(c)
	if !ok {
		return
	}
	r, err := h.resultService.Get(c.Request.Context(), id)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": r})
}

// AutoScore godoc
// POST /api/v1/admin/results/:id/auto-score
// Re-marks reading and listening from the stored answers.
func (h *ResultHandler) AutoScore(c *gin.Context) {
	id, ok := resultIDParam(c)
	if !ok {
		return
	}
	r, err := h.resultService.AutoScore(c.Request.Context(), id)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": r})
}

// Rescore godoc
// PUT /api/v1/admin/results/:id/score
// Applies manual raw scores and the writing band.
func (h *ResultHandler) Rescore(c *gin.Context) {
	id, ok := resultIDParam(c)
	if !ok {
		return
	}

	var req model.RescoreRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	r, err := h.resultService.Rescore(c.Request.Context(), id, req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": r})
}

// DeleteResult godoc
// DELETE /api/v1/admin/results/:id
// Requires {"confirmation": "DELETE"}.
func (h *ResultHandler) DeleteResult(c *gin.Context) {
	id, ok := resultIDParam(c)
	if !ok {
		return
	}

	var req model.DeleteResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrConfirmationRequired)
		return
	}

	if err := h.resultService.Delete(c.Request.Context(), id, req.Confirmation); err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

// GetStats godoc
// GET /api/v1/admin/results/stats
func (h *ResultHandler) GetStats(c *gin.Context) {
	stats, err := h.resultService.Stats(c.Request.Context())
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// ExportResults godoc
// GET /api/v1/admin/results/export?search=&sort=
// Downloads the (filtered) collection as an XLSX workbook.
func (h *ResultHandler) ExportResults(c *gin.Context) {
	var q model.ResultQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results, err := h.resultService.List(c.Request.Context(), q)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteResults(&buf, results); err != nil {
		failWithError(c, h.log, err)
		return
	}

	filename := fmt.Sprintf("ielts-results-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
