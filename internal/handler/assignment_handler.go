package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/answerkey"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/response"
	"github.com/stemsi/ielts-mock/internal/service"
	"github.com/stemsi/ielts-mock/internal/validator"
)

// AssignmentHandler manages test variant assignments and lists the
// available answer keys.
type AssignmentHandler struct {
	assignmentService *service.AssignmentService
	catalog           *answerkey.Catalog
	log               zerolog.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(assignmentService *service.AssignmentService, catalog *answerkey.Catalog, log zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
		catalog:           catalog,
		log:               log.With().Str("component", "assignment_handler").Logger(),
	}
}

// ListAssignments godoc
// GET /api/v1/admin/assignments
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	list, err := h.assignmentService.List(c.Request.Context())
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignments": list})
}

// GetAssignment godoc
// GET /api/v1/admin/assignments/:candidate_id
// Returns the effective assignment, defaults included.
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}
	a := h.assignmentService.Resolve(c.Request.Context(), cid)
	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}

// UpsertAssignment godoc
// PUT /api/v1/admin/assignments/:candidate_id
func (h *AssignmentHandler) UpsertAssignment(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}

	var req model.UpsertAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.assignmentService.Upsert(c.Request.Context(), cid, req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}

// DeleteAssignment godoc
// DELETE /api/v1/admin/assignments/:candidate_id
func (h *AssignmentHandler) DeleteAssignment(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}
	if err := h.assignmentService.Delete(c.Request.Context(), cid); err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": cid})
}

// ListAnswerKeys godoc
// GET /api/v1/admin/answer-keys/:section
// Lists the test variants of listening or reading. Answers are not exposed.
func (h *AssignmentHandler) ListAnswerKeys(c *gin.Context) {
	sec, err := model.ParseSection(c.Param("section"))
	if err != nil || !sec.Scorable() {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"section": sec, "variants": h.catalog.Variants(sec)})
}
