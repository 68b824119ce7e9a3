package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/response"
	"github.com/stemsi/ielts-mock/internal/service"
	"github.com/stemsi/ielts-mock/internal/session"
	"github.com/stemsi/ielts-mock/internal/validator"
)

// SessionHandler exposes a candidate's test session over REST.
type SessionHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// GetSession godoc
// GET /api/v1/candidates/:candidate_id/session
// Returns the current state without counting a reload.
func (h *SessionHandler) GetSession(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}
	st, err := h.sessionService.Peek(c.Request.Context(), cid)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": st})
}

// LoadSession godoc
// POST /api/v1/candidates/:candidate_id/session/load
// Page load: restores the session with the reload penalty, or creates one.
func (h *SessionHandler) LoadSession(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}
	st, err := h.sessionService.Load(c.Request.Context(), cid)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": st})
}

// StartSection godoc
// POST /api/v1/candidates/:candidate_id/session/start
// Starts the countdown of the current section. The body is optional.
func (h *SessionHandler) StartSection(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}

	var req model.StartSessionRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	st, err := h.sessionService.Start(c.Request.Context(), cid, req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": st})
}

// SaveAnswers godoc
// PUT /api/v1/candidates/:candidate_id/session/answers
// Autosaves answers of the running section.
func (h *SessionHandler) SaveAnswers(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}

	var req model.SaveAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.sessionService.SaveAnswers(c.Request.Context(), cid, req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": st})
}

// SetSubSection godoc
// PUT /api/v1/candidates/:candidate_id/session/subsection
func (h *SessionHandler) SetSubSection(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}

	var req model.SetSubSectionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.sessionService.SetSubSection(c.Request.Context(), cid, *req.Index)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": st})
}

// Advance godoc
// POST /api/v1/candidates/:candidate_id/session/advance
// Completes the running section or moves on to the next one. Leaving the
// last section submits the test and returns the recorded result.
func (h *SessionHandler) Advance(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}
	st, res, err := h.sessionService.Advance(c.Request.Context(), cid)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": st, "finalized": res})
}

// Finish godoc
// POST /api/v1/candidates/:candidate_id/session/finish
func (h *SessionHandler) Finish(c *gin.Context) {
	h.finalize(c, h.sessionService.Finish)
}

// Abandon godoc
// POST /api/v1/candidates/:candidate_id/session/abandon
func (h *SessionHandler) Abandon(c *gin.Context) {
	h.finalize(c, h.sessionService.Abandon)
}

// Unload godoc
// POST /api/v1/candidates/:candidate_id/session/unload
// Called from the page's unload hook; the session stays resumable.
func (h *SessionHandler) Unload(c *gin.Context) {
	h.finalize(c, h.sessionService.Unload)
}

type finalizeFunc func(ctx context.Context, candidateID string) (*session.PersistResult, error)

func (h *SessionHandler) finalize(c *gin.Context, fn finalizeFunc) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), cid)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"finalized": res})
}
