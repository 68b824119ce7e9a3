package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/answerkey"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/repository"
	"github.com/stemsi/ielts-mock/internal/response"
	"github.com/stemsi/ielts-mock/internal/service"
	"github.com/stemsi/ielts-mock/internal/session"
	"github.com/stemsi/ielts-mock/internal/validator"
)

type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

var errorMappings = []errorMapping{
	{session.ErrNoSession, http.StatusNotFound, response.ErrSessionNotFound},
	{session.ErrSessionClosed, http.StatusConflict, response.ErrSessionClosed},
	{session.ErrInvalidPhase, http.StatusConflict, response.ErrInvalidPhase},
	{session.ErrSectionClosed, http.StatusConflict, response.ErrSectionClosed},
	{session.ErrInvalidSubSection, http.StatusBadRequest, response.ErrInvalidSubSection},
	{session.ErrInvalidAnswerKey, http.StatusBadRequest, response.ErrInvalidAnswerKey},
	{answerkey.ErrUnknownTestVariant, http.StatusUnprocessableEntity, response.ErrUnknownTestVariant},
	{repository.ErrResultNotFound, http.StatusNotFound, response.ErrNotFound},
	{repository.ErrAssignmentNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrConfirmationRequired, http.StatusBadRequest, response.ErrConfirmationRequired},
	{service.ErrScoreOutOfRange, http.StatusUnprocessableEntity, response.ErrScoreOutOfRange},
	{service.ErrInvalidBand, http.StatusUnprocessableEntity, response.ErrInvalidBand},
}

// failWithError maps a service error onto the response envelope. Unknown
// errors are logged and reported as internal.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

func candidateParam(c *gin.Context) (string, bool) {
	var uri model.CandidateURI
	if fields := validator.BindURI(c, &uri); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidID, fields)
		return "", false
	}
	return uri.CandidateID, true
}

func resultIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
