package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"contest-engine/internal/domain"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// respondError maps domain failures onto stable HTTP codes. Business-rule
// violations are never surfaced as raw errors; infrastructure failures come
// back as a generic retryable REQUEST_FAILED.
func respondError(c *gin.Context, err error) {
	status, payload := classify(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, errorBody{Error: payload})
}

func abortWithError(c *gin.Context, err error) {
	status, payload := classify(err)
	c.AbortWithStatusJSON(status, errorBody{Error: payload})
}

func classify(err error) (int, errorPayload) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		payload := errorPayload{Code: "VALIDATION_ERROR", Message: ve.Message}
		if len(ve.Fields) > 0 {
			fieldErrors := make(map[string][]string, len(ve.Fields))
			for field, msg := range ve.Fields {
				fieldErrors[field] = []string{msg}
			}
			payload.Details = gin.H{"fieldErrors": fieldErrors}
		}
		return http.StatusBadRequest, payload
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Code: "UNAUTHORIZED", Message: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorPayload{Code: "FORBIDDEN", Message: err.Error()}
	case errors.Is(err, domain.ErrContestNotFound):
		return http.StatusNotFound, errorPayload{Code: "CONTEST_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound, errorPayload{Code: "QUESTION_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrContestNotActive):
		return http.StatusConflict, errorPayload{Code: "CONTEST_NOT_ACTIVE", Message: err.Error()}
	case errors.Is(err, domain.ErrNotAParticipant):
		return http.StatusForbidden, errorPayload{Code: "NOT_A_PARTICIPANT", Message: err.Error()}
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict, errorPayload{Code: "ALREADY_ANSWERED", Message: err.Error()}
	case errors.Is(err, domain.ErrTimeExpired):
		return http.StatusConflict, errorPayload{Code: "TIME_EXPIRED", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorPayload{Code: "REQUEST_FAILED", Message: "the request could not be completed, try again"}
	}
}
