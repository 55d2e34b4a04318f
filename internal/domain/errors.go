package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrContestNotFound indicates the contest does not exist.
	ErrContestNotFound = errors.New("contest not found")
	// ErrQuestionNotFound indicates the question does not exist in the contest.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrContestNotActive is returned for joins and submissions outside the contest window.
	ErrContestNotActive = errors.New("contest is not active")
	// ErrNotAParticipant is returned when a user acts on a contest they never joined.
	ErrNotAParticipant = errors.New("user is not a participant of this contest")
	// ErrAlreadyAnswered is returned on a duplicate submission; the original award stands.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrTimeExpired is returned when the reported time exceeds the question limit.
	// Nothing is persisted.
	ErrTimeExpired = errors.New("time limit exceeded for question")
	// ErrUnauthorized indicates a request without an authenticated principal.
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden indicates the principal lacks the required role.
	ErrForbidden = errors.New("insufficient permissions")
)

// ValidationError carries field-level messages for malformed input. It is
// raised before any store is touched.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%d field errors)", e.Message, len(e.Fields))
}

// NewValidationError builds a ValidationError from alternating field/message pairs.
func NewValidationError(message string, fieldPairs ...string) *ValidationError {
	fields := make(map[string]string, len(fieldPairs)/2)
	for i := 0; i+1 < len(fieldPairs); i += 2 {
		fields[fieldPairs[i]] = fieldPairs[i+1]
	}
	return &ValidationError{Message: message, Fields: fields}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
