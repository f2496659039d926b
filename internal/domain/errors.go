package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrQuestionNotFound indicates no question (or no answerable
	// alternatives) exists for the requested ID.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is returned when a session ID resolves to nothing.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrUserNotFound is returned when a session's user cannot be resolved.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionCompleted rejects a second submission for a scored session.
	ErrSessionCompleted = errors.New("quiz session already completed")
)

// MissingAnswersError rejects a submission that does not cover every
// question. Missing holds the uncovered question IDs, ascending.
type MissingAnswersError struct {
	Missing []int64
}

func (e *MissingAnswersError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return "submission is missing answers for questions: " + strings.Join(ids, ", ")
}

// InvalidChoiceError rejects a submission naming an alternative that does
// not belong to the question it claims to answer, or answering one question
// more than once.
type InvalidChoiceError struct {
	QuestionID int64
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("invalid alternative choice for question %d", e.QuestionID)
}

// DeliveryError wraps a notifier transport failure. It is distinct from
// data errors: session state written before the send attempt stands.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return "result email delivery failed: " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
