package domain

import "time"

// User is a registered quiz taker, identified by unique email.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Question is a single quiz question. Questions are read-only from the
// service's perspective; the question bank owns them.
type Question struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// Alternative is a selectable answer option belonging to one question.
type Alternative struct {
	ID         int64 `json:"id"`
	QuestionID int64 `json:"questionId"`
	Points     int   `json:"points"`
}

// QuizSession tracks one user's attempt from start to scored completion.
// Score is authoritative only once EndedAt is set.
type QuizSession struct {
	ID        int64
	UserID    int64
	StartedAt time.Time
	EndedAt   *time.Time
	Score     int
	EmailSent bool
}

// Completed reports whether the session has been scored and closed.
func (s QuizSession) Completed() bool {
	return s.EndedAt != nil
}

// AnswerSubmission is one (question, chosen alternative) pair from a client.
type AnswerSubmission struct {
	QuestionID    int64
	AlternativeID int64
}

// RecordedAnswer is the durable link between a session and the alternative
// chosen for one question. Append-only.
type RecordedAnswer struct {
	SessionID     int64
	AlternativeID int64
}

// Result is the outcome of a session as seen by getResult.
type Result struct {
	Score     int  `json:"score"`
	Completed bool `json:"completed"`
}

// SessionResult is the completion event published to result subscribers.
type SessionResult struct {
	SessionID   int64     `json:"sessionId"`
	UserID      int64     `json:"userId"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}
