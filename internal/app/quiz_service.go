package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/logging"
	"quiz-session-service/internal/notify"
)

// SessionStore abstracts how users, sessions and recorded answers are
// persisted (Postgres, in-memory, etc).
type SessionStore interface {
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateUser(ctx context.Context, name, email string) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	CreateSession(ctx context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error)
	GetSession(ctx context.Context, id int64) (domain.QuizSession, error)
	// CompleteSession atomically transitions the session to Completed and
	// records the chosen alternatives. It must succeed at most once per
	// session: if the session is already completed it returns
	// domain.ErrSessionCompleted and writes nothing.
	CompleteSession(ctx context.Context, sessionID int64, chosen []domain.Alternative, score int, endedAt time.Time) error
	ChosenAlternatives(ctx context.Context, sessionID int64) ([]domain.Alternative, error)
	// UpdateScore persists a recomputed score for an in-progress session.
	// It must never overwrite the score of a completed session; stores
	// no-op instead, because completion made the stored score
	// authoritative.
	UpdateScore(ctx context.Context, sessionID int64, score int) error
	MarkEmailSent(ctx context.Context, sessionID int64) error
}

// QuestionBank provides read-only access to questions and their scored
// alternatives (backed by Postgres, a cache, or a static set).
type QuestionBank interface {
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	GetAlternatives(ctx context.Context, questionID int64) ([]domain.Alternative, error)
	CountQuestions(ctx context.Context) (int, error)
	AllQuestionIDs(ctx context.Context) ([]int64, error)
}

// QuestionView is what fetchQuestion returns to the boundary layer.
type QuestionView struct {
	Question       domain.Question      `json:"question"`
	Alternatives   []domain.Alternative `json:"alternatives"`
	TotalQuestions int                  `json:"totalQuestions"`
}

// QuizService contains the quiz lifecycle use cases.
type QuizService struct {
	store    SessionStore
	bank     QuestionBank
	notifier notify.Notifier
	feed     *ResultFeed
	log      *logrus.Logger
	now      func() time.Time
}

func NewQuizService(store SessionStore, bank QuestionBank, notifier notify.Notifier, feed *ResultFeed, log *logrus.Logger) *QuizService {
	return &QuizService{
		store:    store,
		bank:     bank,
		notifier: notifier,
		feed:     feed,
		log:      log,
		now:      time.Now,
	}
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(store SessionStore, bank QuestionBank, notifier notify.Notifier, feed *ResultFeed, log *logrus.Logger, now func() time.Time) *QuizService {
	service := NewQuizService(store, bank, notifier, feed, log)
	service.now = now
	return service
}

// StartQuiz looks up the user by email, creating one on first contact, and
// opens a new in-progress session. The name of an existing user is never
// updated. A user may hold any number of concurrent sessions; the session
// ID is the handle for all subsequent calls.
func (s *QuizService) StartQuiz(ctx context.Context, name, email string) (int64, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err == domain.ErrUserNotFound {
		user, err = s.store.CreateUser(ctx, name, email)
	}
	if err != nil {
		return 0, err
	}

	session, err := s.store.CreateSession(ctx, user.ID, s.now())
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{"session_id": session.ID, "user_id": user.ID}).Info("quiz started")
	return session.ID, nil
}

// FetchQuestion is a pure read, not scoped to any session: clients navigate
// by question ID. A question without alternatives is not answerable and is
// reported as not found.
func (s *QuizService) FetchQuestion(ctx context.Context, questionID int64) (QuestionView, error) {
	question, err := s.bank.GetQuestion(ctx, questionID)
	if err != nil {
		return QuestionView{}, err
	}
	alternatives, err := s.bank.GetAlternatives(ctx, questionID)
	if err != nil {
		return QuestionView{}, err
	}
	if len(alternatives) == 0 {
		return QuestionView{}, domain.ErrQuestionNotFound
	}
	total, err := s.bank.CountQuestions(ctx)
	if err != nil {
		return QuestionView{}, err
	}
	return QuestionView{Question: question, Alternatives: alternatives, TotalQuestions: total}, nil
}

// SubmitAnswers validates and scores a full submission, then completes the
// session in a single conditional step. Any validation failure aborts
// before anything is written; a concurrent duplicate submission loses the
// conditional transition and gets domain.ErrSessionCompleted.
func (s *QuizService) SubmitAnswers(ctx context.Context, sessionID int64, answers []domain.AnswerSubmission) (int, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if session.Completed() {
		return 0, domain.ErrSessionCompleted
	}

	allIDs, err := s.bank.AllQuestionIDs(ctx)
	if err != nil {
		return 0, err
	}
	answeredIDs := make([]int64, len(answers))
	for i, answer := range answers {
		answeredIDs[i] = answer.QuestionID
	}
	if err := ValidateCompleteness(allIDs, answeredIDs); err != nil {
		return 0, err
	}

	alternativesByQuestion := make(map[int64][]domain.Alternative, len(answers))
	for _, answer := range answers {
		if _, ok := alternativesByQuestion[answer.QuestionID]; ok {
			continue
		}
		alternatives, err := s.bank.GetAlternatives(ctx, answer.QuestionID)
		if err != nil {
			return 0, err
		}
		alternativesByQuestion[answer.QuestionID] = alternatives
	}
	chosen, err := ValidateChoices(answers, alternativesByQuestion)
	if err != nil {
		return 0, err
	}

	score := ComputeScore(chosen)
	completedAt := s.now()
	if err := s.store.CompleteSession(ctx, sessionID, chosen, score, completedAt); err != nil {
		return 0, err
	}

	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{"session_id": sessionID, "score": score}).Info("quiz completed")
	if s.feed != nil {
		s.feed.Publish(domain.SessionResult{
			SessionID:   sessionID,
			UserID:      session.UserID,
			Score:       score,
			CompletedAt: completedAt,
		})
	}
	return score, nil
}

// GetResult returns the session's score. For a completed session the stored
// score is authoritative. For an in-progress session the score is
// recomputed from the recorded answers and persisted; recomputing is
// idempotent, so repeated calls return the same value.
func (s *QuizService) GetResult(ctx context.Context, sessionID int64) (domain.Result, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	if session.Completed() {
		return domain.Result{Score: session.Score, Completed: true}, nil
	}

	chosen, err := s.store.ChosenAlternatives(ctx, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	score := ComputeScore(chosen)
	if err := s.store.UpdateScore(ctx, sessionID, score); err != nil {
		return domain.Result{}, err
	}
	return domain.Result{Score: score, Completed: false}, nil
}

// SendResultEmail composes the result summary and hands it to the notifier.
// Transport failure is reported as a DeliveryError and rolls nothing back;
// on success the session's email flag is set.
func (s *QuizService) SendResultEmail(ctx context.Context, sessionID int64) (bool, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		return false, err
	}

	result, err := s.GetResult(ctx, sessionID)
	if err != nil {
		return false, err
	}
	total, err := s.bank.CountQuestions(ctx)
	if err != nil {
		return false, err
	}
	chosen, err := s.store.ChosenAlternatives(ctx, sessionID)
	if err != nil {
		return false, err
	}
	maxScore, err := s.maxPossibleScore(ctx)
	if err != nil {
		return false, err
	}

	percentage := 0.0
	if maxScore > 0 {
		percentage = math.Round(float64(result.Score)/float64(maxScore)*1000) / 10
	}

	subject := "Your quiz result"
	body := fmt.Sprintf(
		"Hello %s,\n\nYou answered %d of %d questions.\nFinal score: %d points (%.1f%%).\n\nThanks for taking the quiz!\n",
		user.Name, len(chosen), total, result.Score, percentage,
	)

	if err := s.notifier.Send(ctx, user.Email, subject, body); err != nil {
		return false, &domain.DeliveryError{Err: err}
	}
	if err := s.store.MarkEmailSent(ctx, sessionID); err != nil {
		return false, err
	}
	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{"session_id": sessionID, "email": user.Email}).Info("result email sent")
	return true, nil
}

// ListUsers returns all registered users.
func (s *QuizService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

// maxPossibleScore sums the best alternative of every question, giving the
// denominator for the result percentage.
func (s *QuizService) maxPossibleScore(ctx context.Context) (int, error) {
	ids, err := s.bank.AllQuestionIDs(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range ids {
		alternatives, err := s.bank.GetAlternatives(ctx, id)
		if err != nil {
			return 0, err
		}
		best := 0
		for _, alternative := range alternatives {
			if alternative.Points > best {
				best = alternative.Points
			}
		}
		total += best
	}
	return total, nil
}
