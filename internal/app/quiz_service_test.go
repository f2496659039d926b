package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	"quiz-session-service/internal/logging"
)

func TestStartQuizCreatesUserOnce(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService()

	first, err := service.StartQuiz(ctx, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	second, err := service.StartQuiz(ctx, "Someone Else", "alice@example.com")
	if err != nil {
		t.Fatalf("start quiz again: %v", err)
	}
	if first == second {
		t.Fatalf("expected two independent sessions, both got id %d", first)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected one user row, got %d", len(users))
	}
	if users[0].Name != "Alice" {
		t.Fatalf("existing user name must not update, got %q", users[0].Name)
	}
}

func TestFetchQuestion(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	view, err := service.FetchQuestion(ctx, 1)
	if err != nil {
		t.Fatalf("fetch question: %v", err)
	}
	if view.Question.ID != 1 || len(view.Alternatives) != 2 || view.TotalQuestions != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}

	if _, err := service.FetchQuestion(ctx, 99); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestSubmitAnswersScoresSession(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	sessionID := mustStart(t, service)
	score, err := service.SubmitAnswers(ctx, sessionID, []domain.AnswerSubmission{
		{QuestionID: 1, AlternativeID: 12}, // 5 points
		{QuestionID: 2, AlternativeID: 21}, // 3 points
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if score != 8 {
		t.Fatalf("expected score 8, got %d", score)
	}

	result, err := service.GetResult(ctx, sessionID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.Score != 8 || !result.Completed {
		t.Fatalf("expected completed result 8, got %+v", result)
	}
}

func TestSubmitAnswersMissingQuestionPersistsNothing(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService()

	sessionID := mustStart(t, service)
	_, err := service.SubmitAnswers(ctx, sessionID, []domain.AnswerSubmission{
		{QuestionID: 1, AlternativeID: 12},
	})
	var missingErr *domain.MissingAnswersError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected MissingAnswersError, got %v", err)
	}
	if len(missingErr.Missing) != 1 || missingErr.Missing[0] != 2 {
		t.Fatalf("expected missing [2], got %v", missingErr.Missing)
	}

	recorded, _ := store.ChosenAlternatives(ctx, sessionID)
	if len(recorded) != 0 {
		t.Fatalf("expected no recorded answers, got %d", len(recorded))
	}
	session, _ := store.GetSession(ctx, sessionID)
	if session.Completed() {
		t.Fatalf("session must stay in progress after rejected submission")
	}
}

func TestSubmitAnswersInvalidChoicePersistsNothing(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService()

	sessionID := mustStart(t, service)
	// alternative 21 belongs to question 2
	_, err := service.SubmitAnswers(ctx, sessionID, []domain.AnswerSubmission{
		{QuestionID: 1, AlternativeID: 21},
		{QuestionID: 2, AlternativeID: 22},
	})
	var choiceErr *domain.InvalidChoiceError
	if !errors.As(err, &choiceErr) {
		t.Fatalf("expected InvalidChoiceError, got %v", err)
	}

	recorded, _ := store.ChosenAlternatives(ctx, sessionID)
	if len(recorded) != 0 {
		t.Fatalf("expected no recorded answers, got %d", len(recorded))
	}
}

func TestSubmitAnswersTwiceRejected(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	sessionID := mustStart(t, service)
	answers := fullAnswers()
	if _, err := service.SubmitAnswers(ctx, sessionID, answers); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := service.SubmitAnswers(ctx, sessionID, answers); err != domain.ErrSessionCompleted {
		t.Fatalf("expected session completed error, got %v", err)
	}
}

func TestConcurrentSubmitSingleWinner(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService()

	sessionID := mustStart(t, service)
	answers := fullAnswers()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = service.SubmitAnswers(ctx, sessionID, answers)
		}(i)
	}
	wg.Wait()

	var successes, rejections int
	for _, err := range results {
		switch err {
		case nil:
			successes++
		case domain.ErrSessionCompleted:
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || rejections != 1 {
		t.Fatalf("expected exactly one winner, got %d successes, %d rejections", successes, rejections)
	}

	recorded, _ := store.ChosenAlternatives(ctx, sessionID)
	if len(recorded) != 2 {
		t.Fatalf("expected answers recorded once, got %d rows", len(recorded))
	}
}

func TestGetResultRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	sessionID := mustStart(t, service)
	for i := 0; i < 2; i++ {
		result, err := service.GetResult(ctx, sessionID)
		if err != nil {
			t.Fatalf("get result: %v", err)
		}
		if result.Score != 0 || result.Completed {
			t.Fatalf("expected in-progress zero score, got %+v", result)
		}
	}

	if _, err := service.GetResult(ctx, 999); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestSendResultEmail(t *testing.T) {
	ctx := context.Background()
	service, store, notifier := newTestService()

	sessionID := mustStart(t, service)
	// 5 of a possible 8 points
	if _, err := service.SubmitAnswers(ctx, sessionID, []domain.AnswerSubmission{
		{QuestionID: 1, AlternativeID: 12}, // 5 points
		{QuestionID: 2, AlternativeID: 22}, // 0 points
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	delivered, err := service.SendResultEmail(ctx, sessionID)
	if err != nil {
		t.Fatalf("send result email: %v", err)
	}
	if !delivered {
		t.Fatalf("expected delivered=true")
	}
	if notifier.to != "alice@example.com" {
		t.Fatalf("unexpected recipient %q", notifier.to)
	}
	if !strings.Contains(notifier.body, "62.5%") {
		t.Fatalf("expected percentage 62.5%% in body, got %q", notifier.body)
	}
	if !strings.Contains(notifier.body, "2 of 2 questions") {
		t.Fatalf("expected answered counts in body, got %q", notifier.body)
	}

	session, _ := store.GetSession(ctx, sessionID)
	if !session.EmailSent {
		t.Fatalf("expected email_sent flag set")
	}
}

func TestSendResultEmailDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	service, store, notifier := newTestService()
	notifier.fail = errors.New("connection refused")

	sessionID := mustStart(t, service)
	if _, err := service.SubmitAnswers(ctx, sessionID, fullAnswers()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := service.SendResultEmail(ctx, sessionID)
	var deliveryErr *domain.DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}

	// data state is untouched by the transport failure
	session, _ := store.GetSession(ctx, sessionID)
	if session.EmailSent {
		t.Fatalf("email_sent must stay false on delivery failure")
	}
	if !session.Completed() || session.Score != 8 {
		t.Fatalf("session state must survive delivery failure, got %+v", session)
	}
}

func mustStart(t *testing.T, service *app.QuizService) int64 {
	t.Helper()
	sessionID, err := service.StartQuiz(context.Background(), "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	return sessionID
}

func TestServiceLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	store := memory.NewSessionStore()
	bank := memory.NewStaticQuestionBank(
		[]domain.Question{{ID: 1, Text: "Only question"}},
		[]domain.Alternative{{ID: 11, QuestionID: 1, Points: 5}},
	)
	service := app.NewQuizService(store, bank, &recordingNotifier{}, app.NewResultFeed(), log)

	ctx := logging.WithRequestID(context.Background(), "req-42")
	if _, err := service.StartQuiz(ctx, "Alice", "alice@example.com"); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if !strings.Contains(buf.String(), "req-42") {
		t.Fatalf("expected request id in service log output, got %q", buf.String())
	}
}

func fullAnswers() []domain.AnswerSubmission {
	return []domain.AnswerSubmission{
		{QuestionID: 1, AlternativeID: 12},
		{QuestionID: 2, AlternativeID: 21},
	}
}

func newTestService() (*app.QuizService, *memory.SessionStore, *recordingNotifier) {
	store := memory.NewSessionStore()
	bank := memory.NewStaticQuestionBank(
		[]domain.Question{
			{ID: 1, Text: "First question"},
			{ID: 2, Text: "Second question"},
		},
		[]domain.Alternative{
			{ID: 11, QuestionID: 1, Points: 0},
			{ID: 12, QuestionID: 1, Points: 5},
			{ID: 21, QuestionID: 2, Points: 3},
			{ID: 22, QuestionID: 2, Points: 0},
		},
	)
	notifier := &recordingNotifier{}
	service := app.NewQuizService(store, bank, notifier, app.NewResultFeed(), testLogger())
	return service, store, notifier
}

type recordingNotifier struct {
	mu      sync.Mutex
	fail    error
	calls   int
	to      string
	subject string
	body    string
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.calls++
	n.to = to
	n.subject = subject
	n.body = body
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
