package http

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-session-service/internal/domain"
)

func TestResultFeedStreamsCompletions(t *testing.T) {
	server, service := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/results"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// give the handler a moment to register its subscription
	time.Sleep(100 * time.Millisecond)

	ctx := context.Background()
	sessionID, err := service.StartQuiz(ctx, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := service.SubmitAnswers(ctx, sessionID, []domain.AnswerSubmission{
		{QuestionID: 1, AlternativeID: 12},
		{QuestionID: 2, AlternativeID: 21},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var msg struct {
		Type    string               `json:"type"`
		Payload domain.SessionResult `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "result" {
		t.Fatalf("expected result message, got %s", msg.Type)
	}
	if msg.Payload.SessionID != sessionID || msg.Payload.Score != 8 {
		t.Fatalf("unexpected payload %+v", msg.Payload)
	}
}
