package memory

import (
	"context"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

func TestSessionStoreUserFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	first, err := store.CreateUser(ctx, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	second, err := store.CreateUser(ctx, "Impostor", "alice@example.com")
	if err != nil {
		t.Fatalf("create user again: %v", err)
	}
	if second.ID != first.ID || second.Name != "Alice" {
		t.Fatalf("expected existing row to win, got %+v", second)
	}

	if _, err := store.FindUserByEmail(ctx, "nobody@example.com"); err != domain.ErrUserNotFound {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestSessionStoreCompleteIsOneShot(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	user, _ := store.CreateUser(ctx, "Alice", "alice@example.com")
	session, err := store.CreateSession(ctx, user.ID, time.Now())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	chosen := []domain.Alternative{{ID: 12, QuestionID: 1, Points: 5}}
	if err := store.CompleteSession(ctx, session.ID, chosen, 5, time.Now()); err != nil {
		t.Fatalf("complete session: %v", err)
	}
	if err := store.CompleteSession(ctx, session.ID, chosen, 5, time.Now()); err != domain.ErrSessionCompleted {
		t.Fatalf("expected completed error on second claim, got %v", err)
	}
	if err := store.CompleteSession(ctx, 999, chosen, 5, time.Now()); err != domain.ErrSessionNotFound {
		t.Fatalf("expected not found for unknown session, got %v", err)
	}

	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !got.Completed() || got.Score != 5 {
		t.Fatalf("unexpected session state %+v", got)
	}

	recorded, _ := store.ChosenAlternatives(ctx, session.ID)
	if len(recorded) != 1 || recorded[0].ID != 12 {
		t.Fatalf("unexpected recorded answers %+v", recorded)
	}
}

func TestSessionStoreUpdateScoreSkipsCompleted(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	user, _ := store.CreateUser(ctx, "Alice", "alice@example.com")
	session, _ := store.CreateSession(ctx, user.ID, time.Now())

	chosen := []domain.Alternative{{ID: 12, QuestionID: 1, Points: 5}}
	if err := store.CompleteSession(ctx, session.ID, chosen, 5, time.Now()); err != nil {
		t.Fatalf("complete session: %v", err)
	}

	// a too-late recompute write must not clobber the completed score
	if err := store.UpdateScore(ctx, session.ID, 0); err != nil {
		t.Fatalf("update score on completed session: %v", err)
	}

	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !got.Completed() || got.Score != 5 {
		t.Fatalf("completed score must stand, got %+v", got)
	}

	if err := store.UpdateScore(ctx, 999, 1); err != domain.ErrSessionNotFound {
		t.Fatalf("expected not found for unknown session, got %v", err)
	}
}

func TestSessionStoreEmailFlagAndScore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	user, _ := store.CreateUser(ctx, "Alice", "alice@example.com")
	session, _ := store.CreateSession(ctx, user.ID, time.Now())

	if err := store.UpdateScore(ctx, session.ID, 3); err != nil {
		t.Fatalf("update score: %v", err)
	}
	if err := store.MarkEmailSent(ctx, session.ID); err != nil {
		t.Fatalf("mark email sent: %v", err)
	}

	got, _ := store.GetSession(ctx, session.ID)
	if got.Score != 3 || !got.EmailSent {
		t.Fatalf("unexpected session state %+v", got)
	}
}
