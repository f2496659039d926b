package memory

import (
	"context"
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

func TestQuestionCacheLoadsOnce(t *testing.T) {
	inner := &countingBank{QuestionBank: sampleBank()}
	cache := NewQuestionCache(inner, time.Minute)

	if _, err := cache.GetQuestion(context.Background(), 1); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one snapshot load, got %d", inner.calls)
	}

	// every read path hits the same snapshot
	if _, err := cache.GetAlternatives(context.Background(), 1); err != nil {
		t.Fatalf("get alternatives: %v", err)
	}
	count, err := cache.CountQuestions(context.Background())
	if err != nil || count != 2 {
		t.Fatalf("expected 2 questions, got %d (%v)", count, err)
	}
	ids, err := cache.AllQuestionIDs(context.Background())
	if err != nil || len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v (%v)", ids, err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected cache hits, loads=%d", inner.calls)
	}
}

func TestQuestionCacheUnknownQuestion(t *testing.T) {
	cache := NewQuestionCache(sampleBank(), time.Minute)
	if _, err := cache.GetQuestion(context.Background(), 42); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question not found, got %v", err)
	}
}

type countingBank struct {
	app.QuestionBank
	calls int
}

func (b *countingBank) AllQuestionIDs(ctx context.Context) ([]int64, error) {
	b.calls++
	return b.QuestionBank.AllQuestionIDs(ctx)
}

func sampleBank() *StaticQuestionBank {
	return NewStaticQuestionBank(
		[]domain.Question{
			{ID: 1, Text: "First question"},
			{ID: 2, Text: "Second question"},
		},
		[]domain.Alternative{
			{ID: 11, QuestionID: 1, Points: 0},
			{ID: 12, QuestionID: 1, Points: 5},
			{ID: 21, QuestionID: 2, Points: 3},
		},
	)
}
