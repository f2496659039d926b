package memory

import (
	"context"
	"sort"

	"quiz-session-service/internal/domain"
)

// StaticQuestionBank serves a fixed question set from memory (useful for
// tests and the no-database dev mode).
type StaticQuestionBank struct {
	questions    map[int64]domain.Question
	alternatives map[int64][]domain.Alternative
}

func NewStaticQuestionBank(questions []domain.Question, alternatives []domain.Alternative) *StaticQuestionBank {
	bank := &StaticQuestionBank{
		questions:    make(map[int64]domain.Question, len(questions)),
		alternatives: make(map[int64][]domain.Alternative),
	}
	for _, question := range questions {
		bank.questions[question.ID] = question
	}
	for _, alternative := range alternatives {
		bank.alternatives[alternative.QuestionID] = append(bank.alternatives[alternative.QuestionID], alternative)
	}
	return bank
}

func (b *StaticQuestionBank) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	question, ok := b.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (b *StaticQuestionBank) GetAlternatives(_ context.Context, questionID int64) ([]domain.Alternative, error) {
	alternatives := b.alternatives[questionID]
	out := make([]domain.Alternative, len(alternatives))
	copy(out, alternatives)
	return out, nil
}

func (b *StaticQuestionBank) CountQuestions(_ context.Context) (int, error) {
	return len(b.questions), nil
}

func (b *StaticQuestionBank) AllQuestionIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(b.questions))
	for id := range b.questions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
