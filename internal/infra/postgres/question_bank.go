package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

// QuestionBank reads questions and alternatives from Postgres.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	var question domain.Question
	err := b.pool.QueryRow(ctx, `SELECT id, text FROM questions WHERE id=$1`, id).
		Scan(&question.ID, &question.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	return question, nil
}

func (b *QuestionBank) GetAlternatives(ctx context.Context, questionID int64) ([]domain.Alternative, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT id, question_id, points FROM alternatives WHERE question_id=$1 ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("get alternatives: %w", err)
	}
	defer rows.Close()

	var alternatives []domain.Alternative
	for rows.Next() {
		var alternative domain.Alternative
		if err := rows.Scan(&alternative.ID, &alternative.QuestionID, &alternative.Points); err != nil {
			return nil, fmt.Errorf("scan alternative: %w", err)
		}
		alternatives = append(alternatives, alternative)
	}
	return alternatives, rows.Err()
}

func (b *QuestionBank) CountQuestions(ctx context.Context) (int, error) {
	var count int
	if err := b.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (b *QuestionBank) AllQuestionIDs(ctx context.Context) ([]int64, error) {
	rows, err := b.pool.Query(ctx, `SELECT id FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all question ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
