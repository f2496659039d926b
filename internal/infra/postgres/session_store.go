package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

// SessionStore persists users, sessions and recorded answers in Postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE email=$1`, email).
		Scan(&user.ID, &user.Name, &user.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *SessionStore) CreateUser(ctx context.Context, name, email string) (domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email) VALUES ($1, $2)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id, name, email`, name, email).
		Scan(&user.ID, &user.Name, &user.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		// lost the insert race; the existing row wins, name untouched
		return s.FindUserByEmail(ctx, email)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *SessionStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id=$1`, id).
		Scan(&user.ID, &user.Name, &user.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *SessionStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *SessionStore) CreateSession(ctx context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error) {
	session := domain.QuizSession{UserID: userID, StartedAt: startedAt}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quiz_sessions (user_id, started_at, score, email_sent)
		 VALUES ($1, $2, 0, FALSE) RETURNING id`, userID, startedAt).
		Scan(&session.ID)
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) GetSession(ctx context.Context, id int64) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, started_at, ended_at, score, email_sent
		 FROM quiz_sessions WHERE id=$1`, id).
		Scan(&session.ID, &session.UserID, &session.StartedAt, &session.EndedAt, &session.Score, &session.EmailSent)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// CompleteSession claims the session with a conditional update and records
// the answers, all in one transaction. The WHERE ended_at IS NULL clause is
// the single-writer guard: the losing submission of a race affects zero
// rows and is rejected without writing answers.
func (s *SessionStore) CompleteSession(ctx context.Context, sessionID int64, chosen []domain.Alternative, score int, endedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin complete session: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE quiz_sessions SET ended_at=$2, score=$3 WHERE id=$1 AND ended_at IS NULL`,
		sessionID, endedAt, score)
	if err != nil {
		return fmt.Errorf("claim session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quiz_sessions WHERE id=$1)`, sessionID).Scan(&exists); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if !exists {
			return domain.ErrSessionNotFound
		}
		return domain.ErrSessionCompleted
	}

	for _, alternative := range chosen {
		if _, err := tx.Exec(ctx,
			`INSERT INTO quiz_answers (session_id, alternative_id) VALUES ($1, $2)`,
			sessionID, alternative.ID); err != nil {
			return fmt.Errorf("record answer: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *SessionStore) ChosenAlternatives(ctx context.Context, sessionID int64) ([]domain.Alternative, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.question_id, a.points
		 FROM quiz_answers qa
		 JOIN alternatives a ON a.id = qa.alternative_id
		 WHERE qa.session_id=$1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chosen alternatives: %w", err)
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

// UpdateScore persists a recomputed score for an in-progress session. The
// ended_at IS NULL guard keeps it off completed rows: once a session is
// completed its stored score is authoritative and the call is a no-op.
func (s *SessionStore) UpdateScore(ctx context.Context, sessionID int64, score int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quiz_sessions SET score=$2 WHERE id=$1 AND ended_at IS NULL`, sessionID, score)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quiz_sessions WHERE id=$1)`, sessionID).Scan(&exists); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if !exists {
			return domain.ErrSessionNotFound
		}
	}
	return nil
}

func (s *SessionStore) MarkEmailSent(ctx context.Context, sessionID int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE quiz_sessions SET email_sent=TRUE WHERE id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
