package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. The
// completion guard is a mutex-protected compare-and-set on EndedAt,
// mirroring the conditional update the Postgres store issues.
type SessionStore struct {
	mu       sync.RWMutex
	nextUser int64
	nextSess int64
	users    map[int64]domain.User
	byEmail  map[string]int64
	sessions map[int64]*domain.QuizSession
	answers  map[int64][]domain.Alternative
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		users:    make(map[int64]domain.User),
		byEmail:  make(map[string]int64),
		sessions: make(map[int64]*domain.QuizSession),
		answers:  make(map[int64][]domain.Alternative),
	}
}

func (s *SessionStore) FindUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *SessionStore) CreateUser(_ context.Context, name, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// first-write-wins on email
	if id, ok := s.byEmail[email]; ok {
		return s.users[id], nil
	}
	s.nextUser++
	user := domain.User{ID: s.nextUser, Name: name, Email: email}
	s.users[user.ID] = user
	s.byEmail[email] = user.ID
	return user, nil
}

func (s *SessionStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *SessionStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *SessionStore) CreateSession(_ context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSess++
	session := &domain.QuizSession{ID: s.nextSess, UserID: userID, StartedAt: startedAt}
	s.sessions[session.ID] = session
	return *session, nil
}

func (s *SessionStore) GetSession(_ context.Context, id int64) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return *session, nil
}

func (s *SessionStore) CompleteSession(_ context.Context, sessionID int64, chosen []domain.Alternative, score int, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.EndedAt != nil {
		return domain.ErrSessionCompleted
	}
	ended := endedAt
	session.EndedAt = &ended
	session.Score = score
	recorded := make([]domain.Alternative, len(chosen))
	copy(recorded, chosen)
	s.answers[sessionID] = recorded
	return nil
}

func (s *SessionStore) ChosenAlternatives(_ context.Context, sessionID int64) ([]domain.Alternative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alternatives := s.answers[sessionID]
	out := make([]domain.Alternative, len(alternatives))
	copy(out, alternatives)
	return out, nil
}

func (s *SessionStore) UpdateScore(_ context.Context, sessionID int64, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	// a completed session keeps its stored score
	if session.EndedAt != nil {
		return nil
	}
	session.Score = score
	return nil
}

func (s *SessionStore) MarkEmailSent(_ context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.EmailSent = true
	return nil
}
