package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// QuestionCache caches a snapshot of the (read-only) question bank with a
// TTL to avoid repeated backing-store hits. Used when Redis is not
// configured.
type QuestionCache struct {
	inner app.QuestionBank
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu       sync.RWMutex
	snapshot *bankSnapshot
}

type bankSnapshot struct {
	questions    map[int64]domain.Question
	alternatives map[int64][]domain.Alternative
	ids          []int64
	expiresAt    time.Time
}

func NewQuestionCache(inner app.QuestionBank, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	snapshot, err := c.current(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	question, ok := snapshot.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (c *QuestionCache) GetAlternatives(ctx context.Context, questionID int64) ([]domain.Alternative, error) {
	snapshot, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	alternatives := snapshot.alternatives[questionID]
	out := make([]domain.Alternative, len(alternatives))
	copy(out, alternatives)
	return out, nil
}

func (c *QuestionCache) CountQuestions(ctx context.Context) (int, error) {
	snapshot, err := c.current(ctx)
	if err != nil {
		return 0, err
	}
	return len(snapshot.ids), nil
}

func (c *QuestionCache) AllQuestionIDs(ctx context.Context) ([]int64, error) {
	snapshot, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(snapshot.ids))
	copy(ids, snapshot.ids)
	return ids, nil
}

func (c *QuestionCache) current(ctx context.Context) (*bankSnapshot, error) {
	now := c.clock()

	c.mu.RLock()
	if c.snapshot != nil && c.snapshot.expiresAt.After(now) {
		snapshot := c.snapshot
		c.mu.RUnlock()
		return snapshot, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("bank", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.snapshot != nil && c.snapshot.expiresAt.After(now) {
			snapshot := c.snapshot
			c.mu.RUnlock()
			return snapshot, nil
		}
		c.mu.RUnlock()

		snapshot, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		snapshot.expiresAt = now.Add(c.ttlWithJitter())

		c.mu.Lock()
		c.snapshot = snapshot
		c.mu.Unlock()
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*bankSnapshot), nil
}

func (c *QuestionCache) load(ctx context.Context) (*bankSnapshot, error) {
	ids, err := c.inner.AllQuestionIDs(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := &bankSnapshot{
		questions:    make(map[int64]domain.Question, len(ids)),
		alternatives: make(map[int64][]domain.Alternative, len(ids)),
		ids:          ids,
	}
	for _, id := range ids {
		question, err := c.inner.GetQuestion(ctx, id)
		if err != nil {
			return nil, err
		}
		alternatives, err := c.inner.GetAlternatives(ctx, id)
		if err != nil {
			return nil, err
		}
		snapshot.questions[id] = question
		snapshot.alternatives[id] = alternatives
	}
	return snapshot, nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
