package redis

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// QuestionBank caches question content in Redis and falls back to the
// underlying bank on cache miss. Layout:
//
//	HSET question:{id}        text {text}
//	HSET question:{id}:alts   {alternativeID} {points}
//	SADD questions:ids        {id...}
type QuestionBank struct {
	client *redis.Client
	inner  app.QuestionBank
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionBank(client *redis.Client, inner app.QuestionBank, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		inner:  inner,
		ttl:    ttl,
	}
}

func (b *QuestionBank) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	text, err := b.client.HGet(ctx, b.questionKey(id), "text").Result()
	if err == nil {
		return domain.Question{ID: id, Text: text}, nil
	}

	result, err, _ := b.sf.Do("question:"+strconv.FormatInt(id, 10), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		text, err := b.client.HGet(ctx, b.questionKey(id), "text").Result()
		if err == nil {
			return domain.Question{ID: id, Text: text}, nil
		}

		question, err := b.inner.GetQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		alternatives, err := b.inner.GetAlternatives(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		b.cacheQuestion(ctx, question, alternatives)
		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (b *QuestionBank) GetAlternatives(ctx context.Context, questionID int64) ([]domain.Alternative, error) {
	cached, err := b.client.HGetAll(ctx, b.alternativesKey(questionID)).Result()
	if err == nil && len(cached) > 0 {
		return buildAlternatives(questionID, cached), nil
	}

	result, err, _ := b.sf.Do("alts:"+strconv.FormatInt(questionID, 10), func() (interface{}, error) {
		cached, err := b.client.HGetAll(ctx, b.alternativesKey(questionID)).Result()
		if err == nil && len(cached) > 0 {
			return buildAlternatives(questionID, cached), nil
		}

		alternatives, err := b.inner.GetAlternatives(ctx, questionID)
		if err != nil {
			return nil, err
		}
		if len(alternatives) > 0 {
			question, err := b.inner.GetQuestion(ctx, questionID)
			if err != nil {
				return nil, err
			}
			b.cacheQuestion(ctx, question, alternatives)
		}
		return alternatives, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Alternative), nil
}

func (b *QuestionBank) CountQuestions(ctx context.Context) (int, error) {
	count, err := b.client.SCard(ctx, b.idsKey()).Result()
	if err == nil && count > 0 {
		return int(count), nil
	}
	ids, err := b.AllQuestionIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (b *QuestionBank) AllQuestionIDs(ctx context.Context) ([]int64, error) {
	members, err := b.client.SMembers(ctx, b.idsKey()).Result()
	if err == nil && len(members) > 0 {
		return parseIDs(members), nil
	}

	result, err, _ := b.sf.Do("ids", func() (interface{}, error) {
		members, err := b.client.SMembers(ctx, b.idsKey()).Result()
		if err == nil && len(members) > 0 {
			return parseIDs(members), nil
		}

		ids, err := b.inner.AllQuestionIDs(ctx)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			values := make([]interface{}, len(ids))
			for i, id := range ids {
				values[i] = id
			}
			pipe := b.client.Pipeline()
			pipe.SAdd(ctx, b.idsKey(), values...)
			if ttl := b.ttlWithJitter(); ttl > 0 {
				pipe.Expire(ctx, b.idsKey(), ttl)
			}
			_, _ = pipe.Exec(ctx)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]int64), nil
}

func (b *QuestionBank) cacheQuestion(ctx context.Context, question domain.Question, alternatives []domain.Alternative) {
	ttl := b.ttlWithJitter()
	pipe := b.client.Pipeline()
	pipe.HSet(ctx, b.questionKey(question.ID), "text", question.Text)
	for _, alternative := range alternatives {
		pipe.HSet(ctx, b.alternativesKey(question.ID), strconv.FormatInt(alternative.ID, 10), alternative.Points)
	}
	if ttl > 0 {
		pipe.Expire(ctx, b.questionKey(question.ID), ttl)
		pipe.Expire(ctx, b.alternativesKey(question.ID), ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (b *QuestionBank) questionKey(id int64) string {
	return "question:" + strconv.FormatInt(id, 10)
}

func (b *QuestionBank) alternativesKey(id int64) string {
	return "question:" + strconv.FormatInt(id, 10) + ":alts"
}

func (b *QuestionBank) idsKey() string {
	return "questions:ids"
}

func buildAlternatives(questionID int64, cached map[string]string) []domain.Alternative {
	alternatives := make([]domain.Alternative, 0, len(cached))
	for rawID, rawPoints := range cached {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		points, _ := strconv.Atoi(rawPoints)
		alternatives = append(alternatives, domain.Alternative{
			ID:         id,
			QuestionID: questionID,
			Points:     points,
		})
	}
	sort.Slice(alternatives, func(i, j int) bool { return alternatives[i].ID < alternatives[j].ID })
	return alternatives
}

func parseIDs(members []string) []int64 {
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		if id, err := strconv.ParseInt(member, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ttlWithJitter spreads expirations by up to 10%. The locked package-level
// source is deliberate: fills for different questions run concurrently.
func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
