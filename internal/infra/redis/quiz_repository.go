package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"daypo-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches a full quiz from the database on a cache miss.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error)
}

// QuizRepository caches assembled quizzes in Redis as JSON and falls back to a
// loader on cache miss. Entries live at quiz:{quizID}:full; quiz:{quizID}:gen
// counts invalidations so a load that raced an edit is not cached.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error) {
	key := fullKey(quizID)
	if quiz, ok := r.cached(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, key); ok {
			return quiz, nil
		}

		gen, err := r.client.Get(ctx, genKey(quizID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("read quiz %d generation: %v", quizID, err)
			return r.loader.LoadQuiz(ctx, quizID)
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizFull{}, err
		}

		raw, err := json.Marshal(quiz)
		if err != nil {
			return quiz, nil
		}
		// cache write is best-effort; the loaded quiz is still served
		if err := r.store(ctx, quizID, gen, raw); err != nil && !errors.Is(err, errStale) {
			log.Printf("cache quiz %d: %v", quizID, err)
		}
		return quiz, nil
	})
	if err != nil {
		return domain.QuizFull{}, err
	}
	return result.(domain.QuizFull), nil
}

// Invalidate removes the cached copy of a quiz after an edit. Bumping the
// generation first keeps loads already in flight on any instance from
// writing the old copy back.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID int64) {
	key := fullKey(quizID)
	if err := r.client.Incr(ctx, genKey(quizID)).Err(); err != nil {
		log.Printf("bump quiz %d generation: %v", quizID, err)
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		log.Printf("invalidate quiz %d: %v", quizID, err)
	}
	r.sf.Forget(key)
}

var errStale = errors.New("quiz changed while loading")

// store caches raw only while the quiz generation is still gen.
func (r *QuizRepository) store(ctx context.Context, quizID, gen int64, raw []byte) error {
	gk := genKey(quizID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey(quizID), raw, r.ttlWithJitter())
			return nil
		})
		return err
	}, gk)
	if errors.Is(err, redis.TxFailedErr) {
		return errStale
	}
	return err
}

func (r *QuizRepository) cached(ctx context.Context, key string) (domain.QuizFull, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.QuizFull{}, false
	}
	var quiz domain.QuizFull
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.QuizFull{}, false
	}
	return quiz, true
}

func fullKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":full"
}

func genKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":gen"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
