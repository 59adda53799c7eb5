package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"daypo-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches a full quiz from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error)
}

// QuizRepository caches full quizzes with TTL to avoid repeated DB hits.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int64]cachedQuiz
	// gen counts invalidations per quiz; a load only fills the cache when
	// no invalidation happened while it ran.
	gen map[int64]uint64
}

type cachedQuiz struct {
	quiz      domain.QuizFull
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedQuiz),
		gen:    make(map[int64]uint64),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error) {
	if quiz, ok := r.lookup(quizID); ok {
		return quiz, nil
	}

	key := strconv.FormatInt(quizID, 10)
	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if quiz, ok := r.lookup(quizID); ok {
			return quiz, nil
		}
		r.mu.RLock()
		gen := r.gen[quizID]
		r.mu.RUnlock()

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizFull{}, err
		}
		if r.ttl <= 0 {
			return quiz, nil
		}

		r.mu.Lock()
		if r.gen[quizID] == gen {
			r.cache[quizID] = cachedQuiz{
				quiz:      quiz,
				expiresAt: r.clock().Add(r.ttlWithJitter()),
			}
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.QuizFull{}, err
	}
	return result.(domain.QuizFull), nil
}

// Invalidate drops the cached copy so the next read goes to the loader. A load
// already in flight still returns its result but does not cache it.
func (r *QuizRepository) Invalidate(_ context.Context, quizID int64) {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.gen[quizID]++
	r.mu.Unlock()
	r.sf.Forget(strconv.FormatInt(quizID, 10))
}

func (r *QuizRepository) lookup(quizID int64) (domain.QuizFull, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.QuizFull{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
