package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"daypo-quiz-service/internal/domain"
	"daypo-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	first, err := repo.GetQuiz(context.Background(), quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:1:full") {
		t.Fatalf("expected cached quiz key")
	}

	// Second call should hit cache, loader not incremented.
	second, err := repo.GetQuiz(context.Background(), quizID)
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if second.Title != first.Title || len(second.Questions) != len(first.Questions) {
		t.Fatalf("cached quiz differs: %+v vs %+v", second, first)
	}
	if second.Questions[0].Correct[0] != first.Questions[0].Correct[0] {
		t.Fatalf("expected correct indices to survive the cache")
	}
}

func TestQuizRepositoryInvalidateDeletesKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	_, _ = repo.GetQuiz(ctx, quizID)
	repo.Invalidate(ctx, quizID)
	if mr.Exists("quiz:1:full") {
		t.Fatalf("expected cached quiz removed")
	}
	_, _ = repo.GetQuiz(ctx, quizID)
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestQuizRepositoryInvalidateDuringLoad(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store, quizID := seededStore(t)
	loader := &gatedLoader{QuizLoader: store, started: make(chan struct{}), release: make(chan struct{})}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)
	// the edit lands on another instance sharing the same redis
	other := NewQuizRepository(newClient(mr), store, time.Minute)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := repo.GetQuiz(ctx, quizID)
		done <- err
	}()
	<-loader.started
	other.Invalidate(ctx, quizID)
	close(loader.release)
	if err := <-done; err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if mr.Exists("quiz:1:full") {
		t.Fatalf("load that raced an invalidate must not be cached")
	}

	if _, err := repo.GetQuiz(ctx, quizID); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if !mr.Exists("quiz:1:full") {
		t.Fatalf("expected the next load to be cached")
	}
}

func TestQuizRepositoryExpiresWithTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	_, _ = repo.GetQuiz(context.Background(), quizID)
	mr.FastForward(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), quizID)
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

// gatedLoader blocks its first load until release is closed.
type gatedLoader struct {
	QuizLoader
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *gatedLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error) {
	l.once.Do(func() {
		close(l.started)
		<-l.release
	})
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func seededStore(t *testing.T) (*memory.Store, int64) {
	t.Helper()
	store := memory.NewStore()
	quiz, err := store.ImportQuiz(context.Background(), "Arithmetic", []domain.ImportItem{
		{OrigNo: 1, Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, Correct: []int{1}},
		{OrigNo: 2, Prompt: "What is 3 + 3?", Options: []string{"6", "7"}, Correct: []int{0}},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	return store, quiz.ID
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
