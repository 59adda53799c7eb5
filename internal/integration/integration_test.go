package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"daypo-quiz-service/internal/app"
	"daypo-quiz-service/internal/domain"
	pgloader "daypo-quiz-service/internal/infra/postgres"
	infraredis "daypo-quiz-service/internal/infra/redis"
	"daypo-quiz-service/internal/infra/sqldb"
	"daypo-quiz-service/internal/storage"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<test>
  <p><t>Bases de datos</t></p>
  <c>
    <e><p>2. Forma normal que elimina dependencias transitivas</p><r><o>1FN</o><o>2FN</o><o>3FN</o></r><c>112</c></e>
    <e><p>1. Lenguaje de consulta estándar</p><r><o>SQL</o><o>HTML</o></r><c>21</c></e>
    <e><p>Sin número</p><r><o>sí</o><o>no</o></r><c>12</c></e>
  </c>
</test>`

func TestImportPracticeAndRetryEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := sqldb.OpenPostgres(pgURL)
	defer db.Close()
	if err := sqldb.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	blobs, err := storage.NewFSStore(t.TempDir(), "/assets/")
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	quizRepo := infraredis.NewQuizRepository(redisClient, pgloader.NewQuizLoader(pool), 5*time.Minute)
	quizzes := app.NewQuizService(sqldb.NewStore(db), quizRepo, blobs)
	sessions := app.NewSessionService(infraredis.NewSessionStore(redisClient, 5*time.Minute), quizzes)

	quiz, err := quizzes.ImportXML(ctx, strings.NewReader(sampleXML), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	full, err := quizzes.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(full.Questions) != 3 || full.Questions[0].OrigNo != 1 || full.Questions[2].OrigNo != 0 {
		t.Fatalf("unexpected question order %+v", full.Questions)
	}

	view, err := sessions.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err = sessions.OpenQuiz(ctx, view.ID, quiz.ID, domain.Settings{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	right, wrong := 0, 0
	if _, err := sessions.Answer(ctx, view.ID, view.Questions[0].ID, &right); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := sessions.Answer(ctx, view.ID, view.Questions[1].ID, &wrong); err != nil {
		t.Fatalf("answer: %v", err)
	}
	res, err := sessions.Grade(ctx, view.ID)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.CorrectCount != 1 || len(res.WrongIDs) != 2 {
		t.Fatalf("expected 1 correct and 2 wrong, got %+v", res)
	}

	// a second instance only sees the Redis snapshot
	otherSessions := app.NewSessionService(infraredis.NewSessionStore(redisClient, 5*time.Minute), quizzes)
	view, err = otherSessions.Retry(ctx, view.ID)
	if err != nil {
		t.Fatalf("retry from snapshot: %v", err)
	}
	if view.State != app.StateRetryFiltered || len(view.Questions) != 2 {
		t.Fatalf("expected 2 questions to retry, got %+v", view)
	}

	// edits go through bun and must invalidate the Redis copy read via pgx
	_, err = quizzes.UpdateQuestion(ctx, full.Questions[2].ID, app.EditInput{
		Prompt: "7. Con número", Options: []string{"sí", "no"}, CorrectIndex: 0,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	full, err = quizzes.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz after edit: %v", err)
	}
	if full.Questions[2].OrigNo != 7 || full.Questions[2].Correct[0] != 0 {
		t.Fatalf("expected edited question, got %+v", full.Questions[2])
	}

	if err := quizzes.DeleteQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if _, err := quizzes.GetQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz gone, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
