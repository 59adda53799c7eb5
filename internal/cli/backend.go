package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"daypo-quiz-service/internal/app"
	"daypo-quiz-service/internal/auth"
	"daypo-quiz-service/internal/config"
	"daypo-quiz-service/internal/infra/memory"
	pgloader "daypo-quiz-service/internal/infra/postgres"
	redisinfra "daypo-quiz-service/internal/infra/redis"
	"daypo-quiz-service/internal/infra/sqldb"
	"daypo-quiz-service/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// backend is the persistence picked by config: Postgres (bun writes, pgx
// reads), SQLite, or the in-process store.
type backend struct {
	store   app.QuizStore
	loader  memory.QuizLoader
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Backend() {
	case config.BackendPostgres:
		db := sqldb.OpenPostgres(cfg.Postgres.URL)
		if err := sqldb.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Printf("using postgres backend")
		return &backend{
			store:   sqldb.NewStore(db),
			loader:  pgloader.NewQuizLoader(pool),
			closers: []func(){func() { _ = db.Close() }, pool.Close},
		}, nil
	case config.BackendSQLite:
		db, err := openSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		store := sqldb.NewStore(db)
		log.Printf("using sqlite backend at %s", cfg.SQLite.Path)
		return &backend{store: store, loader: store, closers: []func(){func() { _ = db.Close() }}}, nil
	default:
		store := memory.NewStore()
		log.Printf("no database configured, quizzes are kept in memory")
		return &backend{store: store, loader: store}, nil
	}
}

func openSQLite(ctx context.Context, path string) (*bun.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sqldb.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := sqldb.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// services wires the use cases on top of a backend, adding Redis for the quiz
// cache and sessions when configured.
type services struct {
	quizzes  *app.QuizService
	sessions *app.SessionService
	auth     *auth.Service
}

func buildServices(cfg config.Config, b *backend) (*services, error) {
	blobs, err := storage.NewFSStore(cfg.Storage.Dir, cfg.Storage.URLPrefix)
	if err != nil {
		return nil, fmt.Errorf("image storage: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, b.loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(b.loader, quizTTL)
	}

	var sessionStore app.SessionRepository
	if redisClient != nil {
		sessionStore = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		sessionStore = memory.NewSessionStore()
	}

	quizzes := app.NewQuizService(b.store, quizRepo, blobs)
	return &services{
		quizzes:  quizzes,
		sessions: app.NewSessionService(sessionStore, quizzes),
		auth:     newAuthService(cfg),
	}, nil
}

func newAuthService(cfg config.Config) *auth.Service {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Printf("auth.jwtSecret not set; using a random secret, tokens will not survive a restart")
	}
	users := make([]auth.User, 0, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		if u.PasswordHash == "" {
			log.Printf("auth: user %s has no password hash, skipping", u.Email)
			continue
		}
		users = append(users, auth.User{Email: u.Email, PasswordHash: u.PasswordHash, Role: u.Role})
	}
	return auth.NewService(secret, config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL), users)
}
