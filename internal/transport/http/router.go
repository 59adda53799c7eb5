package http

import (
	"net/http"
	"time"

	"daypo-quiz-service/internal/app"
	"daypo-quiz-service/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handler serves the public catalog, the admin API, participant sessions and
// the websocket endpoint.
type Handler struct {
	quizzes  *app.QuizService
	sessions *app.SessionService
	auth     *auth.Service
	ws       *WSHandler
}

func NewHandler(quizzes *app.QuizService, sessions *app.SessionService, authSvc *auth.Service) *Handler {
	return &Handler{
		quizzes:  quizzes,
		sessions: sessions,
		auth:     authSvc,
		ws:       NewWSHandler(sessions),
	}
}

// Router mounts every route. Origins lists the browser origins allowed by
// CORS; empty allows any.
func (h *Handler) Router(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", h.ws.ServeWS)
	r.Get("/assets/*", h.serveAsset)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.With(auth.RequireAuth(h.auth)).Get("/me", h.me)
	})

	r.Route("/quizzes", func(r chi.Router) {
		r.Get("/", h.listQuizzes)
		r.Get("/{quizID}", h.getQuiz)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Post("/", h.startSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.viewSession)
			r.Delete("/", h.closeSession)
			r.Post("/open", h.openQuiz)
			r.Put("/settings", h.changeSettings)
			r.Put("/answers", h.answer)
			r.Post("/grade", h.grade)
			r.Post("/retry", h.retry)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAuth(h.auth))
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Post("/quizzes/import", h.importQuiz)
		r.Delete("/quizzes/{quizID}", h.deleteQuiz)
		r.Put("/questions/{questionID}", h.updateQuestion)
		r.Delete("/questions/{questionID}", h.deleteQuestion)
		r.Put("/questions/{questionID}/image", h.putImage)
		r.Delete("/questions/{questionID}/image", h.deleteImage)
		r.Get("/export", h.export)
	})
	return r
}
