package http

import (
	"net/http"

	"daypo-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type openRequest struct {
	QuizID    int64 `json:"quizId"`
	Limit     *int  `json:"limit"`
	Randomize bool  `json:"randomize"`
}

type answerRequest struct {
	QuestionID int64 `json:"questionId"`
	Option     *int  `json:"option"`
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Start(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) viewSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.View(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), sessionID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) openQuiz(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.QuizID <= 0 {
		writeError(w, r, domain.Invalid("quizId", "must be a positive integer"))
		return
	}
	view, err := h.sessions.OpenQuiz(r.Context(), sessionID(r), req.QuizID, domain.Settings{Limit: req.Limit, Randomize: req.Randomize})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) changeSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.sessions.ChangeSettings(r.Context(), sessionID(r), settings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.sessions.Answer(r.Context(), sessionID(r), req.QuestionID, req.Option)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) grade(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Grade(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Retry(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
