package http

import (
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizzes.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "quizID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	full, err := h.quizzes.GetQuiz(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, full)
}

func (h *Handler) serveAsset(w http.ResponseWriter, r *http.Request) {
	rc, err := h.quizzes.OpenImage(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}
