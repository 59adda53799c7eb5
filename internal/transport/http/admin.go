package http

import (
	"io"
	"mime"
	"net/http"

	"daypo-quiz-service/internal/app"
	"daypo-quiz-service/internal/domain"
)

// maxImportBytes bounds an uploaded XML export.
const maxImportBytes = 32 << 20

type importRequest struct {
	Title string              `json:"title"`
	Items []domain.ImportItem `json:"items"`
}

// importQuiz accepts a multipart upload (file, title), a raw XML body, or
// already parsed items as JSON.
func (h *Handler) importQuiz(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		quiz domain.Quiz
		err  error
	)
	switch mediaType {
	case "application/json":
		var req importRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		quiz, err = h.quizzes.ImportItems(r.Context(), req.Title, req.Items)
	case "multipart/form-data":
		file, _, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, r, domain.Invalid("file", "missing xml upload"))
			return
		}
		defer file.Close()
		quiz, err = h.quizzes.ImportXML(r.Context(), file, r.FormValue("title"))
	default:
		quiz, err = h.quizzes.ImportXML(r.Context(), r.Body, r.URL.Query().Get("title"))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "quizID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.quizzes.DeleteQuiz(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in app.EditInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.quizzes.UpdateQuestion(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.quizzes.DeleteQuestion(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	// room for multipart framing around the image itself
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxImageBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.Invalid("file", "missing or too large (max %d bytes)", app.MaxImageBytes))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, domain.Invalid("file", "unreadable: %v", err))
		return
	}
	img, err := h.quizzes.PutImage(r.Context(), id, data, header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.quizzes.DeleteImage(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	backup, err := h.quizzes.Export(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="quiz-backup.json"`)
	writeJSON(w, http.StatusOK, backup)
}
