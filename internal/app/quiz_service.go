package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"daypo-quiz-service/internal/domain"
	"daypo-quiz-service/internal/importer"
	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes bounds a single question image upload.
const MaxImageBytes = 5 << 20

// QuizStore persists quizzes, questions, options and image references.
// Every method must apply its writes atomically.
type QuizStore interface {
	ImportQuiz(ctx context.Context, title string, items []domain.ImportItem) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	GetQuestion(ctx context.Context, questionID int64) (domain.Question, error)
	// UpdateQuestion replaces the prompt and every option of the question.
	UpdateQuestion(ctx context.Context, questionID int64, edit domain.QuestionEdit) (domain.Question, error)
	// DeleteQuestion returns the key of the image that was attached, if any.
	DeleteQuestion(ctx context.Context, questionID int64) (string, error)
	// DeleteQuiz returns the keys of every image that was attached to the quiz.
	DeleteQuiz(ctx context.Context, quizID int64) ([]string, error)
	// PutImage upserts the image reference and returns the replaced key, if any.
	PutImage(ctx context.Context, img domain.Image) (string, error)
	// DeleteImage removes the image reference and returns its key, if any.
	DeleteImage(ctx context.Context, questionID int64) (string, error)
	Export(ctx context.Context) (domain.Backup, error)
}

// QuizRepository loads full quizzes (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error)
	Invalidate(ctx context.Context, quizID int64)
}

// BlobStore holds image content by key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, keys ...string) error
	URL(key string) string
}

// QuizService contains the catalog and admin use cases.
type QuizService struct {
	store   QuizStore
	quizzes QuizRepository
	blobs   BlobStore
	now     func() time.Time
}

func NewQuizService(store QuizStore, quizzes QuizRepository, blobs BlobStore) *QuizService {
	return &QuizService{store: store, quizzes: quizzes, blobs: blobs, now: time.Now}
}

// ImportXML parses a Daypo export and stores it as a new quiz. A non-empty
// title overrides the one found in the document.
func (s *QuizService) ImportXML(ctx context.Context, r io.Reader, title string) (domain.Quiz, error) {
	parsed, err := importer.Parse(r)
	if err != nil {
		return domain.Quiz{}, err
	}
	if strings.TrimSpace(title) != "" {
		parsed.Title = title
	}
	quiz, err := s.ImportItems(ctx, parsed.Title, parsed.Items)
	if err != nil {
		return domain.Quiz{}, err
	}
	log.Printf("imported quiz %d %q with %d questions", quiz.ID, quiz.Title, len(parsed.Items))
	return quiz, nil
}

// ImportItems validates already-parsed items and stores them in order.
func (s *QuizService) ImportItems(ctx context.Context, title string, items []domain.ImportItem) (domain.Quiz, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Quiz{}, domain.Invalid("title", "required")
	}
	if len(items) == 0 {
		return domain.Quiz{}, domain.Invalid("items", "at least one question is required")
	}

	clean := make([]domain.ImportItem, 0, len(items))
	for i, it := range items {
		field := "items[" + strconv.Itoa(i) + "]"
		prompt := strings.TrimSpace(it.Prompt)
		if prompt == "" {
			return domain.Quiz{}, domain.Invalid(field+".prompt", "required")
		}
		if len(it.Options) < 2 {
			return domain.Quiz{}, domain.Invalid(field+".options", "at least 2 options required, got %d", len(it.Options))
		}
		options := make([]string, len(it.Options))
		for j, o := range it.Options {
			options[j] = strings.TrimSpace(o)
			if options[j] == "" {
				return domain.Quiz{}, domain.Invalid(field+".options", "option %d is empty", j+1)
			}
		}
		for _, c := range it.Correct {
			if c < 0 || c >= len(options) {
				return domain.Quiz{}, domain.Invalid(field+".correct", "index %d out of range", c)
			}
		}
		origNo := it.OrigNo
		if origNo < 0 {
			origNo = 0
		}
		clean = append(clean, domain.ImportItem{OrigNo: origNo, Prompt: prompt, Options: options, Correct: it.Correct})
	}

	quiz, err := s.store.ImportQuiz(ctx, title, clean)
	if err != nil {
		return domain.Quiz{}, domain.Storage("import quiz", err)
	}
	return quiz, nil
}

// ListQuizzes returns every quiz, newest first.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := s.store.ListQuizzes(ctx)
	if err != nil {
		return nil, domain.Storage("list quizzes", err)
	}
	return quizzes, nil
}

// GetQuiz loads a full quiz with image keys resolved to URLs.
func (s *QuizService) GetQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error) {
	full, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizFull{}, domain.Storage("load quiz", err)
	}
	// cached value is shared; copy before rewriting image references
	out := full
	out.Questions = make([]domain.QuestionView, len(full.Questions))
	copy(out.Questions, full.Questions)
	for i := range out.Questions {
		if key := out.Questions[i].Image; key != "" {
			out.Questions[i].Image = s.blobs.URL(key)
		}
	}
	return out, nil
}

// EditInput is the raw form of a question edit. When OrigNo is nil the number
// is re-extracted from the prompt.
type EditInput struct {
	Prompt       string   `json:"prompt"`
	OrigNo       *int     `json:"origNo"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// NormalizeEdit validates an edit and turns it into the stored shape.
func NormalizeEdit(in EditInput) (domain.QuestionEdit, error) {
	prompt := strings.TrimSpace(strings.ReplaceAll(in.Prompt, "\r\n", "\n"))
	origNo := 0
	if in.OrigNo == nil {
		origNo, prompt = importer.EditNumbering(prompt)
	} else if *in.OrigNo > 0 {
		origNo = *in.OrigNo
	}
	if prompt == "" {
		return domain.QuestionEdit{}, domain.Invalid("prompt", "required")
	}
	if len(in.Options) < 2 {
		return domain.QuestionEdit{}, domain.Invalid("options", "at least 2 options required, got %d", len(in.Options))
	}
	options := make([]string, len(in.Options))
	for i, o := range in.Options {
		options[i] = strings.TrimSpace(o)
		if options[i] == "" {
			return domain.QuestionEdit{}, domain.Invalid("options", "option %d is empty", i+1)
		}
	}
	if in.CorrectIndex < 0 || in.CorrectIndex >= len(options) {
		return domain.QuestionEdit{}, domain.Invalid("correctIndex", "must be between 0 and %d", len(options)-1)
	}
	return domain.QuestionEdit{OrigNo: origNo, Prompt: prompt, Options: options, CorrectIndex: in.CorrectIndex}, nil
}

// UpdateQuestion replaces a question's prompt and options.
func (s *QuizService) UpdateQuestion(ctx context.Context, questionID int64, in EditInput) (domain.Question, error) {
	edit, err := NormalizeEdit(in)
	if err != nil {
		return domain.Question{}, err
	}
	q, err := s.store.UpdateQuestion(ctx, questionID, edit)
	if err != nil {
		return domain.Question{}, domain.Storage("update question", err)
	}
	s.quizzes.Invalidate(ctx, q.QuizID)
	return q, nil
}

// DeleteQuestion removes a question with its options and image.
func (s *QuizService) DeleteQuestion(ctx context.Context, questionID int64) error {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Storage("get question", err)
	}
	key, err := s.store.DeleteQuestion(ctx, questionID)
	if err != nil {
		return domain.Storage("delete question", err)
	}
	s.quizzes.Invalidate(ctx, q.QuizID)
	if key != "" {
		if err := s.blobs.Delete(ctx, key); err != nil {
			return domain.Storage("delete image blob", err)
		}
	}
	return nil
}

// DeleteQuiz removes a quiz and everything it owns.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID int64) error {
	keys, err := s.store.DeleteQuiz(ctx, quizID)
	if err != nil {
		return domain.Storage("delete quiz", err)
	}
	s.quizzes.Invalidate(ctx, quizID)
	if len(keys) > 0 {
		if err := s.blobs.Delete(ctx, keys...); err != nil {
			return domain.Storage("delete image blobs", err)
		}
	}
	return nil
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

// PutImage stores image content for a question, replacing any previous image.
func (s *QuizService) PutImage(ctx context.Context, questionID int64, data []byte, filename string) (domain.Image, error) {
	if len(data) == 0 {
		return domain.Image{}, domain.Invalid("file", "empty")
	}
	if len(data) > MaxImageBytes {
		return domain.Image{}, domain.Invalid("file", "larger than %d bytes", MaxImageBytes)
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return domain.Image{}, domain.Invalid("file", "not an image (%s)", detected.String())
	}

	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Image{}, domain.Storage("get question", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExts[ext] {
		ext = detected.Extension()
		if !imageExts[ext] {
			ext = ".png"
		}
	}
	now := s.now()
	img := domain.Image{
		QuestionID: questionID,
		Key:        fmt.Sprintf("questions/%d/%d%s", questionID, now.UnixNano(), ext),
		Mime:       detected.String(),
		UpdatedAt:  now,
	}

	if err := s.blobs.Put(ctx, img.Key, bytes.NewReader(data)); err != nil {
		return domain.Image{}, domain.Storage("put image blob", err)
	}
	prev, err := s.store.PutImage(ctx, img)
	if err != nil {
		_ = s.blobs.Delete(ctx, img.Key)
		return domain.Image{}, domain.Storage("put image", err)
	}
	s.quizzes.Invalidate(ctx, q.QuizID)
	if prev != "" && prev != img.Key {
		if err := s.blobs.Delete(ctx, prev); err != nil {
			log.Printf("delete replaced image %s: %v", prev, err)
		}
	}
	return img, nil
}

// DeleteImage clears a question's image. Clearing a question without an
// image succeeds.
func (s *QuizService) DeleteImage(ctx context.Context, questionID int64) error {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Storage("get question", err)
	}
	key, err := s.store.DeleteImage(ctx, questionID)
	if err != nil {
		return domain.Storage("delete image", err)
	}
	if key == "" {
		return nil
	}
	s.quizzes.Invalidate(ctx, q.QuizID)
	if err := s.blobs.Delete(ctx, key); err != nil {
		return domain.Storage("delete image blob", err)
	}
	return nil
}

// OpenImage streams stored image content.
func (s *QuizService) OpenImage(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		return nil, domain.Storage("open image", err)
	}
	return rc, nil
}

// Export dumps every entity, with image content inlined.
func (s *QuizService) Export(ctx context.Context) (domain.Backup, error) {
	backup, err := s.store.Export(ctx)
	if err != nil {
		return domain.Backup{}, domain.Storage("export", err)
	}
	backup.Version = domain.BackupVersion
	backup.ExportedAt = s.now().UTC()
	for i := range backup.Images {
		data, err := s.readBlob(ctx, backup.Images[i].Key)
		if err != nil {
			log.Printf("export: image %s unreadable: %v", backup.Images[i].Key, err)
			continue
		}
		backup.Images[i].Data = data
	}
	return backup, nil
}

func (s *QuizService) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
