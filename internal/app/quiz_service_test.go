package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"daypo-quiz-service/internal/app"
	"daypo-quiz-service/internal/domain"
	"daypo-quiz-service/internal/infra/memory"
	"daypo-quiz-service/internal/storage"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<test>
  <p><t>Aritmética</t></p>
  <c>
    <e><p>2. What is 2 + 2?</p><r><o>3</o><o>4</o><o>5</o></r><c>121</c></e>
    <e><p>1. What is 1 + 1?</p><r><o>2</o><o>11</o></r><c>21</c></e>
    <e><p>Pick the even ones</p><r><o>2</o><o>3</o><o>4</o></r><c>212</c></e>
  </c>
</test>`

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type testEnv struct {
	quizzes  *app.QuizService
	sessions *app.SessionService
	store    *memory.Store
	blobDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewFSStore(dir, "/assets/")
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	store := memory.NewStore()
	quizzes := app.NewQuizService(store, memory.NewQuizRepository(store, time.Minute), blobs)
	return &testEnv{
		quizzes:  quizzes,
		sessions: app.NewSessionService(memory.NewSessionStore(), quizzes),
		store:    store,
		blobDir:  dir,
	}
}

func (e *testEnv) importSample(t *testing.T) domain.QuizFull {
	t.Helper()
	ctx := context.Background()
	quiz, err := e.quizzes.ImportXML(ctx, strings.NewReader(sampleXML), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	full, err := e.quizzes.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	return full
}

func TestImportXMLStoresQuestionsInDisplayOrder(t *testing.T) {
	env := newTestEnv(t)
	full := env.importSample(t)

	if full.Title != "Aritmética" {
		t.Fatalf("unexpected title %q", full.Title)
	}
	if len(full.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(full.Questions))
	}
	if full.Questions[0].Prompt != "What is 1 + 1?" || full.Questions[1].OrigNo != 2 || full.Questions[2].OrigNo != 0 {
		t.Fatalf("unexpected order %+v", full.Questions)
	}
	if got := full.Questions[2].Correct; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("expected correct [0 2], got %v", got)
	}
}

func TestImportXMLTitleOverride(t *testing.T) {
	env := newTestEnv(t)
	quiz, err := env.quizzes.ImportXML(context.Background(), strings.NewReader(sampleXML), "  Custom  ")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if quiz.Title != "Custom" {
		t.Fatalf("expected override title, got %q", quiz.Title)
	}
}

func TestImportXMLRejectsMalformedDocument(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.quizzes.ImportXML(context.Background(), strings.NewReader("<test><c>"), "")
	var parseErr *domain.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestImportItemsValidation(t *testing.T) {
	ok := domain.ImportItem{Prompt: "Q", Options: []string{"a", "b"}, Correct: []int{0}}
	cases := []struct {
		name  string
		title string
		items []domain.ImportItem
		field string
	}{
		{"blank title", " ", []domain.ImportItem{ok}, "title"},
		{"no items", "T", nil, "items"},
		{"blank prompt", "T", []domain.ImportItem{{Prompt: " ", Options: []string{"a", "b"}}}, "items[0].prompt"},
		{"one option", "T", []domain.ImportItem{ok, {Prompt: "Q", Options: []string{"a"}}}, "items[1].options"},
		{"empty option", "T", []domain.ImportItem{{Prompt: "Q", Options: []string{"a", "  "}}}, "items[0].options"},
		{"correct out of range", "T", []domain.ImportItem{{Prompt: "Q", Options: []string{"a", "b"}, Correct: []int{2}}}, "items[0].correct"},
	}
	env := newTestEnv(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.quizzes.ImportItems(context.Background(), tc.title, tc.items)
			var invalid *domain.ValidationError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if invalid.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, invalid.Field)
			}
		})
	}
	if quizzes, _ := env.quizzes.ListQuizzes(context.Background()); len(quizzes) != 0 {
		t.Fatalf("expected nothing stored, got %d quizzes", len(quizzes))
	}
}

func TestNormalizeEdit(t *testing.T) {
	four, zero, negative := 4, 0, -3
	cases := []struct {
		name   string
		in     app.EditInput
		origNo int
		prompt string
	}{
		{"number from prompt", app.EditInput{Prompt: "12. Hello\r\nworld"}, 12, "Hello\nworld"},
		{"strict rule keeps figures", app.EditInput{Prompt: "2024 was long"}, 0, "2024 was long"},
		{"explicit number wins", app.EditInput{Prompt: "12. Hello", OrigNo: &four}, 4, "12. Hello"},
		{"zero is absent", app.EditInput{Prompt: "Hello", OrigNo: &zero}, 0, "Hello"},
		{"negative is absent", app.EditInput{Prompt: "Hello", OrigNo: &negative}, 0, "Hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Options = []string{" a ", "b"}
			edit, err := app.NormalizeEdit(tc.in)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if edit.OrigNo != tc.origNo || edit.Prompt != tc.prompt {
				t.Fatalf("got (%d, %q), want (%d, %q)", edit.OrigNo, edit.Prompt, tc.origNo, tc.prompt)
			}
			if edit.Options[0] != "a" {
				t.Fatalf("expected trimmed option, got %q", edit.Options[0])
			}
		})
	}

	if _, err := app.NormalizeEdit(app.EditInput{Prompt: "Q", Options: []string{"a", "b"}, CorrectIndex: 2}); err == nil {
		t.Fatalf("expected correctIndex out of range to fail")
	}
	if _, err := app.NormalizeEdit(app.EditInput{Prompt: " \r\n ", Options: []string{"a", "b"}}); err == nil {
		t.Fatalf("expected empty prompt to fail")
	}
}

func TestUpdateQuestionRefreshesCachedQuiz(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	full := env.importSample(t)
	target := full.Questions[0]

	_, err := env.quizzes.UpdateQuestion(ctx, target.ID, app.EditInput{
		Prompt:       "9. What is one plus one?",
		Options:      []string{"2", "11", "10"},
		CorrectIndex: 2,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	full, _ = env.quizzes.GetQuiz(ctx, full.ID)
	last := full.Questions[1]
	if last.ID != target.ID || last.Prompt != "What is one plus one?" || last.OrigNo != 9 {
		t.Fatalf("expected edited question re-sorted after origNo 2, got %+v", full.Questions)
	}
	if len(last.Options) != 3 || len(last.Correct) != 1 || last.Correct[0] != 2 {
		t.Fatalf("unexpected options after edit %+v", last)
	}

	_, err = env.quizzes.UpdateQuestion(ctx, 999, app.EditInput{Prompt: "x", Options: []string{"a", "b"}})
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPutImageLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	full := env.importSample(t)
	qid := full.Questions[0].ID

	if _, err := env.quizzes.PutImage(ctx, qid, []byte("plain text"), "notes.png"); err == nil {
		t.Fatalf("expected non-image upload to fail")
	}
	if _, err := env.quizzes.PutImage(ctx, qid, make([]byte, app.MaxImageBytes+1), "big.png"); err == nil {
		t.Fatalf("expected oversize upload to fail")
	}

	first, err := env.quizzes.PutImage(ctx, qid, pngHeader, "diagram.gif")
	if err != nil {
		t.Fatalf("put image: %v", err)
	}
	if !strings.HasSuffix(first.Key, ".png") || first.Mime != "image/png" {
		t.Fatalf("expected extension from content, got %+v", first)
	}
	second, err := env.quizzes.PutImage(ctx, qid, pngHeader, "diagram.webp")
	if err != nil {
		t.Fatalf("put image 2: %v", err)
	}
	if !strings.HasSuffix(second.Key, ".webp") {
		t.Fatalf("expected allowed filename extension kept, got %s", second.Key)
	}
	if _, err := os.Stat(filepath.Join(env.blobDir, filepath.FromSlash(first.Key))); !os.IsNotExist(err) {
		t.Fatalf("expected replaced blob removed, stat err %v", err)
	}

	full, _ = env.quizzes.GetQuiz(ctx, full.ID)
	if full.Questions[0].Image != "/assets/"+second.Key {
		t.Fatalf("expected image url, got %q", full.Questions[0].Image)
	}

	if err := env.quizzes.DeleteImage(ctx, qid); err != nil {
		t.Fatalf("delete image: %v", err)
	}
	if err := env.quizzes.DeleteImage(ctx, qid); err != nil {
		t.Fatalf("second delete should succeed: %v", err)
	}
	if _, err := env.quizzes.OpenImage(ctx, second.Key); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected blob gone, got %v", err)
	}
}

func TestDeleteQuizRemovesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	full := env.importSample(t)
	img, err := env.quizzes.PutImage(ctx, full.Questions[1].ID, pngHeader, "a.png")
	if err != nil {
		t.Fatalf("put image: %v", err)
	}

	if err := env.quizzes.DeleteQuiz(ctx, full.ID); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if _, err := env.quizzes.GetQuiz(ctx, full.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz gone from cache and store, got %v", err)
	}
	if _, err := env.quizzes.OpenImage(ctx, img.Key); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected blob removed, got %v", err)
	}
	if err := env.quizzes.DeleteQuiz(ctx, full.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDeleteQuestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	full := env.importSample(t)

	if err := env.quizzes.DeleteQuestion(ctx, full.Questions[0].ID); err != nil {
		t.Fatalf("delete question: %v", err)
	}
	full, _ = env.quizzes.GetQuiz(ctx, full.ID)
	if len(full.Questions) != 2 {
		t.Fatalf("expected 2 questions left, got %d", len(full.Questions))
	}
}

func TestExportInlinesImages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	full := env.importSample(t)
	if _, err := env.quizzes.PutImage(ctx, full.Questions[0].ID, pngHeader, "a.png"); err != nil {
		t.Fatalf("put image: %v", err)
	}

	backup, err := env.quizzes.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if backup.Version != domain.BackupVersion || backup.ExportedAt.IsZero() {
		t.Fatalf("unexpected header %+v", backup)
	}
	if len(backup.Quizzes) != 1 || len(backup.Questions) != 3 || len(backup.Options) != 8 {
		t.Fatalf("unexpected counts q=%d qs=%d o=%d", len(backup.Quizzes), len(backup.Questions), len(backup.Options))
	}
	if len(backup.Images) != 1 || string(backup.Images[0].Data) != string(pngHeader) {
		t.Fatalf("expected image bytes inlined")
	}
}
