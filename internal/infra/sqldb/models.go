package sqldb

import (
	"time"

	"daypo-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Title     string    `bun:"title,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID          int64  `bun:"id,pk,autoincrement"`
	QuizID      int64  `bun:"quiz_id,notnull"`
	OrigNo      int    `bun:"orig_no,nullzero"`
	Prompt      string `bun:"prompt,notnull"`
	Explanation string `bun:"explanation,notnull"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:options,alias:o"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id,notnull"`
	OptIndex   int    `bun:"opt_index,notnull"`
	Text       string `bun:"text,notnull"`
	IsCorrect  bool   `bun:"is_correct,notnull"`
}

type imageRow struct {
	bun.BaseModel `bun:"table:question_images,alias:qi"`

	QuestionID int64     `bun:"question_id,pk"`
	Key        string    `bun:"storage_key,notnull"`
	Mime       string    `bun:"mime,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt.UTC()}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{ID: r.ID, QuizID: r.QuizID, OrigNo: r.OrigNo, Prompt: r.Prompt, Explanation: r.Explanation}
}

func (r optionRow) toDomain() domain.Option {
	return domain.Option{ID: r.ID, QuestionID: r.QuestionID, OptIndex: r.OptIndex, Text: r.Text, IsCorrect: r.IsCorrect}
}

func (r imageRow) toDomain() domain.Image {
	return domain.Image{QuestionID: r.QuestionID, Key: r.Key, Mime: r.Mime, UpdatedAt: r.UpdatedAt.UTC()}
}

func optionRows(questionID int64, texts []string, correct func(int) bool) []optionRow {
	rows := make([]optionRow, 0, len(texts))
	for i, text := range texts {
		rows = append(rows, optionRow{QuestionID: questionID, OptIndex: i, Text: text, IsCorrect: correct(i)})
	}
	return rows
}

func mapRows[R any, D any](rows []R, fn func(R) D) []D {
	out := make([]D, 0, len(rows))
	for _, r := range rows {
		out = append(out, fn(r))
	}
	return out
}
