package domain

import (
	"sort"
	"time"
)

// Quiz is an imported question set.
type Quiz struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Question belongs to exactly one quiz. OrigNo is the numbering found in the
// source document; zero means it was absent.
type Question struct {
	ID          int64  `json:"id"`
	QuizID      int64  `json:"quizId"`
	OrigNo      int    `json:"origNo,omitempty"`
	Prompt      string `json:"prompt"`
	Explanation string `json:"explanation,omitempty"`
}

// Option is one answer choice. OptIndex is zero-based and addresses the option
// both for display order and for correctness codes.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	OptIndex   int    `json:"optIndex"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Image references the stored blob attached to a question.
type Image struct {
	QuestionID int64     `json:"questionId"`
	Key        string    `json:"key"`
	Mime       string    `json:"mime,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Data       []byte    `json:"data,omitempty"` // populated for backups only
}

// OptionView is the canonical read shape of an option.
type OptionView struct {
	I int    `json:"i"`
	T string `json:"t"`
}

// QuestionView is the read-only projection handed to the engines.
type QuestionView struct {
	ID          int64        `json:"id"`
	OrigNo      int          `json:"origNo"`
	Prompt      string       `json:"prompt"`
	Explanation string       `json:"explanation,omitempty"`
	Options     []OptionView `json:"options"`
	Correct     []int        `json:"correct"`
	Image       string       `json:"image,omitempty"`
}

// IsCorrect reports whether the selected option index is one of the correct ones.
func (q QuestionView) IsCorrect(selected int) bool {
	for _, c := range q.Correct {
		if c == selected {
			return true
		}
	}
	return false
}

// QuizFull is a quiz with every question, option and image reference loaded.
type QuizFull struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Questions []QuestionView `json:"questions"`
}

// ImportItem is a question parsed from a source document, before persistence.
type ImportItem struct {
	OrigNo  int      `json:"origNo"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Correct []int    `json:"correct"`
}

// ParsedQuiz is the importer output.
type ParsedQuiz struct {
	Title string       `json:"title"`
	Items []ImportItem `json:"items"`
}

// QuestionEdit replaces a question's prompt and its options wholesale.
type QuestionEdit struct {
	OrigNo       int
	Prompt       string
	Options      []string
	CorrectIndex int
}

// Settings control how a quiz is sampled for a session. A nil Limit presents
// every question.
type Settings struct {
	Limit     *int `json:"limit"`
	Randomize bool `json:"randomize"`
}

// GradeResult summarizes a grading pass.
type GradeResult struct {
	Total        int     `json:"total"`
	CorrectCount int     `json:"correctCount"`
	ScorePercent float64 `json:"scorePercent"`
	WrongIDs     []int64 `json:"wrongIds"`
	Marks        []Mark  `json:"marks"`
}

// Mark records the outcome for a single presented question.
type Mark struct {
	QuestionID int64 `json:"questionId"`
	Selected   *int  `json:"selected"`
	Correct    bool  `json:"correct"`
}

// Backup is a flat dump of every entity.
type Backup struct {
	Version    int        `json:"version"`
	ExportedAt time.Time  `json:"exportedAt"`
	Quizzes    []Quiz     `json:"quizzes"`
	Questions  []Question `json:"questions"`
	Options    []Option   `json:"options"`
	Images     []Image    `json:"images"`
}

// BackupVersion is written into every export.
const BackupVersion = 1

// SortQuestions orders views by original number (absent numbers last) and
// then by id, which follows import order.
func SortQuestions(qs []QuestionView) {
	sort.SliceStable(qs, func(i, j int) bool {
		oi, oj := qs[i].OrigNo, qs[j].OrigNo
		if (oi > 0) != (oj > 0) {
			return oi > 0
		}
		if oi != oj {
			return oi < oj
		}
		return qs[i].ID < qs[j].ID
	})
}
