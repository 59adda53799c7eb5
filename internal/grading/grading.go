// Package grading scores answers against each question's correct option set.
package grading

import "daypo-quiz-service/internal/domain"

// Grade scores answers (question id -> selected option index; a missing key is
// an unanswered question). A question is correct when its selection is one of
// its correct indices. WrongIDs keeps presentation order.
func Grade(questions []domain.QuestionView, answers map[int64]int) domain.GradeResult {
	res := domain.GradeResult{
		Total:    len(questions),
		WrongIDs: []int64{},
		Marks:    make([]domain.Mark, 0, len(questions)),
	}
	for _, q := range questions {
		mark := domain.Mark{QuestionID: q.ID}
		if sel, ok := answers[q.ID]; ok {
			mark.Selected = &sel
			mark.Correct = q.IsCorrect(sel)
		}
		if mark.Correct {
			res.CorrectCount++
		} else {
			res.WrongIDs = append(res.WrongIDs, q.ID)
		}
		res.Marks = append(res.Marks, mark)
	}
	if res.Total > 0 {
		res.ScorePercent = 100 * float64(res.CorrectCount) / float64(res.Total)
	}
	return res
}

// Retry keeps the questions whose id is in wrongIDs, in their original
// relative order. Nothing is re-sampled.
func Retry(questions []domain.QuestionView, wrongIDs []int64) []domain.QuestionView {
	wrong := make(map[int64]struct{}, len(wrongIDs))
	for _, id := range wrongIDs {
		wrong[id] = struct{}{}
	}
	out := make([]domain.QuestionView, 0, len(wrongIDs))
	for _, q := range questions {
		if _, ok := wrong[q.ID]; ok {
			out = append(out, q)
		}
	}
	return out
}
