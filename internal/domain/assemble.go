package domain

import "sort"

// AssembleQuiz builds the canonical QuizFull from raw rows. Every store funnels
// its reads through here so the engines only ever see one record shape.
func AssembleQuiz(quiz Quiz, questions []Question, options []Option, images []Image) QuizFull {
	byQuestion := make(map[int64][]Option, len(questions))
	for _, o := range options {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], o)
	}
	imageKey := make(map[int64]string, len(images))
	for _, img := range images {
		imageKey[img.QuestionID] = img.Key
	}

	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		opts := byQuestion[q.ID]
		sort.Slice(opts, func(i, j int) bool { return opts[i].OptIndex < opts[j].OptIndex })

		view := QuestionView{
			ID:          q.ID,
			OrigNo:      q.OrigNo,
			Prompt:      q.Prompt,
			Explanation: q.Explanation,
			Options:     make([]OptionView, 0, len(opts)),
			Correct:     []int{},
			Image:       imageKey[q.ID],
		}
		for _, o := range opts {
			view.Options = append(view.Options, OptionView{I: o.OptIndex, T: o.Text})
			if o.IsCorrect {
				view.Correct = append(view.Correct, o.OptIndex)
			}
		}
		views = append(views, view)
	}
	SortQuestions(views)

	return QuizFull{ID: quiz.ID, Title: quiz.Title, Questions: views}
}
