package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"daypo-quiz-service/internal/domain"
)

// Store is an in-process QuizStore and QuizLoader, used for demos and tests.
// Ids are assigned from one increasing sequence per entity, so they follow
// insertion order the way autoincrement keys do.
type Store struct {
	mu    sync.RWMutex
	clock func() time.Time

	nextQuiz, nextQuestion, nextOption int64

	quizzes   map[int64]domain.Quiz
	questions map[int64]domain.Question
	options   map[int64][]domain.Option // by question id
	images    map[int64]domain.Image    // by question id
}

func NewStore() *Store {
	return &Store{
		clock:     time.Now,
		quizzes:   make(map[int64]domain.Quiz),
		questions: make(map[int64]domain.Question),
		options:   make(map[int64][]domain.Option),
		images:    make(map[int64]domain.Image),
	}
}

func (s *Store) ImportQuiz(_ context.Context, title string, items []domain.ImportItem) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQuiz++
	quiz := domain.Quiz{ID: s.nextQuiz, Title: title, CreatedAt: s.clock().UTC()}
	s.quizzes[quiz.ID] = quiz

	for _, it := range items {
		s.nextQuestion++
		q := domain.Question{ID: s.nextQuestion, QuizID: quiz.ID, OrigNo: it.OrigNo, Prompt: it.Prompt}
		s.questions[q.ID] = q

		correct := make(map[int]bool, len(it.Correct))
		for _, c := range it.Correct {
			correct[c] = true
		}
		opts := make([]domain.Option, 0, len(it.Options))
		for i, text := range it.Options {
			s.nextOption++
			opts = append(opts, domain.Option{ID: s.nextOption, QuestionID: q.ID, OptIndex: i, Text: text, IsCorrect: correct[i]})
		}
		s.options[q.ID] = opts
	}
	return quiz, nil
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetQuestion(_ context.Context, questionID int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) UpdateQuestion(_ context.Context, questionID int64, edit domain.QuestionEdit) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	q.Prompt = edit.Prompt
	q.OrigNo = edit.OrigNo
	s.questions[questionID] = q

	opts := make([]domain.Option, 0, len(edit.Options))
	for i, text := range edit.Options {
		s.nextOption++
		opts = append(opts, domain.Option{ID: s.nextOption, QuestionID: questionID, OptIndex: i, Text: text, IsCorrect: i == edit.CorrectIndex})
	}
	s.options[questionID] = opts
	return q, nil
}

func (s *Store) DeleteQuestion(_ context.Context, questionID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return "", domain.ErrQuestionNotFound
	}
	return s.deleteQuestionLocked(questionID), nil
}

func (s *Store) deleteQuestionLocked(questionID int64) string {
	key := s.images[questionID].Key
	delete(s.images, questionID)
	delete(s.options, questionID)
	delete(s.questions, questionID)
	return key
}

func (s *Store) DeleteQuiz(_ context.Context, quizID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	var keys []string
	for id, q := range s.questions {
		if q.QuizID != quizID {
			continue
		}
		if key := s.deleteQuestionLocked(id); key != "" {
			keys = append(keys, key)
		}
	}
	delete(s.quizzes, quizID)
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) PutImage(_ context.Context, img domain.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[img.QuestionID]; !ok {
		return "", domain.ErrQuestionNotFound
	}
	prev := s.images[img.QuestionID].Key
	img.Data = nil
	s.images[img.QuestionID] = img
	return prev, nil
}

func (s *Store) DeleteImage(_ context.Context, questionID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.images[questionID].Key
	delete(s.images, questionID)
	return key, nil
}

func (s *Store) Export(_ context.Context) (domain.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := domain.Backup{
		Quizzes:   make([]domain.Quiz, 0, len(s.quizzes)),
		Questions: make([]domain.Question, 0, len(s.questions)),
		Options:   []domain.Option{},
		Images:    make([]domain.Image, 0, len(s.images)),
	}
	for _, q := range s.quizzes {
		b.Quizzes = append(b.Quizzes, q)
	}
	for _, q := range s.questions {
		b.Questions = append(b.Questions, q)
		b.Options = append(b.Options, s.options[q.ID]...)
	}
	for _, img := range s.images {
		b.Images = append(b.Images, img)
	}
	sort.Slice(b.Quizzes, func(i, j int) bool { return b.Quizzes[i].ID < b.Quizzes[j].ID })
	sort.Slice(b.Questions, func(i, j int) bool { return b.Questions[i].ID < b.Questions[j].ID })
	sort.Slice(b.Options, func(i, j int) bool { return b.Options[i].ID < b.Options[j].ID })
	sort.Slice(b.Images, func(i, j int) bool { return b.Images[i].QuestionID < b.Images[j].QuestionID })
	return b, nil
}

// LoadQuiz implements QuizLoader.
func (s *Store) LoadQuiz(_ context.Context, quizID int64) (domain.QuizFull, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.QuizFull{}, domain.ErrQuizNotFound
	}
	var (
		questions []domain.Question
		options   []domain.Option
		images    []domain.Image
	)
	for _, q := range s.questions {
		if q.QuizID != quizID {
			continue
		}
		questions = append(questions, q)
		options = append(options, s.options[q.ID]...)
		if img, ok := s.images[q.ID]; ok {
			images = append(images, img)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return domain.AssembleQuiz(quiz, questions, options, images), nil
}
