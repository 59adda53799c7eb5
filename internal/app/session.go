package app

import (
	"sync"
	"time"

	"daypo-quiz-service/internal/domain"
	"daypo-quiz-service/internal/grading"
	"daypo-quiz-service/internal/sampling"
)

// State is the position of a session in its lifecycle:
// empty -> loaded -> graded -> retry (-> graded).
type State string

const (
	StateEmpty         State = "empty"
	StateLoaded        State = "loaded"
	StateGraded        State = "graded"
	StateRetryFiltered State = "retry"
)

// Session is one participant's pass through a quiz. It owns the full question
// list of the open quiz and the subset currently presented; answers are kept
// only until the next re-sample or retry.
type Session struct {
	mu        sync.Mutex
	id        string
	now       func() time.Time
	updatedAt time.Time

	state    State
	quizID   int64
	title    string
	settings domain.Settings
	full     []domain.QuestionView
	current  []domain.QuestionView
	answers  map[int64]int
	result   *domain.GradeResult
}

// NewSession is exported for infrastructure layers that need to create sessions.
func NewSession(id string) *Session {
	return NewSessionWithClock(id, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	return &Session{
		id:        id,
		now:       now,
		updatedAt: now(),
		state:     StateEmpty,
		answers:   make(map[int64]int),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) QuizID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quizID
}

func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Current returns the presented questions.
func (s *Session) Current() []domain.QuestionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QuestionView, len(s.current))
	copy(out, s.current)
	return out
}

// Load replaces the open quiz, samples it with settings and discards every
// answer and grading result.
func (s *Session) Load(full domain.QuizFull, settings domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quizID = full.ID
	s.title = full.Title
	s.settings = settings
	s.full = full.Questions
	s.current = sampling.Pick(full.Questions, full.ID, settings.Limit, settings.Randomize)
	s.answers = make(map[int64]int)
	s.result = nil
	s.state = StateLoaded
	s.touchLocked()
}

// SetSettings records settings without loading; used before any quiz is open.
func (s *Session) SetSettings(settings domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.touchLocked()
}

// Answer records (or with a nil option clears) the selection for a presented question.
func (s *Session) Answer(questionID int64, option *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateEmpty:
		return domain.ErrNoQuizOpen
	case StateGraded:
		return domain.ErrInvalidTransition
	}

	q, ok := s.findLocked(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if option == nil {
		delete(s.answers, questionID)
		s.touchLocked()
		return nil
	}
	valid := false
	for _, o := range q.Options {
		if o.I == *option {
			valid = true
			break
		}
	}
	if !valid {
		return domain.Invalid("option", "question %d has no option %d", questionID, *option)
	}
	s.answers[questionID] = *option
	s.touchLocked()
	return nil
}

// Grade scores the presented questions. Grading twice without new answers
// returns the same result.
func (s *Session) Grade() (domain.GradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return domain.GradeResult{}, domain.ErrNoQuizOpen
	}
	res := grading.Grade(s.current, s.answers)
	s.result = &res
	s.state = StateGraded
	s.touchLocked()
	return res, nil
}

// Retry narrows the presented questions to the ones answered wrong in the
// last grading pass. Answers start fresh.
func (s *Session) Retry() ([]domain.QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateEmpty:
		return nil, domain.ErrNoQuizOpen
	case s.state != StateGraded || s.result == nil:
		return nil, domain.ErrInvalidTransition
	case len(s.result.WrongIDs) == 0:
		return nil, domain.ErrNothingToRetry
	}

	s.current = grading.Retry(s.current, s.result.WrongIDs)
	s.answers = make(map[int64]int)
	s.result = nil
	s.state = StateRetryFiltered
	s.touchLocked()

	out := make([]domain.QuestionView, len(s.current))
	copy(out, s.current)
	return out, nil
}

func (s *Session) findLocked(questionID int64) (domain.QuestionView, bool) {
	for _, q := range s.current {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.QuestionView{}, false
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}
