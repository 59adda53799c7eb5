package app

import (
	"context"

	"daypo-quiz-service/internal/domain"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	// Save persists changes made to a session obtained from Create or Get.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// QuizReader is the read side a session needs to open quizzes.
type QuizReader interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error)
}

// SessionService drives sessions through open, answer, grade and retry.
// Grading and retry never touch persistence; only opening a quiz reads it.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizReader
}

func NewSessionService(sessions SessionRepository, quizzes QuizReader) *SessionService {
	return &SessionService{sessions: sessions, quizzes: quizzes}
}

// Start creates an empty session.
func (s *SessionService) Start(ctx context.Context) (SessionView, error) {
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return SessionView{}, err
	}
	return sess.View(), nil
}

// View returns the current state of a session.
func (s *SessionService) View(ctx context.Context, id string) (SessionView, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	return sess.View(), nil
}

// OpenQuiz loads a quiz into the session and samples it. On failure the
// session keeps whatever it had open before.
func (s *SessionService) OpenQuiz(ctx context.Context, id string, quizID int64, settings domain.Settings) (SessionView, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	full, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return SessionView{}, err
	}
	before := sess.Snapshot()
	sess.Load(full, settings)
	return s.save(ctx, sess, before)
}

// ChangeSettings stores new sampling settings. With a quiz open it is
// re-opened, discarding answers and grading state.
func (s *SessionService) ChangeSettings(ctx context.Context, id string, settings domain.Settings) (SessionView, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	before := sess.Snapshot()
	if before.State == StateEmpty || before.QuizID == 0 {
		sess.SetSettings(settings)
		return s.save(ctx, sess, before)
	}
	full, err := s.quizzes.GetQuiz(ctx, before.QuizID)
	if err != nil {
		return SessionView{}, err
	}
	sess.Load(full, settings)
	return s.save(ctx, sess, before)
}

// Answer records a selection; a nil option clears it.
func (s *SessionService) Answer(ctx context.Context, id string, questionID int64, option *int) (SessionView, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	before := sess.Snapshot()
	if err := sess.Answer(questionID, option); err != nil {
		return SessionView{}, err
	}
	return s.save(ctx, sess, before)
}

// Grade scores the presented questions.
func (s *SessionService) Grade(ctx context.Context, id string) (domain.GradeResult, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.GradeResult{}, err
	}
	before := sess.Snapshot()
	res, err := sess.Grade()
	if err != nil {
		return domain.GradeResult{}, err
	}
	if err := s.commit(ctx, sess, before); err != nil {
		return domain.GradeResult{}, err
	}
	return res, nil
}

// Retry narrows the session to the questions answered wrong.
func (s *SessionService) Retry(ctx context.Context, id string) (SessionView, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	before := sess.Snapshot()
	if _, err := sess.Retry(); err != nil {
		return SessionView{}, err
	}
	return s.save(ctx, sess, before)
}

// Close drops a session.
func (s *SessionService) Close(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

func (s *SessionService) save(ctx context.Context, sess *Session, before SessionSnapshot) (SessionView, error) {
	if err := s.commit(ctx, sess, before); err != nil {
		return SessionView{}, err
	}
	return sess.View(), nil
}

// commit saves sess; when the save fails the session is put back to before,
// so a failed operation leaves no trace in a session shared in memory.
func (s *SessionService) commit(ctx context.Context, sess *Session, before SessionSnapshot) error {
	if err := s.sessions.Save(ctx, sess); err != nil {
		sess.rollback(before)
		return err
	}
	return nil
}
