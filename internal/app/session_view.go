package app

import (
	"time"

	"daypo-quiz-service/internal/domain"
)

// PresentedQuestion is a question as shown to the participant. Correct and
// Explanation are only filled once the session has been graded.
type PresentedQuestion struct {
	ID          int64               `json:"id"`
	Tag         int                 `json:"tag"`
	OrigNo      int                 `json:"origNo"`
	Prompt      string              `json:"prompt"`
	Options     []domain.OptionView `json:"options"`
	Image       string              `json:"image,omitempty"`
	Selected    *int                `json:"selected"`
	Correct     []int               `json:"correct,omitempty"`
	Explanation string              `json:"explanation,omitempty"`
}

// SessionView is the client-facing snapshot of a session.
type SessionView struct {
	ID        string              `json:"id"`
	State     State               `json:"state"`
	QuizID    int64               `json:"quizId,omitempty"`
	Title     string              `json:"title,omitempty"`
	Settings  domain.Settings     `json:"settings"`
	Questions []PresentedQuestion `json:"questions"`
	Result    *domain.GradeResult `json:"result,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// View renders the session for a client.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := SessionView{
		ID:        s.id,
		State:     s.state,
		QuizID:    s.quizID,
		Title:     s.title,
		Settings:  s.settings,
		Questions: make([]PresentedQuestion, 0, len(s.current)),
		UpdatedAt: s.updatedAt,
	}
	if s.result != nil {
		res := *s.result
		v.Result = &res
	}
	graded := s.state == StateGraded
	for i, q := range s.current {
		tag := q.OrigNo
		if tag <= 0 {
			tag = i + 1
		}
		pq := PresentedQuestion{
			ID:      q.ID,
			Tag:     tag,
			OrigNo:  q.OrigNo,
			Prompt:  q.Prompt,
			Options: q.Options,
			Image:   q.Image,
		}
		if sel, ok := s.answers[q.ID]; ok {
			pq.Selected = &sel
		}
		if graded {
			pq.Correct = q.Correct
			pq.Explanation = q.Explanation
		}
		v.Questions = append(v.Questions, pq)
	}
	return v
}

// SessionSnapshot is the serializable form of a session, used by stores that
// keep sessions outside the process.
type SessionSnapshot struct {
	ID        string                `json:"id"`
	State     State                 `json:"state"`
	QuizID    int64                 `json:"quizId"`
	Title     string                `json:"title"`
	Settings  domain.Settings       `json:"settings"`
	Full      []domain.QuestionView `json:"full"`
	CurrentID []int64               `json:"currentIds"`
	Answers   map[int64]int         `json:"answers"`
	Result    *domain.GradeResult   `json:"result,omitempty"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Snapshot captures the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:        s.id,
		State:     s.state,
		QuizID:    s.quizID,
		Title:     s.title,
		Settings:  s.settings,
		Full:      s.full,
		CurrentID: make([]int64, 0, len(s.current)),
		Answers:   make(map[int64]int, len(s.answers)),
		Result:    s.result,
		UpdatedAt: s.updatedAt,
	}
	for _, q := range s.current {
		snap.CurrentID = append(snap.CurrentID, q.ID)
	}
	for k, v := range s.answers {
		snap.Answers[k] = v
	}
	return snap
}

// RestoreSession rebuilds a session from a snapshot. The presented subset is
// resolved against the full list so the order recorded in the snapshot is kept.
func RestoreSession(snap SessionSnapshot, now func() time.Time) *Session {
	s := NewSessionWithClock(snap.ID, now)
	s.applyLocked(snap)
	return s
}

// rollback puts the session back to a snapshot taken before a change that
// could not be saved.
func (s *Session) rollback(snap SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(snap)
}

func (s *Session) applyLocked(snap SessionSnapshot) {
	s.state = snap.State
	if s.state == "" {
		s.state = StateEmpty
	}
	s.quizID = snap.QuizID
	s.title = snap.Title
	s.settings = snap.Settings
	s.full = snap.Full
	s.result = snap.Result
	s.updatedAt = snap.UpdatedAt

	byID := make(map[int64]domain.QuestionView, len(snap.Full))
	for _, q := range snap.Full {
		byID[q.ID] = q
	}
	s.current = make([]domain.QuestionView, 0, len(snap.CurrentID))
	for _, id := range snap.CurrentID {
		if q, ok := byID[id]; ok {
			s.current = append(s.current, q)
		}
	}
	s.answers = make(map[int64]int, len(snap.Answers))
	for k, v := range snap.Answers {
		s.answers[k] = v
	}
}
