package session

import (
	"github.com/google/uuid"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// Exam is the immutable question set a session runs over. Questions are
// ordered by their fixed sequence index; correct answers never enter a
// session.
type Exam struct {
	ID              uuid.UUID
	Title           string
	DurationMinutes int
	Questions       []model.QuestionForStudent

	index map[uuid.UUID]int
}

// NewExam builds the session view of an exam, indexing questions by ID.
func NewExam(id uuid.UUID, title string, durationMinutes int, questions []model.QuestionForStudent) *Exam {
	e := &Exam{
		ID:              id,
		Title:           title,
		DurationMinutes: durationMinutes,
		Questions:       questions,
		index:           make(map[uuid.UUID]int, len(questions)),
	}
	for i := range questions {
		e.index[questions[i].ID] = i
	}
	return e
}

// Question looks up a question by ID.
func (e *Exam) Question(id uuid.UUID) (*model.QuestionForStudent, bool) {
	i, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return &e.Questions[i], true
}

// QuestionCount returns the number of questions.
func (e *Exam) QuestionCount() int {
	return len(e.Questions)
}
