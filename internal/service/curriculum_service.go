package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/ai"
	"github.com/topiclens/topiclens-backend/internal/config"
	"github.com/topiclens/topiclens-backend/internal/model"
	"github.com/topiclens/topiclens-backend/internal/repository"
)

// Curriculum errors.
var (
	ErrNotCurriculumOwner = errors.New("not the owner of this curriculum")
	ErrUnsupportedFile    = errors.New("unsupported file type")
	ErrExamNoCurriculum   = errors.New("exam has no curriculum attached")
)

// allowed upload extensions; text is extracted as-is.
var allowedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// CurriculumService handles curriculum intake: file upload, AI topic
// extraction, and AI question generation for exams built on a
// curriculum.
type CurriculumService struct {
	curriculumRepo *repository.CurriculumRepository
	topicRepo      *repository.TopicRepository
	questionRepo   *repository.QuestionRepository
	examRepo       *repository.ExamRepository
	aiClient       *ai.Client
	cfg            *config.Config
	log            zerolog.Logger
}

// NewCurriculumService creates a new CurriculumService.
func NewCurriculumService(
	curriculumRepo *repository.CurriculumRepository,
	topicRepo *repository.TopicRepository,
	questionRepo *repository.QuestionRepository,
	examRepo *repository.ExamRepository,
	aiClient *ai.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *CurriculumService {
	return &CurriculumService{
		curriculumRepo: curriculumRepo,
		topicRepo:      topicRepo,
		questionRepo:   questionRepo,
		examRepo:       examRepo,
		aiClient:       aiClient,
		cfg:            cfg,
		log:            log.With().Str("component", "curriculum_service").Logger(),
	}
}

// Upload stores a curriculum document, extracts its topics with the AI,
// and persists the topic list. The returned curriculum includes its ID
// for subsequent exam creation.
func (s *CurriculumService) Upload(ctx context.Context, ownerID int, title, filename string, data []byte) (*model.Curriculum, []model.Topic, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, nil, ErrUnsupportedFile
	}

	curriculum := &model.Curriculum{
		OwnerID: ownerID,
		Title:   title,
		Text:    string(data),
	}

	// Keep the original on disk for audit; the extracted text drives
	// everything downstream.
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create upload dir: %w", err)
	}
	storedName := fmt.Sprintf("%s%s", uuid.New(), ext)
	path := filepath.Join(s.cfg.UploadDir, storedName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, nil, fmt.Errorf("store upload: %w", err)
	}
	curriculum.FilePath = path

	if err := s.curriculumRepo.Create(ctx, curriculum); err != nil {
		return nil, nil, fmt.Errorf("create curriculum: %w", err)
	}

	extracted, err := s.aiClient.ExtractTopics(ctx, curriculum.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	topics := make([]model.Topic, len(extracted))
	for i, t := range extracted {
		topics[i] = model.Topic{
			CurriculumID: curriculum.ID,
			Name:         t.Name,
			Summary:      t.Summary,
		}
	}
	if err := s.topicRepo.ReplaceForCurriculum(ctx, curriculum.ID, topics); err != nil {
		return nil, nil, fmt.Errorf("persist topics: %w", err)
	}

	stored, err := s.topicRepo.ListByCurriculum(ctx, curriculum.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list topics: %w", err)
	}

	s.log.Info().
		Str("curriculum_id", curriculum.ID.String()).
		Int("topics", len(stored)).
		Msg("Curriculum uploaded and analyzed")

	return curriculum, stored, nil
}

// ListByOwner returns a teacher's curricula.
func (s *CurriculumService) ListByOwner(ctx context.Context, ownerID int) ([]model.Curriculum, error) {
	return s.curriculumRepo.ListByOwner(ctx, ownerID)
}

// ListTopics returns a curriculum's extracted topics, owner-checked.
func (s *CurriculumService) ListTopics(ctx context.Context, curriculumID uuid.UUID, ownerID int) ([]model.Topic, error) {
	curriculum, err := s.curriculumRepo.GetByID(ctx, curriculumID)
	if err != nil {
		return nil, err
	}
	if curriculum.OwnerID != ownerID {
		return nil, ErrNotCurriculumOwner
	}
	return s.topicRepo.ListByCurriculum(ctx, curriculumID)
}

// GenerateExamQuestions asks the AI to author questions for every topic
// of the exam's curriculum and replaces the draft exam's question set
// with the result.
func (s *CurriculumService) GenerateExamQuestions(ctx context.Context, examID uuid.UUID, ownerID, perTopic int) ([]model.Question, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}
	if exam.CurriculumID == nil {
		return nil, ErrExamNoCurriculum
	}

	topics, err := s.topicRepo.ListByCurriculum(ctx, *exam.CurriculumID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	if len(topics) == 0 {
		return nil, errors.New("curriculum has no topics")
	}

	if perTopic < 1 {
		perTopic = 3
	}

	var questions []model.Question
	seq := 1
	for _, topic := range topics {
		generated, err := s.aiClient.GenerateQuestions(ctx, ai.ExtractedTopic{
			Name:    topic.Name,
			Summary: topic.Summary,
		}, perTopic)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
		}

		for _, g := range generated {
			questions = append(questions, model.Question{
				ExamID:        examID,
				TopicID:       topic.ID,
				Text:          g.Text,
				Type:          model.QuestionType(g.Type),
				Options:       g.Options,
				CorrectAnswer: g.CorrectAnswer,
				SeqNum:        seq,
			})
			seq++
		}
	}

	if err := s.questionRepo.ReplaceForExam(ctx, examID, questions); err != nil {
		return nil, fmt.Errorf("persist questions: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("questions", len(questions)).
		Msg("Questions generated")

	return questions, nil
}
