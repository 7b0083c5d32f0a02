package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/config"
	"github.com/topiclens/topiclens-backend/internal/model"
	"github.com/topiclens/topiclens-backend/internal/repository"
	"github.com/topiclens/topiclens-backend/internal/response"
	"github.com/topiclens/topiclens-backend/internal/session"
)

// Domain errors.
var (
	ErrNotExamOwner     = errors.New("not the owner of this exam")
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrExamNotDraft     = errors.New("exam status is not DRAFT")
	ErrExamNotPublished = errors.New("exam status is not PUBLISHED")
)

// ExamService handles exam business logic and Redis caching.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// ListByOwner retrieves a teacher's exams, paginated.
func (s *ExamService) ListByOwner(ctx context.Context, ownerID, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return s.examRepo.ListByOwner(ctx, ownerID, page, perPage)
}

// Create inserts a new exam as DRAFT.
func (s *ExamService) Create(ctx context.Context, exam *model.Exam) error {
	exam.Status = model.ExamStatusDraft
	return s.examRepo.Create(ctx, exam)
}

// Update modifies an existing draft exam.
func (s *ExamService) Update(ctx context.Context, ownerID int, exam *model.Exam) error {
	existing, err := s.examRepo.GetByID(ctx, exam.ID)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return ErrNotExamOwner
	}
	if existing.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.examRepo.Update(ctx, exam)
}

// Delete removes a draft exam.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID, ownerID int) error {
	existing, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return ErrNotExamOwner
	}
	if existing.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.examRepo.Delete(ctx, id)
}

// ReplaceQuestions swaps out a draft exam's full question set.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, ownerID int, questions []model.Question) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return err
	}
	if exam.OwnerID != ownerID {
		return ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.questionRepo.ReplaceForExam(ctx, examID, questions)
}

// ListQuestions retrieves an exam's questions with correct answers, for
// the owning teacher.
func (s *ExamService) ListQuestions(ctx context.Context, examID uuid.UUID, ownerID int) ([]model.Question, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrNotExamOwner
	}
	return s.questionRepo.ListByExam(ctx, examID)
}

// Publish changes exam status to PUBLISHED and caches the payload + answer
// key in Redis. This is the path that populates the fast lane students hit.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, ownerID int) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	if exam.OwnerID != ownerID {
		return ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusDraft {
		return fmt.Errorf("exam status is %s, expected DRAFT", exam.Status)
	}

	// Prewarm cache for this exam.
	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	// Update status in PostgreSQL.
	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// Archive takes a published exam out of circulation and drops its cache.
func (s *ExamService) Archive(ctx context.Context, examID uuid.UUID, ownerID int) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.OwnerID != ownerID {
		return ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusPublished {
		return ErrExamNotPublished
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusArchived); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	id := examID.String()
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.ExamPayloadKey(id))
	pipe.Del(ctx, config.CacheKey.ExamDurationKey(id))
	pipe.Del(ctx, config.CacheKey.ExamAnswerKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id).Msg("Failed to evict exam cache")
	}

	s.log.Info().Str("exam_id", id).Msg("Exam archived")
	return nil
}

// WarmExamCache loads an exam's payload and answer key from PostgreSQL
// into Redis. Core cache-warming logic used by Publish and
// PrewarmAllCaches.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	// Build student-facing payload (without correct answers).
	studentQuestions := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		studentQuestions[i] = model.QuestionForStudent{
			ID:      q.ID,
			TopicID: q.TopicID,
			Text:    q.Text,
			Type:    q.Type,
			Options: q.Options,
			SeqNum:  q.SeqNum,
		}
	}

	payload := model.ExamPayload{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Duration:  exam.DurationMinutes,
		Questions: studentQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Build answer key map for in-memory grading. FREE_TEXT reference
	// answers are included; the scorer routes those through the AI.
	answerKey := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		answerKey[q.ID.String()] = q.CorrectAnswer
	}

	id := exam.ID.String()

	// Cache atomically via pipeline.
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(id), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.ExamDurationKey(id), strconv.Itoa(exam.DurationMinutes), 0)
	pipe.Del(ctx, config.CacheKey.ExamAnswerKey(id))
	pipe.HSet(ctx, config.CacheKey.ExamAnswerKey(id), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", id).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application
// startup. This prevents lazy-loading races under thundering herd traffic.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming published exams...")

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExamPayload retrieves the cached student payload from Redis.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrExamNotPublished
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// GetAnswerKey retrieves the answer key from Redis for instant grading.
func (s *ExamService) GetAnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKey(examID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		return nil, errors.New("answer key not found in cache")
	}
	return result, nil
}

// LoadForSession materializes a published exam into the in-memory form
// the session engine runs against.
func (s *ExamService) LoadForSession(ctx context.Context, examID uuid.UUID) (*session.Exam, error) {
	payload, err := s.GetExamPayload(ctx, examID)
	if err != nil {
		if errors.Is(err, ErrExamNotPublished) {
			return nil, session.ErrExamNotFound
		}
		return nil, err
	}

	return session.NewExam(payload.ExamID, payload.Title, payload.Duration, payload.Questions), nil
}
