package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/ai"
	"github.com/topiclens/topiclens-backend/internal/config"
	"github.com/topiclens/topiclens-backend/internal/model"
	"github.com/topiclens/topiclens-backend/internal/repository"
	"github.com/topiclens/topiclens-backend/internal/worker"
)

// ErrAIUnavailable wraps AI failures during free-text grading so callers
// can surface a retryable condition.
var ErrAIUnavailable = errors.New("ai grading unavailable")

// ScoringService turns a submitted attempt's flushed answers into a
// scored, analyzed result. It satisfies the session engine's Scorer
// contract: repeated calls recompute and overwrite, so a retry after a
// partial failure converges on the same result.
type ScoringService struct {
	attemptRepo  *repository.AttemptRepository
	answerRepo   *repository.AnswerRepository
	questionRepo *repository.QuestionRepository
	topicRepo    *repository.TopicRepository
	reportRepo   *repository.ReportRepository
	examService  *ExamService
	aiClient     *ai.Client
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewScoringService creates a new ScoringService.
func NewScoringService(
	attemptRepo *repository.AttemptRepository,
	answerRepo *repository.AnswerRepository,
	questionRepo *repository.QuestionRepository,
	topicRepo *repository.TopicRepository,
	reportRepo *repository.ReportRepository,
	examService *ExamService,
	aiClient *ai.Client,
	rdb *redis.Client,
	log zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		attemptRepo:  attemptRepo,
		answerRepo:   answerRepo,
		questionRepo: questionRepo,
		topicRepo:    topicRepo,
		reportRepo:   reportRepo,
		examService:  examService,
		aiClient:     aiClient,
		rdb:          rdb,
		log:          log.With().Str("component", "scoring_service").Logger(),
	}
}

// Score grades every flushed answer, aggregates per-topic results,
// persists the outcome, and returns the full report. Unanswered
// questions count as incorrect.
func (s *ScoringService) Score(ctx context.Context, attemptID uuid.UUID, elapsedSeconds int) (*model.AttemptReport, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	questions, err := s.loadQuestions(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	// Prefer the answer key warmed into Redis at publish time; the
	// Postgres rows back it up when the cache is cold.
	if key, err := s.examService.GetAnswerKey(ctx, attempt.ExamID); err == nil {
		overlayAnswerKey(questions, key)
	} else {
		s.log.Debug().Err(err).Str("exam_id", attempt.ExamID.String()).Msg("Answer key cache miss")
	}

	answers, err := s.answerRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answered := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = a.Value
	}

	// Grade each question. Selected-response types grade against the key
	// in memory; free text goes through the AI.
	correctness := make(map[uuid.UUID]bool, len(answered))
	perTopic := make(map[uuid.UUID]*model.TopicBreakdown)
	correctTotal := 0

	for _, q := range questions {
		tb, ok := perTopic[q.TopicID]
		if !ok {
			tb = &model.TopicBreakdown{AttemptID: attemptID, TopicID: q.TopicID}
			perTopic[q.TopicID] = tb
		}
		tb.Total++

		value, wasAnswered := answered[q.ID]
		if !wasAnswered {
			continue
		}

		correct, err := s.gradeOne(ctx, &q, value)
		if err != nil {
			return nil, err
		}
		correctness[q.ID] = correct
		if correct {
			tb.Correct++
			correctTotal++
		}
	}

	if len(correctness) > 0 {
		if err := s.answerRepo.SetCorrectness(ctx, attemptID, correctness); err != nil {
			return nil, fmt.Errorf("persist correctness: %w", err)
		}
	}

	score := 0.0
	if len(questions) > 0 {
		score = math.Round(float64(correctTotal)/float64(len(questions))*10000) / 100
	}

	breakdown := s.finalizeBreakdown(ctx, perTopic)

	narrative := s.narrate(ctx, attempt, score, breakdown)

	// Persist the aggregate. Complete is an idempotent overwrite, so a
	// re-scored attempt converges rather than conflicts.
	if err := s.attemptRepo.Complete(ctx, attemptID, correctTotal, score, elapsedSeconds); err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}
	if narrative != "" {
		if err := s.reportRepo.SaveNarrative(ctx, attemptID, narrative); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Save narrative failed")
		}
	}
	s.enqueueBreakdowns(ctx, breakdown)

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Float64("score", score).
		Int("correct", correctTotal).
		Int("total", len(questions)).
		Msg("Attempt scored")

	return &model.AttemptReport{
		AttemptID:      attemptID,
		Score:          score,
		CorrectCount:   correctTotal,
		TotalQuestions: len(questions),
		Breakdown:      breakdown,
		Narrative:      narrative,
	}, nil
}

// loadQuestions reads the full question set with correct answers,
// preferring PostgreSQL since scoring is off the hot path.
func (s *ScoringService) loadQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, errors.New("exam has no questions")
	}
	return questions, nil
}

// overlayAnswerKey replaces each question's reference answer with the
// cached key entry when one exists. Empty entries (free text with no
// warmed reference) leave the row untouched.
func overlayAnswerKey(questions []model.Question, key map[string]string) {
	for i := range questions {
		if v, ok := key[questions[i].ID.String()]; ok && v != "" {
			questions[i].CorrectAnswer = v
		}
	}
}

func (s *ScoringService) gradeOne(ctx context.Context, q *model.Question, value string) (bool, error) {
	switch q.Type {
	case model.QuestionTypeFreeText:
		verdict, err := s.aiClient.GradeFreeText(ctx, q.Text, q.CorrectAnswer, value)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
		}
		return verdict.Correct, nil
	case model.QuestionTypeTrueFalse:
		// The binary pair is case-insensitive: students may answer with
		// any casing the front end sends.
		return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(q.CorrectAnswer)), nil
	default:
		return strings.TrimSpace(value) == strings.TrimSpace(q.CorrectAnswer), nil
	}
}

// finalizeBreakdown fills in percentages and topic names and orders the
// rows deterministically.
func (s *ScoringService) finalizeBreakdown(ctx context.Context, perTopic map[uuid.UUID]*model.TopicBreakdown) []model.TopicBreakdown {
	topicIDs := make([]uuid.UUID, 0, len(perTopic))
	for id := range perTopic {
		topicIDs = append(topicIDs, id)
	}

	names, err := s.topicRepo.NamesByIDs(ctx, topicIDs)
	if err != nil {
		s.log.Warn().Err(err).Msg("Topic name lookup failed")
		names = map[uuid.UUID]string{}
	}

	breakdown := make([]model.TopicBreakdown, 0, len(perTopic))
	for id, tb := range perTopic {
		if tb.Total > 0 {
			tb.Percent = math.Round(float64(tb.Correct)/float64(tb.Total)*10000) / 100
		}
		tb.TopicName = names[id]
		breakdown = append(breakdown, *tb)
	}

	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].TopicName < breakdown[j].TopicName
	})
	return breakdown
}

// narrate asks the AI for the narrative and per-topic recommendations.
// Best-effort: a scored attempt without prose beats a failed submission.
func (s *ScoringService) narrate(ctx context.Context, attempt *model.Attempt, score float64, breakdown []model.TopicBreakdown) string {
	exam, err := s.examService.GetByID(ctx, attempt.ExamID)
	title := "Diagnostic Exam"
	if err == nil {
		title = exam.Title
	}

	results := make([]ai.TopicResult, 0, len(breakdown))
	for _, tb := range breakdown {
		results = append(results, ai.TopicResult{
			TopicName: tb.TopicName,
			Total:     tb.Total,
			Correct:   tb.Correct,
			Percent:   tb.Percent,
		})
	}

	out, err := s.aiClient.Narrate(ctx, title, score, results)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Narrative generation failed")
		return ""
	}

	for i := range breakdown {
		if rec, ok := out.Recommendations[breakdown[i].TopicName]; ok {
			breakdown[i].Recommendation = rec
		}
	}
	return out.Narrative
}

// enqueueBreakdowns hands the per-topic rows to the report worker.
func (s *ScoringService) enqueueBreakdowns(ctx context.Context, breakdown []model.TopicBreakdown) {
	for _, tb := range breakdown {
		payload, err := json.Marshal(worker.BreakdownPayload{
			AttemptID:      tb.AttemptID.String(),
			TopicID:        tb.TopicID.String(),
			Total:          tb.Total,
			Correct:        tb.Correct,
			Percent:        tb.Percent,
			Recommendation: tb.Recommendation,
		})
		if err != nil {
			s.log.Error().Err(err).Msg("Marshal breakdown payload")
			continue
		}
		if err := s.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, payload).Err(); err != nil {
			s.log.Error().Err(err).Msg("Enqueue breakdown failed")
		}
	}
}
