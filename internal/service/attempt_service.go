package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/config"
	"github.com/topiclens/topiclens-backend/internal/model"
	"github.com/topiclens/topiclens-backend/internal/repository"
	"github.com/topiclens/topiclens-backend/internal/response"
	"github.com/topiclens/topiclens-backend/internal/session"
	"github.com/topiclens/topiclens-backend/internal/worker"
)

// Attempt lifecycle errors.
var (
	ErrInvalidAccessCode = errors.New("invalid access code")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptCompleted  = errors.New("attempt already completed")
)

// StartResult bundles everything the client needs after starting or
// rejoining an attempt.
type StartResult struct {
	Attempt *model.Attempt     `json:"attempt"`
	Token   string             `json:"token"`
	Exam    *model.ExamPayload `json:"exam"`
	State   session.State      `json:"state"`
	Resumed bool               `json:"resumed"`
}

// AttemptService orchestrates attempt lifecycle: start, live session
// commands, submission, and results. It is the single place sessions are
// created, so the manager holds at most one session per attempt.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	answerRepo  *repository.AnswerRepository
	examRepo    *repository.ExamRepository
	reportRepo  *repository.ReportRepository
	examService *ExamService
	scorer      session.Scorer
	manager     *session.Manager
	auth        *AuthService
	monitor     *MonitorService
	rdb         *redis.Client
	cfg         *config.Config
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	answerRepo *repository.AnswerRepository,
	examRepo *repository.ExamRepository,
	reportRepo *repository.ReportRepository,
	examService *ExamService,
	scorer session.Scorer,
	manager *session.Manager,
	auth *AuthService,
	monitor *MonitorService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		answerRepo:  answerRepo,
		examRepo:    examRepo,
		reportRepo:  reportRepo,
		examService: examService,
		scorer:      scorer,
		manager:     manager,
		auth:        auth,
		monitor:     monitor,
		rdb:         rdb,
		cfg:         cfg,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// studentKey normalizes the student identity for the single-active-attempt
// guard: the email when given, otherwise the name.
func studentKey(name, email string) string {
	if email != "" {
		return strings.ToLower(strings.TrimSpace(email))
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// Start begins an attempt for a student, or rejoins the student's active
// attempt on the exam if one exists. The attempt row is created before
// the session starts; a validation failure creates nothing.
func (s *AttemptService) Start(ctx context.Context, examID uuid.UUID, req *model.StartAttemptRequest) (*StartResult, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, ErrExamNotPublished
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}
	if exam.AccessCode != "" && exam.AccessCode != req.AccessCode {
		return nil, ErrInvalidAccessCode
	}

	payload, err := s.examService.GetExamPayload(ctx, examID)
	if err != nil {
		return nil, err
	}

	// Rejoin path: one active attempt per student identity per exam.
	key := config.CacheKey.ActiveAttemptKey(examID.String(), studentKey(req.StudentName, req.StudentEmail))
	if existingID, err := s.rdb.Get(ctx, key).Result(); err == nil && existingID != "" {
		attemptID, parseErr := uuid.Parse(existingID)
		if parseErr == nil {
			result, resumeErr := s.rejoin(ctx, attemptID, payload)
			if resumeErr == nil {
				return result, nil
			}
			// A stale marker (attempt gone or completed) falls through to
			// a fresh start.
			s.log.Warn().Err(resumeErr).Str("attempt_id", existingID).Msg("Stale active-attempt marker")
		}
	}

	attempt := &model.Attempt{
		ExamID:         examID,
		StudentName:    strings.TrimSpace(req.StudentName),
		TotalQuestions: len(payload.Questions),
		Status:         model.AttemptStatusInProgress,
	}
	if req.StudentEmail != "" {
		email := strings.ToLower(strings.TrimSpace(req.StudentEmail))
		attempt.StudentEmail = &email
	}

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	// Cache the start time and the active-attempt marker. Failures here
	// are recoverable: the Postgres row is the source of truth.
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptStartKey(attempt.ID.String()), attempt.StartedAt.Unix(), 0)
	pipe.Set(ctx, key, attempt.ID.String(), time.Duration(payload.Duration)*time.Minute+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache attempt start state")
	}

	sessExam := session.NewExam(payload.ExamID, payload.Title, payload.Duration, payload.Questions)
	sess := s.buildSession(attempt.ID, sessExam, attempt.StartedAt, payload.Duration*60, nil)
	live, inserted := s.manager.PutIfAbsent(sess)
	if inserted {
		live.Start()
	}

	token, err := s.auth.GenerateAttemptToken(attempt.ID, examID)
	if err != nil {
		return nil, fmt.Errorf("mint attempt token: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", examID.String()).
		Msg("Attempt started")

	return &StartResult{
		Attempt: attempt,
		Token:   token,
		Exam:    payload,
		State:   live.Snapshot(),
		Resumed: false,
	}, nil
}

// rejoin hands an in-progress attempt back to its student with a fresh
// token and the live session state.
func (s *AttemptService) rejoin(ctx context.Context, attemptID uuid.UUID, payload *model.ExamPayload) (*StartResult, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, ErrAttemptNotFound
	}
	if attempt.Status == model.AttemptStatusCompleted {
		return nil, ErrAttemptCompleted
	}

	sess, err := s.Resume(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	token, err := s.auth.GenerateAttemptToken(attemptID, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("mint attempt token: %w", err)
	}

	return &StartResult{
		Attempt: attempt,
		Token:   token,
		Exam:    payload,
		State:   sess.Snapshot(),
		Resumed: true,
	}, nil
}

// Resume returns the live session for an attempt, rebuilding it from
// Redis (with a PostgreSQL fallback) if this process does not hold one.
// Rebuilding derives remaining time from the persisted start time, never
// from anything the client reports.
func (s *AttemptService) Resume(ctx context.Context, attemptID uuid.UUID) (*session.Session, error) {
	if sess, ok := s.manager.Get(attemptID); ok {
		// A session that finished in the background (countdown expiry)
		// stays resident until the next touch; retire it here.
		if sess.Snapshot().Phase == session.PhaseCompleted {
			s.manager.Remove(attemptID)
			return nil, ErrAttemptCompleted
		}
		return sess, nil
	}

	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, ErrAttemptNotFound
	}
	if attempt.Status == model.AttemptStatusCompleted {
		return nil, ErrAttemptCompleted
	}

	exam, err := s.examService.LoadForSession(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	startedAt, err := s.resolveStartTime(ctx, attempt)
	if err != nil {
		return nil, err
	}

	remaining := exam.DurationMinutes*60 - int(time.Since(startedAt)/time.Second)
	if remaining < 0 {
		remaining = 0
	}

	restored, err := s.restoreAnswers(ctx, attemptID)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Answer restore failed, resuming empty")
		restored = nil
	}

	sess := s.buildSession(attemptID, exam, startedAt, remaining, restored)
	live, inserted := s.manager.PutIfAbsent(sess)
	if inserted {
		live.Start()
	}
	return live, nil
}

// resolveStartTime reads the attempt start from Redis, falling back to
// the PostgreSQL row and self-healing the cache on a miss.
func (s *AttemptService) resolveStartTime(ctx context.Context, attempt *model.Attempt) (time.Time, error) {
	startKey := config.CacheKey.AttemptStartKey(attempt.ID.String())

	val, err := s.rdb.Get(ctx, startKey).Result()
	if err == nil {
		unix, parseErr := strconv.ParseInt(val, 10, 64)
		if parseErr == nil {
			return time.Unix(unix, 0), nil
		}
		s.log.Warn().Str("value", val).Msg("Invalid start time in cache, using database")
	} else if !errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("redis error getting start time: %w", err)
	}

	// Cache miss: the row is the source of truth. Put it back so the
	// next resume is fast.
	_ = s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err()
	return attempt.StartedAt, nil
}

// restoreAnswers reads the autosaved answer buffer from Redis, falling
// back to the flushed rows in PostgreSQL.
func (s *AttemptService) restoreAnswers(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]string, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	if len(raw) > 0 {
		restored := make(map[uuid.UUID]string, len(raw))
		for qid, v := range raw {
			id, parseErr := uuid.Parse(qid)
			if parseErr != nil {
				continue
			}
			restored[id] = v
		}
		return restored, nil
	}

	answers, err := s.answerRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list flushed answers: %w", err)
	}
	restored := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		restored[a.QuestionID] = a.Value
	}
	return restored, nil
}

func (s *AttemptService) buildSession(attemptID uuid.UUID, exam *session.Exam, startedAt time.Time, remainingSeconds int, restored map[uuid.UUID]string) *session.Session {
	return session.New(session.Config{
		AttemptID:        attemptID,
		Exam:             exam,
		StartedAt:        startedAt,
		RemainingSeconds: remainingSeconds,
		DebounceInterval: s.cfg.AutosaveDebounce,
		AutosaveSink:     &queuedAnswerSink{rdb: s.rdb},
		FinalSink: session.AnswerSinkFunc(func(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error {
			return s.answerRepo.UpsertBatch(ctx, attemptID, answers)
		}),
		Scorer:   s.scorer,
		Logger:   s.log,
		Restored: restored,
	})
}

// Answer records an answer on the live session and publishes progress to
// the monitor channel.
func (s *AttemptService) Answer(ctx context.Context, attemptID, questionID uuid.UUID, value string) (session.State, error) {
	sess, err := s.Resume(ctx, attemptID)
	if err != nil {
		return session.State{}, err
	}
	if err := sess.Answer(questionID, value); err != nil {
		return session.State{}, err
	}

	state := sess.Snapshot()
	s.monitor.PublishProgress(ctx, sess.Exam().ID, attemptID, state.AnsweredCount, state.TotalQuestions, string(state.Phase))
	return state, nil
}

// ToggleFlag toggles a question's review flag on the live session.
func (s *AttemptService) ToggleFlag(ctx context.Context, attemptID, questionID uuid.UUID) (session.State, error) {
	sess, err := s.Resume(ctx, attemptID)
	if err != nil {
		return session.State{}, err
	}
	if err := sess.ToggleFlag(questionID); err != nil {
		return session.State{}, err
	}
	return sess.Snapshot(), nil
}

// GoTo moves the live session's current question.
func (s *AttemptService) GoTo(ctx context.Context, attemptID uuid.UUID, index int) (session.State, error) {
	sess, err := s.Resume(ctx, attemptID)
	if err != nil {
		return session.State{}, err
	}
	sess.GoTo(index)
	return sess.Snapshot(), nil
}

// State returns the authoritative session snapshot for an attempt.
func (s *AttemptService) State(ctx context.Context, attemptID uuid.UUID) (session.State, error) {
	sess, err := s.Resume(ctx, attemptID)
	if err != nil {
		return session.State{}, err
	}
	return sess.Snapshot(), nil
}

// Submit drives the submission protocol on the live session. On success
// the active-attempt marker is dropped so the identity could start other
// exams cleanly.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID) (*model.AttemptReport, error) {
	sess, err := s.Resume(ctx, attemptID)
	if err != nil {
		if errors.Is(err, ErrAttemptCompleted) {
			// Submission after this process already completed and evicted
			// the session: serve the stored report.
			return s.GetResults(ctx, attemptID)
		}
		return nil, err
	}

	report, err := sess.Submit(ctx)
	if err != nil {
		return nil, err
	}

	// The report is durably stored; the live session has no further work.
	s.manager.Remove(attemptID)
	s.clearActiveMarker(ctx, attemptID)
	s.monitor.PublishProgress(ctx, sess.Exam().ID, attemptID, report.CorrectCount, report.TotalQuestions, string(session.PhaseCompleted))
	return report, nil
}

func (s *AttemptService) clearActiveMarker(ctx context.Context, attemptID uuid.UUID) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return
	}
	email := ""
	if attempt.StudentEmail != nil {
		email = *attempt.StudentEmail
	}
	key := config.CacheKey.ActiveAttemptKey(attempt.ExamID.String(), studentKey(attempt.StudentName, email))
	_ = s.rdb.Del(ctx, key).Err()
}

// GetResults loads the stored report for a completed attempt.
func (s *AttemptService) GetResults(ctx context.Context, attemptID uuid.UUID) (*model.AttemptReport, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, ErrAttemptNotFound
	}
	if attempt.Status != model.AttemptStatusCompleted || attempt.Score == nil || attempt.CorrectCount == nil {
		return nil, errors.New("attempt not scored yet")
	}

	breakdown, err := s.reportRepo.ListBreakdowns(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list breakdowns: %w", err)
	}
	narrative, err := s.reportRepo.GetNarrative(ctx, attemptID)
	if err != nil {
		// The breakdown rows land via the report worker; the narrative
		// may lag a moment behind scoring.
		narrative = ""
	}

	return &model.AttemptReport{
		AttemptID:      attemptID,
		Score:          *attempt.Score,
		CorrectCount:   *attempt.CorrectCount,
		TotalQuestions: attempt.TotalQuestions,
		Breakdown:      breakdown,
		Narrative:      narrative,
	}, nil
}

// ListByExam returns an exam's attempts for the owning teacher.
func (s *AttemptService) ListByExam(ctx context.Context, examID uuid.UUID, ownerID, page, perPage int) ([]model.Attempt, *response.Pagination, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, nil, ErrNotExamOwner
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return s.attemptRepo.ListByExam(ctx, examID, page, perPage)
}

// queuedAnswerSink is the eventually consistent autosave path: the
// snapshot lands in the Redis answer hash (for fast resume) and on the
// persistence queue for the background worker.
type queuedAnswerSink struct {
	rdb *redis.Client
}

func (q *queuedAnswerSink) UpsertAnswers(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error {
	if len(answers) == 0 {
		return nil
	}

	hash := make(map[string]interface{}, len(answers))
	strs := make(map[string]string, len(answers))
	for qid, v := range answers {
		hash[qid.String()] = v
		strs[qid.String()] = v
	}

	payload, err := json.Marshal(worker.AnswerSnapshotPayload{
		AttemptID: attemptID.String(),
		Answers:   strs,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := q.rdb.Pipeline()
	pipe.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()), hash)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	_, err = pipe.Exec(ctx)
	return err
}
