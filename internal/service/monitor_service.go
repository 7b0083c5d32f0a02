package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/config"
)

// ProgressUpdate is one live monitoring datum for an exam: how far a
// single attempt has progressed.
type ProgressUpdate struct {
	ExamID         uuid.UUID `json:"exam_id"`
	AttemptID      uuid.UUID `json:"attempt_id"`
	AnsweredCount  int       `json:"answered_count"`
	TotalQuestions int       `json:"total_questions"`
	Phase          string    `json:"phase"`
}

// MonitorService fans live attempt progress out to teachers through
// Redis Pub/Sub. Publishing is best-effort: the exam goes on whether or
// not anyone is watching.
type MonitorService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		rdb: rdb,
		log: log.With().Str("component", "monitor_service").Logger(),
	}
}

// PublishProgress emits a progress update on the exam's monitor channel.
func (s *MonitorService) PublishProgress(ctx context.Context, examID, attemptID uuid.UUID, answered, total int, phase string) {
	update := ProgressUpdate{
		ExamID:         examID,
		AttemptID:      attemptID,
		AnsweredCount:  answered,
		TotalQuestions: total,
		Phase:          phase,
	}

	payload, err := json.Marshal(update)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal progress update")
		return
	}

	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Publish progress failed")
	}
}

// Subscribe opens a subscription on an exam's monitor channel. The
// caller owns the returned PubSub and must Close it.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}
