package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TeacherSessionKey returns the cache key for a teacher's login session.
func (r *CacheKeyStruct) TeacherSessionKey(teacherID int) string {
	return fmt.Sprintf("login:teacher:%d", teacherID)
}

// AttemptStartKey returns the cache key holding an attempt's start time
// as unix seconds. Used to rebuild remaining time after a reload.
func (r *CacheKeyStruct) AttemptStartKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:started_at", attemptID)
}

// AttemptAnswersKey returns the cache key for an attempt's autosaved answers.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// ActiveAttemptKey returns the cache key marking the single active attempt
// for a student identity on a given exam.
func (r *CacheKeyStruct) ActiveAttemptKey(examID, studentKey string) string {
	return fmt.Sprintf("exam:%s:student:%s:active_attempt", examID, studentKey)
}

// ExamPayloadKey returns the cache key for an exam's student-safe payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamDurationKey returns the cache key for an exam's duration in minutes.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

// ExamAnswerKey returns the cache key for an exam's answer key.
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel for live attempt
// progress on an exam, consumed by the teacher monitor SSE.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
