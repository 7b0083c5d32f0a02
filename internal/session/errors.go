package session

import "errors"

// Sentinel errors for the session engine. Handlers map these onto typed
// response codes.
var (
	// ErrExamNotFound aborts session start: the exam is missing,
	// unpublished, or has an empty question list.
	ErrExamNotFound = errors.New("exam not found or has no questions")

	// ErrSessionNotFound means no live session exists for the attempt.
	ErrSessionNotFound = errors.New("no live session for attempt")

	// ErrNotRunning rejects mutations outside the running phase.
	ErrNotRunning = errors.New("session is not running")

	// ErrUnknownQuestion rejects answers for questions outside the exam.
	ErrUnknownQuestion = errors.New("question does not belong to this exam")

	// ErrInvalidAnswer rejects values that do not match the question's
	// expected shape (empty, or not one of the option strings).
	ErrInvalidAnswer = errors.New("answer does not match the question's expected shape")

	// ErrSubmitInFlight means another submission already holds the
	// submitting phase; the caller's trigger is a no-op.
	ErrSubmitInFlight = errors.New("submission already in progress")
)
