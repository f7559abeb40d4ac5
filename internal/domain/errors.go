package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotHost is returned when a host-only action comes from another connection.
	ErrNotHost = errors.New("caller is not the room host")
	// ErrInvalidRoomState is returned when the room status does not allow the action.
	ErrInvalidRoomState = errors.New("action not allowed in current room state")
	// ErrRoundAlreadyActive is returned when a new round is requested while one is running.
	ErrRoundAlreadyActive = errors.New("a round is already active")
	// ErrNoMoreQuestions is returned when the question bank is exhausted.
	ErrNoMoreQuestions = errors.New("no more questions in bank")
	// ErrEmptyBank is returned for an empty question bank.
	ErrEmptyBank = errors.New("question bank is empty")
	// ErrInvalidQuestion is matched by every *InvalidQuestionError.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrUsernameTaken is returned when the username is already used in the room (any case).
	ErrUsernameTaken = errors.New("username already in use")
	// ErrUsernameRequired is returned for a blank username.
	ErrUsernameRequired = errors.New("username is required")
	// ErrConnectionInUse is returned when a connection already joined a room.
	ErrConnectionInUse = errors.New("connection already joined a room")
	// ErrPlayerNotFound is returned when the caller is not a current room member.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrHostCannotAnswer is returned when the host submits an answer.
	ErrHostCannotAnswer = errors.New("host cannot answer")
	// ErrRoundNotFound is returned when the round does not exist or is not the current one.
	ErrRoundNotFound = errors.New("round not found")
	// ErrRoundNotActive is returned when the round has already ended.
	ErrRoundNotActive = errors.New("round is not active")
	// ErrAlreadyAnswered is returned on a second answer in the same round.
	ErrAlreadyAnswered = errors.New("player already answered this round")
	// ErrAnswerTooLate is returned when the answer arrives after the round deadline.
	ErrAnswerTooLate = errors.New("answer received after round ended")
	// ErrRoomNotFound is returned by read-only lookups of unknown rooms.
	ErrRoomNotFound = errors.New("room not found")
	// ErrQuestionSetNotFound indicates a stored question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
)

// Fields reported by InvalidQuestionError.
const (
	FieldTitle   = "title"
	FieldOptions = "options"
	FieldCorrect = "correctOptionIndex"
)

// InvalidQuestionError identifies the offending question (1-based) and field.
type InvalidQuestionError struct {
	Index int
	Field string
}

func (e *InvalidQuestionError) Error() string {
	return fmt.Sprintf("invalid question %d: %s", e.Index, e.Field)
}

func (e *InvalidQuestionError) Is(target error) bool {
	return target == ErrInvalidQuestion
}
