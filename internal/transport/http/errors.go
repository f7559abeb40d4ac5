package http

import (
	"errors"

	"live-quiz-service/internal/authoring"
	"live-quiz-service/internal/domain"
)

// Wire codes for errors sent back to the originating connection.
const (
	CodeNotHost             = "NOT_ROOM_HOST"
	CodeInvalidRoomState    = "INVALID_ROOM_STATE"
	CodeRoundAlreadyActive  = "ROUND_ALREADY_ACTIVE"
	CodeNoMoreQuestions     = "NO_MORE_QUESTIONS"
	CodeEmptyBank           = "QUESTION_BANK_EMPTY"
	CodeInvalidQuestion     = "INVALID_QUESTION"
	CodeUsernameTaken       = "USERNAME_ALREADY_IN_USE"
	CodeUsernameRequired    = "USERNAME_REQUIRED"
	CodeConnectionInUse     = "CONNECTION_ALREADY_JOINED"
	CodePlayerNotFound      = "PLAYER_NOT_IN_ROOM"
	CodeHostCannotAnswer    = "HOST_CANNOT_ANSWER"
	CodeRoundNotFound       = "ROUND_NOT_FOUND"
	CodeRoundNotActive      = "ROUND_NOT_ACTIVE"
	CodeAlreadyAnswered     = "ALREADY_ANSWERED"
	CodeAnswerTooLate       = "ANSWER_OUT_OF_TIME"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeQuestionSetNotFound = "QUESTION_SET_NOT_FOUND"
	CodeInvalidCSV          = "INVALID_CSV"
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnsupportedEvent    = "UNSUPPORTED_EVENT"
	CodeInternal            = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrNotHost, CodeNotHost},
	{domain.ErrInvalidRoomState, CodeInvalidRoomState},
	{domain.ErrRoundAlreadyActive, CodeRoundAlreadyActive},
	{domain.ErrNoMoreQuestions, CodeNoMoreQuestions},
	{domain.ErrEmptyBank, CodeEmptyBank},
	{domain.ErrInvalidQuestion, CodeInvalidQuestion},
	{domain.ErrUsernameTaken, CodeUsernameTaken},
	{domain.ErrUsernameRequired, CodeUsernameRequired},
	{domain.ErrConnectionInUse, CodeConnectionInUse},
	{domain.ErrPlayerNotFound, CodePlayerNotFound},
	{domain.ErrHostCannotAnswer, CodeHostCannotAnswer},
	{domain.ErrRoundNotFound, CodeRoundNotFound},
	{domain.ErrRoundNotActive, CodeRoundNotActive},
	{domain.ErrAlreadyAnswered, CodeAlreadyAnswered},
	{domain.ErrAnswerTooLate, CodeAnswerTooLate},
	{domain.ErrRoomNotFound, CodeRoomNotFound},
	{domain.ErrQuestionSetNotFound, CodeQuestionSetNotFound},
	{authoring.ErrEmptyCSV, CodeInvalidCSV},
	{authoring.ErrColumnCount, CodeInvalidCSV},
	{authoring.ErrInvalidRow, CodeInvalidCSV},
	{errBadRequest, CodeBadRequest},
	{errUnsupportedEvent, CodeUnsupportedEvent},
}

var (
	errBadRequest       = errors.New("malformed message")
	errUnsupportedEvent = errors.New("unsupported event type")
)

// toErrorPayload maps an error to its wire form. Unknown errors become
// INTERNAL_ERROR without leaking their text.
func toErrorPayload(err error) errorPayload {
	out := errorPayload{Code: CodeInternal, Message: "internal error"}
	for _, candidate := range errorCodes {
		if errors.Is(err, candidate.err) {
			out = errorPayload{Code: candidate.code, Message: err.Error()}
			break
		}
	}

	var qerr *domain.InvalidQuestionError
	if errors.As(err, &qerr) {
		out.Index = qerr.Index
		out.Field = qerr.Field
	}
	var lerr *authoring.LineError
	if errors.As(err, &lerr) {
		out.Code = CodeInvalidCSV
		out.Message = err.Error()
		out.Line = lerr.Line
	}
	return out
}
