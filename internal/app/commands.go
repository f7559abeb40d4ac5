package app

import (
	"context"
	"fmt"

	"live-quiz-service/internal/domain"
)

// Command is the closed set of requests the transport can route to a room.
type Command interface {
	command()
}

type JoinRoom struct {
	RoomID       string
	Username     string
	ConnectionID string
}

type Disconnect struct {
	ConnectionID string
}

type SetQuestionBank struct {
	RoomID       string
	ConnectionID string
	Source       domain.BankSource
	Questions    []domain.QuestionInput
}

type LoadQuestionSet struct {
	RoomID       string
	ConnectionID string
	SetID        string
}

type StartGame struct {
	RoomID       string
	ConnectionID string
}

type NextQuestion struct {
	RoomID       string
	ConnectionID string
}

// SubmitAnswer carries the server-observed receipt time; zero means now.
type SubmitAnswer struct {
	RoomID       string
	ConnectionID string
	RoundID      string
	OptionID     string
	NowMs        int64
}

type EndRound struct {
	RoomID string
}

func (JoinRoom) command()        {}
func (Disconnect) command()      {}
func (SetQuestionBank) command() {}
func (LoadQuestionSet) command() {}
func (StartGame) command()       {}
func (NextQuestion) command()    {}
func (SubmitAnswer) command()    {}
func (EndRound) command()        {}

// Result is the outcome of a dispatched command. State is the room snapshot
// after the command and is set whenever a room was affected; at most one of
// the pointer fields is set depending on the command.
type Result struct {
	RoomID string
	State  domain.RoomState
	// Broadcast is false when nothing observable changed (e.g. an answer).
	Broadcast bool

	Join   *domain.JoinResult
	Bank   *domain.BankResult
	Round  *domain.RoundInfo
	Answer *domain.Answer
	Ended  *domain.RoundResult
}

// Dispatch routes one command to the matching room operation.
func (s *RoomService) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case JoinRoom:
		res, state, err := s.Join(c.RoomID, c.Username, c.ConnectionID)
		if err != nil {
			return Result{}, err
		}
		return Result{RoomID: c.RoomID, State: state, Broadcast: true, Join: &res}, nil

	case Disconnect:
		state, ok := s.RemoveConnection(c.ConnectionID)
		if !ok {
			return Result{}, nil
		}
		return Result{RoomID: state.RoomID, State: state, Broadcast: true}, nil

	case SetQuestionBank:
		res, state, err := s.SetQuestionBank(c.RoomID, c.ConnectionID, c.Source, c.Questions)
		if err != nil {
			return Result{}, err
		}
		return Result{RoomID: c.RoomID, State: state, Broadcast: true, Bank: &res}, nil

	case LoadQuestionSet:
		res, state, err := s.LoadQuestionSet(ctx, c.RoomID, c.ConnectionID, c.SetID)
		if err != nil {
			return Result{}, err
		}
		return Result{RoomID: c.RoomID, State: state, Broadcast: true, Bank: &res}, nil

	case StartGame:
		state, err := s.Start(c.RoomID, c.ConnectionID)
		if err != nil {
			return Result{}, err
		}
		return Result{RoomID: c.RoomID, State: state, Broadcast: true}, nil

	case NextQuestion:
		round, state, err := s.NextQuestion(c.RoomID, c.ConnectionID)
		if err != nil {
			return Result{}, err
		}
		return Result{RoomID: c.RoomID, State: state, Broadcast: true, Round: &round}, nil

	case SubmitAnswer:
		answer, err := s.SubmitAnswer(c.RoomID, c.ConnectionID, c.RoundID, c.OptionID, c.NowMs)
		if err != nil {
			return Result{}, err
		}
		return Result{RoomID: c.RoomID, Answer: &answer}, nil

	case EndRound:
		ended, state, err := s.End(c.RoomID)
		if err != nil {
			return Result{}, err
		}
		return Result{RoomID: c.RoomID, State: state, Broadcast: true, Ended: &ended}, nil
	}
	return Result{}, fmt.Errorf("dispatch: unsupported command %T", cmd)
}
