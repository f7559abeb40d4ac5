package app

import (
	"fmt"
	"math"

	"live-quiz-service/internal/domain"
)

func (r *Room) startGame(connID string, bankSize int) error {
	if err := r.assertHost(connID); err != nil {
		return err
	}
	if r.status != domain.RoomWaiting {
		return domain.ErrInvalidRoomState
	}
	if bankSize == 0 {
		return domain.ErrEmptyBank
	}
	r.status = domain.RoomInProgress
	return nil
}

func (r *Room) nextRound(connID string, bank []domain.StoredQuestion, nowMs int64) (domain.RoundInfo, error) {
	if err := r.assertHost(connID); err != nil {
		return domain.RoundInfo{}, err
	}
	if r.status != domain.RoomInProgress {
		return domain.RoundInfo{}, domain.ErrInvalidRoomState
	}
	if r.current != nil && r.current.Status == domain.RoundActive {
		return domain.RoundInfo{}, domain.ErrRoundAlreadyActive
	}
	next := r.questionIndex + 1
	if next >= len(bank) {
		return domain.RoundInfo{}, domain.ErrNoMoreQuestions
	}

	stored := bank[next]
	round := &domain.Round{
		ID:              fmt.Sprintf("r_%d", next+1),
		Question:        stored.Question,
		CorrectOptionID: stored.CorrectOptionID,
		Status:          domain.RoundActive,
		StartedAtMs:     nowMs,
		EndsAtMs:        nowMs + stored.Question.DurationMs,
		Answers:         make(map[string]domain.Answer),
	}
	r.questionIndex = next
	r.current = round
	r.rounds = append(r.rounds, round)
	return roundInfo(round), nil
}

func (r *Room) submit(connID, roundID, optionID string, nowMs int64, scoring Scoring) (domain.Answer, error) {
	player, ok := r.playerByConn(connID)
	if !ok {
		return domain.Answer{}, domain.ErrPlayerNotFound
	}
	if player.IsHost {
		return domain.Answer{}, domain.ErrHostCannotAnswer
	}
	round := r.current
	if round == nil || round.ID != roundID {
		return domain.Answer{}, domain.ErrRoundNotFound
	}
	if round.Status != domain.RoundActive {
		return domain.Answer{}, domain.ErrRoundNotActive
	}
	if _, answered := round.Answers[player.ID]; answered {
		return domain.Answer{}, domain.ErrAlreadyAnswered
	}
	if nowMs > round.EndsAtMs {
		return domain.Answer{}, domain.ErrAnswerTooLate
	}

	answer := domain.Answer{
		RoundID:      round.ID,
		PlayerID:     player.ID,
		OptionID:     optionID,
		ReceivedAtMs: nowMs,
		IsCorrect:    optionID == round.CorrectOptionID,
		ResponseMs:   nowMs - round.StartedAtMs,
	}
	if answer.IsCorrect {
		answer.AwardedScore = scoring.award(round.EndsAtMs - nowMs)
		player.TotalScore += answer.AwardedScore
		player.TotalResponseMs += answer.ResponseMs
		if player.FirstCorrectAt == nil {
			at := nowMs
			player.FirstCorrectAt = &at
		}
	}
	round.Answers[player.ID] = answer
	return answer, nil
}

func (r *Room) shouldEnd(nowMs int64) bool {
	round := r.current
	if round == nil || round.Status != domain.RoundActive {
		return true
	}

	eligible, answered := 0, 0
	for _, playerID := range r.byConn {
		p := r.players[playerID]
		if p.IsHost {
			continue
		}
		eligible++
		if _, ok := round.Answers[p.ID]; ok {
			answered++
		}
	}
	if eligible == 0 || answered >= eligible {
		return true
	}
	return nowMs >= round.EndsAtMs
}

func (r *Room) endRound(bankSize int) (domain.RoundResult, error) {
	round := r.current
	if round == nil {
		return domain.RoundResult{}, domain.ErrRoundNotFound
	}
	if round.Status != domain.RoundActive {
		return domain.RoundResult{}, domain.ErrRoundNotActive
	}

	round.Status = domain.RoundEnded
	gameEnded := r.questionIndex >= bankSize-1
	if gameEnded {
		r.status = domain.RoomFinished
	}
	return domain.RoundResult{
		Round:           roundInfo(round),
		CorrectOptionID: round.CorrectOptionID,
		Ranking:         rankPlayers(r.rankable()),
		GameEnded:       gameEnded,
	}, nil
}

func (r *Room) rankable() []*domain.Player {
	players := make([]*domain.Player, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		players = append(players, r.players[id])
	}
	return players
}

func roundInfo(round *domain.Round) domain.RoundInfo {
	return domain.RoundInfo{
		RoundID:     round.ID,
		Question:    round.Question,
		Status:      round.Status,
		StartedAtMs: round.StartedAtMs,
		EndsAtMs:    round.EndsAtMs,
	}
}

// award turns the remaining time of a correct answer into points: linear in
// the remaining time, rounded half up, never below 1.
func (s Scoring) award(remainingMs int64) int {
	if remainingMs < 0 {
		remainingMs = 0
	}
	scaled := float64(int64(s.MaxPoints)*remainingMs) / float64(s.TimeLimit.Milliseconds())
	raw := int(math.Floor(scaled + 0.5))
	if raw < 1 {
		return 1
	}
	return raw
}
