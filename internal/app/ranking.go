package app

import (
	"math"
	"sort"

	"live-quiz-service/internal/domain"
)

// rankPlayers orders by score desc, response time asc, first correct answer
// asc (never correct sorts last), then username.
func rankPlayers(players []*domain.Player) []domain.RankingEntry {
	sorted := make([]*domain.Player, len(players))
	copy(sorted, players)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.TotalResponseMs != b.TotalResponseMs {
			return a.TotalResponseMs < b.TotalResponseMs
		}
		if fa, fb := firstCorrect(a), firstCorrect(b); fa != fb {
			return fa < fb
		}
		return a.Username < b.Username
	})

	ranking := make([]domain.RankingEntry, 0, len(sorted))
	for i, p := range sorted {
		ranking = append(ranking, domain.RankingEntry{
			PlayerID:        p.ID,
			Username:        p.Username,
			TotalScore:      p.TotalScore,
			TotalResponseMs: p.TotalResponseMs,
			Position:        i + 1,
		})
	}
	return ranking
}

func firstCorrect(p *domain.Player) int64 {
	if p.FirstCorrectAt == nil {
		return math.MaxInt64
	}
	return *p.FirstCorrectAt
}
