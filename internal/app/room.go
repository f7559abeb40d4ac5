package app

import (
	"fmt"
	"strings"
	"sync"

	"live-quiz-service/internal/domain"
)

const maxPlayerIDAttempts = 50

// Room is the in-memory aggregate of one game session.
//
// Players live in an arena keyed by player id; byConn indexes the arena by
// the current connection. Every method expects mu to be held by the caller
// (RoomService).
type Room struct {
	id string
	mu sync.Mutex

	status   domain.RoomStatus
	hostConn string

	players   map[string]*domain.Player
	byConn    map[string]string
	joinOrder []string

	// bank is nil until the host replaces it; the service default applies meanwhile.
	bank   []domain.StoredQuestion
	source domain.BankSource

	rounds        []*domain.Round
	current       *domain.Round
	questionIndex int
}

// NewRoom is exported for infrastructure layers that need to seed rooms.
func NewRoom(id string) *Room {
	return &Room{
		id:            id,
		status:        domain.RoomWaiting,
		players:       make(map[string]*domain.Player),
		byConn:        make(map[string]string),
		source:        domain.SourceDefault,
		questionIndex: -1,
	}
}

// ID returns the external room identifier.
func (r *Room) ID() string {
	return r.id
}

func (r *Room) questions(fallback []domain.StoredQuestion) []domain.StoredQuestion {
	if r.bank == nil {
		return fallback
	}
	return r.bank
}

func (r *Room) assertHost(connID string) error {
	if r.hostConn == "" || r.hostConn != connID {
		return domain.ErrNotHost
	}
	return nil
}

func (r *Room) playerByConn(connID string) (*domain.Player, bool) {
	playerID, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	p, ok := r.players[playerID]
	return p, ok
}

func (r *Room) join(username, connID string, newID func() string) (domain.JoinResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.JoinResult{}, domain.ErrUsernameRequired
	}
	for _, p := range r.players {
		if strings.EqualFold(p.Username, username) {
			return domain.JoinResult{}, domain.ErrUsernameTaken
		}
	}

	playerID := ""
	for i := 0; i < maxPlayerIDAttempts; i++ {
		candidate := newID()
		if _, exists := r.players[candidate]; !exists {
			playerID = candidate
			break
		}
	}
	if playerID == "" {
		return domain.JoinResult{}, fmt.Errorf("join room %s: no unique player id after %d attempts", r.id, maxPlayerIDAttempts)
	}

	player := &domain.Player{
		ID:           playerID,
		Username:     username,
		ConnectionID: connID,
	}
	becameHost := r.hostConn == ""
	if becameHost {
		r.hostConn = connID
		player.IsHost = true
	}

	r.players[playerID] = player
	r.byConn[connID] = playerID
	r.joinOrder = append(r.joinOrder, playerID)

	return domain.JoinResult{Player: summarize(player), BecameHost: becameHost}, nil
}

// leave drops the connection mapping only; the player record stays for ranking.
func (r *Room) leave(connID string) bool {
	player, ok := r.playerByConn(connID)
	if !ok {
		return false
	}
	delete(r.byConn, connID)
	player.ConnectionID = ""

	if r.hostConn != connID {
		return true
	}
	player.IsHost = false
	r.hostConn = ""
	if next := r.successor(); next != nil {
		next.IsHost = true
		r.hostConn = next.ConnectionID
	}
	return true
}

// successor picks the next host: the earliest-joined connected player who
// has not answered the active round, else the earliest-joined connected one.
// The fallback only happens when every survivor already answered, so the
// round has nobody left to wait for.
func (r *Room) successor() *domain.Player {
	var fallback *domain.Player
	for _, id := range r.joinOrder {
		p := r.players[id]
		if p.ConnectionID == "" {
			continue
		}
		if !r.answeredActive(p.ID) {
			return p
		}
		if fallback == nil {
			fallback = p
		}
	}
	return fallback
}

func (r *Room) answeredActive(playerID string) bool {
	if r.current == nil || r.current.Status != domain.RoundActive {
		return false
	}
	_, ok := r.current.Answers[playerID]
	return ok
}

func (r *Room) snapshot(fallback []domain.StoredQuestion) domain.RoomState {
	players := make([]domain.PlayerSummary, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		players = append(players, summarize(r.players[id]))
	}
	state := domain.RoomState{
		RoomID:         r.id,
		Status:         r.status,
		Players:        players,
		QuestionCount:  len(r.questions(fallback)),
		QuestionSource: r.source,
	}
	if r.current != nil {
		state.CurrentRoundID = r.current.ID
	}
	return state
}

func summarize(p *domain.Player) domain.PlayerSummary {
	return domain.PlayerSummary{
		PlayerID:  p.ID,
		Username:  p.Username,
		IsHost:    p.IsHost,
		Connected: p.ConnectionID != "",
	}
}
