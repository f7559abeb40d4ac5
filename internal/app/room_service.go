package app

import (
	"context"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// RoomRepository abstracts where rooms live (in-memory, Redis-marked, etc).
type RoomRepository interface {
	GetOrCreate(roomID string) *Room
	Get(roomID string) (*Room, bool)
}

// QuestionSetRepository loads stored question sets (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// Scoring holds the fixed scoring constants of every room.
type Scoring struct {
	MaxPoints int
	TimeLimit time.Duration
}

// DefaultScoring awards up to 120 points over a two minute window.
var DefaultScoring = Scoring{MaxPoints: 120, TimeLimit: 120 * time.Second}

// Option configures a RoomService.
type Option func(*RoomService)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *RoomService) { s.now = now }
}

// WithIDGenerator replaces the player id source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *RoomService) { s.ids = ids }
}

// WithScoring overrides the scoring constants.
func WithScoring(scoring Scoring) Option {
	return func(s *RoomService) { s.scoring = scoring }
}

// RoomService is the room coordinator: the only authorization boundary and
// the only entry point the transport calls.
//
// Every operation on a room runs under that room's mutex, so operations on
// the same room are serialized.
type RoomService struct {
	rooms   RoomRepository
	sets    QuestionSetRepository
	ids     IDGenerator
	now     func() time.Time
	scoring Scoring

	defaultBank []domain.StoredQuestion

	connMu sync.Mutex
	conns  map[string]string // connection id -> room id
}

// NewRoomService wires the coordinator. sets may be nil when no question-set
// library is configured.
func NewRoomService(rooms RoomRepository, sets QuestionSetRepository, opts ...Option) *RoomService {
	s := &RoomService{
		rooms:   rooms,
		sets:    sets,
		ids:     ShortIDGenerator{},
		now:     time.Now,
		scoring: DefaultScoring,
		conns:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scoring.TimeLimit <= 0 || s.scoring.MaxPoints <= 0 {
		panic("app: scoring needs a positive time limit and max points")
	}

	bank, err := buildBank(defaultQuestions(), s.scoring.TimeLimit.Milliseconds())
	if err != nil {
		panic("app: invalid default question bank: " + err.Error())
	}
	s.defaultBank = bank
	return s
}

func (s *RoomService) nowMs() int64 {
	return s.now().UnixMilli()
}

// GetOrCreateRoom returns the state of a room, creating it on first reference.
func (s *RoomService) GetOrCreateRoom(roomID string) domain.RoomState {
	room := s.rooms.GetOrCreate(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshot(s.defaultBank)
}

// Join registers a new player under the given connection.
func (s *RoomService) Join(roomID, username, connID string) (domain.JoinResult, domain.RoomState, error) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if _, bound := s.conns[connID]; bound {
		return domain.JoinResult{}, domain.RoomState{}, domain.ErrConnectionInUse
	}

	room := s.rooms.GetOrCreate(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()

	res, err := room.join(username, connID, s.ids.NewPlayerID)
	if err != nil {
		return domain.JoinResult{}, domain.RoomState{}, err
	}
	s.conns[connID] = roomID
	return res, room.snapshot(s.defaultBank), nil
}

// RemoveConnection forgets a connection. It reports the affected room state,
// or false when the connection never joined a room.
func (s *RoomService) RemoveConnection(connID string) (domain.RoomState, bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	roomID, ok := s.conns[connID]
	if !ok {
		return domain.RoomState{}, false
	}
	delete(s.conns, connID)

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomState{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	room.leave(connID)
	return room.snapshot(s.defaultBank), true
}

// SetQuestionBank replaces a waiting room's bank with validated questions.
func (s *RoomService) SetQuestionBank(roomID, connID string, source domain.BankSource, questions []domain.QuestionInput) (domain.BankResult, domain.RoomState, error) {
	if source == "" {
		source = domain.SourceManual
	}
	room := s.rooms.GetOrCreate(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()

	res, err := room.replaceBank(connID, source, questions, s.scoring.TimeLimit.Milliseconds())
	if err != nil {
		return domain.BankResult{}, domain.RoomState{}, err
	}
	return res, room.snapshot(s.defaultBank), nil
}

// LoadQuestionSet replaces a waiting room's bank with a stored question set.
func (s *RoomService) LoadQuestionSet(ctx context.Context, roomID, connID, setID string) (domain.BankResult, domain.RoomState, error) {
	if s.sets == nil {
		return domain.BankResult{}, domain.RoomState{}, domain.ErrQuestionSetNotFound
	}

	// Reject early so non-hosts learn nothing about which sets exist.
	room := s.rooms.GetOrCreate(roomID)
	room.mu.Lock()
	err := room.checkBankEditable(connID)
	room.mu.Unlock()
	if err != nil {
		return domain.BankResult{}, domain.RoomState{}, err
	}

	set, err := s.sets.GetQuestionSet(ctx, setID)
	if err != nil {
		return domain.BankResult{}, domain.RoomState{}, err
	}
	return s.SetQuestionBank(roomID, connID, domain.SourceLibrary, set.Questions)
}

// Start moves a waiting room to in progress.
func (s *RoomService) Start(roomID, connID string) (domain.RoomState, error) {
	room := s.rooms.GetOrCreate(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()

	if err := room.startGame(connID, len(room.questions(s.defaultBank))); err != nil {
		return domain.RoomState{}, err
	}
	return room.snapshot(s.defaultBank), nil
}

// NextQuestion starts the round for the next bank entry.
func (s *RoomService) NextQuestion(roomID, connID string) (domain.RoundInfo, domain.RoomState, error) {
	room := s.rooms.GetOrCreate(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()

	round, err := room.nextRound(connID, room.questions(s.defaultBank), s.nowMs())
	if err != nil {
		return domain.RoundInfo{}, domain.RoomState{}, err
	}
	return round, room.snapshot(s.defaultBank), nil
}

// SubmitAnswer records the caller's single answer for the active round.
// A zero nowMs means "now" on the service clock.
func (s *RoomService) SubmitAnswer(roomID, connID, roundID, optionID string, nowMs int64) (domain.Answer, error) {
	if nowMs == 0 {
		nowMs = s.nowMs()
	}
	room := s.rooms.GetOrCreate(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.submit(connID, roundID, optionID, nowMs, s.scoring)
}

// ShouldEnd reports whether the current round of a room is due to end.
// It never mutates state and is meant to be polled.
func (s *RoomService) ShouldEnd(roomID string) bool {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return true
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.shouldEnd(s.nowMs())
}

// End closes the current round, ranks players and finishes the game after
// the last question.
func (s *RoomService) End(roomID string) (domain.RoundResult, domain.RoomState, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoundResult{}, domain.RoomState{}, domain.ErrRoundNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	res, err := room.endRound(len(room.questions(s.defaultBank)))
	if err != nil {
		return domain.RoundResult{}, domain.RoomState{}, err
	}
	return res, room.snapshot(s.defaultBank), nil
}

// CurrentRound returns the most recently started round of a room.
func (s *RoomService) CurrentRound(roomID string) (domain.RoundInfo, bool) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoundInfo{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.current == nil {
		return domain.RoundInfo{}, false
	}
	return roundInfo(room.current), true
}

// Snapshot returns the read-only projection of an existing room.
func (s *RoomService) Snapshot(roomID string) (domain.RoomState, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomState{}, domain.ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshot(s.defaultBank), nil
}

// Ranking returns the current ranking of every registered player.
func (s *RoomService) Ranking(roomID string) ([]domain.RankingEntry, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return rankPlayers(room.rankable()), nil
}
