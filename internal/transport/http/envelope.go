package http

import (
	"encoding/json"
	"time"

	"live-quiz-service/internal/domain"
)

const envelopeVersion = 1

// Client to server events.
const (
	EventRoomJoin        = "room.join"
	EventSetQuestionBank = "host.set_question_bank"
	EventImportCSV       = "host.import_csv"
	EventLoadQuestionSet = "host.load_question_set"
	EventStartGame       = "host.start_game"
	EventNextQuestion    = "host.next_question"
	EventSubmitAnswer    = "player.submit_answer"
)

// Server to client events.
const (
	EventRoomStateUpdated  = "room.state_updated"
	EventQuestionStarted   = "question.started"
	EventQuestionTimerTick = "question.timer_tick"
	EventQuestionEnded     = "question.ended"
	EventAnswerReveal      = "answer.reveal"
	EventLeaderboard       = "leaderboard.updated"
	EventGameEnded         = "game.ended"

	EventJoinAck         = "room.join_ack"
	EventQuestionBankAck = "host.question_bank_ack"
	EventAnswerAck       = "player.answer_ack"
	EventError           = "error"
)

type inboundEnvelope struct {
	V         int             `json:"v"`
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type outboundEnvelope[T any] struct {
	V         int    `json:"v"`
	Type      string `json:"type"`
	EmittedAt string `json:"emittedAt"`
	RequestID string `json:"requestId,omitempty"`
	Payload   T      `json:"payload"`
}

// encode builds one wire message. Broadcasts are encoded once and shared by
// every subscriber.
func encode[T any](typ, requestID string, payload T, now time.Time) []byte {
	raw, err := json.Marshal(outboundEnvelope[T]{
		V:         envelopeVersion,
		Type:      typ,
		EmittedAt: isoTime(now),
		RequestID: requestID,
		Payload:   payload,
	})
	if err != nil {
		// Payloads are plain structs; this only happens on programmer error.
		panic("encode " + typ + ": " + err.Error())
	}
	return raw
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func isoMillis(ms int64) string {
	return isoTime(time.UnixMilli(ms))
}

// Inbound payloads.

type joinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type questionBankPayload struct {
	RoomID    string                 `json:"roomId"`
	Source    domain.BankSource      `json:"source"`
	Questions []domain.QuestionInput `json:"questions"`
}

type importCSVPayload struct {
	RoomID string `json:"roomId"`
	CSV    string `json:"csv"`
}

type loadQuestionSetPayload struct {
	RoomID string `json:"roomId"`
	SetID  string `json:"setId"`
}

type submitAnswerPayload struct {
	RoomID   string `json:"roomId"`
	RoundID  string `json:"roundId"`
	OptionID string `json:"optionId"`
}

// roomScoped is implemented by every inbound payload.
type roomScoped interface {
	room() string
}

func (p *joinPayload) room() string            { return p.RoomID }
func (p *roomPayload) room() string            { return p.RoomID }
func (p *questionBankPayload) room() string    { return p.RoomID }
func (p *importCSVPayload) room() string       { return p.RoomID }
func (p *loadQuestionSetPayload) room() string { return p.RoomID }
func (p *submitAnswerPayload) room() string    { return p.RoomID }

// Outbound payloads.

type questionStartedPayload struct {
	RoomID    string          `json:"roomId"`
	RoundID   string          `json:"roundId"`
	Question  domain.Question `json:"question"`
	StartedAt string          `json:"startedAt"`
	EndsAt    string          `json:"endsAt"`
}

type timerTickPayload struct {
	RoomID      string `json:"roomId"`
	RoundID     string `json:"roundId"`
	RemainingMs int64  `json:"remainingMs"`
}

type questionEndedPayload struct {
	RoomID          string `json:"roomId"`
	RoundID         string `json:"roundId"`
	EndedAt         string `json:"endedAt"`
	CorrectOptionID string `json:"correctOptionId"`
}

type answerRevealPayload struct {
	RoomID          string `json:"roomId"`
	RoundID         string `json:"roundId"`
	CorrectOptionID string `json:"correctOptionId"`
}

type leaderboardPayload struct {
	RoomID  string                `json:"roomId"`
	RoundID string                `json:"roundId"`
	Ranking []domain.RankingEntry `json:"ranking"`
}

type gameEndedPayload struct {
	RoomID  string                `json:"roomId"`
	Ranking []domain.RankingEntry `json:"ranking"`
}

type joinAckPayload struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	BecameHost bool   `json:"becameHost"`
}

type questionBankAckPayload struct {
	RoomID        string            `json:"roomId"`
	QuestionCount int               `json:"questionCount"`
	Source        domain.BankSource `json:"source"`
}

type answerAckPayload struct {
	RoomID       string `json:"roomId"`
	RoundID      string `json:"roundId"`
	IsCorrect    bool   `json:"isCorrect"`
	AwardedScore int    `json:"awardedScore"`
	ResponseMs   int64  `json:"responseMs"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Index   int    `json:"index,omitempty"`
	Field   string `json:"field,omitempty"`
	Line    int    `json:"line,omitempty"`
}
