package domain

// RoomStatus is the lifecycle of a room. It only moves forward.
type RoomStatus string

const (
	RoomWaiting    RoomStatus = "waiting"
	RoomInProgress RoomStatus = "in_progress"
	RoomFinished   RoomStatus = "finished"
)

// RoundStatus is the lifecycle of a round: active, then ended.
type RoundStatus string

const (
	RoundActive RoundStatus = "active"
	RoundEnded  RoundStatus = "ended"
)

// BankSource records where a room's question bank came from.
type BankSource string

const (
	SourceDefault BankSource = "default"
	SourceManual  BankSource = "manual"
	SourceCSV     BankSource = "csv"
	SourceLibrary BankSource = "library"
)

// OptionsPerQuestion is the fixed option cardinality of every question.
const OptionsPerQuestion = 4

// OptionIDs are assigned to options in input order.
var OptionIDs = [OptionsPerQuestion]string{"a", "b", "c", "d"}

// Option represents a possible answer for a question.
type Option struct {
	ID    string `json:"optionId"`
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// Question is the player-visible part of a bank entry. The correct option
// is never part of it.
type Question struct {
	ID         string                     `json:"questionId"`
	Title      string                     `json:"title"`
	Options    [OptionsPerQuestion]Option `json:"options"`
	DurationMs int64                      `json:"durationMs"`
}

// StoredQuestion is a bank entry as the engine sees it.
type StoredQuestion struct {
	Question        Question
	CorrectOptionID string
}

// QuestionInput is an unvalidated question as authored by a host.
type QuestionInput struct {
	Title              string   `json:"title" yaml:"title"`
	Options            []string `json:"options" yaml:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex" yaml:"correctOptionIndex"`
}

// QuestionSet is a named, stored list of authored questions.
type QuestionSet struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Questions []QuestionInput `json:"questions"`
}

// Player is one joined username within a room.
type Player struct {
	ID              string
	Username        string
	ConnectionID    string // empty once disconnected
	IsHost          bool
	TotalScore      int
	TotalResponseMs int64
	FirstCorrectAt  *int64 // unix ms of the first correct answer
}

// Answer is the single recorded answer of a player in a round.
type Answer struct {
	RoundID      string `json:"roundId"`
	PlayerID     string `json:"playerId"`
	OptionID     string `json:"optionId"`
	ReceivedAtMs int64  `json:"receivedAtMs"`
	IsCorrect    bool   `json:"isCorrect"`
	ResponseMs   int64  `json:"responseMs"`
	AwardedScore int    `json:"awardedScore"`
}

// Round is the lifecycle of one started question.
type Round struct {
	ID              string
	Question        Question
	CorrectOptionID string
	Status          RoundStatus
	StartedAtMs     int64
	EndsAtMs        int64
	Answers         map[string]Answer // by player id
}

// RoundInfo is the player-visible view of a round.
type RoundInfo struct {
	RoundID     string      `json:"roundId"`
	Question    Question    `json:"question"`
	Status      RoundStatus `json:"status"`
	StartedAtMs int64       `json:"startedAtMs"`
	EndsAtMs    int64       `json:"endsAtMs"`
}

// RankingEntry is one leaderboard line.
type RankingEntry struct {
	PlayerID        string `json:"playerId"`
	Username        string `json:"username"`
	TotalScore      int    `json:"totalScore"`
	TotalResponseMs int64  `json:"totalResponseMs"`
	Position        int    `json:"position"`
}

// PlayerSummary is the broadcast-friendly view of a player.
type PlayerSummary struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

// RoomState is the read-only projection sent to clients after each mutation.
type RoomState struct {
	RoomID         string          `json:"roomId"`
	Status         RoomStatus      `json:"status"`
	Players        []PlayerSummary `json:"players"`
	CurrentRoundID string          `json:"currentRoundId,omitempty"`
	QuestionCount  int             `json:"questionCount"`
	QuestionSource BankSource      `json:"questionSource"`
}

// JoinResult is returned by a successful join.
type JoinResult struct {
	Player     PlayerSummary `json:"player"`
	BecameHost bool          `json:"becameHost"`
}

// BankResult is returned by a successful question bank replacement.
type BankResult struct {
	QuestionCount int        `json:"questionCount"`
	Source        BankSource `json:"source"`
}

// RoundResult is returned when a round ends.
type RoundResult struct {
	Round           RoundInfo      `json:"round"`
	CorrectOptionID string         `json:"correctOptionId"`
	Ranking         []RankingEntry `json:"ranking"`
	GameEnded       bool           `json:"gameEnded"`
}
