package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type sequenceIDs struct{ n int }

func (g *sequenceIDs) NewPlayerID() string {
	g.n++
	return fmt.Sprintf("p_%d", g.n)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time         { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService() (*app.RoomService, *fakeClock) {
	clock := &fakeClock{now: t0}
	sets := memory.NewQuestionSetRepository(memory.NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
		"capitals": {
			ID:    "capitals",
			Title: "Capitals",
			Questions: []domain.QuestionInput{
				{Title: "Capital of France?", Options: []string{"Paris", "Rome", "Madrid", "Berlin"}, CorrectOptionIndex: 0},
				{Title: "Capital of Italy?", Options: []string{"Paris", "Rome", "Madrid", "Berlin"}, CorrectOptionIndex: 1},
			},
		},
	}), 5*time.Minute)
	service := app.NewRoomService(memory.NewRoomStore(), sets,
		app.WithClock(clock.Now),
		app.WithIDGenerator(&sequenceIDs{}),
	)
	return service, clock
}

func questions(n int) []domain.QuestionInput {
	qs := make([]domain.QuestionInput, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, domain.QuestionInput{
			Title:              fmt.Sprintf("Question %d", i+1),
			Options:            []string{"one", "two", "three", "four"},
			CorrectOptionIndex: 0,
		})
	}
	return qs
}

// setupGame joins a host (conn "host") and the given players (conn = name),
// publishes n questions and starts the game.
func setupGame(t *testing.T, service *app.RoomService, n int, players ...string) {
	t.Helper()
	if _, _, err := service.Join("room-1", "host", "host"); err != nil {
		t.Fatalf("join host: %v", err)
	}
	for _, p := range players {
		if _, _, err := service.Join("room-1", p, p); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}
	if _, _, err := service.SetQuestionBank("room-1", "host", domain.SourceManual, questions(n)); err != nil {
		t.Fatalf("set bank: %v", err)
	}
	if _, err := service.Start("room-1", "host"); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func hostName(state domain.RoomState) string {
	for _, p := range state.Players {
		if p.IsHost {
			return p.Username
		}
	}
	return ""
}

func TestNewRoomServiceRejectsUnusableScoring(t *testing.T) {
	for _, scoring := range []app.Scoring{
		{MaxPoints: 120, TimeLimit: 0},
		{MaxPoints: 120, TimeLimit: -time.Second},
		{MaxPoints: 0, TimeLimit: time.Minute},
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected %+v to be rejected", scoring)
				}
			}()
			app.NewRoomService(memory.NewRoomStore(), nil, app.WithScoring(scoring))
		}()
	}
}

func TestJoinAssignsIdsAndFirstHost(t *testing.T) {
	service, _ := newTestService()

	first, _, err := service.Join("room-1", "Alice", "c1")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if !first.BecameHost || !first.Player.IsHost {
		t.Fatalf("expected first joiner to become host, got %+v", first)
	}

	second, state, err := service.Join("room-1", "Bob", "c2")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if second.BecameHost || second.Player.IsHost {
		t.Fatalf("expected second joiner not to be host, got %+v", second)
	}
	if first.Player.PlayerID == second.Player.PlayerID {
		t.Fatalf("expected distinct player ids, got %s twice", first.Player.PlayerID)
	}
	if len(state.Players) != 2 {
		t.Fatalf("expected 2 players in state, got %d", len(state.Players))
	}

	if _, _, err := service.Join("room-1", "ALICE", "c3"); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
	if _, _, err := service.Join("room-1", "  ", "c4"); !errors.Is(err, domain.ErrUsernameRequired) {
		t.Fatalf("expected username required, got %v", err)
	}
	if _, _, err := service.Join("room-2", "Carol", "c1"); !errors.Is(err, domain.ErrConnectionInUse) {
		t.Fatalf("expected connection in use, got %v", err)
	}
}

func TestUsernameStaysReservedAfterDisconnect(t *testing.T) {
	service, _ := newTestService()
	_, _, _ = service.Join("room-1", "host", "host")
	_, _, _ = service.Join("room-1", "Bob", "c2")

	if _, ok := service.RemoveConnection("c2"); !ok {
		t.Fatalf("expected connection to be removed")
	}
	if _, _, err := service.Join("room-1", "bob", "c3"); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username taken after disconnect, got %v", err)
	}
}

func TestStartRequiresHostAndWaitingRoom(t *testing.T) {
	service, _ := newTestService()
	_, _, _ = service.Join("room-1", "host", "host")
	_, _, _ = service.Join("room-1", "ana", "ana")

	if _, err := service.Start("room-1", "ana"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host, got %v", err)
	}
	state, err := service.Start("room-1", "host")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if state.Status != domain.RoomInProgress {
		t.Fatalf("expected in_progress, got %s", state.Status)
	}
	if _, err := service.Start("room-1", "host"); !errors.Is(err, domain.ErrInvalidRoomState) {
		t.Fatalf("expected invalid room state, got %v", err)
	}
}

func TestDefaultBankKeepsRoomPlayable(t *testing.T) {
	service, _ := newTestService()
	state := service.GetOrCreateRoom("room-1")
	if state.Status != domain.RoomWaiting || state.QuestionCount != 1 || state.QuestionSource != domain.SourceDefault {
		t.Fatalf("unexpected fresh room state %+v", state)
	}

	_, _, _ = service.Join("room-1", "host", "host")
	if _, err := service.Start("room-1", "host"); err != nil {
		t.Fatalf("start with default bank: %v", err)
	}
	round, _, err := service.NextQuestion("room-1", "host")
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if round.RoundID != "r_1" || round.Question.ID != "q_1" {
		t.Fatalf("unexpected first round %+v", round)
	}
}

func TestSetQuestionBankValidation(t *testing.T) {
	valid := domain.QuestionInput{Title: "ok", Options: []string{"a", "b", "c", "d"}}
	tests := []struct {
		name      string
		questions []domain.QuestionInput
		index     int
		field     string
	}{
		{name: "blank title", questions: []domain.QuestionInput{valid, {Title: "  ", Options: valid.Options}}, index: 2, field: domain.FieldTitle},
		{name: "three options", questions: []domain.QuestionInput{{Title: "q", Options: []string{"a", "b", "c"}}}, index: 1, field: domain.FieldOptions},
		{name: "blank option", questions: []domain.QuestionInput{valid, valid, {Title: "q", Options: []string{"a", " ", "c", "d"}}}, index: 3, field: domain.FieldOptions},
		{name: "correct index out of range", questions: []domain.QuestionInput{{Title: "q", Options: valid.Options, CorrectOptionIndex: 4}}, index: 1, field: domain.FieldCorrect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newTestService()
			_, _, _ = service.Join("room-1", "host", "host")

			_, _, err := service.SetQuestionBank("room-1", "host", domain.SourceManual, tt.questions)
			if !errors.Is(err, domain.ErrInvalidQuestion) {
				t.Fatalf("expected invalid question, got %v", err)
			}
			var qerr *domain.InvalidQuestionError
			if !errors.As(err, &qerr) || qerr.Index != tt.index || qerr.Field != tt.field {
				t.Fatalf("expected question %d field %s, got %v", tt.index, tt.field, err)
			}

			state, _ := service.Snapshot("room-1")
			if state.QuestionSource != domain.SourceDefault || state.QuestionCount != 1 {
				t.Fatalf("expected bank untouched, got %+v", state)
			}
		})
	}
}

func TestSetQuestionBankReplacesAtomically(t *testing.T) {
	service, _ := newTestService()
	_, _, _ = service.Join("room-1", "host", "host")
	_, _, _ = service.Join("room-1", "ana", "ana")

	if _, _, err := service.SetQuestionBank("room-1", "host", domain.SourceCSV, nil); !errors.Is(err, domain.ErrEmptyBank) {
		t.Fatalf("expected empty bank, got %v", err)
	}
	if _, _, err := service.SetQuestionBank("room-1", "ana", domain.SourceManual, questions(2)); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host, got %v", err)
	}

	res, state, err := service.SetQuestionBank("room-1", "host", domain.SourceCSV, questions(3))
	if err != nil {
		t.Fatalf("set bank: %v", err)
	}
	if res.QuestionCount != 3 || res.Source != domain.SourceCSV {
		t.Fatalf("unexpected bank result %+v", res)
	}
	if state.QuestionCount != 3 || state.QuestionSource != domain.SourceCSV {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestSetQuestionBankAfterStartFailsForAnyCaller(t *testing.T) {
	service, _ := newTestService()
	setupGame(t, service, 2, "ana")

	for _, caller := range []string{"host", "ana", "stranger"} {
		if _, _, err := service.SetQuestionBank("room-1", caller, domain.SourceManual, questions(1)); !errors.Is(err, domain.ErrInvalidRoomState) {
			t.Fatalf("caller %s: expected invalid room state, got %v", caller, err)
		}
	}
}

func TestLoadQuestionSet(t *testing.T) {
	service, _ := newTestService()
	_, _, _ = service.Join("room-1", "host", "host")
	_, _, _ = service.Join("room-1", "ana", "ana")

	if _, _, err := service.LoadQuestionSet(context.Background(), "room-1", "ana", "capitals"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host, got %v", err)
	}
	if _, _, err := service.LoadQuestionSet(context.Background(), "room-1", "host", "missing"); !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected set not found, got %v", err)
	}
	res, state, err := service.LoadQuestionSet(context.Background(), "room-1", "host", "capitals")
	if err != nil {
		t.Fatalf("load set: %v", err)
	}
	if res.QuestionCount != 2 || state.QuestionSource != domain.SourceLibrary {
		t.Fatalf("unexpected result %+v state %+v", res, state)
	}
}

func TestNextQuestionPreconditions(t *testing.T) {
	service, _ := newTestService()
	_, _, _ = service.Join("room-1", "host", "host")
	_, _, _ = service.Join("room-1", "ana", "ana")

	if _, _, err := service.NextQuestion("room-1", "host"); !errors.Is(err, domain.ErrInvalidRoomState) {
		t.Fatalf("expected invalid room state before start, got %v", err)
	}
	_, _, _ = service.SetQuestionBank("room-1", "host", domain.SourceManual, questions(2))
	_, _ = service.Start("room-1", "host")

	if _, _, err := service.NextQuestion("room-1", "ana"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host, got %v", err)
	}
	round, state, err := service.NextQuestion("room-1", "host")
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if round.RoundID != "r_1" || state.CurrentRoundID != "r_1" {
		t.Fatalf("expected r_1, got round %s state %s", round.RoundID, state.CurrentRoundID)
	}
	if round.EndsAtMs-round.StartedAtMs != 120000 || round.StartedAtMs != t0.UnixMilli() {
		t.Fatalf("unexpected round window %+v", round)
	}
	if _, _, err := service.NextQuestion("room-1", "host"); !errors.Is(err, domain.ErrRoundAlreadyActive) {
		t.Fatalf("expected round already active, got %v", err)
	}

	if _, _, err := service.End("room-1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	round, _, err = service.NextQuestion("room-1", "host")
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if round.RoundID != "r_2" || round.Question.ID != "q_2" {
		t.Fatalf("expected r_2/q_2, got %+v", round)
	}
}

func TestSubmitAnswerTimeDecayScoring(t *testing.T) {
	service, _ := newTestService()
	setupGame(t, service, 1, "ana", "bia", "caio")

	round, _, err := service.NextQuestion("room-1", "host")
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	start := round.StartedAtMs

	half, err := service.SubmitAnswer("room-1", "ana", "r_1", "a", start+60000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !half.IsCorrect || half.AwardedScore != 60 || half.ResponseMs != 60000 {
		t.Fatalf("expected 60 points at half time, got %+v", half)
	}

	last, err := service.SubmitAnswer("room-1", "bia", "r_1", "a", start+119999)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if last.AwardedScore != 1 {
		t.Fatalf("expected floor of 1 point, got %d", last.AwardedScore)
	}

	if _, err := service.SubmitAnswer("room-1", "caio", "r_1", "a", start+120001); !errors.Is(err, domain.ErrAnswerTooLate) {
		t.Fatalf("expected answer too late, got %v", err)
	}
	if _, err := service.SubmitAnswer("room-1", "caio", "r_1", "a", start+120000); err != nil {
		t.Fatalf("answer exactly at deadline should be accepted: %v", err)
	}
}

func TestSubmitAnswerOnlyOncePerRound(t *testing.T) {
	service, _ := newTestService()
	setupGame(t, service, 1, "ana")
	round, _, _ := service.NextQuestion("room-1", "host")

	first, err := service.SubmitAnswer("room-1", "ana", "r_1", "a", round.StartedAtMs+1000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SubmitAnswer("room-1", "ana", "r_1", "a", round.StartedAtMs+2000); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}

	ranking, err := service.Ranking("room-1")
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	for _, entry := range ranking {
		if entry.Username == "ana" && (entry.TotalScore != first.AwardedScore || entry.TotalResponseMs != 1000) {
			t.Fatalf("expected accumulators from first answer only, got %+v", entry)
		}
	}
}

func TestSubmitAnswerRejections(t *testing.T) {
	service, _ := newTestService()
	setupGame(t, service, 2, "ana", "bia")
	round, _, _ := service.NextQuestion("room-1", "host")
	at := round.StartedAtMs + 500

	if _, err := service.SubmitAnswer("room-1", "ghost", "r_1", "a", at); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
	if _, err := service.SubmitAnswer("room-1", "host", "r_1", "a", at); !errors.Is(err, domain.ErrHostCannotAnswer) {
		t.Fatalf("expected host cannot answer, got %v", err)
	}
	if _, err := service.SubmitAnswer("room-1", "ana", "r_2", "a", at); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("expected round not found, got %v", err)
	}

	wrong, err := service.SubmitAnswer("room-1", "ana", "r_1", "c", at)
	if err != nil {
		t.Fatalf("submit wrong: %v", err)
	}
	if wrong.IsCorrect || wrong.AwardedScore != 0 {
		t.Fatalf("expected incorrect answer with 0 points, got %+v", wrong)
	}

	if _, _, err := service.End("room-1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := service.SubmitAnswer("room-1", "bia", "r_1", "a", at); !errors.Is(err, domain.ErrRoundNotActive) {
		t.Fatalf("expected round not active, got %v", err)
	}

	ranking, _ := service.Ranking("room-1")
	for _, entry := range ranking {
		if entry.TotalScore != 0 || entry.TotalResponseMs != 0 {
			t.Fatalf("expected untouched accumulators, got %+v", entry)
		}
	}
}

func TestShouldEnd(t *testing.T) {
	t.Run("only host joined", func(t *testing.T) {
		service, _ := newTestService()
		setupGame(t, service, 1)
		if _, _, err := service.NextQuestion("room-1", "host"); err != nil {
			t.Fatalf("next question: %v", err)
		}
		if !service.ShouldEnd("room-1") {
			t.Fatalf("expected degenerate room to end immediately")
		}
	})

	t.Run("no active round", func(t *testing.T) {
		service, _ := newTestService()
		setupGame(t, service, 1, "ana")
		if !service.ShouldEnd("room-1") {
			t.Fatalf("expected true without an active round")
		}
	})

	t.Run("all answered", func(t *testing.T) {
		service, _ := newTestService()
		setupGame(t, service, 1, "ana", "bia")
		round, _, _ := service.NextQuestion("room-1", "host")

		_, _ = service.SubmitAnswer("room-1", "ana", round.RoundID, "a", 0)
		if service.ShouldEnd("room-1") {
			t.Fatalf("expected round to continue while bia has not answered")
		}
		_, _ = service.SubmitAnswer("room-1", "bia", round.RoundID, "b", 0)
		if !service.ShouldEnd("room-1") {
			t.Fatalf("expected round to end once everyone answered")
		}
	})

	t.Run("deadline reached", func(t *testing.T) {
		service, clock := newTestService()
		setupGame(t, service, 1, "ana")
		_, _, _ = service.NextQuestion("room-1", "host")

		clock.Advance(119 * time.Second)
		if service.ShouldEnd("room-1") {
			t.Fatalf("expected round to continue before deadline")
		}
		clock.Advance(time.Second)
		if !service.ShouldEnd("room-1") {
			t.Fatalf("expected round to end at deadline")
		}
	})

	t.Run("disconnected player does not block", func(t *testing.T) {
		service, _ := newTestService()
		setupGame(t, service, 1, "ana", "bia")
		round, _, _ := service.NextQuestion("room-1", "host")
		_, _ = service.SubmitAnswer("room-1", "ana", round.RoundID, "a", 0)
		service.RemoveConnection("bia")
		if !service.ShouldEnd("room-1") {
			t.Fatalf("expected round to end when every connected player answered")
		}
	})
}

func TestEndFinishesGameOnLastQuestion(t *testing.T) {
	service, _ := newTestService()
	setupGame(t, service, 2, "ana")

	if _, _, err := service.End("room-1"); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("expected round not found, got %v", err)
	}

	_, _, _ = service.NextQuestion("room-1", "host")
	first, state, err := service.End("room-1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if first.GameEnded || state.Status != domain.RoomInProgress {
		t.Fatalf("expected game to continue after first round, got ended=%v status=%s", first.GameEnded, state.Status)
	}
	if first.CorrectOptionID != "a" || first.Round.Status != domain.RoundEnded {
		t.Fatalf("unexpected round result %+v", first)
	}
	if _, _, err := service.End("room-1"); !errors.Is(err, domain.ErrRoundNotActive) {
		t.Fatalf("expected round not active on second end, got %v", err)
	}

	_, _, _ = service.NextQuestion("room-1", "host")
	last, state, err := service.End("room-1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !last.GameEnded || state.Status != domain.RoomFinished {
		t.Fatalf("expected game finished, got ended=%v status=%s", last.GameEnded, state.Status)
	}
	if len(last.Ranking) != 2 {
		t.Fatalf("expected ranking of every registered player, got %+v", last.Ranking)
	}
	if _, _, err := service.NextQuestion("room-1", "host"); !errors.Is(err, domain.ErrInvalidRoomState) {
		t.Fatalf("expected invalid room state after finish, got %v", err)
	}
}

func TestHostFailover(t *testing.T) {
	t.Run("two remaining players", func(t *testing.T) {
		service, _ := newTestService()
		_, _, _ = service.Join("room-1", "host", "host")
		_, _, _ = service.Join("room-1", "ana", "ana")
		_, _, _ = service.Join("room-1", "bia", "bia")

		state, ok := service.RemoveConnection("host")
		if !ok {
			t.Fatalf("expected host connection to be known")
		}
		if len(state.Players) != 3 {
			t.Fatalf("expected departed player to be retained, got %d players", len(state.Players))
		}
		hosts := 0
		var newHost string
		for _, p := range state.Players {
			if p.IsHost {
				hosts++
				newHost = p.Username
				if !p.Connected {
					t.Fatalf("host must be a connected player, got %+v", p)
				}
			}
		}
		if hosts != 1 {
			t.Fatalf("expected exactly one host, got %d", hosts)
		}
		if _, err := service.Start("room-1", newHost); err != nil {
			t.Fatalf("new host %s should be able to start: %v", newHost, err)
		}
	})

	t.Run("no remaining players", func(t *testing.T) {
		service, _ := newTestService()
		_, _, _ = service.Join("room-1", "host", "host")

		state, _ := service.RemoveConnection("host")
		for _, p := range state.Players {
			if p.IsHost {
				t.Fatalf("expected hostless room, got host %+v", p)
			}
		}
		if _, err := service.Start("room-1", "host"); !errors.Is(err, domain.ErrNotHost) {
			t.Fatalf("expected not host for departed connection, got %v", err)
		}

		res, _, err := service.Join("room-1", "late", "late")
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		if !res.BecameHost {
			t.Fatalf("expected next joiner of a hostless room to become host")
		}
	})

	t.Run("prefers a player who has not answered", func(t *testing.T) {
		service, _ := newTestService()
		setupGame(t, service, 2, "ana", "bia", "caio")
		round, _, err := service.NextQuestion("room-1", "host")
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if _, err := service.SubmitAnswer("room-1", "ana", round.RoundID, "a", 0); err != nil {
			t.Fatalf("submit: %v", err)
		}

		state, _ := service.RemoveConnection("host")
		if got := hostName(state); got != "bia" {
			t.Fatalf("expected bia to take over, got %q", got)
		}
		if service.ShouldEnd("room-1") {
			t.Fatalf("round must still wait for caio")
		}
	})

	t.Run("everyone answered", func(t *testing.T) {
		service, _ := newTestService()
		setupGame(t, service, 2, "ana")
		round, _, _ := service.NextQuestion("room-1", "host")
		if _, err := service.SubmitAnswer("room-1", "ana", round.RoundID, "a", 0); err != nil {
			t.Fatalf("submit: %v", err)
		}

		state, _ := service.RemoveConnection("host")
		if got := hostName(state); got != "ana" {
			t.Fatalf("expected the only survivor to host, got %q", got)
		}
		if !service.ShouldEnd("room-1") {
			t.Fatalf("round with no eligible players left should end")
		}
		if _, err := service.SubmitAnswer("room-1", "ana", round.RoundID, "b", 0); !errors.Is(err, domain.ErrHostCannotAnswer) {
			t.Fatalf("expected new host to be barred from answering, got %v", err)
		}
	})

	t.Run("earliest joined survivor between rounds", func(t *testing.T) {
		service, _ := newTestService()
		_, _, _ = service.Join("room-1", "host", "host")
		_, _, _ = service.Join("room-1", "ana", "ana")
		_, _, _ = service.Join("room-1", "bia", "bia")
		_, _ = service.RemoveConnection("ana")

		state, _ := service.RemoveConnection("host")
		if got := hostName(state); got != "bia" {
			t.Fatalf("expected bia, got %q", got)
		}
	})

	if _, ok := func() (domain.RoomState, bool) {
		service, _ := newTestService()
		return service.RemoveConnection("unknown")
	}(); ok {
		t.Fatalf("expected unknown connection to be ignored")
	}
}

func TestDispatchRoutesCommands(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	res, err := service.Dispatch(ctx, app.JoinRoom{RoomID: "room-1", Username: "host", ConnectionID: "host"})
	if err != nil || res.Join == nil || !res.Join.BecameHost || !res.Broadcast {
		t.Fatalf("unexpected join result %+v err %v", res, err)
	}
	_, _ = service.Dispatch(ctx, app.JoinRoom{RoomID: "room-1", Username: "ana", ConnectionID: "ana"})

	res, err = service.Dispatch(ctx, app.SetQuestionBank{RoomID: "room-1", ConnectionID: "host", Source: domain.SourceCSV, Questions: questions(1)})
	if err != nil || res.Bank == nil || res.Bank.Source != domain.SourceCSV {
		t.Fatalf("unexpected bank result %+v err %v", res, err)
	}
	if _, err := service.Dispatch(ctx, app.StartGame{RoomID: "room-1", ConnectionID: "host"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err = service.Dispatch(ctx, app.NextQuestion{RoomID: "room-1", ConnectionID: "host"})
	if err != nil || res.Round == nil || res.Round.RoundID != "r_1" {
		t.Fatalf("unexpected round result %+v err %v", res, err)
	}
	res, err = service.Dispatch(ctx, app.SubmitAnswer{RoomID: "room-1", ConnectionID: "ana", RoundID: "r_1", OptionID: "a"})
	if err != nil || res.Answer == nil || res.Answer.AwardedScore != 120 || res.Broadcast {
		t.Fatalf("unexpected answer result %+v err %v", res, err)
	}
	res, err = service.Dispatch(ctx, app.EndRound{RoomID: "room-1"})
	if err != nil || res.Ended == nil || !res.Ended.GameEnded || res.State.Status != domain.RoomFinished {
		t.Fatalf("unexpected end result %+v err %v", res, err)
	}
	if res.Ended.Ranking[0].Username != "ana" || res.Ended.Ranking[0].Position != 1 {
		t.Fatalf("expected ana to lead, got %+v", res.Ended.Ranking)
	}

	res, err = service.Dispatch(ctx, app.Disconnect{ConnectionID: "ana"})
	if err != nil || res.RoomID != "room-1" {
		t.Fatalf("unexpected disconnect result %+v err %v", res, err)
	}
	res, err = service.Dispatch(ctx, app.Disconnect{ConnectionID: "nobody"})
	if err != nil || res.Broadcast {
		t.Fatalf("expected no-op disconnect, got %+v err %v", res, err)
	}
}

func TestReadOnlyLookupsOfUnknownRoom(t *testing.T) {
	service, _ := newTestService()
	if _, err := service.Snapshot("nope"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
	if _, err := service.Ranking("nope"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
	if !service.ShouldEnd("nope") {
		t.Fatalf("expected unknown room to have nothing to wait for")
	}
}
