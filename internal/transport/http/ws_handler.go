package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/authoring"
	"live-quiz-service/internal/domain"
)

// CSV imports travel inline, so allow generous frames.
const maxMessageBytes = 256 << 10

type WSHandler struct {
	service   *app.RoomService
	hub       *Hub
	timers    *roundTimers
	scheduler Scheduler
	tick      time.Duration
	now       func() time.Time
	newConnID func() string
	origins   []string
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// HandlerOption configures a WSHandler.
type HandlerOption func(*WSHandler)

func WithLogger(log zerolog.Logger) HandlerOption {
	return func(h *WSHandler) { h.log = log }
}

// WithScheduler replaces the round poll scheduler (tests tick manually).
func WithScheduler(s Scheduler) HandlerOption {
	return func(h *WSHandler) { h.scheduler = s }
}

func WithTickInterval(d time.Duration) HandlerOption {
	return func(h *WSHandler) {
		if d > 0 {
			h.tick = d
		}
	}
}

// WithClock sets the clock used for receipt times and emitted timestamps.
// It should match the clock of the RoomService.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *WSHandler) { h.now = now }
}

// WithAllowedOrigins restricts websocket upgrades to the given origins.
// Empty or "*" allows any origin.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *WSHandler) { h.origins = origins }
}

func NewWSHandler(service *app.RoomService, opts ...HandlerOption) *WSHandler {
	h := &WSHandler{
		service:   service,
		timers:    newRoundTimers(),
		scheduler: TickerScheduler{},
		tick:      time.Second,
		now:       time.Now,
		newConnID: uuid.NewString,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.hub = NewHub(h.log)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Hub exposes the room fan-out, mainly for read endpoints.
func (h *WSHandler) Hub() *Hub {
	return h.hub
}

// Close stops every pending round timer.
func (h *WSHandler) Close() {
	h.timers.stopAll()
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWS upgrades HTTP requests to websockets and routes envelopes to the
// room service. Each connection gets its own identity and may join one room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	c := newClient(h.newConnID())
	log := h.log.With().Str("conn", c.id).Logger()
	log.Debug().Msg("connection opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-c.done:
				return
			case msg := <-c.send:
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Debug().Err(err).Msg("ws write error")
					return
				}
			}
		}
	}()

	roomID := ""
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("ws read error")
			}
			break
		}
		if joined := h.handle(r.Context(), c, raw); joined != "" {
			roomID = joined
		}
	}

	if roomID != "" {
		h.hub.unsubscribe(roomID, c.id)
	}
	res, _ := h.service.Dispatch(context.Background(), app.Disconnect{ConnectionID: c.id})
	if res.Broadcast {
		h.broadcastState(res.RoomID, res.State)
	}
	c.close()
	<-writerDone
	log.Debug().Str("room", roomID).Msg("connection closed")
}

// handle processes one inbound message and reports the room joined by it.
func (h *WSHandler) handle(ctx context.Context, c *client, raw []byte) string {
	var in inboundEnvelope
	if err := json.Unmarshal(raw, &in); err != nil {
		h.replyError(c, "", fmt.Errorf("%w: %v", errBadRequest, err))
		return ""
	}

	now := h.now()
	cmd, err := decodeCommand(c.id, in, now.UnixMilli())
	if err != nil {
		h.replyError(c, in.RequestID, err)
		return ""
	}

	res, err := h.service.Dispatch(ctx, cmd)
	if err != nil {
		h.log.Debug().Err(err).Str("conn", c.id).Str("event", in.Type).Msg("command rejected")
		h.replyError(c, in.RequestID, err)
		return ""
	}

	joined := ""
	if res.Join != nil {
		h.hub.subscribe(res.RoomID, c)
		joined = res.RoomID
	}
	if res.Broadcast {
		h.broadcastState(res.RoomID, res.State)
	}

	switch {
	case res.Join != nil:
		c.enqueue(encode(EventJoinAck, in.RequestID, joinAckPayload{
			RoomID:     res.RoomID,
			PlayerID:   res.Join.Player.PlayerID,
			BecameHost: res.Join.BecameHost,
		}, now))
	case res.Bank != nil:
		c.enqueue(encode(EventQuestionBankAck, in.RequestID, questionBankAckPayload{
			RoomID:        res.RoomID,
			QuestionCount: res.Bank.QuestionCount,
			Source:        res.Bank.Source,
		}, now))
	case res.Round != nil:
		round := *res.Round
		h.watchRound(res.RoomID, round)
		h.hub.broadcast(res.RoomID, encode(EventQuestionStarted, "", questionStartedPayload{
			RoomID:    res.RoomID,
			RoundID:   round.RoundID,
			Question:  round.Question,
			StartedAt: isoMillis(round.StartedAtMs),
			EndsAt:    isoMillis(round.EndsAtMs),
		}, now))
	case res.Answer != nil:
		c.enqueue(encode(EventAnswerAck, in.RequestID, answerAckPayload{
			RoomID:       res.RoomID,
			RoundID:      res.Answer.RoundID,
			IsCorrect:    res.Answer.IsCorrect,
			AwardedScore: res.Answer.AwardedScore,
			ResponseMs:   res.Answer.ResponseMs,
		}, now))
	}
	return joined
}

func decodeCommand(connID string, in inboundEnvelope, nowMs int64) (app.Command, error) {
	if in.V != 0 && in.V != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", errBadRequest, in.V)
	}

	switch in.Type {
	case EventRoomJoin:
		var p joinPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.JoinRoom{RoomID: p.RoomID, Username: p.Username, ConnectionID: connID}, nil

	case EventSetQuestionBank:
		var p questionBankPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.SetQuestionBank{RoomID: p.RoomID, ConnectionID: connID, Source: p.Source, Questions: p.Questions}, nil

	case EventImportCSV:
		var p importCSVPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return nil, err
		}
		questions, err := authoring.ParseCSVString(p.CSV)
		if err != nil {
			return nil, err
		}
		return app.SetQuestionBank{RoomID: p.RoomID, ConnectionID: connID, Source: domain.SourceCSV, Questions: questions}, nil

	case EventLoadQuestionSet:
		var p loadQuestionSetPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.LoadQuestionSet{RoomID: p.RoomID, ConnectionID: connID, SetID: p.SetID}, nil

	case EventStartGame:
		var p roomPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.StartGame{RoomID: p.RoomID, ConnectionID: connID}, nil

	case EventNextQuestion:
		var p roomPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.NextQuestion{RoomID: p.RoomID, ConnectionID: connID}, nil

	case EventSubmitAnswer:
		var p submitAnswerPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.SubmitAnswer{
			RoomID:       p.RoomID,
			ConnectionID: connID,
			RoundID:      p.RoundID,
			OptionID:     p.OptionID,
			NowMs:        nowMs,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnsupportedEvent, in.Type)
}

func decodePayload(raw json.RawMessage, p roomScoped) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing payload", errBadRequest)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if strings.TrimSpace(p.room()) == "" {
		return fmt.Errorf("%w: roomId is required", errBadRequest)
	}
	return nil
}

func (h *WSHandler) watchRound(roomID string, round domain.RoundInfo) {
	stop := h.scheduler.Every(h.tick, func() bool {
		return h.pollRound(roomID, round)
	})
	h.timers.replace(roomID, stop)
}

// pollRound is one timer tick. It reports whether the timer should keep
// running; it stops as soon as its round is no longer the active one.
func (h *WSHandler) pollRound(roomID string, round domain.RoundInfo) bool {
	current, ok := h.service.CurrentRound(roomID)
	if !ok || current.RoundID != round.RoundID || current.Status != domain.RoundActive {
		return false
	}

	now := h.now()
	remaining := round.EndsAtMs - now.UnixMilli()
	if remaining < 0 {
		remaining = 0
	}
	h.hub.broadcast(roomID, encode(EventQuestionTimerTick, "", timerTickPayload{
		RoomID:      roomID,
		RoundID:     round.RoundID,
		RemainingMs: remaining,
	}, now))

	if !h.service.ShouldEnd(roomID) {
		return true
	}
	res, err := h.service.Dispatch(context.Background(), app.EndRound{RoomID: roomID})
	if err != nil {
		h.log.Warn().Err(err).Str("room", roomID).Str("round", round.RoundID).Msg("end round failed")
		return false
	}
	h.emitRoundEnded(roomID, *res.Ended, res.State, now)
	return false
}

func (h *WSHandler) emitRoundEnded(roomID string, ended domain.RoundResult, state domain.RoomState, now time.Time) {
	roundID := ended.Round.RoundID
	h.hub.broadcast(roomID, encode(EventQuestionEnded, "", questionEndedPayload{
		RoomID:          roomID,
		RoundID:         roundID,
		EndedAt:         isoTime(now),
		CorrectOptionID: ended.CorrectOptionID,
	}, now))
	h.hub.broadcast(roomID, encode(EventAnswerReveal, "", answerRevealPayload{
		RoomID:          roomID,
		RoundID:         roundID,
		CorrectOptionID: ended.CorrectOptionID,
	}, now))
	h.hub.broadcast(roomID, encode(EventLeaderboard, "", leaderboardPayload{
		RoomID:  roomID,
		RoundID: roundID,
		Ranking: ended.Ranking,
	}, now))
	h.broadcastState(roomID, state)
	if ended.GameEnded {
		h.hub.broadcast(roomID, encode(EventGameEnded, "", gameEndedPayload{
			RoomID:  roomID,
			Ranking: ended.Ranking,
		}, now))
		h.log.Info().Str("room", roomID).Msg("game ended")
	}
}

func (h *WSHandler) broadcastState(roomID string, state domain.RoomState) {
	h.hub.broadcast(roomID, encode(EventRoomStateUpdated, "", state, h.now()))
}

// replyError answers the originating connection only; errors are never broadcast.
func (h *WSHandler) replyError(c *client, requestID string, err error) {
	c.enqueue(encode(EventError, requestID, toErrorPayload(err), h.now()))
}
