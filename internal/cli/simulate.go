package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logger"
	transport "live-quiz-service/internal/transport/http"
)

type simulateOptions struct {
	url         string
	roomID      string
	host        string
	players     []string
	setID       string
	answerDelay time.Duration
	timeout     time.Duration
}

// NewSimulateCmd plays a scripted game against a running server: a host and
// a few players join, the host runs every question and players answer.
func NewSimulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a scripted game against a running server and print every event",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Setup("info", true)
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runSimulation(ctx, opts, log)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "ws://localhost:8080/ws", "websocket endpoint")
	cmd.Flags().StringVar(&opts.roomID, "room", "room_debug", "room id")
	cmd.Flags().StringVar(&opts.host, "host", "host", "host username")
	cmd.Flags().StringSliceVar(&opts.players, "players", []string{"ana", "joao"}, "player usernames")
	cmd.Flags().StringVar(&opts.setID, "set", "", "question set to load before starting")
	cmd.Flags().DurationVar(&opts.answerDelay, "answer-delay", time.Second, "delay between players' answers")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "give up after this long")
	return cmd
}

// errGameOver stops the remaining participants once the host sees game.ended.
var errGameOver = errors.New("game over")

type simMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// simClient is one scripted participant. Writes are serialized because
// players send delayed answers from goroutines of their own.
type simClient struct {
	name string
	conn *websocket.Conn
	log  zerolog.Logger
	mu   sync.Mutex
}

func dialSim(ctx context.Context, url, name string, log zerolog.Logger) (*simClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: dial %s: %w", name, url, err)
	}
	return &simClient{name: name, conn: conn, log: log.With().Str("as", name).Logger()}, nil
}

func (c *simClient) send(typ string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(map[string]any{
		"v":         1,
		"type":      typ,
		"emittedAt": time.Now().UTC().Format(time.RFC3339Nano),
		"payload":   payload,
	})
}

func (c *simClient) read() (simMessage, error) {
	var msg simMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		return msg, fmt.Errorf("%s: read: %w", c.name, err)
	}
	c.log.Info().Str("event", msg.Type).RawJSON("payload", msg.Payload).Msg("received")
	return msg, nil
}

// awaitAck reads until the given ack arrives; error events abort.
func (c *simClient) awaitAck(ackType string) (simMessage, error) {
	for {
		msg, err := c.read()
		if err != nil {
			return msg, err
		}
		switch msg.Type {
		case ackType:
			return msg, nil
		case transport.EventError:
			return msg, fmt.Errorf("%s: server error: %s", c.name, msg.Payload)
		}
	}
}

func (c *simClient) join(roomID string) error {
	if err := c.send(transport.EventRoomJoin, map[string]string{"roomId": roomID, "username": c.name}); err != nil {
		return err
	}
	_, err := c.awaitAck(transport.EventJoinAck)
	return err
}

func runSimulation(ctx context.Context, opts simulateOptions, log zerolog.Logger) error {
	host, err := dialSim(ctx, opts.url, opts.host, log)
	if err != nil {
		return err
	}
	defer host.conn.Close()
	if err := host.join(opts.roomID); err != nil {
		return err
	}

	players := make([]*simClient, 0, len(opts.players))
	for _, name := range opts.players {
		p, err := dialSim(ctx, opts.url, strings.TrimSpace(name), log)
		if err != nil {
			return err
		}
		defer p.conn.Close()
		if err := p.join(opts.roomID); err != nil {
			return err
		}
		players = append(players, p)
	}

	if opts.setID != "" {
		if err := host.send(transport.EventLoadQuestionSet, map[string]string{"roomId": opts.roomID, "setId": opts.setID}); err != nil {
			return err
		}
		if _, err := host.awaitAck(transport.EventQuestionBankAck); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		// Unblock pending reads once the game is over or the deadline hits.
		host.conn.Close()
		for _, p := range players {
			p.conn.Close()
		}
	}()

	for i, p := range players {
		p, pick, delay := p, answerPick(i), time.Duration(i+1)*opts.answerDelay
		g.Go(func() error { return playAnswers(gctx, p, opts.roomID, pick, delay) })
	}
	g.Go(func() error { return driveGame(host, opts.roomID) })

	err = g.Wait()
	if errors.Is(err, errGameOver) {
		log.Info().Str("room", opts.roomID).Msg("simulation finished")
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("simulation timed out: %w", ctx.Err())
	}
	return err
}

// answerPick mirrors the classic debug run: the first player picks b, the
// second a, the rest cycle through the options.
func answerPick(i int) string {
	picks := []string{"b", "a", "c", "d"}
	return picks[i%len(picks)]
}

// driveGame starts the game and asks for the next question after each
// round until the room finishes. Returning ends the errgroup context.
func driveGame(host *simClient, roomID string) error {
	room := map[string]string{"roomId": roomID}
	if err := host.send(transport.EventStartGame, room); err != nil {
		return err
	}
	if err := host.send(transport.EventNextQuestion, room); err != nil {
		return err
	}

	roundEnded := false
	for {
		msg, err := host.read()
		if err != nil {
			return err
		}
		switch msg.Type {
		case transport.EventError:
			return fmt.Errorf("host: server error: %s", msg.Payload)
		case transport.EventQuestionEnded:
			roundEnded = true
		case transport.EventGameEnded:
			return errGameOver
		case transport.EventRoomStateUpdated:
			var state domain.RoomState
			if err := json.Unmarshal(msg.Payload, &state); err != nil {
				return err
			}
			if roundEnded && state.Status == domain.RoomInProgress {
				roundEnded = false
				if err := host.send(transport.EventNextQuestion, room); err != nil {
					return err
				}
			}
		}
	}
}

func playAnswers(ctx context.Context, p *simClient, roomID, pick string, delay time.Duration) error {
	for {
		msg, err := p.read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.Type != transport.EventQuestionStarted {
			continue
		}
		var started struct {
			RoundID string `json:"roundId"`
		}
		if err := json.Unmarshal(msg.Payload, &started); err != nil {
			return err
		}
		go func(roundID string) {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
				_ = p.send(transport.EventSubmitAnswer, map[string]string{
					"roomId":   roomID,
					"roundId":  roundID,
					"optionId": pick,
				})
			}
		}(started.RoundID)
	}
}
