package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logger"
	transport "live-quiz-service/internal/transport/http"
)

const (
	shutdownTimeout = 10 * time.Second
	defaultCacheTTL = 10 * time.Minute
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable, liveness markers and cache will fail open")
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, defaultCacheTTL)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
	}

	var loader memory.QuestionSetLoader = memory.NewStaticQuestionSetLoader(sampleQuestionSets())
	if pool != nil {
		loader = postgres.NewQuestionSetLoader(pool)
	}

	setsTTL := config.TTLDuration(cfg.QuestionSets.TTL, defaultCacheTTL)
	var sets app.QuestionSetRepository
	if redisClient != nil {
		sets = infraredis.NewQuestionSetRepository(redisClient, loader, setsTTL)
	} else {
		sets = memory.NewQuestionSetRepository(loader, setsTTL)
	}

	var store app.RoomRepository
	var redisRooms *infraredis.RoomStore
	if redisClient != nil {
		redisRooms = infraredis.NewRoomStore(redisClient, redisTTL)
		store = redisRooms
	} else {
		store = memory.NewRoomStore()
	}

	scoring := app.Scoring{
		MaxPoints: cfg.Game.MaxPoints,
		TimeLimit: config.TTLDuration(cfg.Game.TimeLimit, app.DefaultScoring.TimeLimit),
	}
	if scoring.MaxPoints <= 0 {
		scoring.MaxPoints = app.DefaultScoring.MaxPoints
	}
	service := app.NewRoomService(store, sets, app.WithScoring(scoring))
	wsHandler := transport.NewWSHandler(service,
		transport.WithLogger(log),
		transport.WithTickInterval(config.TTLDuration(cfg.Game.TickInterval, time.Second)),
		transport.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, wsHandler, cfg.Server.AllowedOrigins, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, shutdownOperations(log, server, wsHandler, redisClient, redisRooms, pool))
	exitCode := <-wait
	log.Info().Int("code", exitCode).Msg("quiz service stopped")
	if exitCode != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", exitCode)
	}
	return nil
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func shutdownOperations(log zerolog.Logger, server *http.Server, ws *transport.WSHandler, redisClient *redis.Client, rooms *infraredis.RoomStore, pool *pgxpool.Pool) map[string]gfshutdown.Operation {
	ops := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			log.Info().Msg("shutting down server...")
			ws.Close()
			return server.Shutdown(ctx)
		},
	}
	if redisClient != nil {
		ops["redis"] = func(ctx context.Context) error {
			if rooms != nil {
				rooms.Wait()
			}
			return redisClient.Close()
		}
	}
	if pool != nil {
		ops["postgres"] = func(ctx context.Context) error {
			pool.Close()
			return nil
		}
	}
	return ops
}

// sampleQuestionSets backs the library when no Postgres is configured.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"sample": {
			ID:    "sample",
			Title: "Warm-up",
			Questions: []domain.QuestionInput{
				{Title: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectOptionIndex: 1},
				{Title: "Which planet is known as the red planet?", Options: []string{"Venus", "Jupiter", "Mars", "Mercury"}, CorrectOptionIndex: 2},
				{Title: "Which protocol upgrades HTTP to a full-duplex channel?", Options: []string{"gRPC", "WebSocket", "SMTP", "FTP"}, CorrectOptionIndex: 1},
			},
		},
	}
}
