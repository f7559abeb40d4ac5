package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/authoring"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logger"
)

// NewSetsCmd manages the question-set library stored in Postgres.
func NewSetsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "Manage stored question sets",
	}
	cmd.AddCommand(newSetsImportCmd(configPath))
	cmd.AddCommand(newSetsListCmd(configPath))
	return cmd
}

func newSetsImportCmd(configPath *string) *cobra.Command {
	var (
		setID string
		title string
	)
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Validate a CSV file and store it as a question set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.Setup(cfg.Log.Level, cfg.Log.Pretty)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			questions, err := authoring.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := app.ValidateQuestions(questions); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if setID == "" {
				setID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if title == "" {
				title = setID
			}

			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			set := domain.QuestionSet{ID: setID, Title: title, Questions: questions}
			if err := postgres.NewQuestionSetWriter(db).Save(cmd.Context(), set); err != nil {
				return err
			}
			log.Info().Str("set", setID).Int("questions", len(questions)).Msg("question set stored")

			if cfg.Redis.Addr == "" {
				return nil
			}
			// Running servers would keep serving the old copy until its TTL.
			client := newRedisClient(cfg)
			defer client.Close()
			cache := infraredis.NewQuestionSetRepository(client, nil, config.TTLDuration(cfg.QuestionSets.TTL, defaultCacheTTL))
			if err := cache.Invalidate(cmd.Context(), setID); err != nil {
				return fmt.Errorf("set %s stored but cache not invalidated: %w", setID, err)
			}
			log.Info().Str("set", setID).Msg("cached copy invalidated")
			return nil
		},
	}
	cmd.Flags().StringVar(&setID, "id", "", "set id (defaults to the file name)")
	cmd.Flags().StringVar(&title, "title", "", "set title (defaults to the id)")
	return cmd
}

func newSetsListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored question sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			sets, err := postgres.NewQuestionSetWriter(db).List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tQUESTIONS\tUPDATED")
			for _, s := range sets {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.QuestionCount, s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
