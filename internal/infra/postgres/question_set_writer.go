package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

type questionSetRow struct {
	bun.BaseModel `bun:"table:question_sets"`

	ID        string                 `bun:"id,pk"`
	Title     string                 `bun:"title,notnull"`
	Questions []domain.QuestionInput `bun:"data,type:jsonb,notnull"`
	CreatedAt time.Time              `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time              `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// QuestionSetSummary is a library listing entry.
type QuestionSetSummary struct {
	ID            string
	Title         string
	QuestionCount int
	UpdatedAt     time.Time
}

// QuestionSetWriter stores authored question sets through bun.
type QuestionSetWriter struct {
	db *bun.DB
}

func NewQuestionSetWriter(db *bun.DB) *QuestionSetWriter {
	return &QuestionSetWriter{db: db}
}

// Save inserts a set or replaces the title and questions of an existing one.
func (w *QuestionSetWriter) Save(ctx context.Context, set domain.QuestionSet) error {
	row := questionSetRow{
		ID:        set.ID,
		Title:     set.Title,
		Questions: set.Questions,
	}
	_, err := w.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("data = EXCLUDED.data").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save question set %s: %w", set.ID, err)
	}
	return nil
}

// List returns every stored set ordered by id.
func (w *QuestionSetWriter) List(ctx context.Context) ([]QuestionSetSummary, error) {
	var rows []questionSetRow
	if err := w.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list question sets: %w", err)
	}
	out := make([]QuestionSetSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, QuestionSetSummary{
			ID:            row.ID,
			Title:         row.Title,
			QuestionCount: len(row.Questions),
			UpdatedAt:     row.UpdatedAt,
		})
	}
	return out, nil
}
