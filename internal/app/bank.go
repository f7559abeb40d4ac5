package app

import (
	"fmt"
	"strings"

	"live-quiz-service/internal/domain"
)

// buildBank validates authored questions and assigns q_<n> and a..d ids.
// It never returns a partial bank.
func buildBank(inputs []domain.QuestionInput, durationMs int64) ([]domain.StoredQuestion, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrEmptyBank
	}

	bank := make([]domain.StoredQuestion, 0, len(inputs))
	for i, in := range inputs {
		position := i + 1
		title := strings.TrimSpace(in.Title)
		if title == "" {
			return nil, &domain.InvalidQuestionError{Index: position, Field: domain.FieldTitle}
		}
		if len(in.Options) != domain.OptionsPerQuestion {
			return nil, &domain.InvalidQuestionError{Index: position, Field: domain.FieldOptions}
		}
		if in.CorrectOptionIndex < 0 || in.CorrectOptionIndex >= domain.OptionsPerQuestion {
			return nil, &domain.InvalidQuestionError{Index: position, Field: domain.FieldCorrect}
		}

		question := domain.Question{
			ID:         fmt.Sprintf("q_%d", position),
			Title:      title,
			DurationMs: durationMs,
		}
		for j, raw := range in.Options {
			text := strings.TrimSpace(raw)
			if text == "" {
				return nil, &domain.InvalidQuestionError{Index: position, Field: domain.FieldOptions}
			}
			question.Options[j] = domain.Option{ID: domain.OptionIDs[j], Text: text, Index: j}
		}

		bank = append(bank, domain.StoredQuestion{
			Question:        question,
			CorrectOptionID: domain.OptionIDs[in.CorrectOptionIndex],
		})
	}
	return bank, nil
}

// defaultQuestions keeps a fresh room playable before the host publishes a bank.
func defaultQuestions() []domain.QuestionInput {
	return []domain.QuestionInput{
		{
			Title:              "Which language runs in the browser by default?",
			Options:            []string{"Java", "JavaScript", "Python", "Rust"},
			CorrectOptionIndex: 1,
		},
	}
}

func (r *Room) checkBankEditable(connID string) error {
	// Status first: a started game freezes the bank regardless of caller.
	if r.status != domain.RoomWaiting {
		return domain.ErrInvalidRoomState
	}
	return r.assertHost(connID)
}

func (r *Room) replaceBank(connID string, source domain.BankSource, inputs []domain.QuestionInput, durationMs int64) (domain.BankResult, error) {
	if err := r.checkBankEditable(connID); err != nil {
		return domain.BankResult{}, err
	}
	bank, err := buildBank(inputs, durationMs)
	if err != nil {
		return domain.BankResult{}, err
	}
	r.bank = bank
	r.source = source
	return domain.BankResult{QuestionCount: len(bank), Source: source}, nil
}

// ValidateQuestions applies the bank rules without touching any room, so
// authoring tools can reject a set before storing it.
func ValidateQuestions(inputs []domain.QuestionInput) error {
	_, err := buildBank(inputs, 0)
	return err
}
