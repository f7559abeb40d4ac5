// Package authoring turns host-authored text formats into question inputs.
package authoring

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"live-quiz-service/internal/domain"
)

// Columns of one CSV row: title, four options, and the 1-based correct option.
const csvColumns = 6

var (
	ErrEmptyCSV    = errors.New("csv has no questions")
	ErrColumnCount = errors.New("expected 6 columns")
	ErrInvalidRow  = errors.New("invalid row")
)

// LineError pins a parse failure to a 1-based line of the input.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParseCSV reads `title,a,b,c,d,correct` rows. Blank lines are skipped and
// fields may be quoted; correct is 1..4.
func ParseCSV(r io.Reader) ([]domain.QuestionInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var questions []domain.QuestionInput
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &LineError{Line: perr.StartLine, Err: perr.Err}
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		line, _ := reader.FieldPos(0)

		question, err := parseRecord(record)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		questions = append(questions, question)
	}

	if len(questions) == 0 {
		return nil, ErrEmptyCSV
	}
	return questions, nil
}

// ParseCSVString is ParseCSV over an in-memory document.
func ParseCSVString(text string) ([]domain.QuestionInput, error) {
	return ParseCSV(strings.NewReader(text))
}

func parseRecord(record []string) (domain.QuestionInput, error) {
	if len(record) != csvColumns {
		return domain.QuestionInput{}, fmt.Errorf("%w, got %d", ErrColumnCount, len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
		if record[i] == "" {
			return domain.QuestionInput{}, fmt.Errorf("%w: column %d is blank", ErrInvalidRow, i+1)
		}
	}

	correct, err := strconv.Atoi(record[5])
	if err != nil || correct < 1 || correct > domain.OptionsPerQuestion {
		return domain.QuestionInput{}, fmt.Errorf("%w: correct option must be 1..4, got %q", ErrInvalidRow, record[5])
	}

	return domain.QuestionInput{
		Title:              record[0],
		Options:            []string{record[1], record[2], record[3], record[4]},
		CorrectOptionIndex: correct - 1,
	}, nil
}
