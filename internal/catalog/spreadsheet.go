package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/models"
)

// sheetLayout maps header names to column indexes. Every column whose header
// starts with "option" is an answer option, in sheet order.
type sheetLayout struct {
	text        int
	options     []int
	correct     int
	explanation int
}

func detectLayout(header []string) (sheetLayout, error) {
	layout := sheetLayout{text: -1, correct: -1, explanation: -1}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case name == "text" || name == "question":
			layout.text = i
		case strings.HasPrefix(name, "option"):
			layout.options = append(layout.options, i)
		case name == "correct" || name == "answer" || name == "correct option":
			layout.correct = i
		case name == "explanation":
			layout.explanation = i
		}
	}

	var missing []string
	if layout.text < 0 {
		missing = append(missing, "header row needs a text column")
	}
	if len(layout.options) < 2 {
		missing = append(missing, "header row needs at least 2 option columns")
	}
	if layout.correct < 0 {
		missing = append(missing, "header row needs a correct column")
	}
	if len(missing) > 0 {
		return layout, apperr.Validation(missing...)
	}
	return layout, nil
}

// parseCorrect accepts a 1-based number ("2") or a letter ("B") and returns
// the 0-based option index.
func parseCorrect(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("correct answer is empty")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n - 1, nil
	}
	if len(raw) == 1 {
		c := strings.ToUpper(raw)[0]
		if c >= 'A' && c <= 'Z' {
			return int(c - 'A'), nil
		}
	}
	return 0, fmt.Errorf("correct answer %q is neither a number nor a letter", raw)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ParseSpreadsheet reads questions from the first sheet of an xlsx workbook.
// The first row is a header; blank rows are skipped. Trailing empty option
// cells are dropped, so rows may carry different option counts. Problems are
// reported by sheet row number.
func ParseSpreadsheet(r io.Reader) ([]models.QuestionInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("not a readable xlsx workbook: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("sheet is empty")
	}

	layout, err := detectLayout(rows[0])
	if err != nil {
		return nil, err
	}

	var (
		questions []models.QuestionInput
		problems  []string
	)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}

		var options []string
		for _, idx := range layout.options {
			options = append(options, cell(row, idx))
		}
		for len(options) > 0 && options[len(options)-1] == "" {
			options = options[:len(options)-1]
		}

		correct, err := parseCorrect(cell(row, layout.correct))
		if err != nil {
			problems = append(problems, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		q := models.QuestionInput{
			Text:          cell(row, layout.text),
			Options:       options,
			CorrectOption: correct,
		}
		if expl := cell(row, layout.explanation); expl != "" {
			q.Explanation = &expl
		}
		for _, p := range questionProblems(q) {
			problems = append(problems, fmt.Sprintf("row %d: %s", rowNum, p))
		}
		questions = append(questions, q)
	}

	if len(problems) > 0 {
		return nil, apperr.Validation(problems...)
	}
	return questions, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
