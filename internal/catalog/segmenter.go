// Package catalog owns subjects, topics and the question bank. Uploaded
// questions are packed into numbered sets of models.QuestionsPerSet in
// arrival order.
package catalog

import (
	"fmt"
	"strings"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/models"
)

// SetFor returns the 1-based set number of the question at ordinal position.
func SetFor(position int) int {
	return position/models.QuestionsPerSet + 1
}

// AssignSets returns the set number for each of n questions appended to a
// topic that already holds existing questions.
func AssignSets(existing, n int) []int {
	sets := make([]int, n)
	for i := range sets {
		sets[i] = SetFor(existing + i)
	}
	return sets
}

// TotalSets is the number of sets count questions occupy, a partial trailing
// set included.
func TotalSets(count int) int {
	if count <= 0 {
		return 0
	}
	return (count + models.QuestionsPerSet - 1) / models.QuestionsPerSet
}

// ValidateQuestions checks a whole batch and reports every problem at once,
// naming questions by their 0-based index in the batch.
func ValidateQuestions(questions []models.QuestionInput) error {
	var problems []string
	for i, q := range questions {
		for _, p := range questionProblems(q) {
			problems = append(problems, fmt.Sprintf("question %d: %s", i, p))
		}
	}
	if len(problems) > 0 {
		return apperr.Validation(problems...)
	}
	return nil
}

func questionProblems(q models.QuestionInput) []string {
	var problems []string
	if strings.TrimSpace(q.Text) == "" {
		problems = append(problems, "text is required")
	}
	if len(q.Options) < 2 {
		problems = append(problems, fmt.Sprintf("needs at least 2 options, got %d", len(q.Options)))
	}
	for j, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			problems = append(problems, fmt.Sprintf("option %d is blank", j))
		}
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		problems = append(problems, fmt.Sprintf("correctOption %d out of range [0, %d)", q.CorrectOption, len(q.Options)))
	}
	return problems
}
