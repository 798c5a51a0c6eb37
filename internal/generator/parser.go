package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/models"
)

// ParseQuestions decodes a model reply into upload inputs. It accepts a bare
// JSON array or an object with a "questions" array, optionally wrapped in a
// code fence. Field-level validation is left to the upload path.
func ParseQuestions(responseBody string, log *logger.Logger) ([]models.QuestionInput, error) {
	if log == nil {
		log = logger.Nop()
	}
	cleaned := []byte(stripCodeFences(responseBody))

	var questions []models.QuestionInput
	if bytes.HasPrefix(cleaned, []byte("{")) {
		var wrapped struct {
			Questions []models.QuestionInput `json:"questions"`
		}
		if err := json.Unmarshal(cleaned, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		questions = wrapped.Questions
	} else if err := json.Unmarshal(cleaned, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions in response")
	}

	checkAnswerSpread(questions, log)
	checkTopicDiversity(questions, log)
	return questions, nil
}

// stripCodeFences removes a surrounding markdown fence with or without a
// language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "[{") {
			rest = rest[nl+1:]
		} else {
			rest = strings.TrimPrefix(rest, "json")
		}
		s = strings.TrimSpace(rest)
	}
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// checkAnswerSpread warns when one option index is correct far more often
// than an even spread would give.
func checkAnswerSpread(questions []models.QuestionInput, log *logger.Logger) {
	if len(questions) < 8 {
		return
	}
	counts := make(map[int]int)
	for _, q := range questions {
		counts[q.CorrectOption]++
	}
	for idx, n := range counts {
		if n > len(questions)/2 {
			log.Warn("correct answers clustered", "option", idx, "count", n, "questions", len(questions))
		}
	}
}

const overlapWarnThreshold = 0.6

// checkTopicDiversity warns about question pairs whose wording overlaps
// beyond overlapWarnThreshold.
func checkTopicDiversity(questions []models.QuestionInput, log *logger.Logger) {
	words := make([]wordSet, len(questions))
	for i, q := range questions {
		words[i] = newWordSet(q.Text)
	}
	for i := range words {
		for j := i + 1; j < len(words); j++ {
			if overlap := words[i].similarity(words[j]); overlap > overlapWarnThreshold {
				log.Warn("questions overlap heavily", "first", i+1, "second", j+1, "overlap_pct", int(overlap*100))
			}
		}
	}
}

// wordSet holds the distinct lowercase words of a question longer than
// three letters.
type wordSet map[string]struct{}

func newWordSet(text string) wordSet {
	set := wordSet{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()\"'")
		if len(w) > 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

// similarity is the Jaccard index of the two sets; zero when both are empty.
func (a wordSet) similarity(b wordSet) float64 {
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	all := len(a) + len(b) - shared
	if all == 0 {
		return 0
	}
	return float64(shared) / float64(all)
}
