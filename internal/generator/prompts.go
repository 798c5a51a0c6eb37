package generator

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the model as a question writer that answers in JSON only.
func SystemPrompt() string {
	return `You write multiple choice quiz questions for self-study.

RULES:
- Every question has exactly 4 options.
- Exactly one option is correct; correctOption is its 0-based index.
- Spread the correct index across 0-3 instead of clustering it.
- Questions within one set cover different aspects of the topic.
- Explanations are one or two sentences.

OUTPUT:
Reply with a JSON array only. No markdown formatting, no commentary.`
}

// BuildSetPrompt asks for count questions in the upload JSON format.
func BuildSetPrompt(subjectName, topicName string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a JSON array of %d multiple choice questions for the topic '%s' in the subject '%s'.\n",
		count, strings.TrimSpace(topicName), strings.TrimSpace(subjectName))
	b.WriteString(`Each question object should be strictly in this format:
{
  "text": "Question text here?",
  "options": ["Option A", "Option B", "Option C", "Option D"],
  "correctOption": 0,
  "explanation": "Brief explanation of the answer."
}
correctOption is the index of the correct option (0-3).
Only return the valid JSON array, no markdown formatting or other text.`)
	return b.String()
}
