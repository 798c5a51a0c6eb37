package models

// All timestamps are Unix milliseconds.

type Attempt struct {
	ID             string `db:"id" json:"id"`
	UserID         string `db:"user_id" json:"user_id"`
	TopicID        string `db:"topic_id" json:"topic_id"`
	SubjectID      string `db:"subject_id" json:"subject_id"`
	Set            int    `db:"set_number" json:"set"`
	Score          int    `db:"score" json:"score"`
	TotalQuestions int    `db:"total_questions" json:"total_questions"`
	Answers        string `db:"answers" json:"answers"`
	CompletedAt    int64  `db:"completed_at" json:"completed_at"`
}

type UserProgress struct {
	ID                 string `db:"id" json:"id"`
	UserID             string `db:"user_id" json:"user_id"`
	TopicID            string `db:"topic_id" json:"topic_id"`
	Set                int    `db:"set_number" json:"set"`
	HighScore          int    `db:"high_score" json:"high_score"`
	LastAttemptAt      int64  `db:"last_attempt_at" json:"last_attempt_at"`
	NextValidAttemptAt int64  `db:"next_valid_attempt_at" json:"next_valid_attempt_at"`
}

type UserStats struct {
	ID           string  `db:"id" json:"id"`
	UserID       string  `db:"user_id" json:"user_id"`
	TotalXP      int64   `db:"total_xp" json:"total_xp"`
	QuizzesTaken int     `db:"quizzes_taken" json:"quizzes_taken"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	LastActive   int64   `db:"last_active" json:"last_active"`
}

// ── Request Types ─────────────────────────────────────────

type SubmitAttemptRequest struct {
	TopicID        string `json:"topic_id"`
	SubjectID      string `json:"subject_id"`
	Set            int    `json:"set"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
	// Answers is the client's questionId→optionIndex map, serialized. It is
	// stored verbatim and never interpreted.
	Answers string `json:"answers"`
}

// ── Response Types ────────────────────────────────────────

type SubmitAttemptResponse struct {
	AttemptID  string `json:"attempt_id"`
	IsPractice bool   `json:"is_practice"`
}

type DashboardTopic struct {
	Topic
	UserProgress []UserProgress `json:"user_progress"`
}

type DashboardSubject struct {
	Subject
	Topics []DashboardTopic `json:"topics"`
}

type DashboardResponse struct {
	Subjects []DashboardSubject `json:"subjects"`
	Stats    *UserStats         `json:"stats"`
}

type AttemptReview struct {
	Attempt
	Questions   []Question `json:"questions"`
	SubjectName *string    `json:"subject_name,omitempty"`
	TopicName   *string    `json:"topic_name,omitempty"`
}

type HistoryEntry struct {
	Attempt
	SubjectName string `db:"subject_name" json:"subject_name"`
	TopicName   string `db:"topic_name" json:"topic_name"`
}
