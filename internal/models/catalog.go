package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// QuestionsPerSet is the fixed capacity of one numbered set within a topic.
const QuestionsPerSet = 20

type Subject struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

type Topic struct {
	ID        string `db:"id" json:"id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
	Name      string `db:"name" json:"name"`
	TotalSets int    `db:"total_sets" json:"total_sets"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

type Question struct {
	ID            string  `db:"id" json:"id"`
	TopicID       string  `db:"topic_id" json:"topic_id"`
	Set           int     `db:"set_number" json:"set"`
	Position      int64   `db:"position" json:"-"`
	Text          string  `db:"text" json:"text"`
	Options       Options `db:"options" json:"options"`
	CorrectOption int     `db:"correct_option" json:"correct_option"`
	Explanation   *string `db:"explanation" json:"explanation,omitempty"`
	CreatedAt     int64   `db:"created_at" json:"created_at"`
}

// Options is the ordered answer list, persisted as a JSON array.
type Options []string

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (o *Options) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*o = nil
		return nil
	default:
		return fmt.Errorf("options: unsupported type %T", src)
	}
	return json.Unmarshal(raw, (*[]string)(o))
}

// ── Request Types ─────────────────────────────────────────

type QuestionInput struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Explanation   *string  `json:"explanation,omitempty"`
}

type CreateSubjectRequest struct {
	Name string `json:"name"`
}

type CreateTopicRequest struct {
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
}

// ── Response Types ────────────────────────────────────────

type UploadResult struct {
	InsertedCount int `json:"inserted_count"`
	NewTotalSets  int `json:"new_total_sets"`
	TotalCount    int `json:"total_count"`
}

type IDResponse struct {
	ID string `json:"id"`
}
