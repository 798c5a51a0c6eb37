package quiz

import (
	"time"

	"github.com/quizsets/backend/internal/models"
)

// Cooldown is how long a scored run locks a set into practice-only mode.
const Cooldown = 3 * 24 * time.Hour

type Classification int

const (
	Scored Classification = iota
	Practice
)

func (c Classification) String() string {
	if c == Practice {
		return "practice"
	}
	return "scored"
}

// SetState is the per-(user, topic, set) lifecycle:
// NoProgress → Active → Eligible → Active → ...
type SetState int

const (
	NoProgress SetState = iota
	Active
	Eligible
)

func (s SetState) String() string {
	switch s {
	case Active:
		return "active"
	case Eligible:
		return "eligible"
	default:
		return "no_progress"
	}
}

// State reports where a set sits in its cooldown cycle at now.
func State(now time.Time, progress *models.UserProgress) SetState {
	if progress == nil {
		return NoProgress
	}
	if now.UnixMilli() < progress.NextValidAttemptAt {
		return Active
	}
	return Eligible
}

// Classify decides whether a submission at now counts. Only a running
// cooldown turns it into practice.
func Classify(now time.Time, progress *models.UserProgress) Classification {
	if State(now, progress) == Active {
		return Practice
	}
	return Scored
}

// NextProgress returns the progress row after a scored submission. existing
// may be nil for a first attempt; identity fields are copied from it otherwise.
func NextProgress(now time.Time, existing *models.UserProgress, score int) models.UserProgress {
	nowMs := now.UnixMilli()
	next := models.UserProgress{
		HighScore:          score,
		LastAttemptAt:      nowMs,
		NextValidAttemptAt: now.Add(Cooldown).UnixMilli(),
	}
	if existing != nil {
		next.ID = existing.ID
		next.UserID = existing.UserID
		next.TopicID = existing.TopicID
		next.Set = existing.Set
		if existing.HighScore > score {
			next.HighScore = existing.HighScore
		}
	}
	return next
}
