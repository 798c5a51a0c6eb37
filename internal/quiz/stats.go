package quiz

import (
	"time"

	"github.com/quizsets/backend/internal/models"
)

// XPPerPoint is the experience awarded for each point of a scored attempt.
const XPPerPoint = 10

func XPForScore(score int) int64 {
	return int64(score) * XPPerPoint
}

// IncrementalMean folds newScore into a mean over oldCount prior values.
func IncrementalMean(oldAverage float64, oldCount int, newScore int) float64 {
	if oldCount <= 0 {
		return float64(newScore)
	}
	return (oldAverage*float64(oldCount) + float64(newScore)) / float64(oldCount+1)
}

// FoldStats returns the stats row after one more scored attempt. existing is
// nil for the user's first scored attempt.
func FoldStats(now time.Time, existing *models.UserStats, score int) models.UserStats {
	if existing == nil {
		return models.UserStats{
			TotalXP:      XPForScore(score),
			QuizzesTaken: 1,
			AverageScore: float64(score),
			LastActive:   now.UnixMilli(),
		}
	}
	return models.UserStats{
		ID:           existing.ID,
		UserID:       existing.UserID,
		TotalXP:      existing.TotalXP + XPForScore(score),
		QuizzesTaken: existing.QuizzesTaken + 1,
		AverageScore: IncrementalMean(existing.AverageScore, existing.QuizzesTaken, score),
		LastActive:   now.UnixMilli(),
	}
}
