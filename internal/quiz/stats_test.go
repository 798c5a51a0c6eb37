package quiz

import (
	"math"
	"testing"
	"time"

	"github.com/quizsets/backend/internal/models"
)

func TestXPForScore(t *testing.T) {
	tests := []struct {
		score int
		want  int64
	}{
		{0, 0},
		{1, 10},
		{8, 80},
		{20, 200},
	}

	for _, tt := range tests {
		if got := XPForScore(tt.score); got != tt.want {
			t.Errorf("XPForScore(%d) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestIncrementalMean(t *testing.T) {
	tests := []struct {
		oldAvg   float64
		oldCount int
		score    int
		want     float64
	}{
		{0, 0, 8, 8},
		{8, 1, 6, 7},
		{7, 2, 10, 8},
		{12.5, 4, 0, 10},
	}

	for _, tt := range tests {
		got := IncrementalMean(tt.oldAvg, tt.oldCount, tt.score)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("IncrementalMean(%v, %d, %d) = %v, want %v", tt.oldAvg, tt.oldCount, tt.score, got, tt.want)
		}
	}
}

func TestIncrementalMean_MatchesArithmeticMean(t *testing.T) {
	scores := []int{20, 3, 17, 9, 0, 14, 11, 20, 5, 8}

	avg, sum := 0.0, 0
	for i, s := range scores {
		avg = IncrementalMean(avg, i, s)
		sum += s
		want := float64(sum) / float64(i+1)
		if math.Abs(avg-want) > 1e-9 {
			t.Fatalf("after %d scores avg = %v, want %v", i+1, avg, want)
		}
	}
}

func TestFoldStats(t *testing.T) {
	first := FoldStats(t0, nil, 8)
	if first.TotalXP != 80 || first.QuizzesTaken != 1 || first.AverageScore != 8 {
		t.Fatalf("first fold = %+v", first)
	}
	if first.LastActive != t0.UnixMilli() {
		t.Errorf("LastActive = %d, want %d", first.LastActive, t0.UnixMilli())
	}

	first.ID, first.UserID = "s1", "u1"
	later := t0.Add(4 * 24 * time.Hour)
	second := FoldStats(later, &first, 6)

	want := models.UserStats{
		ID:           "s1",
		UserID:       "u1",
		TotalXP:      140,
		QuizzesTaken: 2,
		AverageScore: 7,
		LastActive:   later.UnixMilli(),
	}
	if second != want {
		t.Errorf("second fold = %+v, want %+v", second, want)
	}
}
