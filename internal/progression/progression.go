// Package progression holds the pure rules of the plank program: baseline
// averaging, daily targets, streaks and totals. Nothing here does I/O; "today"
// is always passed in by the caller.
package progression

import (
	"fmt"
	"math"
	"sort"
	"time"

	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/pkg/dateutil"
	"github.com/limbo/plankup/pkg/entity"
)

// MinBaselineAverage keeps a weak or mistaken baseline from producing a near-zero target.
const MinBaselineAverage = 30

func CalculateBaselineAverage(durations []int) (int, error) {
	if len(durations) != entity.BaselineSessions {
		return 0, fmt.Errorf("%w: baseline requires exactly %d sessions, got %d",
			errorvalues.ErrInvalidInput, entity.BaselineSessions, len(durations))
	}
	sum := 0
	for _, d := range durations {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative duration %d", errorvalues.ErrInvalidInput, d)
		}
		sum += d
	}
	return max(MinBaselineAverage, roundDiv(sum, len(durations))), nil
}

func IsBaselineComplete(baseline entity.BaselineData) bool {
	return baseline.IsComplete && len(baseline.Sessions) == entity.BaselineSessions
}

// ApplyBaselineDuration records one more baseline attempt. The third attempt
// completes the baseline and fixes its average.
func ApplyBaselineDuration(baseline entity.BaselineData, duration int) (entity.BaselineData, error) {
	if IsBaselineComplete(baseline) || len(baseline.Sessions) >= entity.BaselineSessions {
		return baseline, fmt.Errorf("%w: baseline already complete", errorvalues.ErrInvalidInput)
	}
	if duration < 0 {
		return baseline, fmt.Errorf("%w: negative duration %d", errorvalues.ErrInvalidInput, duration)
	}
	next := baseline.Clone()
	next.Sessions = append(next.Sessions, duration)
	if len(next.Sessions) == entity.BaselineSessions {
		avg, err := CalculateBaselineAverage(next.Sessions)
		if err != nil {
			return baseline, err
		}
		next.IsComplete = true
		next.AverageTime = avg
	}
	return next, nil
}

// CalculateNextTarget has no upper bound on purpose: the target keeps growing every day.
func CalculateNextTarget(current, increment int) int {
	return current + increment
}

// CalculateStreak derives the streak from the full session history. prev only
// contributes its BestStreak, which is never lowered.
func CalculateStreak(sessions []entity.Session, prev entity.StreakData, today time.Time) entity.StreakData {
	completed := completedSessions(sessions)
	if len(completed) == 0 {
		return entity.StreakData{
			CurrentStreak: 0,
			BestStreak:    prev.BestStreak,
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].Date > completed[j].Date
	})

	latest := completed[0].Date
	lastDate := latest
	gap, err := dateutil.DaysBetween(latest, dateutil.DateString(today))
	if err != nil || gap > 1 {
		return entity.StreakData{
			CurrentStreak:     0,
			BestStreak:        prev.BestStreak,
			LastCompletedDate: &lastDate,
		}
	}

	streak := 1
	current := latest
	for _, s := range completed[1:] {
		// Re-attempts on the same day count once
		if s.Date == current {
			continue
		}
		if !dateutil.AreConsecutiveDays(s.Date, current) {
			break
		}
		streak++
		current = s.Date
	}

	return entity.StreakData{
		CurrentStreak:     streak,
		BestStreak:        max(streak, prev.BestStreak),
		LastCompletedDate: &lastDate,
	}
}

func CalculateTotalPlankTime(sessions []entity.Session) int {
	total := 0
	for _, s := range sessions {
		if s.Completed {
			total += s.Duration
		}
	}
	return total
}

func GetCompletedSessionsCount(sessions []entity.Session) int {
	count := 0
	for _, s := range sessions {
		if s.Completed {
			count++
		}
	}
	return count
}

func HasCompletedToday(sessions []entity.Session, today time.Time) bool {
	date := dateutil.DateString(today)
	for _, s := range sessions {
		if s.Completed && s.Date == date {
			return true
		}
	}
	return false
}

// GetTodaysSession returns the first session dated today, completed or not.
func GetTodaysSession(sessions []entity.Session, today time.Time) *entity.Session {
	date := dateutil.DateString(today)
	for i := range sessions {
		if sessions[i].Date == date {
			s := sessions[i]
			return &s
		}
	}
	return nil
}

func completedSessions(sessions []entity.Session) []entity.Session {
	result := make([]entity.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Completed {
			result = append(result, s)
		}
	}
	return result
}

// roundDiv divides non-negative integers rounding half up.
func roundDiv(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Floor(float64(sum)/float64(n) + 0.5))
}
