package progression

import (
	"time"

	"github.com/limbo/plankup/pkg/dateutil"
	"github.com/limbo/plankup/pkg/entity"
)

const (
	weekDays  = 7
	monthDays = 30
)

// CalculateStats summarises completed sessions for the statistics view.
func CalculateStats(sessions []entity.Session, today time.Time) entity.Stats {
	completed := completedSessions(sessions)
	stats := entity.Stats{
		CompletedSessions: len(completed),
		TotalPlankTime:    CalculateTotalPlankTime(completed),
		LastWeek:          lastWeek(completed, today),
	}
	if len(completed) == 0 {
		return stats
	}

	stats.AverageTime = roundDiv(stats.TotalPlankTime, len(completed))
	for _, s := range completed {
		stats.LongestPlank = max(stats.LongestPlank, s.Duration)
	}

	weekStart := daysAgo(today, weekDays-1)
	monthStart := daysAgo(today, monthDays-1)
	weekTotal, weekCount, monthCount := 0, 0, 0
	for _, s := range completed {
		if s.Date >= weekStart {
			weekTotal += s.Duration
			weekCount++
		}
		if s.Date >= monthStart {
			monthCount++
		}
	}
	stats.Last7DaysAverage = roundDiv(weekTotal, weekCount)
	stats.CompletionRate = roundDiv(monthCount*100, monthDays)
	return stats
}

// lastWeek lists the seven days ending today, oldest first, with the duration
// of the first completed session found for each day.
func lastWeek(completed []entity.Session, today time.Time) []entity.DayDuration {
	days := make([]entity.DayDuration, 0, weekDays)
	for i := weekDays - 1; i >= 0; i-- {
		date := daysAgo(today, i)
		d := entity.DayDuration{Date: date}
		for _, s := range completed {
			if s.Date == date {
				d.Duration = s.Duration
				d.HasSession = true
				break
			}
		}
		days = append(days, d)
	}
	return days
}

func daysAgo(today time.Time, n int) string {
	return dateutil.DateString(today.AddDate(0, 0, -n))
}
