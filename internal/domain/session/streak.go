package session

import (
	"sort"
	"time"
)

// StreakResult holds the output of a full streak recomputation.
type StreakResult struct {
	CurrentStreak  int        // consecutive days ending today or yesterday, else 0
	LongestStreak  int        // longest consecutive-day run anywhere in history
	TotalStudyDays int        // distinct calendar days with at least one session
	LastStudyDate  *time.Time // start of the most recent study day, nil if no history
}

// CalculateStreaks derives streak counters from the start times of a user's
// completed sessions. It is a pure function: the session list is the single
// source of truth and the result is always internally consistent, unlike
// incremental counters that can drift.
//
// Days are compared as calendar days in the given location. The current
// streak counts only if the most recent run ends today or yesterday -
// yesterday keeps the streak alive until the day is actually missed.
func CalculateStreaks(startTimes []time.Time, now time.Time, loc *time.Location) StreakResult {
	if loc == nil {
		loc = time.UTC
	}

	days := uniqueDays(startTimes, loc)
	if len(days) == 0 {
		return StreakResult{}
	}

	result := StreakResult{
		TotalStudyDays: len(days),
	}
	last := days[len(days)-1]
	result.LastStudyDate = &last

	// Single ascending scan: track the length of each consecutive run.
	longest := 1
	run := 1
	for i := 1; i < len(days); i++ {
		if isNextDay(days[i-1], days[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	result.LongestStreak = longest

	// The trailing run is the current streak only if it reaches into
	// today or yesterday.
	today := startOfDay(now, loc)
	yesterday := today.AddDate(0, 0, -1)
	if last.Equal(today) || last.Equal(yesterday) {
		result.CurrentStreak = run
	}

	return result
}

// uniqueDays maps timestamps to their calendar day in loc, deduplicates and
// returns them in ascending order.
func uniqueDays(times []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{}, len(times))
	days := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		day := startOfDay(t, loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// isNextDay reports whether b is exactly one calendar day after a.
// AddDate handles DST transitions where a day is not 24 hours long.
func isNextDay(a, b time.Time) bool {
	return a.AddDate(0, 0, 1).Equal(b)
}

// startOfDay truncates a timestamp to midnight in the given location.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
