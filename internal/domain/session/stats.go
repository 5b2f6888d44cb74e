package session

import (
	"math"
	"sort"
	"time"
)

// UserAggregate is a full rollup of a user's completed sessions, derived
// from the session history itself. It is the reference that the
// incrementally maintained user statistics are reconciled against.
type UserAggregate struct {
	TotalSessions        int
	TotalMinutes         int
	TotalStudyHours      float64 // TotalMinutes / 60, rounded to 2 decimals
	TotalPausedMinutes   int
	TotalBreaks          int
	AverageSessionLength float64 // minutes, 0 when there are no sessions
	SessionsByType       map[Type]int
	AverageProductivity  float64 // 1-5, 0 when no session carries a rating
	AverageFocusLevel    float64 // 1-10, 0 when no session was measured
}

// DailyAggregate is a per-calendar-day rollup of completed sessions.
type DailyAggregate struct {
	Date              time.Time // midnight in the aggregation location
	SessionCount      int
	TotalMinutes      int
	SessionsByType    map[Type]int
	AverageFocusLevel float64 // 1-10, 0 when no session was measured
}

// AggregateUser computes the user-level rollup over a session history.
// Only completed sessions count; planned, active, paused and cancelled
// sessions contribute nothing.
func AggregateUser(sessions []StudySession) UserAggregate {
	agg := UserAggregate{
		SessionsByType: make(map[Type]int),
	}

	ratingSum := 0
	ratingCount := 0
	focusSum := 0
	focusCount := 0

	for _, s := range sessions {
		if s.Status != StatusCompleted {
			continue
		}
		agg.TotalSessions++
		agg.TotalMinutes += s.ActualDuration
		agg.TotalPausedMinutes += s.PausedTime
		agg.TotalBreaks += len(s.Breaks)
		agg.SessionsByType[s.Type]++
		if s.Productivity != nil && s.Productivity.Rating > 0 {
			ratingSum += s.Productivity.Rating
			ratingCount++
		}
		if s.FocusMetrics.AverageFocusLevel > 0 {
			focusSum += s.FocusMetrics.AverageFocusLevel
			focusCount++
		}
	}

	agg.TotalStudyHours = round2(float64(agg.TotalMinutes) / 60.0)
	if agg.TotalSessions > 0 {
		agg.AverageSessionLength = round2(float64(agg.TotalMinutes) / float64(agg.TotalSessions))
	}
	if ratingCount > 0 {
		agg.AverageProductivity = round2(float64(ratingSum) / float64(ratingCount))
	}
	if focusCount > 0 {
		agg.AverageFocusLevel = round2(float64(focusSum) / float64(focusCount))
	}

	return agg
}

// AggregateDaily computes per-day rollups over completed sessions, ascending
// by date. A session belongs to the calendar day of its start time in loc;
// a session completed straight from planned falls on its end day.
func AggregateDaily(sessions []StudySession, loc *time.Location) []DailyAggregate {
	if loc == nil {
		loc = time.UTC
	}

	byDay := make(map[time.Time]*DailyAggregate)
	focusSums := make(map[time.Time]float64)
	focusCounts := make(map[time.Time]int)

	for _, s := range sessions {
		if s.Status != StatusCompleted {
			continue
		}
		ref := s.StartTime
		if ref == nil {
			ref = s.EndTime
		}
		if ref == nil {
			continue
		}
		day := startOfDay(*ref, loc)

		agg, ok := byDay[day]
		if !ok {
			agg = &DailyAggregate{
				Date:           day,
				SessionsByType: make(map[Type]int),
			}
			byDay[day] = agg
		}
		agg.SessionCount++
		agg.TotalMinutes += s.ActualDuration
		agg.SessionsByType[s.Type]++
		if s.FocusMetrics.AverageFocusLevel > 0 {
			focusSums[day] += float64(s.FocusMetrics.AverageFocusLevel)
			focusCounts[day]++
		}
	}

	for day, agg := range byDay {
		if n := focusCounts[day]; n > 0 {
			agg.AverageFocusLevel = round2(focusSums[day] / float64(n))
		}
	}

	out := make([]DailyAggregate, 0, len(byDay))
	for _, agg := range byDay {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
