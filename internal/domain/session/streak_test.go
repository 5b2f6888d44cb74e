package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestCalculateStreaks(t *testing.T) {
	now := day(2024, 3, 10, 15)

	t.Run("empty history", func(t *testing.T) {
		result := CalculateStreaks(nil, now, time.UTC)
		assert.Equal(t, 0, result.CurrentStreak)
		assert.Equal(t, 0, result.LongestStreak)
		assert.Equal(t, 0, result.TotalStudyDays)
		assert.Nil(t, result.LastStudyDate)
	})

	t.Run("single session today", func(t *testing.T) {
		result := CalculateStreaks([]time.Time{day(2024, 3, 10, 9)}, now, time.UTC)
		assert.Equal(t, 1, result.CurrentStreak)
		assert.Equal(t, 1, result.LongestStreak)
		assert.Equal(t, 1, result.TotalStudyDays)
	})

	t.Run("consecutive run ending today", func(t *testing.T) {
		times := []time.Time{
			day(2024, 3, 8, 9),
			day(2024, 3, 9, 20),
			day(2024, 3, 10, 7),
		}
		result := CalculateStreaks(times, now, time.UTC)
		assert.Equal(t, 3, result.CurrentStreak)
		assert.Equal(t, 3, result.LongestStreak)
	})

	t.Run("run ending yesterday still counts", func(t *testing.T) {
		times := []time.Time{
			day(2024, 3, 7, 9),
			day(2024, 3, 8, 9),
			day(2024, 3, 9, 9),
		}
		result := CalculateStreaks(times, now, time.UTC)
		assert.Equal(t, 3, result.CurrentStreak)
	})

	t.Run("run ending two days ago is broken", func(t *testing.T) {
		times := []time.Time{
			day(2024, 3, 6, 9),
			day(2024, 3, 7, 9),
			day(2024, 3, 8, 9),
		}
		result := CalculateStreaks(times, now, time.UTC)
		assert.Equal(t, 0, result.CurrentStreak)
		assert.Equal(t, 3, result.LongestStreak)
	})

	t.Run("longest streak found in the middle of history", func(t *testing.T) {
		times := []time.Time{
			// 5-day run in February.
			day(2024, 2, 1, 9),
			day(2024, 2, 2, 9),
			day(2024, 2, 3, 9),
			day(2024, 2, 4, 9),
			day(2024, 2, 5, 9),
			// 2-day run ending today.
			day(2024, 3, 9, 9),
			day(2024, 3, 10, 9),
		}
		result := CalculateStreaks(times, now, time.UTC)
		assert.Equal(t, 2, result.CurrentStreak)
		assert.Equal(t, 5, result.LongestStreak)
		assert.Equal(t, 7, result.TotalStudyDays)
	})

	t.Run("multiple sessions per day dedupe to one", func(t *testing.T) {
		times := []time.Time{
			day(2024, 3, 9, 8),
			day(2024, 3, 9, 12),
			day(2024, 3, 9, 22),
			day(2024, 3, 10, 6),
			day(2024, 3, 10, 19),
		}
		result := CalculateStreaks(times, now, time.UTC)
		assert.Equal(t, 2, result.CurrentStreak)
		assert.Equal(t, 2, result.TotalStudyDays)
	})

	t.Run("unsorted input", func(t *testing.T) {
		times := []time.Time{
			day(2024, 3, 10, 9),
			day(2024, 3, 8, 9),
			day(2024, 3, 9, 9),
		}
		result := CalculateStreaks(times, now, time.UTC)
		assert.Equal(t, 3, result.CurrentStreak)
	})

	t.Run("last study date reported", func(t *testing.T) {
		result := CalculateStreaks([]time.Time{day(2024, 3, 4, 23)}, now, time.UTC)
		require.NotNil(t, result.LastStudyDate)
		assert.Equal(t, day(2024, 3, 4, 0), *result.LastStudyDate)
	})

	t.Run("nil location falls back to UTC", func(t *testing.T) {
		result := CalculateStreaks([]time.Time{day(2024, 3, 10, 9)}, now, nil)
		assert.Equal(t, 1, result.CurrentStreak)
	})
}

func TestCalculateStreaksTimezones(t *testing.T) {
	t.Run("sessions on one UTC day can span two local days", func(t *testing.T) {
		// UTC+6: 22:00 and 03:00 UTC land on consecutive local days.
		almaty := time.FixedZone("Asia/Almaty", 6*3600)
		times := []time.Time{
			time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC), // Mar 10 04:00 local
			time.Date(2024, 3, 9, 3, 0, 0, 0, time.UTC),  // Mar 9 09:00 local
		}
		now := time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC)

		result := CalculateStreaks(times, now, almaty)
		assert.Equal(t, 2, result.CurrentStreak)
		assert.Equal(t, 2, result.TotalStudyDays)

		utcResult := CalculateStreaks(times, now, time.UTC)
		assert.Equal(t, 1, utcResult.TotalStudyDays)
	})

	t.Run("streak survives a DST transition", func(t *testing.T) {
		ny, err := time.LoadLocation("America/New_York")
		require.NoError(t, err)

		// US DST starts 2024-03-10: that day is 23 hours long. Day math
		// based on dividing by 24h would miscount here.
		times := []time.Time{
			time.Date(2024, 3, 9, 12, 0, 0, 0, ny),
			time.Date(2024, 3, 10, 12, 0, 0, 0, ny),
			time.Date(2024, 3, 11, 12, 0, 0, 0, ny),
		}
		now := time.Date(2024, 3, 11, 18, 0, 0, 0, ny)

		result := CalculateStreaks(times, now, ny)
		assert.Equal(t, 3, result.CurrentStreak)
		assert.Equal(t, 3, result.LongestStreak)
	})
}
