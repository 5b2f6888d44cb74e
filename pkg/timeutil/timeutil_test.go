package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysBetween(t *testing.T) {
	loc := time.UTC

	d1 := time.Date(2024, 3, 1, 23, 50, 0, 0, loc)
	d2 := time.Date(2024, 3, 2, 0, 10, 0, 0, loc)

	// 20 minutes apart but on different calendar days.
	assert.Equal(t, 1, DaysBetween(d1, d2, loc))
	assert.Equal(t, -1, DaysBetween(d2, d1, loc))
	assert.Equal(t, 0, DaysBetween(d1, d1, loc))
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	// 2024-03-10 is the spring-forward date in New York (23-hour day).
	before := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	after := time.Date(2024, 3, 11, 12, 0, 0, 0, loc)

	assert.Equal(t, 2, DaysBetween(before, after, loc))
	assert.True(t, IsConsecutiveDay(before, before.AddDate(0, 0, 1), loc))
}

func TestIsSameDay(t *testing.T) {
	loc := time.UTC

	morning := time.Date(2024, 5, 10, 1, 0, 0, 0, loc)
	night := time.Date(2024, 5, 10, 23, 59, 0, 0, loc)
	nextDay := time.Date(2024, 5, 11, 0, 1, 0, 0, loc)

	assert.True(t, IsSameDay(morning, night, loc))
	assert.False(t, IsSameDay(night, nextDay, loc))
}

func TestIsSameDay_TimezoneShift(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)

	// 22:00 UTC on the 9th is already the 10th in UTC+5.
	utcEvening := time.Date(2024, 5, 9, 22, 0, 0, 0, time.UTC)
	localMorning := time.Date(2024, 5, 10, 8, 0, 0, 0, almaty)

	assert.True(t, IsSameDay(utcEvening, localMorning, almaty))
	assert.False(t, IsSameDay(utcEvening, localMorning, time.UTC))
}

func TestIsTodayYesterday(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, loc)

	assert.True(t, IsToday(time.Date(2024, 5, 10, 2, 0, 0, 0, loc), now, loc))
	assert.True(t, IsYesterday(time.Date(2024, 5, 9, 23, 0, 0, 0, loc), now, loc))
	assert.False(t, IsYesterday(time.Date(2024, 5, 8, 23, 0, 0, 0, loc), now, loc))
}

func TestMinutesBetween(t *testing.T) {
	start := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 20, MinutesBetween(start, start.Add(20*time.Minute)))
	// Rounds to nearest whole minute.
	assert.Equal(t, 20, MinutesBetween(start, start.Add(20*time.Minute+29*time.Second)))
	assert.Equal(t, 21, MinutesBetween(start, start.Add(20*time.Minute+31*time.Second)))
	assert.Equal(t, 0, MinutesBetween(start, start))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultLocation, loc)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
