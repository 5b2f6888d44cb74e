package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	t.Run("accepts the common forms", func(t *testing.T) {
		for _, expr := range []string{
			"* * * * *",
			"*/15 * * * *",
			"0 3 * * *",
			"30 8-17 * * 1-5",
			"0 0 1,15 * *",
		} {
			_, err := ParseCronExpression(expr)
			assert.NoError(t, err, expr)
		}
	})

	t.Run("rejects malformed expressions", func(t *testing.T) {
		for _, expr := range []string{
			"",
			"* * * *",       // 4 fields
			"60 * * * *",    // minute out of range
			"* 24 * * *",    // hour out of range
			"*/x * * * *",   // bad step
			"* * * * 1-2-3", // bad range
		} {
			_, err := ParseCronExpression(expr)
			assert.Error(t, err, expr)
		}
	})
}

func TestCronExpressionNext(t *testing.T) {
	// Sunday 2024-03-10.
	base := time.Date(2024, 3, 10, 14, 37, 12, 0, time.UTC)

	t.Run("nightly run fires at the next 03:00", func(t *testing.T) {
		expr, err := ParseCronExpression("0 3 * * *")
		require.NoError(t, err)

		next := expr.Next(base)
		assert.Equal(t, time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC), next)

		// And the run after that is exactly one day later.
		assert.Equal(t, next.AddDate(0, 0, 1), expr.Next(next))
	})

	t.Run("step schedule rounds up to the next slot", func(t *testing.T) {
		expr, err := ParseCronExpression("*/15 * * * *")
		require.NoError(t, err)

		next := expr.Next(base)
		assert.Equal(t, time.Date(2024, 3, 10, 14, 45, 0, 0, time.UTC), next)
	})

	t.Run("weekday constraint skips to the matching day", func(t *testing.T) {
		expr, err := ParseCronExpression("0 9 * * 1") // Mondays at 09:00
		require.NoError(t, err)

		next := expr.Next(base)
		assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), next)
		assert.Equal(t, time.Monday, next.Weekday())
	})

	t.Run("satisfies the scheduler contract", func(t *testing.T) {
		expr, err := ParseCronExpression("0 3 * * *")
		require.NoError(t, err)

		var s Schedule = expr
		assert.Equal(t, "0 3 * * *", s.String())
		assert.True(t, s.Next(base).After(base))
	})
}
