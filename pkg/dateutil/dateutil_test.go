package dateutil_test

import (
	"testing"
	"time"

	"github.com/limbo/plankup/pkg/dateutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateString(t *testing.T) {
	now := time.Date(2026, time.March, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-07", dateutil.DateString(now))
	assert.Equal(t, time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC), dateutil.StartOfDay(now))
}

func TestIsDateToday(t *testing.T) {
	now := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	assert.True(t, dateutil.IsDateToday("2026-03-07", now))
	assert.False(t, dateutil.IsDateToday("2026-03-06", now))
	assert.False(t, dateutil.IsDateToday("garbage", now))
}

func TestDaysBetween(t *testing.T) {
	testCases := []struct {
		Desc string
		A, B string
		Want int
	}{
		{Desc: "same day", A: "2026-03-07", B: "2026-03-07", Want: 0},
		{Desc: "next day", A: "2026-03-07", B: "2026-03-08", Want: 1},
		{Desc: "reversed", A: "2026-03-08", B: "2026-03-05", Want: 3},
		{Desc: "month boundary", A: "2026-02-28", B: "2026-03-01", Want: 1},
		{Desc: "leap year", A: "2028-02-28", B: "2028-03-01", Want: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			n, err := dateutil.DaysBetween(tc.A, tc.B)
			require.NoError(t, err)
			assert.Equal(t, tc.Want, n)
		})
	}
	t.Run("invalid date", func(t *testing.T) {
		_, err := dateutil.DaysBetween("2026-13-01", "2026-03-01")
		assert.Error(t, err)
	})
}

func TestAreConsecutiveDays(t *testing.T) {
	assert.True(t, dateutil.AreConsecutiveDays("2026-03-07", "2026-03-06"))
	assert.True(t, dateutil.AreConsecutiveDays("2026-12-31", "2027-01-01"))
	assert.False(t, dateutil.AreConsecutiveDays("2026-03-07", "2026-03-07"))
	assert.False(t, dateutil.AreConsecutiveDays("2026-03-07", "2026-03-05"))
	assert.False(t, dateutil.AreConsecutiveDays("bad", "2026-03-05"))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "00:45", dateutil.FormatTime(45))
	assert.Equal(t, "02:05", dateutil.FormatTime(125))
	assert.Equal(t, "45s", dateutil.FormatDuration(45))
	assert.Equal(t, "1m 30s", dateutil.FormatDuration(90))
	assert.Equal(t, "2m", dateutil.FormatDuration(120))
}

func TestParseTimeString(t *testing.T) {
	h, m := dateutil.ParseTimeString("19:30")
	assert.Equal(t, 19, h)
	assert.Equal(t, 30, m)
	h, m = dateutil.ParseTimeString("x:y")
	assert.Zero(t, h)
	assert.Zero(t, m)
	h, m = dateutil.ParseTimeString("7")
	assert.Equal(t, 7, h)
	assert.Zero(t, m)
}
