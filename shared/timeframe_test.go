package shared

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestTimeframeString(t *testing.T) {
	tests := []struct {
		timeframe Timeframe
		want      string
	}{
		{OneMinute, "1m"},
		{FiveMinute, "5m"},
		{FifteenMinute, "15m"},
		{OneHour, "1h"},
		{FourHour, "4h"},
		{OneDay, "1d"},
		{Timeframe(99), "unknown"},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, test.timeframe.String())
	}
}

func TestTimeframeDuration(t *testing.T) {
	tests := []struct {
		timeframe Timeframe
		want      time.Duration
	}{
		{OneMinute, time.Minute},
		{FiveMinute, time.Minute * 5},
		{FifteenMinute, time.Minute * 15},
		{OneHour, time.Hour},
		{FourHour, time.Hour * 4},
		{OneDay, time.Hour * 24},
		{Timeframe(99), 0},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, test.timeframe.Duration())
	}
}

func TestParseTimeframe(t *testing.T) {
	for _, timeframe := range []Timeframe{OneMinute, FiveMinute, FifteenMinute,
		OneHour, FourHour, OneDay} {
		parsed, err := ParseTimeframe(timeframe.String())
		assert.NoError(t, err)
		assert.Equal(t, timeframe, parsed)
	}

	// Ensure unknown timeframes are rejected.
	_, err := ParseTimeframe("7m")
	assert.Error(t, err)
}
