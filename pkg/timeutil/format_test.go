package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{450 * time.Millisecond, "450ms"},
		{1200 * time.Millisecond, "1.2s"},
		{2*time.Minute + 15300*time.Millisecond, "2m 15.3s"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatDuration(c.in), c.in.String())
	}
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "+00:00.000", FormatOffset(0))
	assert.Equal(t, "+00:00.500", FormatOffset(500*time.Millisecond))
	assert.Equal(t, "+01:02.300", FormatOffset(62300*time.Millisecond))
	assert.Equal(t, "+00:00.000", FormatOffset(-time.Second))
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	assert.Equal(t, "2024-03-09 14:05:07", FormatTimestamp(ts.UnixNano()))
}
