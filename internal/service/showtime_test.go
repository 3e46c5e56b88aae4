package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsUpcoming(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsUpcoming(now.Add(time.Minute), now, ist))
	assert.False(t, IsUpcoming(now, now, ist))
	assert.False(t, IsUpcoming(now.Add(-time.Second), now, ist))
	// the same instant written in another zone
	assert.False(t, IsUpcoming(now.In(ist), now, nil))
	assert.True(t, IsUpcoming(now.Add(time.Hour).In(time.FixedZone("PST", -8*3600)), now, ist))
}

func TestDisplayTime(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-05-01T17:30:00+05:30", DisplayTime(at, ist))
	assert.Equal(t, "2026-05-01T12:00:00Z", DisplayTime(at, nil))
}

func TestParseShowTime(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	want := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, in := range []string{"2026-05-01T12:00:00Z", "2026-05-01T17:30:00+05:30", "2026-05-01T17:30", "2026-05-01 17:30:00"} {
		got, err := ParseShowTime(in, ist)
		if assert.NoError(t, err, in) {
			assert.True(t, want.Equal(got), in)
			assert.Equal(t, time.UTC, got.Location())
		}
	}

	_, err := ParseShowTime("tomorrow", ist)
	assert.ErrorIs(t, err, ErrValidation)
}
