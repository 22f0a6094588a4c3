package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualTime struct{ t time.Time }

func (m *manualTime) now() time.Time { return m.t }

func TestAllow_ExhaustsAndRefills(t *testing.T) {
	clock := &manualTime{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(2, time.Minute, clock.now)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	clock.t = clock.t.Add(30 * time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestAllow_CapsAtLimit(t *testing.T) {
	clock := &manualTime{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(1, time.Second, clock.now)

	assert.True(t, l.Allow("k"))
	clock.t = clock.t.Add(time.Hour)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestResetAndSweep(t *testing.T) {
	clock := &manualTime{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(1, time.Second, clock.now)

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
	l.Reset("k")
	assert.True(t, l.Allow("k"))

	clock.t = clock.t.Add(3 * time.Second)
	l.sweep()
	assert.Empty(t, l.buckets)
}

func TestClose_Idempotent(t *testing.T) {
	l := New(1, time.Second)
	l.Close()
	l.Close()
}
