package sampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerFiresOnThirdFrame(t *testing.T) {
	s := Scheduler{Interval: 100 * time.Millisecond}
	assert.False(t, s.Tick(40*time.Millisecond))
	assert.False(t, s.Tick(40*time.Millisecond))
	assert.True(t, s.Tick(40*time.Millisecond))
	assert.Zero(t, s.Elapsed(), "hard reset, remainder discarded")
}

func TestSchedulerBelowInterval(t *testing.T) {
	s := Scheduler{Interval: 100 * time.Millisecond}
	for i := 0; i < 3; i++ {
		assert.False(t, s.Tick(30*time.Millisecond))
	}
	assert.Equal(t, 90*time.Millisecond, s.Elapsed())
	assert.True(t, s.Tick(30*time.Millisecond))
}

func TestSchedulerSlowFrameDoesNotCompound(t *testing.T) {
	s := Scheduler{Interval: 100 * time.Millisecond}
	assert.True(t, s.Tick(350*time.Millisecond))
	assert.False(t, s.Tick(time.Millisecond), "a long frame fires once, not three times")
}

func TestSchedulerIgnoresNegativeDelta(t *testing.T) {
	s := Scheduler{Interval: 100 * time.Millisecond}
	s.Tick(50 * time.Millisecond)
	s.Tick(-time.Second)
	assert.Equal(t, 50*time.Millisecond, s.Elapsed())
}
