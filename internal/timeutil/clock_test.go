package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	if c.Since(start) < 0 {
		t.Error("Since returned a negative duration")
	}
}

func TestMockClock(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if !c.Now().Equal(base) {
		t.Errorf("Now() = %v, want %v", c.Now(), base)
	}

	c.Advance(1500 * time.Millisecond)
	if got := c.Since(base); got != 1500*time.Millisecond {
		t.Errorf("Since() = %v, want 1.5s", got)
	}

	later := base.Add(time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", c.Now(), later)
	}
}

func TestSteppingClock(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewSteppingClock(base, 100*time.Millisecond)

	first := c.Now()
	if !first.Equal(base) {
		t.Errorf("first Now() = %v, want %v", first, base)
	}
	second := c.Now()
	if second.Sub(first) != 100*time.Millisecond {
		t.Errorf("step = %v, want 100ms", second.Sub(first))
	}
	// Since reads Now, so it observes the next step.
	if got := c.Since(base); got != 200*time.Millisecond {
		t.Errorf("Since() = %v, want 200ms", got)
	}
}
