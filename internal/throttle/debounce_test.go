package throttle

import (
	"testing"
	"time"
)

func TestDebouncer_Basic(t *testing.T) {
	clock := newFakeClock()
	count := 0
	d := NewDebouncer(clock, 50*time.Millisecond, func() { count++ })

	// Call multiple times rapidly
	for i := 0; i < 10; i++ {
		d.Call()
		clock.Advance(10 * time.Millisecond)
	}

	if count != 0 {
		t.Errorf("count during burst = %d, want 0", count)
	}

	clock.Advance(100 * time.Millisecond)

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDebouncer_SpacedCalls(t *testing.T) {
	clock := newFakeClock()
	count := 0
	d := NewDebouncer(clock, 50*time.Millisecond, func() { count++ })

	for i := 0; i < 3; i++ {
		d.Call()
		clock.Advance(100 * time.Millisecond)
	}

	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	clock := newFakeClock()
	count := 0
	d := NewDebouncer(clock, 50*time.Millisecond, func() { count++ })

	d.Call()
	d.Cancel()
	clock.Advance(100 * time.Millisecond)

	if count != 0 {
		t.Errorf("count = %d, want 0 (canceled)", count)
	}
}

func TestDebouncer_CallImmediate(t *testing.T) {
	clock := newFakeClock()
	count := 0
	d := NewDebouncer(clock, 100*time.Millisecond, func() { count++ })

	d.Call()
	d.CallImmediate()

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	clock.Advance(150 * time.Millisecond)

	if count != 1 {
		t.Errorf("count after wait = %d, want 1", count)
	}

	// Nothing pending: CallImmediate is a no-op.
	d.CallImmediate()
	if count != 1 {
		t.Errorf("count after idle CallImmediate = %d, want 1", count)
	}
}

func TestDebouncer_IsPending(t *testing.T) {
	clock := newFakeClock()
	d := NewDebouncer(clock, 100*time.Millisecond, func() {})

	if d.IsPending() {
		t.Error("should not be pending initially")
	}

	d.Call()

	if !d.IsPending() {
		t.Error("should be pending after Call")
	}

	clock.Advance(150 * time.Millisecond)

	if d.IsPending() {
		t.Error("should not be pending after debounce")
	}
}

func TestDebouncer_ZeroDelay(t *testing.T) {
	clock := newFakeClock()
	count := 0
	d := NewDebouncer(clock, 0, func() { count++ })

	d.Call()
	d.Call()

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
