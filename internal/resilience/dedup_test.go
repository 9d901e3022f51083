package resilience

import (
	"testing"
	"time"
)

func newTestDedup(clk *fakeClock) *Deduplicator {
	d := NewDeduplicator(500*time.Millisecond, nil)
	d.now = clk.now
	return d
}

func TestDeduplicator_FirstSeenIsNotDuplicate(t *testing.T) {
	d := newTestDedup(newFakeClock())
	if d.IsDuplicate("k1") {
		t.Error("first request should not be a duplicate")
	}
}

func TestDeduplicator_RepeatWithinWindowIsDuplicate(t *testing.T) {
	clk := newFakeClock()
	d := newTestDedup(clk)

	d.IsDuplicate("k1")
	clk.advance(100 * time.Millisecond)
	if !d.IsDuplicate("k1") {
		t.Error("repeat within window should be a duplicate")
	}
}

func TestDeduplicator_RepeatAfterWindowIsNotDuplicate(t *testing.T) {
	clk := newFakeClock()
	d := newTestDedup(clk)

	d.IsDuplicate("k1")
	clk.advance(600 * time.Millisecond)
	if d.IsDuplicate("k1") {
		t.Error("repeat after window should not be a duplicate")
	}
}

func TestDeduplicator_DistinctKeysIndependent(t *testing.T) {
	d := newTestDedup(newFakeClock())

	d.IsDuplicate("k1")
	if d.IsDuplicate("k2") {
		t.Error("different key should not be a duplicate")
	}
}

func TestDeduplicator_Clear(t *testing.T) {
	clk := newFakeClock()
	d := newTestDedup(clk)

	d.IsDuplicate("k1")
	d.Clear()
	if d.IsDuplicate("k1") {
		t.Error("cleared deduplicator should forget past requests")
	}
}

func TestKey_StableAcrossArgOrder(t *testing.T) {
	a := Key("control_device", map[string]any{"device": "lamp", "action": "on"})
	b := Key("control_device", map[string]any{"action": "on", "device": "lamp"})
	if a != b {
		t.Error("key should be independent of argument map iteration order")
	}
}

func TestKey_DiffersByNameAndArgs(t *testing.T) {
	base := Key("control_device", map[string]any{"device": "lamp"})
	if base == Key("control_room", map[string]any{"device": "lamp"}) {
		t.Error("different tool names should produce different keys")
	}
	if base == Key("control_device", map[string]any{"device": "fan"}) {
		t.Error("different args should produce different keys")
	}
}
