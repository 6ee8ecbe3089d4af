package storage

import (
	"testing"
)

// TestClockReplacer tests basic clock replacer functionality
func TestClockReplacer(t *testing.T) {
	replacer := NewClockReplacer(5)

	if replacer == nil {
		t.Fatal("Clock replacer should not be nil")
	}

	if replacer.Size() != 0 {
		t.Errorf("Expected initial size 0, got %d", replacer.Size())
	}
}

// TestClockVictimEmpty tests victim selection on an empty clock
func TestClockVictimEmpty(t *testing.T) {
	replacer := NewClockReplacer(5)

	victim, ok := replacer.Victim()
	if ok {
		t.Errorf("Should not have a victim when empty, got %d", victim)
	}
}

// TestClockSecondChance tests that the hand clears reference bits before
// picking a victim
func TestClockSecondChance(t *testing.T) {
	replacer := NewClockReplacer(3)

	// All inserted with ref bit set
	replacer.Unpin(0)
	replacer.Unpin(1)
	replacer.Unpin(2)

	if replacer.Size() != 3 {
		t.Errorf("Expected size 3, got %d", replacer.Size())
	}

	// First sweep clears 0, 1, 2, then second sweep evicts 0
	victim, ok := replacer.Victim()
	if !ok {
		t.Fatal("Should have a victim")
	}
	if victim != 0 {
		t.Errorf("Expected victim 0, got %d", victim)
	}

	// Bits of 1 and 2 were cleared; the hand sits after 0
	victim, ok = replacer.Victim()
	if !ok || victim != 1 {
		t.Errorf("Expected victim 1, got %d (ok=%v)", victim, ok)
	}
}

// TestClockUnpinRefreshesBit tests that re-unpinning a tracked frame
// gives it a second chance
func TestClockUnpinRefreshesBit(t *testing.T) {
	replacer := NewClockReplacer(3)

	replacer.Unpin(0)
	replacer.Unpin(1)

	// Clear both bits with a victim pass: 0 evicted
	victim, ok := replacer.Victim()
	if !ok || victim != 0 {
		t.Fatalf("Expected victim 0, got %d (ok=%v)", victim, ok)
	}

	// Frame 1's bit is now clear; refreshing it grants another pass
	replacer.Unpin(1)
	replacer.Unpin(2)

	// 1's bit is set again, 2's bit is set; hand clears both and comes
	// back around to evict 1 (first in hand order)
	victim, ok = replacer.Victim()
	if !ok {
		t.Fatal("Should have a victim")
	}
	if victim != 1 {
		t.Errorf("Expected victim 1, got %d", victim)
	}
}

// TestClockPin tests detaching frames from the clock
func TestClockPin(t *testing.T) {
	replacer := NewClockReplacer(5)

	replacer.Unpin(0)
	replacer.Unpin(1)
	replacer.Unpin(2)

	replacer.Pin(1)

	if replacer.Size() != 2 {
		t.Errorf("Expected size 2 after pin, got %d", replacer.Size())
	}

	// Pin on an untracked frame is a no-op
	replacer.Pin(1)
	replacer.Pin(4)

	if replacer.Size() != 2 {
		t.Errorf("Expected size 2, got %d", replacer.Size())
	}

	victim, ok := replacer.Victim()
	if !ok {
		t.Fatal("Should have a victim")
	}
	if victim == 1 {
		t.Error("Pinned frame must not be selected as victim")
	}
}

// TestClockDrain tests evicting every tracked frame
func TestClockDrain(t *testing.T) {
	replacer := NewClockReplacer(5)

	for i := FrameID(0); i < 5; i++ {
		replacer.Unpin(i)
	}

	seen := make(map[FrameID]bool)
	for i := 0; i < 5; i++ {
		victim, ok := replacer.Victim()
		if !ok {
			t.Fatalf("Should have victim at iteration %d", i)
		}
		if seen[victim] {
			t.Errorf("Victim %d returned twice", victim)
		}
		seen[victim] = true
	}

	if replacer.Size() != 0 {
		t.Errorf("Expected size 0 after drain, got %d", replacer.Size())
	}

	_, ok := replacer.Victim()
	if ok {
		t.Error("Should not have victim after all evicted")
	}
}

// TestClockSampleSequence exercises the canonical unpin/victim/pin sequence
func TestClockSampleSequence(t *testing.T) {
	replacer := NewClockReplacer(7)

	replacer.Unpin(1)
	replacer.Unpin(2)
	replacer.Unpin(3)
	replacer.Unpin(4)
	replacer.Unpin(5)
	replacer.Unpin(6)
	replacer.Unpin(1)

	if replacer.Size() != 6 {
		t.Errorf("Expected size 6, got %d", replacer.Size())
	}

	// One full sweep clears every bit, then frames fall in hand order
	for _, expected := range []FrameID{1, 2, 3} {
		victim, ok := replacer.Victim()
		if !ok || victim != expected {
			t.Errorf("Expected victim %d, got %d (ok=%v)", expected, victim, ok)
		}
	}

	replacer.Pin(3)
	replacer.Pin(4)

	if replacer.Size() != 2 {
		t.Errorf("Expected size 2, got %d", replacer.Size())
	}

	replacer.Unpin(4)

	for _, expected := range []FrameID{5, 6, 4} {
		victim, ok := replacer.Victim()
		if !ok || victim != expected {
			t.Errorf("Expected victim %d, got %d (ok=%v)", expected, victim, ok)
		}
	}
}

// TestNewReplacerFactory tests the policy factory
func TestNewReplacerFactory(t *testing.T) {
	if _, ok := NewReplacer("lru", 4).(*LRUReplacer); !ok {
		t.Error("Expected an LRUReplacer for policy lru")
	}
	if _, ok := NewReplacer("clock", 4).(*ClockReplacer); !ok {
		t.Error("Expected a ClockReplacer for policy clock")
	}
	if _, ok := NewReplacer("unknown", 4).(*LRUReplacer); !ok {
		t.Error("Expected an LRUReplacer for an unknown policy")
	}
}
