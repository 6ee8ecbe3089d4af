package storage

// Replacer tracks the frames that are eligible for eviction and picks
// victims among them. A frame handed to Unpin must be resident and
// unpinned; Pin withdraws a frame from consideration.
type Replacer interface {
	// Victim removes and returns the next frame to evict.
	// Returns false if no frame is evictable.
	Victim() (FrameID, bool)

	// Pin marks a frame as in-use (not evictable). No-op for frames the
	// replacer does not track.
	Pin(frameID FrameID)

	// Unpin marks a frame as available for eviction. A frame that is
	// already tracked keeps its place in the eviction order; the clock
	// policy does set its reference bit again.
	Unpin(frameID FrameID)

	// Size returns the number of evictable frames
	Size() uint32
}

// NewReplacer creates a replacer for the given policy name
func NewReplacer(policy string, capacity uint32) Replacer {
	switch policy {
	case "clock":
		return NewClockReplacer(capacity)
	case "lru":
		return NewLRUReplacer(capacity)
	default:
		return NewLRUReplacer(capacity)
	}
}
