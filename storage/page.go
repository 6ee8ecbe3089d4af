package storage

import (
	"sync"
)

// PageSize is the size of a page in bytes
const PageSize = 4096

// PageID identifies a logical page. Ids are assigned by buffer pool
// instances; InvalidPageID marks a frame that holds no page.
type PageID int32

// InvalidPageID is the sentinel for "no page resident"
const InvalidPageID PageID = -1

// FrameID indexes a slot in the buffer pool's frame array
type FrameID uint32

// Page represents one frame's contents: a fixed-size byte region plus the
// metadata the buffer pool tracks for it (resident page id, pin count,
// dirty flag). The buffer pool owns the metadata. Callers that hold a pin
// may read and write Data() freely, and coordinate among themselves with
// the page latch; the pool never takes the latch itself.
type Page struct {
	id       PageID
	pinCount int32
	isDirty  bool
	data     [PageSize]byte
	mutex    sync.RWMutex

	latch *RWLatch
}

// newPage creates an empty page with no resident contents
func newPage() *Page {
	return &Page{
		id:    InvalidPageID,
		latch: NewRWLatch(),
	}
}

// PageID returns the id of the page currently resident in this frame,
// or InvalidPageID if the frame is free
func (p *Page) PageID() PageID {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.id
}

// PinCount returns the pin count
func (p *Page) PinCount() int32 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.pinCount
}

// IsDirty returns whether the in-memory contents differ from disk
func (p *Page) IsDirty() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.isDirty
}

// Data returns the page's byte region. Only callers holding a pin may
// touch it; the pin protects the frame from reuse.
func (p *Page) Data() []byte {
	return p.data[:]
}

// RLatch acquires the page latch in shared mode
func (p *Page) RLatch() {
	p.latch.RLock()
}

// RUnlatch releases the shared page latch
func (p *Page) RUnlatch() {
	p.latch.RUnlock()
}

// WLatch acquires the page latch in exclusive mode
func (p *Page) WLatch() {
	p.latch.Lock()
}

// WUnlatch releases the exclusive page latch
func (p *Page) WUnlatch() {
	p.latch.Unlock()
}

// setIdentity installs a new resident page id
func (p *Page) setIdentity(id PageID) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.id = id
}

// setDirty sets or clears the dirty flag
func (p *Page) setDirty(dirty bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.isDirty = dirty
}

// markDirty ors the dirty flag; the flag is monotonic until a flush or
// eviction writes the page back
func (p *Page) markDirty(dirty bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.isDirty = p.isDirty || dirty
}

// pin increments the pin count
func (p *Page) pin() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.pinCount++
}

// unpin decrements the pin count
func (p *Page) unpin() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.pinCount > 0 {
		p.pinCount--
	}
}

// resetMemory zeroes the byte region
func (p *Page) resetMemory() {
	p.data = [PageSize]byte{}
}

// reset returns the frame to its free state: no id, unpinned, clean,
// zeroed contents
func (p *Page) reset() {
	p.mutex.Lock()
	p.id = InvalidPageID
	p.pinCount = 0
	p.isDirty = false
	p.mutex.Unlock()
	p.resetMemory()
}
