package storage

import (
	"math"
	"sync"
)

// BufferPoolInstance caches disk pages in a fixed array of frames. It owns
// the page table (page id -> frame id directory), the free-frame list, the
// pin accounting, and a replacer that orders the evictable frames.
//
// Every frame is in exactly one of three states: on the free list, resident
// and pinned, or resident and tracked by the replacer.
//
// When instances are arranged into a parallel pool, each instance allocates
// page ids congruent to its own index modulo the instance count, so ids
// issued by different instances never collide.
type BufferPoolInstance struct {
	poolSize      uint32
	numInstances  uint32
	instanceIndex uint32
	nextPageID    PageID

	pages     []*Page
	pageTable map[PageID]FrameID
	freeList  []FrameID
	replacer  Replacer

	disk       DiskManager
	logManager *LogManager
	metrics    *Metrics

	mutex sync.Mutex
}

// NewBufferPoolInstance creates a standalone buffer pool over the given
// disk manager, with the default replacement policy.
func NewBufferPoolInstance(poolSize uint32, disk DiskManager) (*BufferPoolInstance, error) {
	return NewBufferPoolInstanceWithOptions(poolSize, 1, 0, disk, nil, "lru")
}

// NewBufferPoolInstanceWithOptions creates one instance of a (possibly
// parallel) buffer pool. The instance allocates page ids starting at
// instanceIndex and stepping by numInstances. The log manager is optional;
// when present its records are flushed before any dirty writeback.
func NewBufferPoolInstanceWithOptions(poolSize, numInstances, instanceIndex uint32, disk DiskManager, logManager *LogManager, replacerPolicy string) (*BufferPoolInstance, error) {
	if poolSize == 0 {
		return nil, ErrNoFreeFrames("NewBufferPoolInstance")
	}
	if numInstances == 0 || instanceIndex >= numInstances {
		return nil, NewStorageError(ErrCodeInternal, "NewBufferPoolInstance",
			"instance index must be below the instance count", nil)
	}

	b := &BufferPoolInstance{
		poolSize:      poolSize,
		numInstances:  numInstances,
		instanceIndex: instanceIndex,
		nextPageID:    PageID(instanceIndex),
		pages:         make([]*Page, poolSize),
		pageTable:     make(map[PageID]FrameID),
		freeList:      make([]FrameID, 0, poolSize),
		replacer:      NewReplacer(replacerPolicy, poolSize),
		disk:          disk,
		logManager:    logManager,
		metrics:       NewMetrics(),
	}

	for i := uint32(0); i < poolSize; i++ {
		b.pages[i] = newPage()
		b.freeList = append(b.freeList, FrameID(i))
	}

	return b, nil
}

// SetLogManager attaches a log manager after construction
func (b *BufferPoolInstance) SetLogManager(logManager *LogManager) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.logManager = logManager
}

// PoolSize returns the number of frames
func (b *BufferPoolInstance) PoolSize() uint32 {
	return b.poolSize
}

// InstanceIndex returns this instance's position in the parallel pool
func (b *BufferPoolInstance) InstanceIndex() uint32 {
	return b.instanceIndex
}

// Metrics returns the instance's metrics tracker
func (b *BufferPoolInstance) Metrics() *Metrics {
	return b.metrics
}

// NewPage allocates a fresh page id, installs it into a frame, and returns
// the frame pinned. Returns nil when every frame is pinned, or when the id
// space of this instance is exhausted.
func (b *BufferPoolInstance) NewPage() *Page {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if int64(b.nextPageID) > int64(math.MaxInt32)-int64(b.numInstances) {
		return nil
	}

	frameID, ok := b.grabFrame()
	if !ok {
		return nil
	}

	pageID := b.allocatePage()

	page := b.pages[frameID]
	page.resetMemory()
	page.setIdentity(pageID)
	page.setDirty(false)
	page.pin()
	b.pageTable[pageID] = frameID
	b.replacer.Pin(frameID)

	return page
}

// FetchPage returns the page pinned, reading it from disk if it is not
// resident. Returns nil for InvalidPageID, for ids that belong to another
// instance's stripe, and when every frame is pinned.
func (b *BufferPoolInstance) FetchPage(pageID PageID) *Page {
	if pageID == InvalidPageID {
		return nil
	}
	if uint32(pageID)%b.numInstances != b.instanceIndex {
		return nil
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if frameID, ok := b.pageTable[pageID]; ok {
		b.metrics.RecordCacheHit()
		page := b.pages[frameID]
		page.pin()
		b.replacer.Pin(frameID)
		return page
	}

	b.metrics.RecordCacheMiss()

	frameID, ok := b.grabFrame()
	if !ok {
		return nil
	}

	page := b.pages[frameID]
	page.resetMemory()
	page.setIdentity(pageID)
	page.setDirty(false)
	page.pin()
	b.pageTable[pageID] = frameID
	b.replacer.Pin(frameID)

	b.mustReadPage(pageID, page.Data())

	return page
}

// UnpinPage drops one pin from a resident page, recording whether the
// caller dirtied it. The dirty flag only ever rises here; an unpin with
// isDirty=false never clears it. When the pin count reaches zero the frame
// becomes evictable. Returns false for non-resident pages and for pages
// whose pin count is already zero.
func (b *BufferPoolInstance) UnpinPage(pageID PageID, isDirty bool) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false
	}

	page := b.pages[frameID]
	if page.PinCount() == 0 {
		return false
	}

	page.markDirty(isDirty)
	page.unpin()
	if page.PinCount() == 0 {
		b.replacer.Unpin(frameID)
	}

	return true
}

// FlushPage writes a resident page to disk and clears its dirty flag. The
// write is issued even if the page is clean. The frame stays resident and
// its pin count is untouched. Returns false for non-resident pages.
func (b *BufferPoolInstance) FlushPage(pageID PageID) bool {
	if pageID == InvalidPageID {
		return false
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false
	}

	page := b.pages[frameID]
	b.flushFrame(page)

	return true
}

// FlushAllPages flushes every resident page. Ordering among pages is
// unspecified.
func (b *BufferPoolInstance) FlushAllPages() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, frameID := range b.pageTable {
		b.flushFrame(b.pages[frameID])
	}
}

// DeletePage drops a page from the pool and tells the disk manager the id
// is reusable. A page that is not resident counts as already deleted.
// Returns false while the page is pinned.
func (b *BufferPoolInstance) DeletePage(pageID PageID) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return true
	}

	page := b.pages[frameID]
	if page.PinCount() > 0 {
		return false
	}

	if err := b.disk.DeallocatePage(pageID); err != nil {
		panic(ErrDiskOperation("DeletePage", err))
	}

	delete(b.pageTable, pageID)
	b.replacer.Pin(frameID)
	page.reset()
	b.freeList = append(b.freeList, frameID)

	return true
}

// allocatePage hands out the next page id of this instance's stripe
func (b *BufferPoolInstance) allocatePage() PageID {
	pageID := b.nextPageID
	b.nextPageID += PageID(b.numInstances)
	return pageID
}

// grabFrame produces a frame ready for reuse: from the free list when one
// is available, otherwise by evicting a victim, writing it back first if
// dirty. Returns false when every frame is pinned. Caller holds the
// instance mutex.
func (b *BufferPoolInstance) grabFrame() (FrameID, bool) {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return frameID, true
	}

	frameID, ok := b.replacer.Victim()
	if !ok {
		return 0, false
	}

	victim := b.pages[frameID]
	if victim.PageID() != InvalidPageID {
		if victim.IsDirty() {
			b.metrics.RecordDirtyPageFlush()
			b.flushLogBeforeWriteback()
			b.mustWritePage(victim.PageID(), victim.Data())
			victim.setDirty(false)
		}
		delete(b.pageTable, victim.PageID())
		b.metrics.RecordPageEviction()
	}
	victim.reset()

	return frameID, true
}

// flushFrame writes one resident frame back and clears its dirty flag.
// Caller holds the instance mutex.
func (b *BufferPoolInstance) flushFrame(page *Page) {
	if page.PageID() == InvalidPageID {
		return
	}
	if page.IsDirty() {
		b.metrics.RecordDirtyPageFlush()
	}
	b.flushLogBeforeWriteback()
	b.mustWritePage(page.PageID(), page.Data())
	page.setDirty(false)
}

// flushLogBeforeWriteback honors the write-ahead rule: log records drain
// to stable storage before the page they cover does
func (b *BufferPoolInstance) flushLogBeforeWriteback() {
	if b.logManager == nil {
		return
	}
	if err := b.logManager.Flush(); err != nil {
		panic(ErrDiskOperation("FlushLog", err))
	}
}

// The disk peer's contract is synchronous and assumed to succeed; a read
// or write failure aborts rather than surfacing through the predicate
// return values.

func (b *BufferPoolInstance) mustReadPage(pageID PageID, data []byte) {
	if err := b.disk.ReadPage(pageID, data); err != nil {
		panic(ErrDiskOperation("ReadPage", err))
	}
}

func (b *BufferPoolInstance) mustWritePage(pageID PageID, data []byte) {
	if err := b.disk.WritePage(pageID, data); err != nil {
		panic(ErrDiskOperation("WritePage", err))
	}
}
