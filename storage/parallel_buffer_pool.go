package storage

import (
	"sync"
)

// ParallelBufferPoolManager partitions the page-id space across several
// BufferPoolInstances. A page id belongs to instance pageID mod
// numInstances, so every operation on an existing page routes to exactly
// one shard and the shards never contend with each other.
type ParallelBufferPoolManager struct {
	instances []*BufferPoolInstance

	// next instance to try first on NewPage, advanced once per call
	startIndex uint32
	startMutex sync.Mutex
}

// NewParallelBufferPoolManager creates numInstances pools of poolSize
// frames each, all backed by the same disk manager. The log manager is
// optional and shared by every instance.
func NewParallelBufferPoolManager(numInstances, poolSize uint32, disk DiskManager, logManager *LogManager, replacerPolicy string) (*ParallelBufferPoolManager, error) {
	if numInstances == 0 {
		return nil, NewStorageError(ErrCodeInternal, "NewParallelBufferPoolManager",
			"instance count must be greater than 0", nil)
	}

	instances := make([]*BufferPoolInstance, 0, numInstances)
	for i := uint32(0); i < numInstances; i++ {
		instance, err := NewBufferPoolInstanceWithOptions(poolSize, numInstances, i, disk, logManager, replacerPolicy)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}

	return &ParallelBufferPoolManager{instances: instances}, nil
}

// NumInstances returns the shard count
func (p *ParallelBufferPoolManager) NumInstances() uint32 {
	return uint32(len(p.instances))
}

// PoolSize returns the total number of frames across all instances
func (p *ParallelBufferPoolManager) PoolSize() uint32 {
	return p.NumInstances() * p.instances[0].PoolSize()
}

// Instance returns the shard owning the given page id
func (p *ParallelBufferPoolManager) Instance(pageID PageID) *BufferPoolInstance {
	return p.instances[uint32(pageID)%p.NumInstances()]
}

// NewPage tries each instance in turn, beginning at a starting shard that
// advances by one per call so allocations spread across the shards.
// Returns nil when every instance is exhausted.
func (p *ParallelBufferPoolManager) NewPage() *Page {
	p.startMutex.Lock()
	start := p.startIndex
	p.startIndex = (p.startIndex + 1) % p.NumInstances()
	p.startMutex.Unlock()

	n := p.NumInstances()
	for i := uint32(0); i < n; i++ {
		instance := p.instances[(start+i)%n]
		if page := instance.NewPage(); page != nil {
			return page
		}
	}

	return nil
}

// FetchPage routes to the owning shard
func (p *ParallelBufferPoolManager) FetchPage(pageID PageID) *Page {
	if pageID == InvalidPageID {
		return nil
	}
	return p.Instance(pageID).FetchPage(pageID)
}

// UnpinPage routes to the owning shard
func (p *ParallelBufferPoolManager) UnpinPage(pageID PageID, isDirty bool) bool {
	if pageID == InvalidPageID {
		return false
	}
	return p.Instance(pageID).UnpinPage(pageID, isDirty)
}

// FlushPage routes to the owning shard
func (p *ParallelBufferPoolManager) FlushPage(pageID PageID) bool {
	if pageID == InvalidPageID {
		return false
	}
	return p.Instance(pageID).FlushPage(pageID)
}

// DeletePage routes to the owning shard
func (p *ParallelBufferPoolManager) DeletePage(pageID PageID) bool {
	if pageID == InvalidPageID {
		return true
	}
	return p.Instance(pageID).DeletePage(pageID)
}

// FlushAllPages flushes every instance in order
func (p *ParallelBufferPoolManager) FlushAllPages() {
	for _, instance := range p.instances {
		instance.FlushAllPages()
	}
}
