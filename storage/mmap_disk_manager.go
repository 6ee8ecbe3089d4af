//go:build linux || darwin

package storage

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapDiskManager is a DiskManager backed by a memory-mapped file. Reads
// and writes copy through the mapping; WritePage msyncs the touched page
// so the synchronous contract holds.
type MmapDiskManager struct {
	file        *os.File
	mmapData    []byte
	fileSize    int64
	deallocated map[PageID]struct{}
	mutex       sync.Mutex
}

var _ DiskManager = (*MmapDiskManager)(nil)

const (
	// Initial file size: 64MB (16K pages * 4KB)
	mmapInitialFileSize = 64 * 1024 * 1024
	// Grow by 64MB when a write lands past the mapping
	mmapFileGrowSize = 64 * 1024 * 1024
)

// NewMmapDiskManager opens or creates the database file and maps it
func NewMmapDiskManager(fileName string) (*MmapDiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database file %s", fileName)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to stat database file")
	}

	fileSize := info.Size()
	if fileSize < mmapInitialFileSize {
		if err := file.Truncate(mmapInitialFileSize); err != nil {
			file.Close()
			return nil, errors.Wrap(err, "failed to grow database file")
		}
		fileSize = mmapInitialFileSize
	}

	dm := &MmapDiskManager{
		file:        file,
		fileSize:    fileSize,
		deallocated: make(map[PageID]struct{}),
	}

	if err := dm.createMapping(); err != nil {
		file.Close()
		return nil, err
	}

	return dm, nil
}

// createMapping maps the whole file read-write and shared
func (dm *MmapDiskManager) createMapping() error {
	data, err := unix.Mmap(int(dm.file.Fd()), 0, int(dm.fileSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrap(err, "failed to mmap database file")
	}
	dm.mmapData = data
	return nil
}

// ensureCapacity grows the file and remaps when offset+PageSize exceeds
// the mapping. Caller holds the mutex.
func (dm *MmapDiskManager) ensureCapacity(offset int64) error {
	if offset+PageSize <= dm.fileSize {
		return nil
	}

	if err := unix.Munmap(dm.mmapData); err != nil {
		return errors.Wrap(err, "failed to unmap database file")
	}
	dm.mmapData = nil

	newSize := dm.fileSize
	for offset+PageSize > newSize {
		newSize += mmapFileGrowSize
	}
	if err := dm.file.Truncate(newSize); err != nil {
		// Try to restore the old mapping before reporting
		dm.createMapping()
		return errors.Wrap(err, "failed to grow database file")
	}
	dm.fileSize = newSize

	return dm.createMapping()
}

// ReadPage copies a page out of the mapping. Pages past the mapped region
// were never written and read as zeroes.
func (dm *MmapDiskManager) ReadPage(pageID PageID, data []byte) error {
	if len(data) != PageSize {
		return errors.Errorf("page buffer must be exactly %d bytes, got %d", PageSize, len(data))
	}
	if pageID == InvalidPageID {
		return ErrInvalidPageID("ReadPage")
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageID) * PageSize
	if offset+PageSize > dm.fileSize {
		for i := range data {
			data[i] = 0
		}
		return nil
	}

	copy(data, dm.mmapData[offset:offset+PageSize])
	return nil
}

// WritePage copies a page into the mapping and msyncs it
func (dm *MmapDiskManager) WritePage(pageID PageID, data []byte) error {
	if len(data) != PageSize {
		return errors.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(data))
	}
	if pageID == InvalidPageID {
		return ErrInvalidPageID("WritePage")
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageID) * PageSize
	if err := dm.ensureCapacity(offset); err != nil {
		return err
	}

	copy(dm.mmapData[offset:offset+PageSize], data)
	delete(dm.deallocated, pageID)

	// Msync wants a page-aligned region; PageSize is a multiple of the
	// OS page size on every supported platform
	if err := unix.Msync(dm.mmapData[offset:offset+PageSize], unix.MS_SYNC); err != nil {
		return errors.Wrapf(err, "failed to msync page %d", pageID)
	}
	return nil
}

// DeallocatePage records the id as reusable
func (dm *MmapDiskManager) DeallocatePage(pageID PageID) error {
	if pageID == InvalidPageID {
		return ErrInvalidPageID("DeallocatePage")
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.deallocated[pageID] = struct{}{}
	return nil
}

// IsDeallocated reports whether the id was deallocated and not rewritten
func (dm *MmapDiskManager) IsDeallocated(pageID PageID) bool {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	_, ok := dm.deallocated[pageID]
	return ok
}

// FileSize returns the current mapped file size
func (dm *MmapDiskManager) FileSize() int64 {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()
	return dm.fileSize
}

// Close syncs the mapping, unmaps it, and closes the file
func (dm *MmapDiskManager) Close() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if dm.mmapData != nil {
		if err := unix.Msync(dm.mmapData, unix.MS_SYNC); err != nil {
			return errors.Wrap(err, "failed to msync database file")
		}
		if err := unix.Munmap(dm.mmapData); err != nil {
			return errors.Wrap(err, "failed to unmap database file")
		}
		dm.mmapData = nil
	}

	if dm.file != nil {
		return dm.file.Close()
	}
	return nil
}
