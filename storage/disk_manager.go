package storage

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// DiskManager is the buffer pool's backing store: synchronous reads and
// writes of page-sized blocks, plus physical-layer bookkeeping for
// deallocated page ids.
type DiskManager interface {
	// ReadPage fills data (PageSize bytes) with the page's on-disk
	// contents. Regions never written read as zeroes.
	ReadPage(pageID PageID, data []byte) error

	// WritePage persists PageSize bytes and syncs them to stable storage
	WritePage(pageID PageID, data []byte) error

	// DeallocatePage marks the id reusable at the physical layer
	DeallocatePage(pageID PageID) error

	// Close releases the underlying resources
	Close() error
}

// FileDiskManager stores pages in a single file at offset pageID*PageSize
type FileDiskManager struct {
	file        *os.File
	deallocated map[PageID]struct{}
	mutex       sync.Mutex
}

var _ DiskManager = (*FileDiskManager)(nil)

// NewFileDiskManager opens or creates the database file
func NewFileDiskManager(fileName string) (*FileDiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database file %s", fileName)
	}

	return &FileDiskManager{
		file:        file,
		deallocated: make(map[PageID]struct{}),
	}, nil
}

// ReadPage reads a page from disk into data. A read past the end of the
// file, or a short read at the tail, leaves the remainder zeroed so that
// never-written pages read back as zeroes.
func (dm *FileDiskManager) ReadPage(pageID PageID, data []byte) error {
	if len(data) != PageSize {
		return errors.Errorf("page buffer must be exactly %d bytes, got %d", PageSize, len(data))
	}
	if pageID == InvalidPageID {
		return ErrInvalidPageID("ReadPage")
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageID) * PageSize
	n, err := dm.file.ReadAt(data, offset)
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "failed to read page %d", pageID)
	}
	for i := n; i < PageSize; i++ {
		data[i] = 0
	}
	return nil
}

// WritePage writes a page at its offset and syncs the file
func (dm *FileDiskManager) WritePage(pageID PageID, data []byte) error {
	if len(data) != PageSize {
		return errors.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(data))
	}
	if pageID == InvalidPageID {
		return ErrInvalidPageID("WritePage")
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageID) * PageSize
	if _, err := dm.file.WriteAt(data, offset); err != nil {
		return errors.Wrapf(err, "failed to write page %d", pageID)
	}
	delete(dm.deallocated, pageID)

	return dm.file.Sync()
}

// PageWrite is a single entry in a batch write
type PageWrite struct {
	PageID PageID
	Data   []byte
}

// WritePages writes multiple pages and syncs once, amortizing the fsync
func (dm *FileDiskManager) WritePages(writes []PageWrite) error {
	if len(writes) == 0 {
		return nil
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	for _, pw := range writes {
		if len(pw.Data) != PageSize {
			return errors.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(pw.Data))
		}
		offset := int64(pw.PageID) * PageSize
		if _, err := dm.file.WriteAt(pw.Data, offset); err != nil {
			return errors.Wrapf(err, "failed to write page %d", pw.PageID)
		}
		delete(dm.deallocated, pw.PageID)
	}

	return dm.file.Sync()
}

// DeallocatePage records the id as reusable. The file itself is not
// truncated or punched.
func (dm *FileDiskManager) DeallocatePage(pageID PageID) error {
	if pageID == InvalidPageID {
		return ErrInvalidPageID("DeallocatePage")
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.deallocated[pageID] = struct{}{}
	return nil
}

// IsDeallocated reports whether the id was deallocated and not rewritten
func (dm *FileDiskManager) IsDeallocated(pageID PageID) bool {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	_, ok := dm.deallocated[pageID]
	return ok
}

// Size returns the current file size in bytes
func (dm *FileDiskManager) Size() (int64, error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	info, err := dm.file.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "failed to stat database file")
	}
	return info.Size(), nil
}

// Close closes the underlying file
func (dm *FileDiskManager) Close() error {
	if dm.file != nil {
		return dm.file.Close()
	}
	return nil
}
