package storage

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// LogRecordType represents the type of log record
type LogRecordType byte

const (
	LogUpdate LogRecordType = iota
	LogNewPage
	LogDeletePage
	LogCheckpoint
)

// String returns string representation of LogRecordType
func (lt LogRecordType) String() string {
	switch lt {
	case LogUpdate:
		return "UPDATE"
	case LogNewPage:
		return "NEW_PAGE"
	case LogDeletePage:
		return "DELETE_PAGE"
	case LogCheckpoint:
		return "CHECKPOINT"
	default:
		return "UNKNOWN"
	}
}

// LogRecord is a single WAL entry covering one page mutation
type LogRecord struct {
	LSN     uint64 // Log Sequence Number (unique, monotonic)
	Type    LogRecordType
	PageID  PageID
	Payload []byte
}

// Serialize converts the record to bytes.
// Format: LSN(8) | Type(1) | PageID(4) | PayloadLen(4) | Payload
func (lr *LogRecord) Serialize() []byte {
	buf := make([]byte, 17+len(lr.Payload))
	binary.LittleEndian.PutUint64(buf[0:], lr.LSN)
	buf[8] = byte(lr.Type)
	binary.LittleEndian.PutUint32(buf[9:], uint32(lr.PageID))
	binary.LittleEndian.PutUint32(buf[13:], uint32(len(lr.Payload)))
	copy(buf[17:], lr.Payload)
	return buf
}

// DeserializeLogRecord reconstructs a record from bytes, returning the
// record and the number of bytes consumed.
func DeserializeLogRecord(data []byte) (*LogRecord, int, error) {
	if len(data) < 17 {
		return nil, 0, errors.Errorf("data too short for log record: %d bytes", len(data))
	}

	lr := &LogRecord{
		LSN:    binary.LittleEndian.Uint64(data[0:]),
		Type:   LogRecordType(data[8]),
		PageID: PageID(binary.LittleEndian.Uint32(data[9:])),
	}
	payloadLen := int(binary.LittleEndian.Uint32(data[13:]))
	if len(data) < 17+payloadLen {
		return nil, 0, errors.Errorf("truncated log record payload: need %d bytes, have %d", payloadLen, len(data)-17)
	}
	if payloadLen > 0 {
		lr.Payload = make([]byte, payloadLen)
		copy(lr.Payload, data[17:17+payloadLen])
	}

	return lr, 17 + payloadLen, nil
}

// LogManager buffers WAL records in memory and drains them to the log
// file on Flush. The buffer pool flushes the log before it writes any
// dirty page back, so a page never reaches disk ahead of the records that
// describe its mutation.
type LogManager struct {
	file    *os.File
	nextLSN uint64
	pending []byte // serialized records not yet on disk
	mutex   sync.Mutex
}

// NewLogManager opens or creates the log file
func NewLogManager(fileName string) (*LogManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log file %s", fileName)
	}

	return &LogManager{
		file:    file,
		nextLSN: 1,
	}, nil
}

// Append buffers a record and stamps it with the next LSN, which is
// returned to the caller
func (lm *LogManager) Append(recordType LogRecordType, pageID PageID, payload []byte) uint64 {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	record := &LogRecord{
		LSN:     lm.nextLSN,
		Type:    recordType,
		PageID:  pageID,
		Payload: payload,
	}
	lm.nextLSN++
	lm.pending = append(lm.pending, record.Serialize()...)

	return record.LSN
}

// Flush drains every buffered record to the log file and syncs it.
// Flushing an empty buffer is a no-op.
func (lm *LogManager) Flush() error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if len(lm.pending) == 0 {
		return nil
	}

	if _, err := lm.file.Write(lm.pending); err != nil {
		return errors.Wrap(err, "failed to write log records")
	}
	if err := lm.file.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync log file")
	}
	lm.pending = lm.pending[:0]

	return nil
}

// PendingBytes returns the number of buffered bytes not yet on disk
func (lm *LogManager) PendingBytes() int {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return len(lm.pending)
}

// NextLSN returns the LSN the next appended record will receive
func (lm *LogManager) NextLSN() uint64 {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return lm.nextLSN
}

// Close flushes outstanding records and closes the log file
func (lm *LogManager) Close() error {
	if err := lm.Flush(); err != nil {
		return err
	}
	return lm.file.Close()
}
