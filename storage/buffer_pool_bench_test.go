package storage

import (
	"path/filepath"
	"testing"
)

func newBenchPool(b *testing.B, poolSize uint32) *BufferPoolInstance {
	b.Helper()
	dm, err := NewFileDiskManager(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("Failed to create disk manager: %v", err)
	}
	b.Cleanup(func() { dm.Close() })

	bpm, err := NewBufferPoolInstance(poolSize, dm)
	if err != nil {
		b.Fatalf("Failed to create buffer pool: %v", err)
	}
	return bpm
}

// BenchmarkFetchPageHit measures the hot path: a fetch that never leaves
// the page table
func BenchmarkFetchPageHit(b *testing.B) {
	bpm := newBenchPool(b, 64)

	page := bpm.NewPage()
	if page == nil {
		b.Fatal("Failed to create page")
	}
	pid := page.PageID()
	bpm.UnpinPage(pid, false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := bpm.FetchPage(pid)
		if p == nil {
			b.Fatal("Fetch failed")
		}
		bpm.UnpinPage(pid, false)
	}
}

// BenchmarkNewPageChurn measures allocation with constant eviction of
// clean pages
func BenchmarkNewPageChurn(b *testing.B) {
	bpm := newBenchPool(b, 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		page := bpm.NewPage()
		if page == nil {
			b.Fatal("NewPage failed")
		}
		bpm.UnpinPage(page.PageID(), false)
	}
}

// BenchmarkFetchPageMiss measures the eviction path with dirty writeback
func BenchmarkFetchPageMiss(b *testing.B) {
	bpm := newBenchPool(b, 4)

	// Seed some pages on disk
	for i := 0; i < 8; i++ {
		page := bpm.NewPage()
		if page == nil {
			b.Fatal("NewPage failed")
		}
		page.Data()[0] = byte(i)
		bpm.UnpinPage(page.PageID(), true)
	}
	bpm.FlushAllPages()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pid := PageID(i % 8)
		p := bpm.FetchPage(pid)
		if p == nil {
			b.Fatal("Fetch failed")
		}
		bpm.UnpinPage(pid, true)
	}
}
