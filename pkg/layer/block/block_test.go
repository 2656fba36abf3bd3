package block

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBufAllocAndRead(t *testing.T) {
	buf := NewBuf()

	blk0, page0 := buf.AllocPage()
	if blk0 != 0 {
		t.Fatalf("First page should be block 0, got %d", blk0)
	}
	page0[0] = 0xAA

	blk1, page1 := buf.AllocPage()
	if blk1 != 1 {
		t.Fatalf("Second page should be block 1, got %d", blk1)
	}
	page1[0] = 0xBB

	got, err := buf.ReadBlk(0)
	if err != nil {
		t.Fatalf("Failed to read block 0: %v", err)
	}
	if got[0] != 0xAA {
		t.Errorf("Block 0 content mismatch: got %x", got[0])
	}

	got, err = buf.ReadBlk(1)
	if err != nil {
		t.Fatalf("Failed to read block 1: %v", err)
	}
	if got[0] != 0xBB {
		t.Errorf("Block 1 content mismatch: got %x", got[0])
	}

	if _, err := buf.ReadBlk(2); err == nil {
		t.Error("Reading past the last allocated page should fail")
	}
}

func TestBufWriteTo(t *testing.T) {
	buf := NewBuf()
	_, p := buf.AllocPage()
	p[0] = 1
	_, p = buf.AllocPage()
	p[0] = 2

	var out bytes.Buffer
	n, err := buf.WriteTo(&out)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != 2*PageSize {
		t.Errorf("Expected %d bytes written, got %d", 2*PageSize, n)
	}
	if out.Bytes()[0] != 1 || out.Bytes()[PageSize] != 2 {
		t.Error("Pages written in wrong order")
	}
}

func TestFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks")

	data := make([]byte, 2*PageSize)
	data[0] = 0x11
	data[PageSize] = 0x22
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	r, err := OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	page, err := r.ReadBlk(1)
	if err != nil {
		t.Fatalf("Failed to read block 1: %v", err)
	}
	if page[0] != 0x22 {
		t.Errorf("Block 1 content mismatch: got %x", page[0])
	}

	if _, err := r.ReadBlk(5); err == nil {
		t.Error("Reading past end of file should fail")
	}
}

func TestFileReaderShortLastPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short")

	// One full page plus a partial trailing page.
	data := make([]byte, PageSize+100)
	data[PageSize] = 0x33
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	r, err := OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	page, err := r.ReadBlk(1)
	if err != nil {
		t.Fatalf("Failed to read partial block: %v", err)
	}
	if page[0] != 0x33 {
		t.Errorf("Partial block content mismatch: got %x", page[0])
	}
	if page[100] != 0 {
		t.Error("Bytes past end of file should read as zero")
	}
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("Opening a missing file should fail")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}
