package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCappedWriterStartsOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	w, err := newCappedFileWriter(path, 1)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	line := strings.Repeat("x", 400*1024) + "\n"
	for i := 0; i < 4; i++ {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() > 1<<20 {
		t.Fatalf("file grew past the cap: %d bytes", info.Size())
	}
}

func TestCappedWriterReopensAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	w, err := newCappedFileWriter(path, 1)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	defer w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("log contents = %q", data)
	}
}
