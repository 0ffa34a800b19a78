package logging

import (
	"os"
	"sync"
)

const defaultCapMB = 10

// cappedFileWriter appends to a single log file and starts the file over
// whenever the next write would push it past the byte cap. There is no
// rotation chain; the previous contents are discarded.
type cappedFileWriter struct {
	mu      sync.Mutex
	path    string
	cap     int64
	f       *os.File
	written int64
}

func newCappedFileWriter(path string, capMB int) (*cappedFileWriter, error) {
	if capMB <= 0 {
		capMB = defaultCapMB
	}
	w := &cappedFileWriter{path: path, cap: int64(capMB) << 20}
	if err := w.openLocked(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *cappedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		if err := w.openLocked(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if w.written+int64(len(p)) > w.cap {
		if err := w.openLocked(os.O_TRUNC); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *cappedFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// openLocked (re)opens the log file with the given disposition flag and
// resets the byte count from the file size. Caller holds mu.
func (w *cappedFileWriter) openLocked(mode int) error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.written = info.Size()
	return nil
}
