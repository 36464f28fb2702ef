package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotation defaults for the agent log.
const (
	DefaultLogMaxSize  = 5 * 1024 * 1024
	DefaultLogMaxFiles = 3
)

// LogFile is an io.Writer over a size-rotated file. When the file reaches
// maxSize it becomes path.1, older files shift up, and at most maxFiles
// rotated files are kept.
type LogFile struct {
	mu          sync.Mutex
	path        string
	maxSize     int64
	maxFiles    int
	file        *os.File
	currentSize int64
}

// OpenLogFile opens or creates path for appending.
func OpenLogFile(path string, maxSize int64, maxFiles int) (*LogFile, error) {
	if maxSize <= 0 {
		maxSize = DefaultLogMaxSize
	}
	if maxFiles <= 0 {
		maxFiles = DefaultLogMaxFiles
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &LogFile{
		path:        path,
		maxSize:     maxSize,
		maxFiles:    maxFiles,
		file:        f,
		currentSize: stat.Size(),
	}, nil
}

// Write appends p, rotating first when the file is full. Records are never
// split across files.
func (l *LogFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return 0, os.ErrClosed
	}

	if l.currentSize > 0 && l.currentSize+int64(len(p)) > l.maxSize {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
		if l.file == nil {
			return 0, os.ErrClosed
		}
	}

	n, err := l.file.Write(p)
	l.currentSize += int64(n)
	return n, err
}

// Close closes the underlying file.
func (l *LogFile) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// rotate shifts path.N-1 to path.N down to path -> path.1 and reopens path.
func (l *LogFile) rotate() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	os.Remove(fmt.Sprintf("%s.%d", l.path, l.maxFiles))
	for i := l.maxFiles - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", l.path, i), fmt.Sprintf("%s.%d", l.path, i+1))
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}
	l.file = f
	l.currentSize = 0
	return nil
}
