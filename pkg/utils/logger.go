package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// RotatingWriter writes to a file and rotates it when it reaches a size limit.
type RotatingWriter struct {
	Filename   string
	MaxSize    int64 // bytes
	MaxBackups int
	file       *os.File
	mu         sync.Mutex
}

// NewRotatingWriter creates a new RotatingWriter.
func NewRotatingWriter(filename string, maxSize int64, maxBackups int) *RotatingWriter {
	return &RotatingWriter{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.Filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.file = file
	return nil
}

func (w *RotatingWriter) close() error {
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}

func (w *RotatingWriter) rotate() error {
	if err := w.close(); err != nil {
		return err
	}

	for i := w.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", w.Filename, i)
		newPath := fmt.Sprintf("%s.%d", w.Filename, i+1)
		os.Rename(oldPath, newPath)
	}

	if w.MaxBackups > 0 {
		os.Rename(w.Filename, fmt.Sprintf("%s.1", w.Filename))
	}

	return w.open()
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(); err != nil {
			// Fallback to stderr if file open fails
			return os.Stderr.Write(p)
		}
	}

	info, err := w.file.Stat()
	if err == nil && info.Size() > w.MaxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	return w.file.Write(p)
}

// SetupLogger configures the global logrus logger to write to both a rotating
// log file and stderr.
func SetupLogger(logDir string) {
	os.MkdirAll(logDir, 0755)
	logFile := filepath.Join(logDir, "vikingbot.log")

	// 10MB limit, 5 backups
	writer := NewRotatingWriter(logFile, 10*1024*1024, 5)

	logrus.SetOutput(io.MultiWriter(os.Stderr, writer))
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if os.Getenv("VIKINGBOT_DEBUG") != "" {
		logrus.SetLevel(logrus.DebugLevel)
	}
}
