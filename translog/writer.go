// Package translog provides per-session wire-transcript logging with
// size-based rotation and age-based retention cleanup. Grounded on the
// teacher's logs.Writer (console-server/logs), which keeps one open file
// per key behind a mutex-guarded map, rotates on demand, and maintains a
// "current.log" symlink so the latest transcript is easy to find. The
// ANSI/cursor-escape cleaning and screen-redraw dedup logic that writer
// needs for terminal output has no counterpart here: this protocol is
// plain ASCII text lines, not a terminal stream.
package translog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxFileBytes rotates a session's transcript once it grows past this size,
// so a pathologically long-lived or chatty session can't grow one file
// without bound.
const maxFileBytes = 1 << 20 // 1 MiB

// Writer appends framed-message transcripts to per-session log files under
// basePath, one subdirectory per session id.
type Writer struct {
	basePath      string
	retentionDays int

	mu    sync.Mutex
	files map[string]*os.File
	sizes map[string]int64
}

// NewWriter creates a Writer rooted at basePath. retentionDays of zero or
// less disables Cleanup.
func NewWriter(basePath string, retentionDays int) *Writer {
	return &Writer{
		basePath:      basePath,
		retentionDays: retentionDays,
		files:         make(map[string]*os.File),
		sizes:         make(map[string]int64),
	}
}

// Write appends one transcript line for sessionID: a direction tag ("<-"
// for received, "->" for sent) followed by the message content.
func (w *Writer) Write(sessionID string, direction string, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.getOrCreateLocked(sessionID)
	if err != nil {
		return err
	}

	line := fmt.Sprintf("%s %s %s\n", time.Now().Format(time.RFC3339Nano), direction, payload)
	n, err := f.WriteString(line)
	if err != nil {
		return err
	}
	w.sizes[sessionID] += int64(n)

	if w.sizes[sessionID] >= maxFileBytes {
		if err := w.rotateLocked(sessionID); err != nil {
			log.Warnf("translog: rotate %s: %v", sessionID, err)
		}
	}
	return nil
}

// Rotate closes and replaces sessionID's current log file with a fresh one.
func (w *Writer) Rotate(sessionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotateLocked(sessionID)
}

func (w *Writer) rotateLocked(sessionID string) error {
	if f, ok := w.files[sessionID]; ok {
		f.Close()
		delete(w.files, sessionID)
		delete(w.sizes, sessionID)
	}
	_, err := w.getOrCreateLocked(sessionID)
	return err
}

func (w *Writer) getOrCreateLocked(sessionID string) (*os.File, error) {
	if f, ok := w.files[sessionID]; ok {
		return f, nil
	}

	dir := filepath.Join(w.basePath, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("translog: create session dir: %w", err)
	}

	stamp := time.Now().Format("2006-01-02_15-04-05.000")
	name := stamp + ".log"
	for i := 1; ; i++ {
		if _, err := os.Lstat(filepath.Join(dir, name)); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s-%d.log", stamp, i)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("translog: open log file: %w", err)
	}
	w.files[sessionID] = f
	w.sizes[sessionID] = 0

	symlink := filepath.Join(dir, "current.log")
	os.Remove(symlink)
	os.Symlink(name, symlink)

	return f, nil
}

// Close closes every open transcript file.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range w.files {
		f.Close()
	}
	w.files = make(map[string]*os.File)
	w.sizes = make(map[string]int64)
}

// Cleanup removes transcript files older than the configured retention.
func (w *Writer) Cleanup() {
	if w.retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	entries, err := os.ReadDir(w.basePath)
	if err != nil {
		return
	}
	for _, sessionDir := range entries {
		if !sessionDir.IsDir() {
			continue
		}
		sessionPath := filepath.Join(w.basePath, sessionDir.Name())
		logFiles, err := os.ReadDir(sessionPath)
		if err != nil {
			continue
		}
		for _, lf := range logFiles {
			if lf.IsDir() || filepath.Ext(lf.Name()) != ".log" {
				continue
			}
			info, err := lf.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				path := filepath.Join(sessionPath, lf.Name())
				if err := os.Remove(path); err == nil {
					log.Debugf("translog: cleaned up old transcript %s", path)
				}
			}
		}
	}
}
