// Package logsink writes a durable per-run log of every stage transition and
// external command, so a failed bootstrap can be diagnosed after the terminal
// scrollback is gone. Logs from previous runs are compressed and eventually
// pruned.
package logsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

const (
	logDirName     = "log"
	logFilePrefix  = "run-"
	logFileSuffix  = ".log"
	retainRunCount = 20
)

// Sink is a single bootstrap run's log file.
type Sink struct {
	mu   sync.Mutex
	file *os.File
	path string
	id   string
}

// Open creates the log directory under stateDir, compresses logs left behind
// by previous runs, prunes beyond the retention count, and starts a fresh log
// with a unique run ID.
func Open(stateDir string) (*Sink, error) {
	dir := filepath.Join(stateDir, logDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	if err := compressPreviousRuns(dir); err != nil {
		// Rotation trouble should not block a new run.
		fmt.Fprintf(os.Stderr, "Warning: rotate old run logs: %v\n", err)
	}
	if err := prune(dir, retainRunCount); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: prune old run logs: %v\n", err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, logFilePrefix+id+logFileSuffix)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}

	s := &Sink{file: file, path: path, id: id}
	s.writeLine("run %s started", id)
	return s, nil
}

// Path returns the location of the active run log.
func (s *Sink) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// RunID returns the unique identifier for this run.
func (s *Sink) RunID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Stage records a stage transition and its outcome.
func (s *Sink) Stage(name, disposition string, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.writeLine("stage %s %s: error: %v", name, disposition, err)
		return
	}
	s.writeLine("stage %s %s: ok", name, disposition)
}

// Command records one external command invocation and its result.
func (s *Sink) Command(display string, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.writeLine("exec %s: error: %v", display, err)
		return
	}
	s.writeLine("exec %s: ok", display)
}

// Close finishes the run log.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.writeLine("run %s finished", s.id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Sink) writeLine(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(s.file, "%s %s\n", time.Now().UTC().Format(time.RFC3339), line)
}

// compressPreviousRuns gzips every uncompressed run log left over from
// earlier runs and removes the originals.
func compressPreviousRuns(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var firstErr error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		if err := compressFile(filepath.Join(dir, name)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		_ = zw.Close()
		_ = dst.Close()
		_ = os.Remove(path + ".gz")
		return err
	}
	if err := zw.Close(); err != nil {
		_ = dst.Close()
		_ = os.Remove(path + ".gz")
		return err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path + ".gz")
		return err
	}
	return os.Remove(path)
}

// prune removes the oldest compressed logs beyond the retention count.
func prune(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type aged struct {
		path string
		mod  time.Time
	}
	var compressed []aged
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, ".gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		compressed = append(compressed, aged{path: filepath.Join(dir, name), mod: info.ModTime()})
	}

	if len(compressed) <= keep {
		return nil
	}
	sort.Slice(compressed, func(i, j int) bool {
		return compressed[i].mod.Before(compressed[j].mod)
	})

	var firstErr error
	for _, old := range compressed[:len(compressed)-keep] {
		if err := os.Remove(old.path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
