package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"policy-manual-ai/internal/manual"
)

// PassageLogSuffix names run log files: <run id>_content_chunks.jsonl.
const PassageLogSuffix = "_content_chunks.jsonl"

// ErrLogClosed is returned when appending to a closed run log.
var ErrLogClosed = errors.New("run log is closed")

// maxLogLine bounds a single passage record when reading a run log.
const maxLogLine = 4 * 1024 * 1024

// PassageLog is the append-only JSONL log of one ingestion run.
// It is safe for concurrent use.
type PassageLog struct {
	mu    sync.Mutex
	runID string
	path  string
	file  *os.File
	count int
}

// NewPassageLog creates the run log for a run started at now under dir.
func NewPassageLog(dir string, now time.Time) (*PassageLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}

	runID := manual.NewRunID(now)
	path := filepath.Join(dir, runID+PassageLogSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	return &PassageLog{runID: runID, path: path, file: f}, nil
}

// RunID returns the run identifier stamped on every passage of this log.
func (l *PassageLog) RunID() string {
	return l.runID
}

// Path returns the log file path.
func (l *PassageLog) Path() string {
	return l.path
}

// Count returns the number of passages appended so far.
func (l *PassageLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Append writes one passage as a single JSON line. Passages that fail
// validation are rejected and nothing is written.
func (l *PassageLog) Append(p manual.Passage) error {
	if err := p.Validate(); err != nil {
		return err
	}

	line, err := manual.MarshalLine(p)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrLogClosed
	}
	if _, err := l.file.Write(line); err != nil {
		return manual.Transient("append run log", err)
	}
	l.count++
	return nil
}

// Close flushes and closes the log file. Closing twice is a no-op.
func (l *PassageLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	return f.Close()
}

// ReadPassageLog calls fn for every passage in the log at path, in file order.
// Blank lines are skipped. The position passed to fn counts decoded passages.
// Records without a passage_id get one from their ordinal within their page.
func ReadPassageLog(path string, fn func(position int, p manual.Passage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)

	position := 0
	lineNo := 0
	ordinals := make(map[string]int)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		r, err := manual.UnmarshalRecord(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		p := r.PassageAt(ordinals[r.URL])
		ordinals[r.URL]++
		if err := fn(position, p); err != nil {
			return err
		}
		position++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read run log: %w", err)
	}
	return nil
}

// LatestPassageLog returns the most recently modified run log in dir.
// Returns ErrNotFound when dir holds no run log.
func LatestPassageLog(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+PassageLogSuffix))
	if err != nil {
		return "", fmt.Errorf("failed to list run logs: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNotFound
	}

	type logFile struct {
		path    string
		modTime time.Time
	}
	files := make([]logFile, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return "", fmt.Errorf("failed to stat run log: %w", err)
		}
		files = append(files, logFile{path: m, modTime: info.ModTime()})
	}

	// Newest first; equal mtimes fall back to the name, which embeds the run ID.
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path > files[j].path
		}
		return files[i].modTime.After(files[j].modTime)
	})

	return files[0].path, nil
}

// RunIDFromLogPath extracts the run identifier from a run log file name.
func RunIDFromLogPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), PassageLogSuffix)
}
