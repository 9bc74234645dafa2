// Package segment owns the local files of a run: per worker segments and the dated batch artifact
package segment

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"feedmirror/internal/services/mirror/domain"
)

// SegmentPath names the segment for one worker of one process
func SegmentPath(dataDir string, pid, worker int) string {
	return filepath.Join(dataDir, fmt.Sprintf("items_%d_%d.ndjson", pid, worker))
}

// FileSink appends lines to one worker's segment file
type FileSink struct {
	worker int
	path   string
	f      *os.File
	w      *bufio.Writer
	lines  int64
	closed bool
}

// Create truncates or creates the segment file for worker
func Create(dataDir string, pid, worker int) (*FileSink, error) {
	path := SegmentPath(dataDir, pid, worker)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("segment: create %s: %w", path, err)
	}
	return &FileSink{worker: worker, path: path, f: f, w: bufio.NewWriterSize(f, 64<<10)}, nil
}

// Append writes line followed by a newline; line must not contain one
func (s *FileSink) Append(line []byte) error {
	if s.closed {
		return fmt.Errorf("segment: append to closed %s", s.path)
	}
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	s.lines++
	return nil
}

// Close flushes and closes the file; the segment is immutable afterwards
func (s *FileSink) Close() (domain.Segment, error) {
	seg := domain.Segment{Worker: s.worker, Path: s.path, Lines: s.lines}
	if s.closed {
		return seg, nil
	}
	s.closed = true
	ferr := s.w.Flush()
	cerr := s.f.Close()
	if ferr != nil {
		return domain.Segment{}, fmt.Errorf("segment: flush %s: %w", s.path, ferr)
	}
	if cerr != nil {
		return domain.Segment{}, fmt.Errorf("segment: close %s: %w", s.path, cerr)
	}
	return seg, nil
}
