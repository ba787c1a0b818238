package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/gzip"
)

// backupTimeFormat matches the names lumberjack gives its backups, so
// IsBackup and Prune treat both writers alike.
const backupTimeFormat = "2006-01-02T15-04-05.000"

// sharedFile is a size-rotated log file that several processes may append
// to at once. Every descriptor is opened with O_APPEND, so each write lands
// at the current end of file whoever wrote last. Rotation happens under an
// exclusive lock on <path>.lock: the first writer to see the file full
// renames it to a backup; the others notice their descriptor no longer
// names the path and reopen it.
type sharedFile struct {
	path   string
	policy Policy
	lock   *flock.Flock
	now    func() time.Time

	mu     sync.Mutex
	f      *os.File
	closed bool
}

var _ io.WriteCloser = (*sharedFile)(nil)

// OpenRotating opens path for appending and returns a writer that rotates
// it by size. Writers in different processes may share path.
func OpenRotating(path string, p Policy) (io.WriteCloser, error) {
	return openShared(path, p, time.Now)
}

func openShared(path string, p Policy, now func() time.Time) (*sharedFile, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &sharedFile{
		path:   path,
		policy: p,
		lock:   flock.New(path + ".lock"),
		now:    now,
		f:      f,
	}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (s *sharedFile) maxBytes() int64 {
	return int64(s.policy.MaxSizeMB) * 1024 * 1024
}

// Write appends b in a single write call, rotating first when b would take
// the file past MaxSizeMB.
func (s *sharedFile) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, os.ErrClosed
	}
	if limit := s.maxBytes(); limit > 0 {
		info, err := s.f.Stat()
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", s.path, err)
		}
		if info.Size()+int64(len(b)) > limit {
			if err := s.rotate(int64(len(b))); err != nil {
				return 0, err
			}
		}
	}
	return s.f.Write(b)
}

// rotate runs with s.mu held.
func (s *sharedFile) rotate(n int64) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", s.path, err)
	}
	defer func() { _ = s.lock.Unlock() }()

	var backup string
	cur, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Removed under us; reopening recreates it.
	case err != nil:
		return fmt.Errorf("stat %s: %w", s.path, err)
	default:
		mine, err := s.f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", s.path, err)
		}
		// A different file at path means another writer already rotated.
		if os.SameFile(cur, mine) && cur.Size()+n > s.maxBytes() {
			backup = s.backupName()
			if err := os.Rename(s.path, backup); err != nil {
				return fmt.Errorf("rotating %s: %w", s.path, err)
			}
		}
	}

	f, err := openAppend(s.path)
	if err != nil {
		return fmt.Errorf("reopening %s: %w", s.path, err)
	}
	old := s.f
	s.f = f
	_ = old.Close()

	if backup != "" {
		// A failed mill only leaves extra backups behind.
		_ = s.mill(backup)
	}
	return nil
}

// backupName returns a free name-<timestamp>.log next to path.
func (s *sharedFile) backupName() string {
	dir := filepath.Dir(s.path)
	ext := filepath.Ext(s.path)
	prefix := strings.TrimSuffix(filepath.Base(s.path), ext)

	t := s.now().Local()
	for {
		name := filepath.Join(dir, prefix+"-"+t.Format(backupTimeFormat)+ext)
		_, err := os.Lstat(name)
		_, gzErr := os.Lstat(name + ".gz")
		if errors.Is(err, os.ErrNotExist) && errors.Is(gzErr, os.ErrNotExist) {
			return name
		}
		t = t.Add(time.Millisecond)
	}
}

// mill compresses a fresh backup and applies MaxBackups and MaxAge to the
// backups of this file. It runs under the rotation lock.
func (s *sharedFile) mill(backup string) error {
	if s.policy.Compress {
		if err := compressFile(backup); err != nil {
			return err
		}
	}
	if s.policy.MaxBackups <= 0 && s.policy.MaxAge <= 0 {
		return nil
	}

	backups, err := s.backups()
	if err != nil {
		return err
	}
	var remove []string
	if s.policy.MaxAge > 0 {
		cutoff := s.now().Add(-s.policy.MaxAge)
		kept := backups[:0]
		for _, b := range backups {
			if b.mod.Before(cutoff) {
				remove = append(remove, b.path)
				continue
			}
			kept = append(kept, b)
		}
		backups = kept
	}
	if n := s.policy.MaxBackups; n > 0 && len(backups) > n {
		for _, b := range backups[:len(backups)-n] {
			remove = append(remove, b.path)
		}
	}
	for _, p := range remove {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

type backupFile struct {
	path string
	mod  time.Time
}

// backups lists the rotated files of s.path, oldest first.
func (s *sharedFile) backups() ([]backupFile, error) {
	dir := filepath.Dir(s.path)
	prefix := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var out []backupFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !IsBackup(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, backupFile{path: filepath.Join(dir, name), mod: info.ModTime()})
	}
	// Timestamps in the names sort chronologically.
	slices.SortFunc(out, func(a, b backupFile) int { return strings.Compare(a.path, b.path) })
	return out, nil
}

// compressFile replaces path with path.gz.
func compressFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s.gz: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path + ".gz")
		}
	}()

	zw := gzip.NewWriter(dst)
	if _, err = io.Copy(zw, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("compressing %s: %w", path, err)
	}
	if err = zw.Close(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("compressing %s: %w", path, err)
	}
	if err = dst.Close(); err != nil {
		return fmt.Errorf("closing %s.gz: %w", path, err)
	}
	if err = os.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// Sync commits the file to disk.
func (s *sharedFile) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.f.Sync()
}

// Close closes the file. Later writes fail with os.ErrClosed.
func (s *sharedFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
