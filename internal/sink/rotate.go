package sink

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Policy controls log rotation.
type Policy struct {
	// MaxSizeMB rotates a file once it would grow past this size.
	MaxSizeMB int
	// MaxAge deletes rotated files older than this. Zero keeps them.
	MaxAge time.Duration
	// MaxBackups caps the number of rotated files. Zero keeps all.
	MaxBackups int
	// Compress gzips rotated files.
	Compress bool
	// Exclusive selects OpenExclusive over OpenRotating in the default
	// opener.
	Exclusive bool
}

// DefaultPolicy rotates at 10MB, keeps 30 days and compresses backups.
func DefaultPolicy() Policy {
	return Policy{
		MaxSizeMB: 10,
		MaxAge:    30 * 24 * time.Hour,
		Compress:  true,
	}
}

// maxAgeDays rounds MaxAge up to whole days, the unit lumberjack uses.
func (p Policy) maxAgeDays() int {
	if p.MaxAge <= 0 {
		return 0
	}
	return int(math.Ceil(p.MaxAge.Hours() / 24))
}

// Opener creates the writer behind one log file.
type Opener func(path string, p Policy) (io.WriteCloser, error)

// Open is the default Opener: OpenExclusive when p.Exclusive is set,
// OpenRotating otherwise.
func Open(path string, p Policy) (io.WriteCloser, error) {
	if p.Exclusive {
		return OpenExclusive(path, p)
	}
	return OpenRotating(path, p)
}

// OpenExclusive opens path in append mode to surface permission problems
// immediately, then hands it to a lumberjack rotating writer. Lumberjack
// assumes it is the only writer of path: after a rotation it truncates the
// new file and writes at its own offset. Use it only when no other process
// logs to the same root; OpenRotating is safe for shared roots.
func OpenExclusive(path string, p Policy) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    p.MaxSizeMB,
		MaxAge:     p.maxAgeDays(),
		MaxBackups: p.MaxBackups,
		Compress:   p.Compress,
		LocalTime:  true,
	}, nil
}

// backupPattern matches lumberjack backups: name-2006-01-02T15-04-05.000.log[.gz].
var backupPattern = regexp.MustCompile(`-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}\.\d{3}\.log(\.gz)?$`)

// IsBackup reports whether name is a rotated log file.
func IsBackup(name string) bool {
	return backupPattern.MatchString(filepath.Base(name))
}

// Prune removes rotated files under root and returns their paths. With all
// set it removes everything under root instead, keeping root itself.
func Prune(root string, all bool) ([]string, error) {
	if all {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("reading log root: %w", err)
		}
		removed := make([]string, 0, len(entries))
		for _, e := range entries {
			p := filepath.Join(root, e.Name())
			if err := os.RemoveAll(p); err != nil {
				return removed, fmt.Errorf("removing %s: %w", p, err)
			}
			removed = append(removed, p)
		}
		return removed, nil
	}

	var removed []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !IsBackup(d.Name()) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("removing %s: %w", p, err)
		}
		removed = append(removed, p)
		return nil
	})
	return removed, err
}
