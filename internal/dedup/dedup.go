// Package dedup suppresses repeated log records within a time window.
//
// A Filter remembers the last time each (level, message) pair was emitted.
// A repeat inside the window is suppressed; the first occurrence after the
// window has elapsed is emitted again. Memory is bounded: the cache is swept
// every SweepEvery calls or whenever it grows past Limit, first dropping
// entries older than twice the window and then, if still too large, keeping
// only the newest Limit/2 entries.
//
// Two distinct events that share text and level inside the window collapse
// into one.
package dedup

import (
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Defaults used when Options fields are zero.
const (
	DefaultWindow     = 5 * time.Second
	DefaultLimit      = 1000
	DefaultSweepEvery = 100
)

// Options configures a Filter.
type Options struct {
	Window     time.Duration
	Limit      int
	SweepEvery int
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

type entry struct {
	level    string
	lastSeen time.Time
}

// Filter is a bounded, time-windowed duplicate suppressor. It is safe for
// concurrent use.
type Filter struct {
	window     time.Duration
	limit      int
	sweepEvery int
	now        func() time.Time

	mu      sync.Mutex
	entries map[uint64]entry
	calls   int
}

// New creates a Filter, filling zero options with defaults.
func New(opts Options) *Filter {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = DefaultSweepEvery
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Filter{
		window:     opts.Window,
		limit:      opts.Limit,
		sweepEvery: opts.SweepEvery,
		now:        opts.Now,
		entries:    make(map[uint64]entry, opts.Limit/4),
	}
}

// ShouldEmit reports whether a record with this level and message should be
// written. A suppressed call does not refresh the entry, so a steady stream
// of duplicates is let through once per window.
func (f *Filter) ShouldEmit(level, message string) bool {
	if f == nil {
		return true
	}
	h := hash(level, message)
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.entries == nil {
		// Fail open on a zero Filter.
		f.entries = make(map[uint64]entry)
	}

	if e, ok := f.entries[h]; ok && now.Sub(e.lastSeen) < f.window {
		return false
	}
	f.entries[h] = entry{level: level, lastSeen: now}

	f.calls++
	if len(f.entries) > f.limit || f.calls >= f.sweepEvery {
		f.sweep(now)
		f.calls = 0
	}
	return true
}

// Len returns the number of cached entries.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Reset drops every cached entry.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.entries)
	f.calls = 0
}

// sweep evicts stale entries. The caller must hold the mutex.
func (f *Filter) sweep(now time.Time) {
	maxAge := 2 * f.window
	for h, e := range f.entries {
		if now.Sub(e.lastSeen) > maxAge {
			delete(f.entries, h)
		}
	}
	if len(f.entries) <= f.limit {
		return
	}

	type kv struct {
		h uint64
		e entry
	}
	all := make([]kv, 0, len(f.entries))
	for h, e := range f.entries {
		all = append(all, kv{h, e})
	}
	slices.SortFunc(all, func(a, b kv) int {
		return b.e.lastSeen.Compare(a.e.lastSeen)
	})

	keep := f.limit / 2
	fresh := make(map[uint64]entry, keep)
	for _, item := range all[:keep] {
		fresh[item.h] = item.e
	}
	f.entries = fresh
}

func hash(level, message string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(level)
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(message)
	return d.Sum64()
}
