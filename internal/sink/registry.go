// Package sink manages the per-scenario log files.
//
// Every scenario owns a Pair of rotating files: a general sink and an
// error-only sink. Pairs are created lazily, exactly once per process, by
// Registry.GetOrCreateSinks. The Global pair always exists and receives
// every record.
//
// Layout under the log root:
//
//	global.log
//	global_error.log
//	<scenario>/<scenario>.log
//	<scenario>/<scenario>_error.log
//
// A pair whose directory or files cannot be written is degraded: a single
// diagnostic goes to the console and the pair drops all further writes, so
// records for that scenario reach the console only.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/scenariolog/internal/scenario"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// ErrRegistryClosed is returned by Sync after Close.
var ErrRegistryClosed = errors.New("sink registry closed")

// Defaults for buffered writes.
const (
	DefaultBufferSize    = 256 * 1024
	DefaultFlushInterval = time.Second
)

// Options configures a Registry.
type Options struct {
	// Root is the log directory, e.g. "logs".
	Root string

	// Policy controls rotation of every file.
	Policy Policy

	// Encoder formats file records. It is cloned per file.
	Encoder zapcore.Encoder

	// Level is the minimum level of general sinks. Error sinks always
	// accept ERROR and above.
	Level zapcore.LevelEnabler

	// FlushInterval > 0 buffers writes and flushes them in the background at
	// this interval or when BufferSize is reached. Zero writes through.
	FlushInterval time.Duration
	BufferSize    int

	// Open creates the underlying writer. Defaults to Open.
	Open Opener

	// Diagnostics receives the one-line warning for a degraded pair.
	// Defaults to os.Stderr.
	Diagnostics io.Writer

	// OnCreate runs once for each new pair, including Global.
	OnCreate func(*Pair)

	// OnDegraded runs once when a pair is degraded.
	OnDegraded func(key scenario.Key, err error)
}

// Registry is the process-wide scenario to Pair map. It is safe for
// concurrent use.
type Registry struct {
	opts   Options
	diagMu sync.Mutex

	mu     sync.Mutex
	pairs  map[scenario.Key]*Pair
	global *Pair
	closed bool
}

// Pair holds the two sinks of one scenario. General or Error is nil when
// the pair is degraded.
type Pair struct {
	Key     scenario.Key
	Dir     string
	General zapcore.Core
	Error   zapcore.Core

	degraded atomic.Bool
	files    []*file
}

// Degraded reports whether the pair has fallen back to console-only.
func (p *Pair) Degraded() bool { return p.degraded.Load() }

// Paths returns the files of the pair, general first.
func (p *Pair) Paths() []string {
	paths := make([]string, 0, len(p.files))
	for _, f := range p.files {
		paths = append(paths, f.path)
	}
	return paths
}

type file struct {
	path string
	w    io.WriteCloser
	g    *guard
	buf  *zapcore.BufferedWriteSyncer
	ws   zapcore.WriteSyncer
}

// NewRegistry creates a Registry and its Global pair. It never fails: a
// Global pair that cannot be opened is degraded.
func NewRegistry(opts Options) *Registry {
	if opts.Root == "" {
		opts.Root = "logs"
	}
	if opts.Open == nil {
		opts.Open = Open
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = os.Stderr
	}
	if opts.Level == nil {
		opts.Level = zapcore.InfoLevel
	}
	if opts.Encoder == nil {
		opts.Encoder = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey: "msg", LevelKey: "level", TimeKey: "ts",
			EncodeLevel: zapcore.CapitalLevelEncoder, EncodeTime: zapcore.ISO8601TimeEncoder,
		})
	}
	if opts.FlushInterval > 0 && opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	r := &Registry{
		opts:  opts,
		pairs: make(map[scenario.Key]*Pair),
	}
	r.global = r.create(scenario.Global, opts.Root, "global")
	return r
}

// Global returns the Global pair.
func (r *Registry) Global() *Pair { return r.global }

// GetOrCreateSinks returns the pair for k, creating its directory and files
// on first use. Concurrent callers for the same key get the same pair and
// the files are opened once. Global, or an empty key, returns the Global
// pair. After Close it returns a degraded pair that drops everything.
func (r *Registry) GetOrCreateSinks(k scenario.Key) *Pair {
	if k.IsGlobal() {
		return r.global
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		p := &Pair{Key: k}
		p.degraded.Store(true)
		return p
	}
	if p, ok := r.pairs[k]; ok {
		return p
	}
	name := scenario.SafeName(k)
	p := r.create(k, filepath.Join(r.opts.Root, name), name)
	r.pairs[k] = p
	return p
}

// Lookup returns an existing pair without creating one.
func (r *Registry) Lookup(k scenario.Key) (*Pair, bool) {
	if k.IsGlobal() {
		return r.global, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pairs[k]
	return p, ok
}

// Keys returns the scenarios with a pair, sorted, excluding Global.
func (r *Registry) Keys() []scenario.Key {
	r.mu.Lock()
	keys := make([]scenario.Key, 0, len(r.pairs))
	for k := range r.pairs {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	slices.Sort(keys)
	return keys
}

// Sync flushes buffered records of every pair to disk.
func (r *Registry) Sync() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	pairs := r.snapshot()
	r.mu.Unlock()

	var err error
	for _, p := range pairs {
		for _, f := range p.files {
			err = multierr.Append(err, f.ws.Sync())
		}
	}
	return err
}

// Close flushes and closes every file. Later GetOrCreateSinks calls return
// degraded pairs. Close is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pairs := r.snapshot()
	r.mu.Unlock()

	var err error
	for _, p := range pairs {
		for _, f := range p.files {
			if f.buf != nil {
				err = multierr.Append(err, f.buf.Stop())
			}
			err = multierr.Append(err, f.g.close())
		}
	}
	return err
}

// snapshot returns Global plus every scenario pair. The caller must hold mu.
func (r *Registry) snapshot() []*Pair {
	pairs := make([]*Pair, 0, len(r.pairs)+1)
	pairs = append(pairs, r.global)
	for _, p := range r.pairs {
		pairs = append(pairs, p)
	}
	return pairs
}

// create builds a pair in dir with files <base>.log and <base>_error.log.
func (r *Registry) create(k scenario.Key, dir, base string) *Pair {
	p := &Pair{Key: k, Dir: dir}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.degrade(p, fmt.Errorf("creating %s: %w", dir, err))
		return p
	}

	general, err := r.openFile(p, filepath.Join(dir, base+".log"))
	if err != nil {
		r.degrade(p, err)
		return p
	}
	errorOnly, err := r.openFile(p, filepath.Join(dir, base+"_error.log"))
	if err != nil {
		_ = general.w.Close()
		r.degrade(p, err)
		return p
	}

	p.files = []*file{general, errorOnly}
	p.General = zapcore.NewCore(r.opts.Encoder.Clone(), general.ws, r.opts.Level)
	p.Error = zapcore.NewCore(r.opts.Encoder.Clone(), errorOnly.ws, zapcore.ErrorLevel)

	if r.opts.OnCreate != nil {
		r.opts.OnCreate(p)
	}
	return p
}

func (r *Registry) openFile(p *Pair, path string) (*file, error) {
	w, err := r.opts.Open(path, r.opts.Policy)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	g := &guard{pair: p, path: path, w: w, report: r.degrade}
	f := &file{path: path, w: w, g: g}
	var ws zapcore.WriteSyncer = g
	if r.opts.FlushInterval > 0 {
		f.buf = &zapcore.BufferedWriteSyncer{
			WS:            ws,
			Size:          r.opts.BufferSize,
			FlushInterval: r.opts.FlushInterval,
		}
		ws = f.buf
	}
	f.ws = ws
	return f, nil
}

// degrade marks p console-only and reports it once.
func (r *Registry) degrade(p *Pair, err error) {
	if !p.degraded.CompareAndSwap(false, true) {
		return
	}
	r.diagMu.Lock()
	fmt.Fprintf(r.opts.Diagnostics,
		"scenariolog: WARNING file logging disabled for scenario %q, using console only: %v\n", p.Key, err)
	r.diagMu.Unlock()
	if r.opts.OnDegraded != nil {
		r.opts.OnDegraded(p.Key, err)
	}
}

// guard turns write failures into pair degradation. Writes after the first
// failure are dropped and errors are never returned to zap. Writes that
// race with close are dropped too, so a closed writer is never reopened.
type guard struct {
	pair   *Pair
	path   string
	w      io.WriteCloser
	report func(*Pair, error)

	mu     sync.RWMutex
	closed bool
}

func (g *guard) Write(b []byte) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed || g.pair.degraded.Load() {
		return len(b), nil
	}
	if _, err := g.w.Write(b); err != nil {
		g.report(g.pair, fmt.Errorf("writing %s: %w", g.path, err))
	}
	return len(b), nil
}

func (g *guard) Sync() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed || g.pair.degraded.Load() {
		return nil
	}
	if s, ok := g.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// close waits for in-flight writes, then closes the writer.
func (g *guard) close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.w.Close()
}
