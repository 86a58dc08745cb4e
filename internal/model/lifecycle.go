// Package model owns the single inference engine of the process.
//
// A Lifecycle is created unloaded, loads once on a background goroutine after
// Start, and stays ready for the rest of the process. There is no unload path.
// Load failures are fatal: a half-initialized engine is never served.
package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"hypnosd/internal/common/fsutil"
	"hypnosd/internal/engine"
)

// State is the lifecycle position of the engine.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
)

// ErrNotReady is returned by Engine before the load completes.
var ErrNotReady = errors.New("model not ready")

// FatalStartupError wraps a failure that must terminate the process.
type FatalStartupError struct {
	Op  string
	Err error
}

func (e *FatalStartupError) Error() string { return "model " + e.Op + ": " + e.Err.Error() }
func (e *FatalStartupError) Unwrap() error { return e.Err }

// Config locates and configures the model.
type Config struct {
	// Source is a local path, a directory of *.gguf files, gs://bucket/object or an http(s) URL.
	Source string
	// CacheDir receives downloaded artifacts.
	CacheDir string
	// MountDir is a gcsfuse-style mount checked before downloading gs:// sources.
	MountDir string
	// StorageEndpoint overrides DefaultStorageEndpoint.
	StorageEndpoint string
	Load            engine.LoadOptions
}

// Lifecycle is the process-wide model handle.
type Lifecycle struct {
	cfg       Config
	loader    engine.Loader
	fetcher   *Fetcher
	log       zerolog.Logger
	publisher EventPublisher
	fatal     func(error)

	started atomic.Bool
	ready   atomic.Bool
	readyCh chan struct{}

	mu    sync.RWMutex
	state State
	eng   engine.Engine
	path  string
}

// Option customizes a Lifecycle.
type Option func(*Lifecycle)

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option { return func(lc *Lifecycle) { lc.log = l } }

// WithPublisher sets the event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(lc *Lifecycle) {
		if p != nil {
			lc.publisher = p
		}
	}
}

// WithFatalHandler replaces the default exit-on-failure behavior. Tests use
// it to observe load failures.
func WithFatalHandler(f func(error)) Option { return func(lc *Lifecycle) { lc.fatal = f } }

// WithFetcher replaces the download client.
func WithFetcher(f *Fetcher) Option { return func(lc *Lifecycle) { lc.fetcher = f } }

// New returns an unloaded Lifecycle.
func New(cfg Config, loader engine.Loader, opts ...Option) *Lifecycle {
	lc := &Lifecycle{
		cfg:       cfg,
		loader:    loader,
		log:       zerolog.Nop(),
		publisher: noopPublisher{},
		readyCh:   make(chan struct{}),
		state:     StateUnloaded,
	}
	for _, o := range opts {
		o(lc)
	}
	if lc.fetcher == nil {
		lc.fetcher = NewFetcher(lc.log)
	}
	if lc.fatal == nil {
		lc.fatal = func(err error) {
			lc.log.Error().Err(err).Msg("model load failed")
			os.Exit(1)
		}
	}
	return lc
}

// Start spawns the background load and returns immediately. Only the first
// call has an effect.
func (lc *Lifecycle) Start(ctx context.Context) {
	if !lc.started.CompareAndSwap(false, true) {
		return
	}
	lc.setState(StateLoading)
	go lc.run(ctx)
}

func (lc *Lifecycle) run(ctx context.Context) {
	start := time.Now()
	lc.log.Info().Str("source", lc.cfg.Source).Msg("model load start")
	lc.publisher.Publish(Event{Name: "load_start", Source: lc.cfg.Source, Fields: map[string]any{}})

	p, err := lc.resolve(ctx)
	if err != nil {
		lc.fail(&FatalStartupError{Op: "resolve", Err: err})
		return
	}
	lc.publisher.Publish(Event{Name: "resolve_done", Source: lc.cfg.Source, Fields: map[string]any{"path": p}})

	eng, err := lc.loader.Load(p, lc.cfg.Load)
	if err != nil {
		lc.fail(&FatalStartupError{Op: "load", Err: err})
		return
	}
	if eng == nil {
		lc.fail(&FatalStartupError{Op: "load", Err: errors.New("loader returned no engine")})
		return
	}

	dur := time.Since(start)
	lc.log.Info().Str("path", p).Int("ctx", lc.cfg.Load.ContextSize).Int("gpu_layers", lc.cfg.Load.GPULayers).Dur("dur", dur).Msg("model ready")
	lc.publisher.Publish(Event{Name: "load_ready", Source: lc.cfg.Source, Fields: map[string]any{"path": p, "dur_ms": int(dur / time.Millisecond)}})

	lc.mu.Lock()
	lc.eng = eng
	lc.path = p
	lc.state = StateReady
	lc.mu.Unlock()
	lc.ready.Store(true)
	close(lc.readyCh)
}

func (lc *Lifecycle) fail(err error) {
	lc.publisher.Publish(Event{Name: "load_failed", Source: lc.cfg.Source, Fields: map[string]any{"error": err.Error()}})
	lc.fatal(err)
}

// resolve maps the configured source to a local file, downloading it when needed.
func (lc *Lifecycle) resolve(ctx context.Context) (string, error) {
	src, err := ParseSource(lc.cfg.Source)
	if err != nil {
		return "", err
	}
	if !src.Remote() {
		return resolveLocal(src.Path)
	}
	if mp := src.MountPath(lc.cfg.MountDir); mp != "" && fsutil.IsRegularFile(mp) {
		lc.log.Info().Str("path", mp).Msg("model found on mounted storage")
		return mp, nil
	}
	cacheDir, err := fsutil.ExpandHome(lc.cfg.CacheDir)
	if err != nil {
		return "", err
	}
	if cacheDir == "" {
		return "", fmt.Errorf("no cache dir configured for remote source %s", src.Raw)
	}
	dest := filepath.Join(cacheDir, src.FileName())
	if fsutil.IsRegularFile(dest) {
		lc.log.Info().Str("path", dest).Msg("model found in download cache")
		return dest, nil
	}

	u := src.DownloadURL(lc.cfg.StorageEndpoint)
	lc.log.Info().Str("url", u).Str("dest", dest).Msg("model download start")
	lc.publisher.Publish(Event{Name: "download_start", Source: src.Raw, Fields: map[string]any{"url": u}})
	n, err := lc.fetcher.Download(ctx, u, dest)
	if err != nil {
		return "", err
	}
	lc.publisher.Publish(Event{Name: "download_done", Source: src.Raw, Fields: map[string]any{"bytes": n}})
	return dest, nil
}

func (lc *Lifecycle) setState(s State) {
	lc.mu.Lock()
	lc.state = s
	lc.mu.Unlock()
}

// Ready reports whether the engine is loaded. It never blocks.
func (lc *Lifecycle) Ready() bool { return lc.ready.Load() }

// State returns the current lifecycle state.
func (lc *Lifecycle) State() State {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.state
}

// Path is the resolved local artifact, empty until ready.
func (lc *Lifecycle) Path() string {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.path
}

// Engine returns the loaded engine or ErrNotReady.
func (lc *Lifecycle) Engine() (engine.Engine, error) {
	if !lc.ready.Load() {
		return nil, ErrNotReady
	}
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.eng, nil
}

// Wait blocks until the engine is ready or ctx is done. Request handlers must
// not call it.
func (lc *Lifecycle) Wait(ctx context.Context) error {
	select {
	case <-lc.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
