package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hypnosd/internal/engine"
)

type fakeEngine struct{}

func (fakeEngine) Generate(ctx context.Context, prompt string, p engine.Params) (engine.Completion, error) {
	return engine.Completion{Text: "ok"}, nil
}

// gatedLoader blocks Load until release is closed and records the path it got.
type gatedLoader struct {
	mu      sync.Mutex
	release chan struct{}
	path    string
	opts    engine.LoadOptions
	err     error
}

func (g *gatedLoader) Load(path string, opts engine.LoadOptions) (engine.Engine, error) {
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	g.path, g.opts = path, opts
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return fakeEngine{}, nil
}

func (g *gatedLoader) loadedPath() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path
}

func writeModel(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func noFatal(t *testing.T) Option {
	return WithFatalHandler(func(err error) { t.Errorf("unexpected fatal: %v", err) })
}

func TestLifecycle_NotReadyUntilLoaded(t *testing.T) {
	p := writeModel(t, t.TempDir(), "gemma.gguf")
	gl := &gatedLoader{release: make(chan struct{})}
	pub := NewMemoryPublisher()
	lc := New(Config{Source: p, Load: engine.LoadOptions{ContextSize: 2048}}, gl, WithPublisher(pub), noFatal(t))

	if lc.Ready() || lc.State() != StateUnloaded {
		t.Fatalf("fresh lifecycle should be unloaded")
	}
	lc.Start(context.Background())
	lc.Start(context.Background()) // second call is a no-op
	if lc.Ready() {
		t.Fatalf("ready before load finished")
	}
	if lc.State() != StateLoading {
		t.Fatalf("state=%s", lc.State())
	}
	if _, err := lc.Engine(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	close(gl.release)
	if err := lc.Wait(testCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !lc.Ready() || lc.State() != StateReady || lc.Path() != p {
		t.Fatalf("ready=%v state=%s path=%s", lc.Ready(), lc.State(), lc.Path())
	}
	if e, err := lc.Engine(); err != nil || e == nil {
		t.Fatalf("engine=%v err=%v", e, err)
	}
	if gl.opts.ContextSize != 2048 || gl.opts.GPULayers != 0 {
		t.Fatalf("load opts=%+v", gl.opts)
	}
	names := pub.Names()
	want := []string{"load_start", "resolve_done", "load_ready"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v", names)
	}
}

func TestLifecycle_DirectorySource(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "b.gguf")
	a := writeModel(t, dir, "a.gguf")
	gl := &gatedLoader{}
	lc := New(Config{Source: dir}, gl, noFatal(t))
	lc.Start(context.Background())
	if err := lc.Wait(testCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if gl.loadedPath() != a {
		t.Fatalf("loaded %q, want %q", gl.loadedPath(), a)
	}
}

func TestLifecycle_LoadFailureIsFatal(t *testing.T) {
	p := writeModel(t, t.TempDir(), "broken.gguf")
	got := make(chan error, 1)
	lc := New(Config{Source: p}, &gatedLoader{err: errors.New("bad magic")}, WithFatalHandler(func(err error) { got <- err }))
	lc.Start(context.Background())
	select {
	case err := <-got:
		var fe *FatalStartupError
		if !errors.As(err, &fe) || fe.Op != "load" {
			t.Fatalf("expected fatal load error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fatal handler not called")
	}
	if lc.Ready() {
		t.Fatalf("must not become ready after failure")
	}
}

func TestLifecycle_MissingLocalFileIsFatal(t *testing.T) {
	got := make(chan error, 1)
	lc := New(Config{Source: filepath.Join(t.TempDir(), "nope.gguf")}, &gatedLoader{}, WithFatalHandler(func(err error) { got <- err }))
	lc.Start(context.Background())
	select {
	case err := <-got:
		var fe *FatalStartupError
		if !errors.As(err, &fe) || fe.Op != "resolve" {
			t.Fatalf("expected fatal resolve error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fatal handler not called")
	}
}

func TestLifecycle_GCSPrefersMount(t *testing.T) {
	mount := t.TempDir()
	mp := writeModel(t, mount, filepath.Join("models-bucket", "gemma", "gemma-2b.gguf"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected download of %s", r.URL.Path)
	}))
	defer srv.Close()
	gl := &gatedLoader{}
	lc := New(Config{
		Source:          "gs://models-bucket/gemma/gemma-2b.gguf",
		MountDir:        mount,
		CacheDir:        t.TempDir(),
		StorageEndpoint: srv.URL,
	}, gl, noFatal(t))
	lc.Start(context.Background())
	if err := lc.Wait(testCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if gl.loadedPath() != mp {
		t.Fatalf("loaded %q, want mount path %q", gl.loadedPath(), mp)
	}
}

func TestLifecycle_GCSDownloadsIntoCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/models-bucket/gemma/gemma-2b.gguf" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("GGUF-weights"))
	}))
	defer srv.Close()
	cache := t.TempDir()
	pub := NewMemoryPublisher()
	cfg := Config{
		Source:          "gs://models-bucket/gemma/gemma-2b.gguf",
		MountDir:        t.TempDir(), // empty mount: falls through
		CacheDir:        cache,
		StorageEndpoint: srv.URL,
	}
	gl := &gatedLoader{}
	lc := New(cfg, gl, WithPublisher(pub), noFatal(t))
	lc.Start(context.Background())
	if err := lc.Wait(testCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}
	want := filepath.Join(cache, "gemma-2b.gguf")
	if gl.loadedPath() != want {
		t.Fatalf("loaded %q, want %q", gl.loadedPath(), want)
	}
	b, err := os.ReadFile(want)
	if err != nil || string(b) != "GGUF-weights" {
		t.Fatalf("cached file=%q err=%v", b, err)
	}
	if !strings.Contains(strings.Join(pub.Names(), ","), "download_start,download_done") {
		t.Fatalf("events=%v", pub.Names())
	}

	// A second process start finds the cached artifact without downloading.
	lc2 := New(cfg, &gatedLoader{}, noFatal(t))
	lc2.Start(context.Background())
	if err := lc2.Wait(testCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected a single download, got %d", n)
	}
}

func TestLifecycle_DownloadFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	cache := t.TempDir()
	got := make(chan error, 1)
	lc := New(Config{Source: srv.URL + "/m/gemma.gguf", CacheDir: cache}, &gatedLoader{}, WithFatalHandler(func(err error) { got <- err }))
	lc.Start(context.Background())
	select {
	case err := <-got:
		if !strings.Contains(err.Error(), "403") {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fatal handler not called")
	}
	entries, _ := os.ReadDir(cache)
	if len(entries) != 0 {
		t.Fatalf("cache should stay empty, found %d entries", len(entries))
	}
}

func TestLogPublisher_WritesDebugLines(t *testing.T) {
	var buf strings.Builder
	p := LogPublisher{Log: zerolog.New(&buf).Level(zerolog.DebugLevel)}
	p.Publish(Event{Name: "load_ready", Source: "/m/gemma.gguf", Fields: map[string]any{"dur_ms": 12}})
	out := buf.String()
	for _, want := range []string{`"event":"load_ready"`, `"source":"/m/gemma.gguf"`, `"dur_ms":12`, `"level":"debug"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}

	buf.Reset()
	LogPublisher{Log: zerolog.New(&buf).Level(zerolog.InfoLevel)}.Publish(Event{Name: "load_start"})
	if buf.Len() != 0 {
		t.Fatalf("debug event leaked at info level: %s", buf.String())
	}
}
