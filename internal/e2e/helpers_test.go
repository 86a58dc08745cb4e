package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hypnosd/internal/engine"
	"hypnosd/internal/gateway"
	"hypnosd/internal/httpapi"
	"hypnosd/internal/model"
)

const apiKey = "e2e-key"

// scriptedEngine replies with a fixed text after delay and keeps every prompt.
type scriptedEngine struct {
	reply string
	used  int
	delay time.Duration

	mu        sync.Mutex
	prompts   []string
	intervals [][2]time.Time
}

func (e *scriptedEngine) Generate(ctx context.Context, prompt string, p engine.Params) (engine.Completion, error) {
	start := time.Now()
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	e.prompts = append(e.prompts, prompt)
	e.intervals = append(e.intervals, [2]time.Time{start, time.Now()})
	e.mu.Unlock()
	return engine.Completion{Text: e.reply, TotalTokens: e.used}, nil
}

func (e *scriptedEngine) lastPrompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.prompts) == 0 {
		return ""
	}
	return e.prompts[len(e.prompts)-1]
}

type stack struct {
	srv *httptest.Server
	lc  *model.Lifecycle
	eng *scriptedEngine
	// release unblocks the loader; nil when loading is immediate.
	release chan struct{}
}

type stackOpts struct {
	persona    string
	gatedLoad  bool
	engine     *scriptedEngine
	contextLen int
}

// newStack wires the real lifecycle, gateway and router around a fake engine
// loaded from a temporary .gguf file.
func newStack(t *testing.T, o stackOpts) *stack {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "gemma-2b-it.gguf")
	if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	if o.engine == nil {
		o.engine = &scriptedEngine{reply: "Try a warm shower before bed."}
	}
	if o.contextLen == 0 {
		o.contextLen = 2048
	}
	st := &stack{eng: o.engine}
	if o.gatedLoad {
		st.release = make(chan struct{})
	}
	loader := engine.LoaderFunc(func(path string, opts engine.LoadOptions) (engine.Engine, error) {
		if st.release != nil {
			<-st.release
		}
		return o.engine, nil
	})
	st.lc = model.New(model.Config{Source: dir, Load: engine.LoadOptions{ContextSize: o.contextLen}}, loader,
		model.WithFatalHandler(func(err error) { t.Errorf("unexpected fatal: %v", err) }))
	gw := gateway.New(st.lc, gateway.Config{Persona: o.persona, ContextSize: o.contextLen, GenerationTokens: 256}, zerolog.Nop())
	st.srv = httptest.NewServer(httpapi.NewMux(gw, httpapi.Options{APIKey: apiKey, Logger: zerolog.Nop()}))
	t.Cleanup(st.srv.Close)
	t.Cleanup(func() {
		if st.release != nil {
			select {
			case <-st.release:
			default:
				close(st.release)
			}
		}
	})

	st.lc.Start(context.Background())
	if !o.gatedLoad {
		st.waitReady(t)
	}
	return st
}

func (st *stack) waitReady(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := st.lc.Wait(ctx); err != nil {
		t.Fatalf("model never became ready: %v", err)
	}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url, auth string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("sleep ", n))
}
