//go:build !llama

package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStubLoaderFailsFast(t *testing.T) {
	if LlamaBuilt {
		t.Fatalf("stub compiled with LlamaBuilt=true")
	}
	e, err := NewLlamaLoader().Load("/models/gemma.gguf", LoadOptions{ContextSize: 2048})
	if err == nil || e != nil {
		t.Fatalf("expected load error, got engine=%v err=%v", e, err)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable runtime, got %T %v", err, err)
	}
	if !strings.HasPrefix(err.Error(), "llama support not built") {
		t.Fatalf("message=%q", err.Error())
	}
}

type echoEngine struct{}

func (echoEngine) Generate(ctx context.Context, prompt string, p Params) (Completion, error) {
	return Completion{Text: prompt}, nil
}

func TestLoaderFunc(t *testing.T) {
	var gotPath string
	var gotOpts LoadOptions
	l := LoaderFunc(func(path string, opts LoadOptions) (Engine, error) {
		gotPath, gotOpts = path, opts
		return echoEngine{}, nil
	})
	e, err := l.Load("m.gguf", LoadOptions{ContextSize: 2048, GPULayers: 0})
	if err != nil { t.Fatalf("load: %v", err) }
	if gotPath != "m.gguf" || gotOpts.ContextSize != 2048 { t.Fatalf("got %q %+v", gotPath, gotOpts) }
	c, _ := e.Generate(context.Background(), "hi", Params{})
	if c.Text != "hi" { t.Fatalf("text=%q", c.Text) }
}
