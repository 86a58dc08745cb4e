// Package engine abstracts the local text-generation runtime.
//
// Build tags and runtimes:
//
//   - In-process llama (standard):
//     Uses the go-llama.cpp binding. Enabled with `-tags=llama`.
//     Files: llama.go, llama_cgo.go (linker rpath hints).
//   - Without the tag llama_stub.go is compiled; loading fails fast with a
//     an UnavailableError so CGO-free builds never serve a fake model.
package engine

import "context"

// Loader turns a model artifact on disk into a ready Engine.
type Loader interface {
	Load(path string, opts LoadOptions) (Engine, error)
}

// Engine runs one blocking generation. Implementations are not safe for
// concurrent use; callers serialize access.
type Engine interface {
	Generate(ctx context.Context, prompt string, params Params) (Completion, error)
}

// LoadOptions configure the engine when the model is loaded.
type LoadOptions struct {
	ContextSize int
	// GPULayers offloaded to an accelerator. Zero keeps inference on the CPU.
	GPULayers int
	Threads   int
}

// Params captures per-call generation parameters.
type Params struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
	Stop        []string
	Seed        int
}

// Completion is the engine output for one call.
type Completion struct {
	Text string
	// TotalTokens is prompt plus completion tokens, zero when the runtime
	// does not report usage.
	TotalTokens int
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string, opts LoadOptions) (Engine, error)

func (f LoaderFunc) Load(path string, opts LoadOptions) (Engine, error) { return f(path, opts) }
