//go:build llama

package engine

import (
	"context"
	"errors"
	"runtime"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// LlamaBuilt indicates this binary was compiled with real llama support.
const LlamaBuilt = true

type llamaLoader struct{}

// NewLlamaLoader returns a Loader backed by the in-process go-llama.cpp binding.
func NewLlamaLoader() Loader { return llamaLoader{} }

func (llamaLoader) Load(path string, opts LoadOptions) (Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(opts.ContextSize),
		llama.SetGPULayers(opts.GPULayers),
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &llamaEngine{model: m, threads: threads}, nil
}

// llamaEngine owns the loaded model for the process lifetime.
type llamaEngine struct {
	model   *llama.LLama
	threads int
}

func (e *llamaEngine) Generate(ctx context.Context, prompt string, params Params) (Completion, error) {
	if e.model == nil {
		return Completion{}, errors.New("llama model not initialized")
	}
	// Predict runs to completion; the gateway never cancels a generation.
	text, err := e.model.Predict(prompt, predictOptions(params, e.threads)...)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: text}, nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts Params into go-llama.cpp options.
func predictOptions(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(threads),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(p.Temperature, llama.DefaultOptions.Temperature)),
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
