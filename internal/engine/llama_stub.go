//go:build !llama

package engine

// No-CGO stub compiled when the 'llama' build tag is NOT set. Loading always
// fails so a binary without the runtime never reports a ready model.

// LlamaBuilt indicates this binary was compiled with real llama support.
const LlamaBuilt = false

type llamaLoader struct{}

// NewLlamaLoader returns a Loader that refuses to load without llama support.
func NewLlamaLoader() Loader { return llamaLoader{} }

func (llamaLoader) Load(path string, opts LoadOptions) (Engine, error) {
	return nil, &UnavailableError{Runtime: "llama", Reason: "support not built (missing 'llama' build tag)"}
}
