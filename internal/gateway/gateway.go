// Package gateway runs one chat turn end to end: persona injection, context
// window selection, serialized generation and response assembly.
//
// The gateway keeps no per-conversation state. The only shared mutable state
// is the engine owned by the model handle and the Serializer gate in front of it.
package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"hypnosd/internal/conversation"
	"hypnosd/internal/engine"
	"hypnosd/pkg/types"
)

const (
	// ResetMessage is returned by Reset.
	ResetMessage = "Conversation reset"
	// MissingMessage rejects a chat request without a message field.
	MissingMessage = "Missing 'message' field"
)

// Handle exposes the loaded engine. *model.Lifecycle satisfies it.
type Handle interface {
	Ready() bool
	Engine() (engine.Engine, error)
}

// Config holds the fixed gateway parameters.
type Config struct {
	Persona string
	// ContextSize is the engine context window in tokens.
	ContextSize int
	// GenerationTokens is the reply budget reserved from the window.
	GenerationTokens int
	// Headroom zero means conversation.DefaultHeadroom.
	Headroom int
}

// Gateway serves chat turns against a single engine.
type Gateway struct {
	handle Handle
	cfg    Config
	ser    *Serializer
	log    zerolog.Logger
}

// New builds a Gateway. log may be zerolog.Nop().
func New(h Handle, cfg Config, log zerolog.Logger) *Gateway {
	if cfg.Headroom == 0 {
		cfg.Headroom = conversation.DefaultHeadroom
	}
	return &Gateway{
		handle: h,
		cfg:    cfg,
		ser:    NewSerializer(cfg.GenerationTokens, log),
		log:    log,
	}
}

// Ready reports whether the engine finished loading.
func (g *Gateway) Ready() bool { return g.handle.Ready() }

// Persona is the configured system prompt.
func (g *Gateway) Persona() string { return g.cfg.Persona }

// Budget is the context budget used for prompt selection.
func (g *Gateway) Budget() conversation.Budget {
	return conversation.Budget{Total: g.cfg.ContextSize, Generation: g.cfg.GenerationTokens, Headroom: g.cfg.Headroom}
}

// ChatResult is one completed turn.
type ChatResult struct {
	Response types.ChatResponse
	// Dropped counts history turns left out of the prompt.
	Dropped int
	// GenerationID identifies the engine call in logs.
	GenerationID string
}

// Chat runs one turn. The returned history is the full normalized history
// plus the reply; truncation only affects what the engine sees.
func (g *Gateway) Chat(ctx context.Context, req types.ChatRequest) (ChatResult, error) {
	if !g.handle.Ready() {
		return ChatResult{}, ErrNotReady
	}
	if req.Message == nil {
		return ChatResult{}, ValidationError{Msg: MissingMessage}
	}
	eng, err := g.handle.Engine()
	if err != nil {
		return ChatResult{}, ErrNotReady
	}

	history := conversation.Normalize(req.History, g.cfg.Persona, *req.Message)
	win := conversation.SelectWindow(history, g.Budget())
	promptTokens.Observe(float64(win.EstimatedTokens))
	if win.Dropped > 0 {
		droppedTurns.Add(float64(win.Dropped))
		g.log.Info().Int("dropped", win.Dropped).Int("kept", len(win.Turns)).Int("est_tokens", win.EstimatedTokens).Msg("history truncated")
	}

	gen, err := g.ser.Generate(ctx, eng, win.Prompt())
	if err != nil {
		return ChatResult{Dropped: win.Dropped, GenerationID: gen.ID}, err
	}

	history = append(history, types.Message{Role: types.RoleModel, Content: gen.Text})
	resp := types.ChatResponse{Response: gen.Text, History: history}
	if gen.TotalTokens > 0 {
		n := gen.TotalTokens
		resp.TokensUsed = &n
	}
	return ChatResult{Response: resp, Dropped: win.Dropped, GenerationID: gen.ID}, nil
}

// Reset returns a fresh history holding only the persona.
func (g *Gateway) Reset() types.ResetResponse {
	return types.ResetResponse{
		Message: ResetMessage,
		History: []types.Message{conversation.SystemMessage(g.cfg.Persona)},
	}
}
