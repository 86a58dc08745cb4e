package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"hypnosd/internal/config"
	"hypnosd/internal/conversation"
	"hypnosd/pkg/types"
)

type windowFlags struct {
	message          string
	personaFile      string
	contextSize      int
	generationTokens int
	headroom         int
}

// buildWindowCmd prints the prompt the gateway would send for a history file.
func buildWindowCmd() *cobra.Command {
	f := &windowFlags{}
	cmd := &cobra.Command{
		Use:   "window <history.json|->",
		Short: "Show which turns of a history fit the context window",
		Long: "Reads a JSON array of messages, or a /chat request body, normalizes it with the\n" +
			"persona and prints the engine prompt. The selection summary goes to stderr.",
		Example: "  hypnosd window history.json --message 'still awake'\n  cat req.json | hypnosd window -",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWindow(cmd, f, args[0])
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.message, "message", "", "User message appended after the history")
	fs.StringVar(&f.personaFile, "persona-file", "", "Persona text file (defaults to the built-in persona)")
	fs.IntVar(&f.contextSize, "context-size", config.DefaultContextSize, "Engine context size in tokens")
	fs.IntVar(&f.generationTokens, "generation-tokens", config.DefaultGenerationTokens, "Tokens reserved for the reply")
	fs.IntVar(&f.headroom, "headroom", conversation.DefaultHeadroom, "Safety margin in tokens; 0 disables it")
	return cmd
}

func runWindow(cmd *cobra.Command, f *windowFlags, src string) error {
	var r io.Reader = cmd.InOrStdin()
	if src != "-" {
		fh, err := os.Open(src)
		if err != nil {
			return err
		}
		defer fh.Close()
		r = fh
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	req, err := parseHistory(b)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	if f.message != "" {
		req.Message = &f.message
	}

	persona, err := config.Config{PersonaFile: f.personaFile}.WithDefaults().ResolvePersona()
	if err != nil {
		return err
	}
	var msg string
	if req.Message != nil {
		msg = *req.Message
	}
	h := conversation.Normalize(req.History, persona, msg)
	if req.Message == nil {
		// Inspect the history as is, without a new user turn.
		h = h[:len(h)-1]
	}
	b2 := conversation.Budget{Total: f.contextSize, Generation: f.generationTokens, Headroom: f.headroom}
	w := conversation.SelectWindow(h, b2)

	if _, err := io.WriteString(cmd.OutOrStdout(), w.Prompt()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "turns=%d kept=%d dropped=%d est_tokens=%d limit=%d\n",
		len(h)-1, len(w.Turns), w.Dropped, w.EstimatedTokens, b2.Limit())
	return nil
}

// parseHistory accepts a bare message array or a chat request object.
func parseHistory(b []byte) (types.ChatRequest, error) {
	var req types.ChatRequest
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		err := json.Unmarshal(b, &req.History)
		return req, err
	}
	err := json.Unmarshal(b, &req)
	return req, err
}
