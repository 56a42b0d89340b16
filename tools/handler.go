package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes a typed input and produces a typed output. Tool.Handler
// always operates on strings (the wire shape an agent or an MCP client
// sees); Handler[I, O] is the typed shape application code actually wants
// to write, bridged onto the wire by JSONAdapter.
type Handler[I, O any] interface {
	Handle(ctx context.Context, input I) (O, error)
}

// HandleFunc adapts a plain function to Handler.
type HandleFunc[I, O any] func(context.Context, I) (O, error)

// Handle implements Handler.
func (f HandleFunc[I, O]) Handle(ctx context.Context, input I) (O, error) {
	return f(ctx, input)
}

// JSONAdapter wraps a typed Handler[I, O] as a Handler[string, string]:
// the input string is JSON-decoded into I, the typed handler runs, and O
// is JSON-encoded back into the output string. This is the adapter
// NewTool uses to let callers write typed handlers while Tool.Handler stays
// string-in/string-out.
func JSONAdapter[I, O any](handler Handler[I, O]) Handler[string, string] {
	return HandleFunc[string, string](func(ctx context.Context, input string) (string, error) {
		var req I
		if err := json.Unmarshal([]byte(input), &req); err != nil {
			return "", fmt.Errorf("tools: decoding input: %w", err)
		}

		resp, err := handler.Handle(ctx, req)
		if err != nil {
			return "", err
		}

		out, err := json.Marshal(resp)
		if err != nil {
			return "", fmt.Errorf("tools: encoding output: %w", err)
		}
		return string(out), nil
	})
}
