package tools

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is an invocable, JSON-schema-described unit of work. CalculateRoute
// is exposed this way so it can be called uniformly from an MCP server or
// an LLM-driven co-pilot, not just from a dedicated UI.
type Tool struct {
	Name         string
	Description  string
	InputSchema  *jsonschema.Schema
	OutputSchema *jsonschema.Schema
	Handler      Handler[string, string]
}

// NewTool builds a Tool from a typed handler, inferring its JSON schemas
// from I and O and wrapping it with JSONAdapter so Tool.Handler stays
// string-in/string-out.
func NewTool[I, O any](name, description string, handler Handler[I, O]) (*Tool, error) {
	inputSchema, err := jsonschema.For[I](nil)
	if err != nil {
		return nil, err
	}
	outputSchema, err := jsonschema.For[O](nil)
	if err != nil {
		return nil, err
	}
	return &Tool{
		Name:         name,
		Description:  description,
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
		Handler:      JSONAdapter(handler),
	}, nil
}
