// Package anthropic lets a rider describe a trip in plain language
// ("get me to the airport, avoiding downtown") and have Claude translate
// it into plan_route tool calls against a live dispatcher.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/go-kratos/bearing/tools"
)

const defaultMaxRounds = 4

// CoPilotConfig configures a CoPilot.
type CoPilotConfig struct {
	Logger    *slog.Logger
	Model     anthropic.Model
	MaxTokens int64
	MaxRounds int
	System    string
	// RequestOpts are passed straight through to anthropic.NewClient,
	// e.g. option.WithAPIKey for direct API access.
	RequestOpts []option.RequestOption
}

// CoPilot drives a single plan_route Tool through Claude's tool-calling
// loop: it sends the rider's request, and whenever Claude responds with a
// tool_use block for plan_route, invokes the tool's Handler directly
// (in-process, no MCP round trip needed for a single well-known tool) and
// feeds the result back until Claude produces a final text answer.
type CoPilot struct {
	cfg    CoPilotConfig
	client anthropic.Client
	tool   *tools.Tool
}

// NewCoPilot builds a CoPilot around routeTool, typically the result of
// tools.NewRouteTool bound to a live Dispatcher.
func NewCoPilot(routeTool *tools.Tool, cfg CoPilotConfig) *CoPilot {
	if cfg.Model == "" {
		cfg.Model = anthropic.ModelClaudeSonnet4_5
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.System == "" {
		cfg.System = "You are a routing co-pilot. Use the plan_route tool to compute " +
			"routes from coordinates the rider gives you, then summarize the result " +
			"in one or two sentences. Never invent a distance or result you didn't get from the tool."
	}
	return &CoPilot{
		cfg:    cfg,
		client: anthropic.NewClient(cfg.RequestOpts...),
		tool:   routeTool,
	}
}

// Ask runs the tool-calling loop for a single user request and returns
// Claude's final text reply.
func (a *CoPilot) Ask(ctx context.Context, request string) (string, error) {
	properties, required := schemaProperties(a.tool)
	claudeTool := anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        a.tool.Name,
			Description: anthropic.Opt(a.tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		},
	}

	msgs := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(request)),
	}

	for round := 0; round < a.cfg.MaxRounds; round++ {
		params := anthropic.MessageNewParams{
			Model:     a.cfg.Model,
			MaxTokens: a.cfg.MaxTokens,
			Messages:  msgs,
			Tools:     []anthropic.ToolUnionParam{claudeTool},
			System:    []anthropic.TextBlockParam{{Text: a.cfg.System}},
		}

		resp, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("anthropic: generating response: %w", err)
		}
		msgs = append(msgs, resp.ToParam())

		toolUseID, toolInput, hasToolUse := extractPlanRouteCall(resp, a.tool.Name)
		if !hasToolUse {
			return finalText(resp), nil
		}

		if a.cfg.Logger != nil {
			a.cfg.Logger.Info("anthropic: co-pilot calling plan_route", "round", round+1)
		}

		result, err := a.tool.Handler.Handle(ctx, string(toolInput))
		var toolResultText string
		isError := err != nil
		if err != nil {
			toolResultText = err.Error()
		} else {
			toolResultText = result
		}

		msgs = append(msgs, anthropic.NewUserMessage(
			anthropic.NewToolResultBlock(toolUseID, toolResultText, isError),
		))
	}

	return "", fmt.Errorf("anthropic: co-pilot exceeded %d tool-calling rounds without a final answer", a.cfg.MaxRounds)
}

func extractPlanRouteCall(resp *anthropic.Message, toolName string) (id string, input json.RawMessage, ok bool) {
	for _, blk := range resp.Content {
		tu := blk.AsToolUse()
		if tu.ID == "" || tu.Name != toolName {
			continue
		}
		return tu.ID, tu.Input, true
	}
	return "", nil, false
}

func finalText(resp *anthropic.Message) string {
	var out string
	for _, blk := range resp.Content {
		if text := blk.AsText(); text.Text != "" {
			out += text.Text
		}
	}
	return out
}

// schemaProperties extracts the plan_route input schema's JSON Schema
// properties and required fields, the shape anthropic.ToolInputSchemaParam
// wants.
func schemaProperties(tool *tools.Tool) (properties map[string]any, required []string) {
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil, nil
	}
	var decoded struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil
	}
	return decoded.Properties, decoded.Required
}
