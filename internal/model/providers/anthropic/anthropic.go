package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/harunnryd/kabu/internal/model/contract"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

type Provider struct {
	client anthropic.Client
}

func New(apiKey string) *Provider {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return "anthropic"
}

func (p *Provider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	system, messages := convertMessages(req.Messages)

	var tools []anthropic.ToolUnionParam
	if req.ToolChoice != contract.ToolChoiceNone {
		for _, t := range req.Tools {
			tool := anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: map[string]interface{}{}},
			}
			if t.Parameters != nil {
				if props, ok := t.Parameters["properties"].(map[string]interface{}); ok {
					tool.InputSchema = anthropic.ToolInputSchemaParam{Properties: props}
				}
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
		}
	}

	modelName := req.Model
	if modelName == "" {
		modelName = string(anthropic.ModelClaude3_7SonnetLatest)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: defaultMaxTokens,
		Messages:  messages,
		Tools:     tools,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	resp := &contract.CompletionResponse{}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += b.Text
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(b.Input)
			resp.ToolCalls = append(resp.ToolCalls, &contract.ToolCall{
				ID:    b.ID,
				Name:  b.Name,
				Input: string(inputJSON),
			})
		}
	}

	return resp, nil
}

// convertMessages maps contract messages onto anthropic turns. Assistant
// tool calls become tool_use blocks so the tool_result blocks that follow
// can reference their IDs; system text moves to the top-level param.
func convertMessages(msgs []contract.Message) ([]string, []anthropic.MessageParam) {
	var system []string
	var messages []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case contract.RoleSystem:
			system = append(system, m.Content)
		case contract.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" || len(m.ToolCalls) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(call.Input), &input); err != nil || input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case contract.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, messages
}
