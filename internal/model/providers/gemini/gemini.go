package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/harunnryd/kabu/internal/model/contract"

	"google.golang.org/genai"
)

type Provider struct {
	client *genai.Client
}

func New(apiKey string) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	contents := convertContents(req.Messages)

	var tools []*genai.Tool
	if req.ToolChoice != contract.ToolChoiceNone && len(req.Tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, t := range req.Tools {
			b, _ := json.Marshal(t.Parameters)
			var schema genai.Schema
			_ = json.Unmarshal(b, &schema)
			decls = append(decls, &genai.FunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: &schema})
		}
		tools = append(tools, &genai.Tool{FunctionDeclarations: decls})
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, &genai.GenerateContentConfig{Tools: tools})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	out := &contract.CompletionResponse{}
	if resp == nil {
		return out, nil
	}

	for _, fc := range resp.FunctionCalls() {
		argsJSON, _ := json.Marshal(fc.Args)
		id := fc.ID
		if id == "" {
			id = fc.Name
		}
		out.ToolCalls = append(out.ToolCalls, &contract.ToolCall{ID: id, Name: fc.Name, Input: string(argsJSON)})
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				out.Content += part.Text
			}
		}
	}

	return out, nil
}

// convertContents maps contract messages onto genai contents. Assistant tool
// calls become FunctionCall parts, and tool results resolve the function
// name from the call they answer: FunctionResponse.Name must match the
// declared function, not the provider's call ID.
func convertContents(msgs []contract.Message) []*genai.Content {
	callNames := map[string]string{}
	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case contract.RoleTool:
			var obj map[string]any
			_ = json.Unmarshal([]byte(m.Content), &obj)
			if obj == nil {
				obj = map[string]any{"output": m.Content}
			}
			name := callNames[m.ToolCallID]
			if name == "" {
				name = m.ToolCallID
			}
			contents = append(contents, &genai.Content{Role: "function", Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{ID: m.ToolCallID, Name: name, Response: obj}}}})
		case contract.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" || len(m.ToolCalls) == 0 {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				callNames[call.ID] = call.Name
				var args map[string]any
				_ = json.Unmarshal([]byte(call.Input), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: args}})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return contents
}
