package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	kabuErrors "github.com/harunnryd/kabu/internal/errors"
	"github.com/harunnryd/kabu/internal/logger"
	"github.com/harunnryd/kabu/internal/model"
	"github.com/harunnryd/kabu/internal/model/contract"
)

// Summarizer condenses one conversation segment into a single summary
// message. It runs on the inference model: summarization is mechanical
// extraction, not deep reasoning.
type Summarizer struct {
	gateway model.Gateway
}

func NewSummarizer(gateway model.Gateway) *Summarizer {
	return &Summarizer{gateway: gateway}
}

// Compact formats the segment transcript, asks the model for a summary, and
// returns it as an assistant message along with the tool names seen in the
// segment. Callers apply it via Conversation.CompactSegment.
func (s *Summarizer) Compact(ctx context.Context, messages []contract.Message) (contract.Message, []string, error) {
	transcript, toolsUsed := formatTranscript(messages)
	if transcript == "" {
		return contract.Message{}, nil, kabuErrors.InvalidInput("nothing to summarize")
	}

	request := []contract.Message{
		{Role: contract.RoleSystem, Content: summarizerSystemPrompt},
		{Role: contract.RoleUser, Content: "Please summarize the following conversation history:\n\n" + transcript},
	}

	result, err := s.gateway.Infer(ctx, model.ModeInference, request, nil, contract.ToolChoiceNone)
	if err != nil {
		return contract.Message{}, nil, fmt.Errorf("summarize segment: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return contract.Message{}, nil, kabuErrors.InvalidModelOutput("summarizer returned no text")
	}

	slog.Debug("Segment summarized",
		"original_runes", len(transcript),
		"summary_runes", len(result.Text),
		"run_id", logger.GetRunID(ctx))

	summary := contract.Message{
		Role:    contract.RoleAssistant,
		Content: "[Conversation summary] " + result.Text,
	}
	return summary, toolsUsed, nil
}

// formatTranscript renders a segment as plain text for the summarizer,
// skipping system messages, and collects the tool names that appeared.
func formatTranscript(messages []contract.Message) (string, []string) {
	var lines []string
	seen := map[string]bool{}
	var toolsUsed []string

	for _, msg := range messages {
		switch msg.Role {
		case contract.RoleSystem:
			continue
		case contract.RoleUser:
			lines = append(lines, "USER: "+msg.Content)
		case contract.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				names := make([]string, 0, len(msg.ToolCalls))
				for _, call := range msg.ToolCalls {
					names = append(names, call.Name)
					if !seen[call.Name] {
						seen[call.Name] = true
						toolsUsed = append(toolsUsed, call.Name)
					}
				}
				if msg.Content != "" {
					lines = append(lines, "ASSISTANT: "+msg.Content)
				}
				lines = append(lines, "ASSISTANT: [Called tools: "+strings.Join(names, ", ")+"]")
			} else if msg.Content != "" {
				lines = append(lines, "ASSISTANT: "+msg.Content)
			}
		case contract.RoleTool:
			lines = append(lines, "TOOL RESULT: "+msg.Content)
		}
	}

	return strings.Join(lines, "\n"), toolsUsed
}
