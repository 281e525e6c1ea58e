package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	kabuErrors "github.com/harunnryd/kabu/internal/errors"
	"github.com/harunnryd/kabu/internal/model/contract"
)

// Tool represents an executable capability advertised to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// Registry holds all available tools keyed by normalized name.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Name collisions are an error, not a silent
// overwrite: two tools answering to one name would make dispatch ambiguous.
func (r *Registry) Register(t Tool) error {
	name := NormalizeToolName(t.Name())
	if name == "" {
		return kabuErrors.InvalidInput("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return kabuErrors.DuplicateTool(fmt.Sprintf("tool %q already registered", name))
	}

	r.tools[name] = t
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	name = NormalizeToolName(name)
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in deterministic order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.tools)
}

// Descriptors returns the tool definitions advertised to the gateway,
// sorted by name.
func (r *Registry) Descriptors() []contract.ToolDef {
	names := r.Names()
	defs := make([]contract.ToolDef, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, contract.ToolDef{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

func NormalizeToolName(name string) string {
	return strings.TrimSpace(name)
}
