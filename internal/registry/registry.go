package registry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"

	"github.com/vinodismyname/salesdash/config"
)

// ToolProvider resolves MCP tool definitions.
type ToolProvider interface {
	Tools(context.Context) ([]mcp.Tool, error)
}

// Registry maintains tool definitions and the token budget applied to the
// plain-text summaries attached to tool results.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]mcp.Tool
	model  string
	budget int
	count  func(model, text string) int
}

// New constructs an empty Registry with the default summary budget.
func New() *Registry {
	return &Registry{
		tools:  map[string]mcp.Tool{},
		model:  config.DefaultSummaryModel,
		budget: config.DefaultSummaryTokens,
		count:  llms.CountTokens,
	}
}

// WithSummaryBudget sets the tokenizer model and the token budget for text
// summaries. Zero values keep the current settings.
func (r *Registry) WithSummaryBudget(model string, budget int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if model != "" {
		r.model = model
	}
	if budget > 0 {
		r.budget = budget
	}
}

// Register stores a tool definition for discovery.
func (r *Registry) Register(tool mcp.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = tool
}

// Get returns a tool by name when present.
func (r *Registry) Get(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns a stable-sorted list of registered tool definitions.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools, nil
}

// ModelContextSize exposes the model's context window.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}

// SummaryBudget is the configured budget, capped by the model's context window.
func (r *Registry) SummaryBudget() int {
	r.mu.RLock()
	model, budget := r.model, r.budget
	r.mu.RUnlock()
	return min(budget, r.ModelContextSize(model))
}

// FitSummary drops trailing lines from text until it fits the summary
// budget. truncated reports whether anything was dropped.
func (r *Registry) FitSummary(text string) (out string, truncated bool) {
	r.mu.RLock()
	model, count := r.model, r.count
	r.mu.RUnlock()
	budget := r.SummaryBudget()

	if count(model, text) <= budget {
		return text, false
	}
	const marker = "... (truncated)"
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for n := len(lines) - 1; n > 0; n-- {
		candidate := strings.Join(lines[:n], "\n") + "\n" + marker
		if count(model, candidate) <= budget {
			return candidate, true
		}
	}
	return marker, true
}
