package registry

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExportToolFilter hides tools that write files unless exports are enabled
// (security.enable_export or SALESDASH_ENABLE_EXPORT=true).
type ExportToolFilter struct {
	allowExports bool
}

// NewExportToolFilter constructs a filter.
func NewExportToolFilter(allowExports bool) *ExportToolFilter {
	return &ExportToolFilter{allowExports: allowExports}
}

// Enabled reports whether write tools are visible.
func (f *ExportToolFilter) Enabled() bool { return f.allowExports }

// FilterTools implements server tool filtering semantics. When exports are
// disabled, tools prefixed export_ or write_ are excluded from discovery.
func (f *ExportToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowExports {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		name := strings.ToLower(t.Name)
		if strings.HasPrefix(name, "export_") || strings.HasPrefix(name, "write_") {
			continue
		}
		out = append(out, t)
	}
	return out
}
