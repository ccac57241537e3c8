// Package telemetry logs pipeline and transport events. Metrics backends can
// hang off the same callbacks later.
package telemetry

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Hooks receives pipeline callbacks and writes them to a zerolog logger.
type Hooks struct {
	logger zerolog.Logger
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{logger: logger}
}

// OnSourceFetched records one loader fetch.
func (h *Hooks) OnSourceFetched(location string, size int, elapsed time.Duration, err error) {
	if err != nil {
		h.logger.Error().Str("source", location).Dur("duration", elapsed).Err(err).Msg("source fetch failed")
		return
	}
	h.logger.Info().Str("source", location).Int("bytes", size).Dur("duration", elapsed).Msg("source fetched")
}

// OnDashboardBuilt records one pipeline run.
func (h *Hooks) OnDashboardBuilt(period string, records int, elapsed time.Duration, err error) {
	if err != nil {
		h.logger.Error().Str("period", period).Dur("duration", elapsed).Err(err).Msg("dashboard build failed")
		return
	}
	h.logger.Info().Str("period", period).Int("records", records).Dur("duration", elapsed).Msg("dashboard built")
}

// OnHTTPRequest records one API request.
func (h *Hooks) OnHTTPRequest(method, path string, status int, elapsed time.Duration) {
	evt := h.logger.Info()
	if status >= 500 {
		evt = h.logger.Error()
	}
	evt.Str("method", method).Str("path", path).Int("status", status).Dur("duration", elapsed).Msg("http request served")
}

// MCPHooks adapts the callbacks to mcp-go server lifecycle hooks.
func (h *Hooks) MCPHooks() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session registered")
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session unregistered")
	})
	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		evt := h.logger.Info()
		if res != nil && res.IsError {
			evt = h.logger.Warn()
		}
		evt.Str("tool", req.Params.Name).Msg("tool call served")
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})
	return hooks
}
