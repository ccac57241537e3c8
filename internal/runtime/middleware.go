package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/salesdash/pkg/mcperr"
)

// Middleware enforces runtime limits for MCP tool calls and HTTP requests.
// It bounds global concurrency and applies an operation timeout to each call.
type Middleware struct {
	ctrl *Controller
}

// NewMiddleware constructs a Middleware bound to the provided Controller.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl}
}

func (m *Middleware) acquire(ctx context.Context) error {
	if m.ctrl.limits.AcquireRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.ctrl.limits.AcquireRequestTimeout)
		defer cancel()
	}
	return m.ctrl.AcquireRequest(ctx)
}

func (m *Middleware) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.ctrl.limits.OperationTimeout > 0 {
		return context.WithTimeout(ctx, m.ctrl.limits.OperationTimeout)
	}
	return ctx, func() {}
}

func (m *Middleware) busyMessage() string {
	return fmt.Sprintf("concurrent request limit reached (max=%d)", m.ctrl.limits.MaxConcurrentRequests)
}

// ToolMiddleware implements mcp-go's tool handler middleware interface.
// It acquires a request slot, applies a timeout, and guarantees release.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := m.acquire(ctx); err != nil {
			return mcperr.New(mcperr.BusyResource, m.busyMessage()), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx, cancel := m.withTimeout(ctx)
		defer cancel()

		res, err := next(callCtx, req)

		// A deadline surfaced by the handler becomes a tool-level timeout.
		if errors.Is(err, context.DeadlineExceeded) || (errors.Is(callCtx.Err(), context.DeadlineExceeded) && err == nil && res == nil) {
			return mcperr.New(mcperr.Timeout, "operation exceeded configured time limit"), nil
		}
		return res, err
	}
}

// HTTPMiddleware is the echo counterpart of ToolMiddleware. Saturation maps
// to 503 and an expired operation deadline to 504.
func (m *Middleware) HTTPMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if err := m.acquire(req.Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, mcperr.Text(mcperr.BusyResource, m.busyMessage()))
		}
		defer m.ctrl.ReleaseRequest()

		callCtx, cancel := m.withTimeout(req.Context())
		defer cancel()
		c.SetRequest(req.WithContext(callCtx))

		err := next(c)
		if errors.Is(err, context.DeadlineExceeded) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, mcperr.Text(mcperr.Timeout, "operation exceeded configured time limit"))
		}
		return err
	}
}
