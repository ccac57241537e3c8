package dashboard

import (
	"context"
	"errors"

	"github.com/vinodismyname/salesdash/internal/sales"
	"github.com/vinodismyname/salesdash/internal/security"
	"github.com/vinodismyname/salesdash/internal/source"
	"github.com/vinodismyname/salesdash/internal/tabular"
	"github.com/vinodismyname/salesdash/pkg/mcperr"
)

// ErrorCode classifies a pipeline error for MCP and HTTP responses.
func ErrorCode(err error) mcperr.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return mcperr.Timeout
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.PermissionDenied
	case errors.Is(err, security.ErrUnsupportedExtension), errors.Is(err, source.ErrUnsupportedEncoding):
		return mcperr.UnsupportedFormat
	case errors.Is(err, source.ErrTooLarge):
		return mcperr.SourceTooBig
	case errors.Is(err, ErrTooManyRows):
		return mcperr.LimitExceeded
	case errors.Is(err, source.ErrFetch), errors.Is(err, source.ErrNoSource), errors.Is(err, security.ErrNotFound):
		return mcperr.FetchFailed
	case errors.Is(err, sales.ErrMissingColumn), errors.Is(err, sales.ErrUnknownSchema):
		return mcperr.SchemaMismatch
	case errors.Is(err, tabular.ErrNotText), errors.Is(err, sales.ErrInvalidNumber), errors.Is(err, sales.ErrInvalidRecord):
		return mcperr.ParseFailed
	}
	return mcperr.AnalysisFailed
}
