package mcperr

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation        Code = "VALIDATION"
	SnapshotNotFound  Code = "SNAPSHOT_NOT_FOUND"
	SeriesNotFound    Code = "SERIES_NOT_FOUND"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"

	// Resource & Limits
	BusyResource  Code = "BUSY_RESOURCE"
	Timeout       Code = "TIMEOUT"
	LimitExceeded Code = "LIMIT_EXCEEDED"
	SourceTooBig  Code = "SOURCE_TOO_LARGE"

	// IO & Formats
	FetchFailed       Code = "FETCH_FAILED"
	ParseFailed       Code = "PARSE_FAILED"
	SchemaMismatch    Code = "SCHEMA_MISMATCH"
	ExportFailed      Code = "EXPORT_FAILED"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"

	// Analysis
	AnalysisFailed Code = "ANALYSIS_FAILED"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:        {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry", "Periods use YYYY-MM"}},
	SnapshotNotFound:  {Code: SnapshotNotFound, Message: "dashboard snapshot not found or expired", Retryable: true, NextSteps: []string{"Call sales_dashboard again to build a fresh snapshot"}},
	SeriesNotFound:    {Code: SeriesNotFound, Message: "series not found in snapshot", Retryable: true, NextSteps: []string{"Use one of the series names listed by sales_dashboard"}},
	CursorInvalid:     {Code: CursorInvalid, Message: "cursor is invalid for current context", Retryable: true, NextSteps: []string{"Restart paging from the first page"}},
	CursorBuildFailed: {Code: CursorBuildFailed, Message: "failed to encode next page cursor", Retryable: true, NextSteps: []string{"Retry with a smaller page size"}},

	BusyResource:  {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:       {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Check source availability or increase fetch.timeout"}},
	LimitExceeded: {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: false, NextSteps: []string{"Reduce source size or raise the row limit"}},
	SourceTooBig:  {Code: SourceTooBig, Message: "source exceeds configured size", Retryable: false, NextSteps: []string{"Split the file or raise fetch.max_bytes"}},

	FetchFailed:       {Code: FetchFailed, Message: "failed to fetch source data", Retryable: true, NextSteps: []string{"Verify the source URL or path and retry"}},
	ParseFailed:       {Code: ParseFailed, Message: "failed to parse source data", Retryable: false, NextSteps: []string{"Check the file encoding (utf-8 or shift_jis)", "Disable strict_numbers to coerce bad cells to zero"}},
	SchemaMismatch:    {Code: SchemaMismatch, Message: "source headers do not match the configured schema", Retryable: false, NextSteps: []string{"Select schema canonical, ja, or provide custom columns"}},
	ExportFailed:      {Code: ExportFailed, Message: "failed to export dashboard", Retryable: false, NextSteps: []string{"Verify the output path is inside an allowed directory"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported source format", Retryable: false, NextSteps: []string{"Provide .csv or .xlsx sources"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},

	AnalysisFailed: {Code: AnalysisFailed, Message: "analysis failed", Retryable: true, NextSteps: []string{"Verify periods exist in the sales source"}},
}

// Lookup returns the catalog entry for a code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	code, msg, _ := strings.Cut(t, ":")
	return mcp.NewToolResultError(normalize(Code(strings.TrimSpace(code)), strings.TrimSpace(msg)))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// Text returns the normalized message without wrapping it in a tool result.
// The HTTP API reuses it for JSON error bodies.
func Text(code Code, message string) string {
	return normalize(code, message)
}
