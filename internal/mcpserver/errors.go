package mcpserver

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"wagerhouse/internal/fault"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

// mapDomainError carries the engine's fault code through to the tool
// caller; the category picks a generic code when the error is uncategorized.
func mapDomainError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, fault.ErrValidation),
		errors.Is(err, fault.ErrState),
		errors.Is(err, fault.ErrTimeout):
		return toolError(fault.Code(err), err.Error())
	case errors.Is(err, fault.ErrAuthorization):
		return toolError("unauthorized", err.Error())
	default:
		return toolError("internal_error", err.Error())
	}
}
