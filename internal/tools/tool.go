// Package tools implements the fixed set of validated operations the coding
// agent may invoke against a project's file tree. Every failure (malformed
// arguments, unknown ids, name collisions) is returned as a textual result
// the agent can read and adapt to, never as a hard failure of the run.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// Tool defines the interface for all tools.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Declaration returns the function declaration for LLM binding.
	Declaration() *genai.FunctionDeclaration

	// Validate validates the arguments before execution.
	Validate(args map[string]any) error

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) Result
}

// ErrorKind classifies soft tool failures.
type ErrorKind string

const (
	ErrValidation ErrorKind = "validation"
	ErrNotFound   ErrorKind = "not_found"
	ErrDuplicate  ErrorKind = "duplicate"
	ErrInternal   ErrorKind = "internal"
)

// Result is the tagged outcome of a tool execution: either a success payload
// or a classified error. It is serialized to text only at the boundary where
// it is handed back to the model.
type Result struct {
	OK      bool
	Kind    ErrorKind
	Message string
	Payload any
}

// Ok creates a successful result.
func Ok(payload any) Result {
	return Result{OK: true, Payload: payload}
}

// Errorf creates a failed result.
func Errorf(kind ErrorKind, format string, args ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Text renders the result for the model. Success payloads are JSON; strings
// pass through untouched.
func (r Result) Text() string {
	if !r.OK {
		return "Error: " + r.Message
	}
	if s, ok := r.Payload.(string); ok {
		return s
	}
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return "Error: failed to encode tool result"
	}
	return string(data)
}

// ValidationError represents a tool argument validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// GetString extracts a string argument from the args map.
func GetString(args map[string]any, key string) (string, bool) {
	val, ok := args[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetStringSlice extracts a string-slice argument. Models deliver arrays as
// []any, so each element is asserted individually.
func GetStringSlice(args map[string]any, key string) ([]string, bool) {
	val, ok := args[key]
	if !ok {
		return nil, false
	}
	raw, ok := val.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// optionalParent reads the optional parent_id argument; an absent or empty
// value means the project root.
func optionalParent(args map[string]any) *string {
	if s, ok := GetString(args, "parent_id"); ok && s != "" {
		return &s
	}
	return nil
}
