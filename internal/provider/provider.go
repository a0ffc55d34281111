// Package provider defines the contract the dispatcher routes tasks to.
// Concrete HTTP backends plug in behind the Backend interface; the package
// ships a registry and a scripted test double.
package provider

import (
	"context"
	"fmt"
)

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single message exchanged with the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Params tunes a single completion call.
type Params struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Usage captures token accounting for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is the result of a completion call.
type Response struct {
	Message  Message `json:"message"`
	Model    string  `json:"model"`
	Usage    Usage   `json:"usage"`
	CostUSD  float64 `json:"cost_usd"`
	Provider string  `json:"provider"`
}

// Backend is a backing service that can complete a conversation.
type Backend interface {
	Name() string
	Complete(ctx context.Context, model string, messages []Message, params Params) (*Response, error)
}

// Error is a backend failure. Retryable failures feed the escalation
// window; others are surfaced as-is.
type Error struct {
	Provider  string
	Model     string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry maps provider names to backends.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under its name, replacing any previous one.
func (r *Registry) Register(b Backend) {
	r.backends[b.Name()] = b
}

// Get returns the named backend.
func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return b, nil
}
