package provider

import "context"

// Mock is a scripted Backend for tests and dry runs.
type Mock struct {
	NameValue  string
	CompleteFn func(ctx context.Context, model string, messages []Message, params Params) (*Response, error)

	// Calls records every completion request in order.
	Calls []MockCall
}

// MockCall is one recorded Complete invocation.
type MockCall struct {
	Model    string
	Messages []Message
	Params   Params
}

func (m *Mock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

func (m *Mock) Complete(ctx context.Context, model string, messages []Message, params Params) (*Response, error) {
	m.Calls = append(m.Calls, MockCall{Model: model, Messages: messages, Params: params})
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, model, messages, params)
	}
	return &Response{
		Message:  Message{Role: RoleAssistant, Content: "ok"},
		Model:    model,
		Provider: m.Name(),
	}, nil
}
