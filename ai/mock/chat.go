package mock

import (
	"context"
	"sync"
	"time"
)

// MockChatModel is a test double for ai.ChatModel.
// It allows custom behavior injection via function fields and supports
// simulated latency for health state machine tests.
// Safe for concurrent use.
type MockChatModel struct {
	// ID is reported by ModelID. Defaults to "mock-model".
	ID string

	// ChatFunc is called by Chat if set.
	// If nil, returns a canned answer.
	ChatFunc func(ctx context.Context, system, prompt string) (string, error)

	// ProbeFunc is called by Probe if set.
	// If nil, probes succeed.
	ProbeFunc func(ctx context.Context) error

	// Latency is slept before every Chat call when set, honoring
	// context cancellation.
	Latency time.Duration

	mu         sync.Mutex
	chatCalls  int
	probeCalls int
}

// NewMockChatModel creates a mock chat model with the given identifier.
// Note: Returns concrete type to allow test assertions.
func NewMockChatModel(id string) *MockChatModel {
	if id == "" {
		id = "mock-model"
	}
	return &MockChatModel{ID: id}
}

// ModelID returns the mock's identifier.
func (m *MockChatModel) ModelID() string {
	return m.ID
}

// Chat returns the injected behavior or a canned answer.
func (m *MockChatModel) Chat(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.chatCalls++
	latency := m.Latency
	fn := m.ChatFunc
	m.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if fn != nil {
		return fn(ctx, system, prompt)
	}
	return "mock answer", nil
}

// Probe returns the injected behavior or success.
func (m *MockChatModel) Probe(ctx context.Context) error {
	m.mu.Lock()
	m.probeCalls++
	fn := m.ProbeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// ChatCalls returns the number of times Chat was called.
func (m *MockChatModel) ChatCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatCalls
}

// ProbeCalls returns the number of times Probe was called.
func (m *MockChatModel) ProbeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probeCalls
}

// Reset clears counters and custom functions.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatCalls = 0
	m.probeCalls = 0
	m.ChatFunc = nil
	m.ProbeFunc = nil
	m.Latency = 0
}
