package mock

import "context"

// MockOCR is a test double for ai.OCRService.
type MockOCR struct {
	// ExtractTextFunc is called by ExtractText if set.
	// If nil, returns a single page echoing the filename.
	ExtractTextFunc func(ctx context.Context, filename string, data []byte) ([]string, error)

	callCount int
}

// NewMockOCR creates a mock OCR service with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockOCR() *MockOCR {
	return &MockOCR{}
}

// ExtractText returns the injected behavior or a single canned page.
func (m *MockOCR) ExtractText(ctx context.Context, filename string, data []byte) ([]string, error) {
	m.callCount++

	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, filename, data)
	}
	return []string{"ocr text for " + filename}, nil
}

// CallCount returns the number of times ExtractText was called.
func (m *MockOCR) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom function.
func (m *MockOCR) Reset() {
	m.callCount = 0
	m.ExtractTextFunc = nil
}
