package engine

import (
	"context"
	"sync"

	"github.com/Veraticus/remitos/internal/ocr"
)

// MockExtractor is a test implementation of the ocr.Extractor interface.
// Responses are keyed by the page bytes sent to it.
type MockExtractor struct {
	responses map[string]MockOCRResponse
	calls     []MockOCRCall
	mu        sync.Mutex
}

// MockOCRResponse is the scripted answer for one page.
type MockOCRResponse struct {
	Err  error
	Text string
}

// MockOCRCall records details of an OCR request.
type MockOCRCall struct {
	Page     string
	Language string
}

// NewMockExtractor creates a new mock OCR extractor.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		responses: make(map[string]MockOCRResponse),
	}
}

// On scripts the response returned for a page.
func (m *MockExtractor) On(page string, text string, err error) *MockExtractor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[page] = MockOCRResponse{Text: text, Err: err}
	return m
}

// Extract returns the scripted response, or empty text for unknown pages.
func (m *MockExtractor) Extract(_ context.Context, page []byte, _ ocr.Credentials, language string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockOCRCall{Page: string(page), Language: language})
	resp := m.responses[string(page)]
	return resp.Text, resp.Err
}

// Calls returns every request made so far.
func (m *MockExtractor) Calls() []MockOCRCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockOCRCall(nil), m.calls...)
}

// CallCount returns how many requests were made.
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls.
func (m *MockExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
