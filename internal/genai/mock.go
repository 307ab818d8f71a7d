package genai

import (
	"context"

	"github.com/parkeasy/parkeasy/internal/models"
)

// MockClassifier is a Classifier for tests with scripted results.
type MockClassifier struct {
	// Results are returned in order; when exhausted, the fallback intent
	// is returned.
	Results []models.IntentResult
	// Err, when set, is returned by ClassifyIntent.
	Err error
	// Help is returned by HelpMessage.
	Help string

	// Classified records every message passed to ClassifyIntent.
	Classified []string

	next int
}

func (m *MockClassifier) ClassifyIntent(ctx context.Context, role models.Role, text string) (models.IntentResult, error) {
	m.Classified = append(m.Classified, text)
	if m.Err != nil {
		return models.FallbackIntent(text), m.Err
	}
	if m.next < len(m.Results) {
		r := m.Results[m.next]
		m.next++
		return r, nil
	}
	return models.FallbackIntent(text), nil
}

func (m *MockClassifier) HelpMessage(ctx context.Context, role models.Role, language string) (string, error) {
	if m.Help != "" {
		return m.Help, nil
	}
	return "You can park vehicles, check them out, and see the lot status.", nil
}
