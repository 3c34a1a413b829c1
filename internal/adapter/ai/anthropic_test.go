package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAnalysisJSON = `{
	"technicalDebtScore": 80,
	"securityScore": 60,
	"documentationScore": 90,
	"issues": [
		{"type": "security", "severity": "high", "line": 12, "description": "SQL built by concatenation", "suggestion": "Use parameterized queries"}
	],
	"refactoredCode": "package main"
}`

// newTestAnalyzer wires an analyzer to a fake Anthropic server that replies
// with the given model text.
func newTestAnalyzer(t *testing.T, modelText string) *AnthropicAnalyzer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, modelText)
	}))
	t.Cleanup(srv.Close)
	return NewAnthropicAnalyzer(AnthropicConfig{BaseURL: srv.URL, APIKey: "test", Model: "test-model"}, 15000)
}

func reply(w http.ResponseWriter, modelText string) {
	resp := map[string]interface{}{
		"content": []map[string]string{{"type": "text", "text": modelText}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func assertFallback(t *testing.T, result *port.CodeAnalysis) {
	t.Helper()
	assert.Equal(t, 0, result.TechnicalDebtScore)
	assert.Equal(t, 0, result.SecurityScore)
	assert.Equal(t, 0, result.DocumentationScore)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, domain.IssueTypeDebt, result.Issues[0].Type)
	assert.Equal(t, domain.SeverityHigh, result.Issues[0].Severity)
}

func TestAnalyzeFile_ParsesValidResponse(t *testing.T) {
	a := newTestAnalyzer(t, validAnalysisJSON)

	result := a.AnalyzeFile(context.Background(), "main.go", "package main")

	assert.Equal(t, 80, result.TechnicalDebtScore)
	assert.Equal(t, 60, result.SecurityScore)
	assert.Equal(t, 90, result.DocumentationScore)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, domain.IssueTypeSecurity, result.Issues[0].Type)
	require.NotNil(t, result.Issues[0].Line)
	assert.Equal(t, 12, *result.Issues[0].Line)
	assert.Equal(t, "package main", result.RefactoredCode)
}

func TestAnalyzeFile_FencedJSONParsesIdentically(t *testing.T) {
	plain := newTestAnalyzer(t, validAnalysisJSON).
		AnalyzeFile(context.Background(), "main.go", "package main")
	fenced := newTestAnalyzer(t, "```json\n"+validAnalysisJSON+"\n```").
		AnalyzeFile(context.Background(), "main.go", "package main")
	bare := newTestAnalyzer(t, "```\n"+validAnalysisJSON+"\n```").
		AnalyzeFile(context.Background(), "main.go", "package main")

	assert.Equal(t, plain, fenced)
	assert.Equal(t, plain, bare)
}

func TestAnalyzeFile_FallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	a := NewAnthropicAnalyzer(AnthropicConfig{BaseURL: srv.URL, APIKey: "test", Model: "m"}, 15000)

	result := a.AnalyzeFile(context.Background(), "main.go", "package main")
	assertFallback(t, result)
}

func TestAnalyzeFile_FallbackOnMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"not JSON":         "Sure! Here is my analysis of the file...",
		"missing score":    `{"technicalDebtScore": 80, "securityScore": 60, "issues": []}`,
		"score over 100":   `{"technicalDebtScore": 180, "securityScore": 60, "documentationScore": 90, "issues": []}`,
		"negative score":   `{"technicalDebtScore": -1, "securityScore": 60, "documentationScore": 90, "issues": []}`,
		"bad issue type":   `{"technicalDebtScore": 80, "securityScore": 60, "documentationScore": 90, "issues": [{"type": "style", "severity": "low", "description": "x"}]}`,
		"bad severity":     `{"technicalDebtScore": 80, "securityScore": 60, "documentationScore": 90, "issues": [{"type": "debt", "severity": "critical", "description": "x"}]}`,
		"no description":   `{"technicalDebtScore": 80, "securityScore": 60, "documentationScore": 90, "issues": [{"type": "debt", "severity": "low", "description": ""}]}`,
		"scores as string": `{"technicalDebtScore": "80", "securityScore": 60, "documentationScore": 90, "issues": []}`,
	}

	for name, modelText := range cases {
		t.Run(name, func(t *testing.T) {
			a := newTestAnalyzer(t, modelText)
			result := a.AnalyzeFile(context.Background(), "main.go", "package main")
			assertFallback(t, result)
		})
	}
}

func TestAnalyzeFile_TruncatesContent(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}
		reply(w, validAnalysisJSON)
	}))
	t.Cleanup(srv.Close)

	a := NewAnthropicAnalyzer(AnthropicConfig{BaseURL: srv.URL, APIKey: "test", Model: "m"}, 100)
	code := strings.Repeat("x", 5000)
	a.AnalyzeFile(context.Background(), "big.go", code)

	assert.NotContains(t, gotPrompt, strings.Repeat("x", 101))
	assert.Contains(t, gotPrompt, strings.Repeat("x", 100))
}

func TestAnalyzeFile_CapsIssueCount(t *testing.T) {
	var issues []string
	for i := 0; i < maxIssuesPerFile+5; i++ {
		issues = append(issues, fmt.Sprintf(`{"type": "debt", "severity": "low", "description": "issue %d"}`, i))
	}
	text := fmt.Sprintf(`{"technicalDebtScore": 50, "securityScore": 50, "documentationScore": 50, "issues": [%s]}`,
		strings.Join(issues, ","))

	a := newTestAnalyzer(t, text)
	result := a.AnalyzeFile(context.Background(), "main.go", "package main")
	assert.Len(t, result.Issues, maxIssuesPerFile)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`  {"a":1}  `))
}
