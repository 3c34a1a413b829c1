package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/port"
)

const anthropicVersion = "2023-06-01"

// At most this many issues are kept per analyzed file.
const maxIssuesPerFile = 10

// AnthropicConfig holds the configuration for the Anthropic messages endpoint.
type AnthropicConfig struct {
	BaseURL string // e.g. https://api.anthropic.com
	APIKey  string
	Model   string // e.g. claude-sonnet-4-5
}

// AnthropicAnalyzer implements port.CodeAnalyzer using the Anthropic messages API.
type AnthropicAnalyzer struct {
	cfg             AnthropicConfig
	maxContentChars int
	httpClient      *http.Client
}

// NewAnthropicAnalyzer creates an Anthropic-backed code analyzer. File content
// is truncated to maxContentChars before prompting to respect context limits.
func NewAnthropicAnalyzer(cfg AnthropicConfig, maxContentChars int) *AnthropicAnalyzer {
	return &AnthropicAnalyzer{
		cfg:             cfg,
		maxContentChars: maxContentChars,
		httpClient:      &http.Client{},
	}
}

// AnalyzeFile scores one file. It never fails: any transport, decode, or
// shape-validation error is converted into the fallback result so a single
// bad file cannot abort a scan batch.
func (a *AnthropicAnalyzer) AnalyzeFile(ctx context.Context, filename, code string) *port.CodeAnalysis {
	result, err := a.analyze(ctx, filename, code)
	if err != nil {
		slog.Warn("code analysis failed, using fallback", "file", filename, "error", err)
		return fallbackAnalysis()
	}
	return result
}

func (a *AnthropicAnalyzer) analyze(ctx context.Context, filename, code string) (*port.CodeAnalysis, error) {
	if len(code) > a.maxContentChars {
		code = code[:a.maxContentChars]
	}

	text, err := a.complete(ctx, buildPrompt(filename, code))
	if err != nil {
		return nil, err
	}

	return parseAnalysis(text)
}

func buildPrompt(filename, code string) string {
	return fmt.Sprintf(`You are an expert Senior Software Engineer and Security Auditor.
Analyze the following code file (%q) for:
1. Technical Debt (complexity, code smells, bad practices)
2. Security Vulnerabilities (injection, exposed secrets, unsafe patterns)
3. Documentation Quality (comments, clarity)

Provide a JSON response with the following structure:
{
  "technicalDebtScore": 0-100 (higher is better/cleaner),
  "securityScore": 0-100 (higher is safer),
  "documentationScore": 0-100 (higher is better),
  "issues": [
    { "type": "debt"|"security"|"doc", "severity": "low"|"medium"|"high", "line": <number>, "description": "<text>", "suggestion": "<text>" }
  ],
  "refactoredCode": "<string with the full refactored code>"
}

Only return the JSON object. Do not wrap in markdown code blocks.

CODE TO ANALYZE:
%s`, filename, code)
}

// complete sends a single-turn prompt and returns the model's text response.
func (a *AnthropicAnalyzer) complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model":      a.cfg.Model,
		"max_tokens": 4096,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, err := a.post(ctx, "/v1/messages", payload)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("anthropic messages decode: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic messages: no text block in response")
}

// post is a helper for POST requests to the Anthropic API.
func (a *AnthropicAnalyzer) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// analysisPayload mirrors the JSON shape requested in the prompt. Pointer
// fields let validation distinguish "missing" from zero; the model's output
// is untrusted input.
type analysisPayload struct {
	TechnicalDebtScore *int           `json:"technicalDebtScore"`
	SecurityScore      *int           `json:"securityScore"`
	DocumentationScore *int           `json:"documentationScore"`
	Issues             []issuePayload `json:"issues"`
	RefactoredCode     string         `json:"refactoredCode"`
}

type issuePayload struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Line        *int   `json:"line"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

func parseAnalysis(text string) (*port.CodeAnalysis, error) {
	jsonStr := stripCodeFences(text)

	var payload analysisPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("parse analysis JSON: %w", err)
	}

	for name, score := range map[string]*int{
		"technicalDebtScore": payload.TechnicalDebtScore,
		"securityScore":      payload.SecurityScore,
		"documentationScore": payload.DocumentationScore,
	} {
		if score == nil {
			return nil, fmt.Errorf("analysis missing %s", name)
		}
		if *score < 0 || *score > 100 {
			return nil, fmt.Errorf("analysis %s out of range: %d", name, *score)
		}
	}

	issues := payload.Issues
	if len(issues) > maxIssuesPerFile {
		issues = issues[:maxIssuesPerFile]
	}

	result := &port.CodeAnalysis{
		TechnicalDebtScore: *payload.TechnicalDebtScore,
		SecurityScore:      *payload.SecurityScore,
		DocumentationScore: *payload.DocumentationScore,
		Issues:             make([]domain.Issue, 0, len(issues)),
		RefactoredCode:     payload.RefactoredCode,
	}

	for _, issue := range issues {
		if !validIssueType(issue.Type) {
			return nil, fmt.Errorf("invalid issue type %q", issue.Type)
		}
		if !validSeverity(issue.Severity) {
			return nil, fmt.Errorf("invalid issue severity %q", issue.Severity)
		}
		if issue.Description == "" {
			return nil, fmt.Errorf("issue missing description")
		}
		result.Issues = append(result.Issues, domain.Issue{
			Type:        issue.Type,
			Severity:    issue.Severity,
			Line:        issue.Line,
			Description: issue.Description,
			Suggestion:  issue.Suggestion,
		})
	}

	return result, nil
}

// stripCodeFences removes optional ``` / ```json markers the model sometimes
// wraps its JSON in despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// fallbackAnalysis is returned whenever the model call or its output cannot
// be trusted: all scores zero plus one synthetic high-severity debt issue.
func fallbackAnalysis() *port.CodeAnalysis {
	return &port.CodeAnalysis{
		TechnicalDebtScore: 0,
		SecurityScore:      0,
		DocumentationScore: 0,
		Issues: []domain.Issue{{
			Type:        domain.IssueTypeDebt,
			Severity:    domain.SeverityHigh,
			Description: "AI analysis failed",
			Suggestion:  "Verify the Anthropic API key and model configuration",
		}},
	}
}

func validIssueType(t string) bool {
	return t == domain.IssueTypeDebt || t == domain.IssueTypeSecurity || t == domain.IssueTypeDoc
}

func validSeverity(s string) bool {
	return s == domain.SeverityLow || s == domain.SeverityMedium || s == domain.SeverityHigh
}
