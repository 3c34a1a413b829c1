package port

import (
	"context"

	"github.com/kvxlabs/vanguard/internal/domain"
)

// CodeAnalysis is the structured result of analyzing one file.
// Scores are 0–100, higher = healthier.
type CodeAnalysis struct {
	TechnicalDebtScore int            `json:"technical_debt_score"`
	SecurityScore      int            `json:"security_score"`
	DocumentationScore int            `json:"documentation_score"`
	Issues             []domain.Issue `json:"issues"`
	RefactoredCode     string         `json:"refactored_code,omitempty"`
}

// CodeAnalyzer abstracts the AI backend that scores a single file.
//
// AnalyzeFile never fails: any model or parse error is absorbed and converted
// into a fallback result (all scores zero, one high-severity debt issue), so
// one file's analysis failure can never abort a batch.
type CodeAnalyzer interface {
	AnalyzeFile(ctx context.Context, filename, code string) *CodeAnalysis
}
