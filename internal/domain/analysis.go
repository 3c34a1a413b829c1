package domain

import "time"

// Issue is a single finding surfaced by the AI analysis of one file.
type Issue struct {
	Type        string `json:"type"`               // debt, security, doc
	Severity    string `json:"severity"`           // low, medium, high
	Line        *int   `json:"line,omitempty"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Issue type constants.
const (
	IssueTypeDebt     = "debt"
	IssueTypeSecurity = "security"
	IssueTypeDoc      = "doc"
)

// Issue severity constants.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// FileAnalysis is the persisted result of analyzing one file within one scan.
// Rows are immutable once created.
type FileAnalysis struct {
	ID                 string    `json:"id"         db:"id"`
	ScanID             string    `json:"scan_id"    db:"scan_id"`
	FilePath           string    `json:"file_path"  db:"file_path"`
	Language           string    `json:"language"   db:"language"`
	TechnicalDebtScore int       `json:"technical_debt_score" db:"technical_debt_score"`
	SecurityScore      int       `json:"security_score"       db:"security_score"`
	DocumentationScore int       `json:"documentation_score"  db:"documentation_score"`
	Issues             []Issue   `json:"issues"     db:"issues"`
	OriginalCode       string    `json:"original_code"   db:"original_code"`
	RefactoredCode     string    `json:"refactored_code,omitempty" db:"refactored_code"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
