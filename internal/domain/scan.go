package domain

import "time"

// Scan represents one end-to-end analysis run over a repository.
type Scan struct {
	ID                 string    `json:"id"         db:"id"`
	RepoID             string    `json:"repo_id"    db:"repo_id"`
	Status             string    `json:"status"     db:"status"` // pending, processing, completed, failed
	OverallScore       *int      `json:"overall_score"        db:"overall_score"`
	TechnicalDebtScore *int      `json:"technical_debt_score" db:"technical_debt_score"`
	SecurityScore      *int      `json:"security_score"       db:"security_score"`
	DocumentationScore *int      `json:"documentation_score"  db:"documentation_score"`
	Summary            string    `json:"summary"    db:"summary"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Scan status constants.
const (
	ScanStatusPending    = "pending"
	ScanStatusProcessing = "processing"
	ScanStatusCompleted  = "completed"
	ScanStatusFailed     = "failed"
)

// Terminal reports whether the scan has reached a final state.
func (s *Scan) Terminal() bool {
	return s.Status == ScanStatusCompleted || s.Status == ScanStatusFailed
}

// ScanScores holds the aggregate scores written when a scan completes.
type ScanScores struct {
	Overall       int `json:"overall"`
	TechnicalDebt int `json:"technical_debt"`
	Security      int `json:"security"`
	Documentation int `json:"documentation"`
}
