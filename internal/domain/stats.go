package domain

// DashboardStats aggregates counts and score averages across one user's
// repositories and completed scans.
type DashboardStats struct {
	Repositories              int `json:"repositories"`
	Scans                     int `json:"scans"`
	CompletedScans            int `json:"completed_scans"`
	FailedScans               int `json:"failed_scans"`
	AverageOverallScore       int `json:"average_overall_score"`
	AverageTechnicalDebtScore int `json:"average_technical_debt_score"`
	AverageSecurityScore      int `json:"average_security_score"`
	AverageDocumentationScore int `json:"average_documentation_score"`
}
