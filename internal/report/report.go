// Package report renders a completed scan as a single self-contained HTML
// document suitable for downloading or publishing as a static page.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/kvxlabs/vanguard/internal/domain"
)

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"scoreClass": scoreClass,
	"deref":      deref,
}).Parse(reportTemplate))

// Data is everything the report template needs.
type Data struct {
	Repo  *domain.Repository
	Scan  *domain.Scan
	Files []domain.FileAnalysis
}

// Render produces the HTML report for a scan.
func Render(data Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the suggested download name for a scan's report.
func Filename(repo *domain.Repository, scan *domain.Scan) string {
	return fmt.Sprintf("kvx-report-%s-%s-scan-%s.html", repo.Owner, repo.Name, scan.ID)
}

func scoreClass(score int) string {
	switch {
	case score >= 70:
		return "good"
	case score >= 40:
		return "fair"
	default:
		return "poor"
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
