package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/port"
	"github.com/kvxlabs/vanguard/pkg/batch"
)

// Executor runs a scan's background work detached from the HTTP request that
// triggered it. The default spawns a goroutine; tests substitute a
// synchronous implementation.
type Executor interface {
	Go(fn func())
}

// GoroutineExecutor runs each task on its own goroutine.
type GoroutineExecutor struct{}

func (GoroutineExecutor) Go(fn func()) { go fn() }

// ScanService drives a scan from creation to its terminal state: listing the
// repository's files, fetching content, running the AI analysis, persisting
// per-file results, and writing the aggregate scores.
type ScanService struct {
	store    port.Store
	source   port.SourceProvider
	analyzer port.CodeAnalyzer
	exec     Executor

	maxFiles    int
	concurrency int
}

// NewScanService creates a scan orchestrator. maxFiles bounds how many files
// one scan analyzes; concurrency bounds how many are analyzed in flight.
func NewScanService(store port.Store, source port.SourceProvider, analyzer port.CodeAnalyzer, exec Executor, maxFiles, concurrency int) *ScanService {
	if exec == nil {
		exec = GoroutineExecutor{}
	}
	return &ScanService{
		store:       store,
		source:      source,
		analyzer:    analyzer,
		exec:        exec,
		maxFiles:    maxFiles,
		concurrency: concurrency,
	}
}

// StartScan synchronously creates a processing scan row for the repository
// and hands the rest of the pipeline to the executor. The store's
// one-active-scan guard surfaces as port.ErrScanInProgress.
//
// The returned scan is what the HTTP caller sees; everything after runs
// detached and is observed only by polling.
func (s *ScanService) StartScan(ctx context.Context, repoID string) (*domain.Scan, error) {
	repo, err := s.store.GetRepository(ctx, repoID)
	if err != nil {
		return nil, err
	}

	scan, err := s.store.CreateScan(ctx, &domain.Scan{
		RepoID:  repo.ID,
		Status:  domain.ScanStatusProcessing,
		Summary: "Initializing scan...",
	})
	if err != nil {
		return nil, err
	}

	s.exec.Go(func() {
		// Detached from the request: a client disconnect must not cancel
		// the pipeline.
		s.run(context.Background(), repo, scan)
	})

	return scan, nil
}

// run executes the scan pipeline to a terminal state. It is never retried
// and cannot be cancelled once started.
func (s *ScanService) run(ctx context.Context, repo *domain.Repository, scan *domain.Scan) {
	slog.Info("starting scan", "scan_id", scan.ID, "repo", repo.Owner+"/"+repo.Name)

	branch := repo.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	files, err := s.source.ListSourceFiles(ctx, repo.Owner, repo.Name, branch)
	if err != nil {
		s.fail(ctx, scan.ID, err.Error())
		return
	}

	if len(files) == 0 {
		s.fail(ctx, scan.ID, "No relevant code files found.")
		return
	}

	// Cost/latency bound: analyze a prefix of the filtered tree.
	if len(files) > s.maxFiles {
		files = files[:s.maxFiles]
	}

	var mu sync.Mutex
	var totalDebt, totalSecurity, totalDoc int

	errs := batch.Run(ctx, files, s.concurrency, func(ctx context.Context, file port.TreeFile) error {
		content, err := s.source.FetchFileContent(ctx, repo.Owner, repo.Name, file)
		if err != nil {
			return err
		}

		// AnalyzeFile absorbs model failures into a fallback result, so a
		// bad file degrades its own scores without failing the scan.
		analysis := s.analyzer.AnalyzeFile(ctx, file.Path, content)

		if _, err := s.store.CreateFileAnalysis(ctx, &domain.FileAnalysis{
			ScanID:             scan.ID,
			FilePath:           file.Path,
			Language:           languageFromPath(file.Path),
			TechnicalDebtScore: analysis.TechnicalDebtScore,
			SecurityScore:      analysis.SecurityScore,
			DocumentationScore: analysis.DocumentationScore,
			Issues:             analysis.Issues,
			OriginalCode:       content,
			RefactoredCode:     analysis.RefactoredCode,
		}); err != nil {
			return fmt.Errorf("persist analysis for %s: %w", file.Path, err)
		}

		mu.Lock()
		totalDebt += analysis.TechnicalDebtScore
		totalSecurity += analysis.SecurityScore
		totalDoc += analysis.DocumentationScore
		mu.Unlock()
		return nil
	})

	// Fetch/persist errors terminate the scan; rows already written stay as
	// a partial record.
	if err := batch.FirstError(errs); err != nil {
		s.fail(ctx, scan.ID, err.Error())
		return
	}

	fileCount := len(files)
	avgDebt := roundedMean(totalDebt, fileCount)
	avgSecurity := roundedMean(totalSecurity, fileCount)
	avgDoc := roundedMean(totalDoc, fileCount)
	overall := roundedMean(avgDebt+avgSecurity+avgDoc, 3)

	summary := fmt.Sprintf("Analyzed %d files successfully.", fileCount)
	if err := s.store.FinishScan(ctx, scan.ID, domain.ScanStatusCompleted, summary, &domain.ScanScores{
		Overall:       overall,
		TechnicalDebt: avgDebt,
		Security:      avgSecurity,
		Documentation: avgDoc,
	}); err != nil {
		slog.Error("failed to complete scan", "scan_id", scan.ID, "error", err)
		return
	}

	if err := s.store.TouchRepositoryLastScanned(ctx, repo.ID, time.Now()); err != nil {
		slog.Error("failed to update last_scanned_at", "repo_id", repo.ID, "error", err)
	}

	slog.Info("scan complete", "scan_id", scan.ID, "files", fileCount, "overall", overall)
}

func (s *ScanService) fail(ctx context.Context, scanID, summary string) {
	slog.Warn("scan failed", "scan_id", scanID, "summary", summary)
	if err := s.store.FinishScan(ctx, scanID, domain.ScanStatusFailed, summary, nil); err != nil {
		slog.Error("failed to mark scan failed", "scan_id", scanID, "error", err)
	}
}

func roundedMean(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// languageFromPath derives the language tag from the file extension.
func languageFromPath(p string) string {
	return strings.TrimPrefix(path.Ext(p), ".")
}
