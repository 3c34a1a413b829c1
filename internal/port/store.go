package port

import (
	"context"
	"time"

	"github.com/kvxlabs/vanguard/internal/domain"
)

// Store is the persistence layer for users, repositories, scans, and file
// analyses. Only per-row atomicity is assumed; the one cross-row invariant
// (at most one non-terminal scan per repository) is enforced by CreateScan.
type Store interface {
	// Users & sessions
	CreateUser(ctx context.Context, u *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Repositories
	CreateRepository(ctx context.Context, r *domain.Repository) (*domain.Repository, error)
	GetRepository(ctx context.Context, id string) (*domain.Repository, error)
	ListRepositories(ctx context.Context, userID string) ([]domain.Repository, error)
	DeleteRepository(ctx context.Context, id string) error
	TouchRepositoryLastScanned(ctx context.Context, id string, at time.Time) error

	// Scans. CreateScan returns ErrScanInProgress when the repository already
	// has a scan in a non-terminal state.
	CreateScan(ctx context.Context, s *domain.Scan) (*domain.Scan, error)
	GetScan(ctx context.Context, id string) (*domain.Scan, error)
	ListScans(ctx context.Context, repoID string) ([]domain.Scan, error)
	FinishScan(ctx context.Context, id, status, summary string, scores *domain.ScanScores) error

	// File analyses, listed worst-debt-first.
	CreateFileAnalysis(ctx context.Context, fa *domain.FileAnalysis) (*domain.FileAnalysis, error)
	ListFileAnalyses(ctx context.Context, scanID string) ([]domain.FileAnalysis, error)

	// Dashboard aggregates for one user.
	GetDashboardStats(ctx context.Context, userID string) (*domain.DashboardStats, error)
}
