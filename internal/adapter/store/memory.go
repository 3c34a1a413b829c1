package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/port"
)

// MemoryStore is an in-memory port.Store used by tests and local development.
// It enforces the same invariants as PostgresStore, including the
// one-active-scan-per-repository guard.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	sessions map[string]*domain.Session
	repos    map[string]*domain.Repository
	scans    map[string]*domain.Scan
	analyses map[string][]domain.FileAnalysis // by scan ID
}

var _ port.Store = (*MemoryStore)(nil)
var _ port.Store = (*PostgresStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*domain.User),
		sessions: make(map[string]*domain.Session),
		repos:    make(map[string]*domain.Repository),
		scans:    make(map[string]*domain.Scan),
		analyses: make(map[string][]domain.FileAnalysis),
	}
}

// --- Users ---

func (m *MemoryStore) CreateUser(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, port.ErrEmailTaken
		}
	}

	user := *u
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	m.users[user.ID] = &user

	out := user
	return &out, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, port.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			out := *user
			return &out, nil
		}
	}
	return nil, port.ErrUserNotFound
}

// --- Sessions ---

func (m *MemoryStore) CreateSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := *s
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	m.sessions[sess.Token] = &sess
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return nil, port.ErrSessionNotFound
	}
	out := *sess
	return &out, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// --- Repositories ---

func (m *MemoryStore) CreateRepository(_ context.Context, r *domain.Repository) (*domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo := *r
	repo.ID = uuid.NewString()
	repo.CreatedAt = time.Now()
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}
	m.repos[repo.ID] = &repo

	out := repo
	return &out, nil
}

func (m *MemoryStore) GetRepository(_ context.Context, id string) (*domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, ok := m.repos[id]
	if !ok {
		return nil, port.ErrRepoNotFound
	}
	out := *repo
	return &out, nil
}

func (m *MemoryStore) ListRepositories(_ context.Context, userID string) ([]domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var repos []domain.Repository
	for _, repo := range m.repos {
		if repo.UserID == userID {
			repos = append(repos, *repo)
		}
	}
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].CreatedAt.After(repos[j].CreatedAt)
	})
	return repos, nil
}

func (m *MemoryStore) DeleteRepository(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.repos, id)
	for scanID, scan := range m.scans {
		if scan.RepoID == id {
			delete(m.scans, scanID)
			delete(m.analyses, scanID)
		}
	}
	return nil
}

func (m *MemoryStore) TouchRepositoryLastScanned(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, ok := m.repos[id]
	if !ok {
		return port.ErrRepoNotFound
	}
	t := at
	repo.LastScannedAt = &t
	return nil
}

// --- Scans ---

func (m *MemoryStore) CreateScan(_ context.Context, s *domain.Scan) (*domain.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.scans {
		if existing.RepoID == s.RepoID && !existing.Terminal() {
			return nil, port.ErrScanInProgress
		}
	}

	scan := *s
	scan.ID = uuid.NewString()
	scan.CreatedAt = time.Now()
	m.scans[scan.ID] = &scan

	out := scan
	return &out, nil
}

func (m *MemoryStore) GetScan(_ context.Context, id string) (*domain.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scan, ok := m.scans[id]
	if !ok {
		return nil, port.ErrScanNotFound
	}
	out := *scan
	return &out, nil
}

func (m *MemoryStore) ListScans(_ context.Context, repoID string) ([]domain.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var scans []domain.Scan
	for _, scan := range m.scans {
		if scan.RepoID == repoID {
			scans = append(scans, *scan)
		}
	}
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	return scans, nil
}

func (m *MemoryStore) FinishScan(_ context.Context, id, status, summary string, scores *domain.ScanScores) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scan, ok := m.scans[id]
	if !ok {
		return port.ErrScanNotFound
	}
	scan.Status = status
	scan.Summary = summary
	if scores != nil {
		overall, debt, sec, doc := scores.Overall, scores.TechnicalDebt, scores.Security, scores.Documentation
		scan.OverallScore = &overall
		scan.TechnicalDebtScore = &debt
		scan.SecurityScore = &sec
		scan.DocumentationScore = &doc
	}
	return nil
}

// --- File Analyses ---

func (m *MemoryStore) CreateFileAnalysis(_ context.Context, fa *domain.FileAnalysis) (*domain.FileAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis := *fa
	analysis.ID = uuid.NewString()
	analysis.CreatedAt = time.Now()
	m.analyses[analysis.ScanID] = append(m.analyses[analysis.ScanID], analysis)

	out := analysis
	return &out, nil
}

func (m *MemoryStore) ListFileAnalyses(_ context.Context, scanID string) ([]domain.FileAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	analyses := append([]domain.FileAnalysis(nil), m.analyses[scanID]...)
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].TechnicalDebtScore > analyses[j].TechnicalDebtScore
	})
	return analyses, nil
}

// --- Stats ---

func (m *MemoryStore) GetDashboardStats(_ context.Context, userID string) (*domain.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &domain.DashboardStats{}
	owned := make(map[string]bool)
	for _, repo := range m.repos {
		if repo.UserID == userID {
			owned[repo.ID] = true
			stats.Repositories++
		}
	}

	var overall, debt, sec, doc int
	for _, scan := range m.scans {
		if !owned[scan.RepoID] {
			continue
		}
		stats.Scans++
		switch scan.Status {
		case domain.ScanStatusCompleted:
			stats.CompletedScans++
			if scan.OverallScore != nil {
				overall += *scan.OverallScore
			}
			if scan.TechnicalDebtScore != nil {
				debt += *scan.TechnicalDebtScore
			}
			if scan.SecurityScore != nil {
				sec += *scan.SecurityScore
			}
			if scan.DocumentationScore != nil {
				doc += *scan.DocumentationScore
			}
		case domain.ScanStatusFailed:
			stats.FailedScans++
		}
	}

	if stats.CompletedScans > 0 {
		n := float64(stats.CompletedScans)
		stats.AverageOverallScore = int(math.Round(float64(overall) / n))
		stats.AverageTechnicalDebtScore = int(math.Round(float64(debt) / n))
		stats.AverageSecurityScore = int(math.Round(float64(sec) / n))
		stats.AverageDocumentationScore = int(math.Round(float64(doc) / n))
	}
	return stats, nil
}
