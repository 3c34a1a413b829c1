package store

import (
	"context"
	"testing"
	"time"

	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRepo(t *testing.T, m *MemoryStore, userID string) *domain.Repository {
	t.Helper()
	repo, err := m.CreateRepository(context.Background(), &domain.Repository{
		UserID: userID,
		URL:    "https://github.com/acme/widgets",
		Owner:  "acme",
		Name:   "widgets",
	})
	require.NoError(t, err)
	return repo
}

func TestMemoryStoreScanGuard(t *testing.T) {
	m := NewMemoryStore()
	repo := seedRepo(t, m, "u1")
	ctx := context.Background()

	first, err := m.CreateScan(ctx, &domain.Scan{RepoID: repo.ID, Status: domain.ScanStatusProcessing})
	require.NoError(t, err)

	_, err = m.CreateScan(ctx, &domain.Scan{RepoID: repo.ID, Status: domain.ScanStatusProcessing})
	assert.ErrorIs(t, err, port.ErrScanInProgress)

	// A terminal scan releases the guard.
	require.NoError(t, m.FinishScan(ctx, first.ID, domain.ScanStatusFailed, "boom", nil))
	_, err = m.CreateScan(ctx, &domain.Scan{RepoID: repo.ID, Status: domain.ScanStatusProcessing})
	assert.NoError(t, err)
}

func TestMemoryStoreFinishScanSetsScores(t *testing.T) {
	m := NewMemoryStore()
	repo := seedRepo(t, m, "u1")
	ctx := context.Background()

	scan, err := m.CreateScan(ctx, &domain.Scan{RepoID: repo.ID, Status: domain.ScanStatusProcessing})
	require.NoError(t, err)
	assert.Nil(t, scan.OverallScore)

	require.NoError(t, m.FinishScan(ctx, scan.ID, domain.ScanStatusCompleted, "done", &domain.ScanScores{
		Overall: 70, TechnicalDebt: 80, Security: 60, Documentation: 70,
	}))

	got, err := m.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusCompleted, got.Status)
	require.NotNil(t, got.OverallScore)
	assert.Equal(t, 70, *got.OverallScore)
	assert.Equal(t, 80, *got.TechnicalDebtScore)
}

func TestMemoryStoreDeleteRepositoryCascades(t *testing.T) {
	m := NewMemoryStore()
	repo := seedRepo(t, m, "u1")
	ctx := context.Background()

	scan, err := m.CreateScan(ctx, &domain.Scan{RepoID: repo.ID, Status: domain.ScanStatusProcessing})
	require.NoError(t, err)
	_, err = m.CreateFileAnalysis(ctx, &domain.FileAnalysis{ScanID: scan.ID, FilePath: "main.go"})
	require.NoError(t, err)

	require.NoError(t, m.DeleteRepository(ctx, repo.ID))

	_, err = m.GetRepository(ctx, repo.ID)
	assert.ErrorIs(t, err, port.ErrRepoNotFound)
	_, err = m.GetScan(ctx, scan.ID)
	assert.ErrorIs(t, err, port.ErrScanNotFound)

	analyses, err := m.ListFileAnalyses(ctx, scan.ID)
	require.NoError(t, err)
	assert.Empty(t, analyses)
}

func TestMemoryStoreListFileAnalysesWorstDebtFirst(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	for _, fa := range []domain.FileAnalysis{
		{ScanID: "s1", FilePath: "low.go", TechnicalDebtScore: 20},
		{ScanID: "s1", FilePath: "high.go", TechnicalDebtScore: 90},
		{ScanID: "s1", FilePath: "mid.go", TechnicalDebtScore: 50},
	} {
		_, err := m.CreateFileAnalysis(ctx, &fa)
		require.NoError(t, err)
	}

	analyses, err := m.ListFileAnalyses(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, analyses, 3)
	assert.Equal(t, "high.go", analyses[0].FilePath)
	assert.Equal(t, "mid.go", analyses[1].FilePath)
	assert.Equal(t, "low.go", analyses[2].FilePath)
}

func TestMemoryStoreEmailUniqueness(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, err := m.CreateUser(ctx, &domain.User{Email: "jane@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	_, err = m.CreateUser(ctx, &domain.User{Email: "JANE@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, port.ErrEmailTaken)
}

func TestMemoryStoreDashboardStats(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	mine := seedRepo(t, m, "u1")
	theirs := seedRepo(t, m, "u2")

	s1, err := m.CreateScan(ctx, &domain.Scan{RepoID: mine.ID, Status: domain.ScanStatusProcessing})
	require.NoError(t, err)
	require.NoError(t, m.FinishScan(ctx, s1.ID, domain.ScanStatusCompleted, "done", &domain.ScanScores{
		Overall: 80, TechnicalDebt: 70, Security: 90, Documentation: 80,
	}))

	s2, err := m.CreateScan(ctx, &domain.Scan{RepoID: mine.ID, Status: domain.ScanStatusProcessing})
	require.NoError(t, err)
	require.NoError(t, m.FinishScan(ctx, s2.ID, domain.ScanStatusFailed, "boom", nil))

	s3, err := m.CreateScan(ctx, &domain.Scan{RepoID: theirs.ID, Status: domain.ScanStatusProcessing})
	require.NoError(t, err)
	require.NoError(t, m.FinishScan(ctx, s3.ID, domain.ScanStatusCompleted, "done", &domain.ScanScores{
		Overall: 10, TechnicalDebt: 10, Security: 10, Documentation: 10,
	}))

	stats, err := m.GetDashboardStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repositories)
	assert.Equal(t, 2, stats.Scans)
	assert.Equal(t, 1, stats.CompletedScans)
	assert.Equal(t, 1, stats.FailedScans)
	// u2's scan does not bleed into u1's averages.
	assert.Equal(t, 80, stats.AverageOverallScore)
	assert.Equal(t, 90, stats.AverageSecurityScore)
}

func TestMemoryStoreSessions(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	sess := &domain.Session{Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, m.CreateSession(ctx, sess))

	got, err := m.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, got.Expired())

	require.NoError(t, m.DeleteSession(ctx, "tok"))
	_, err = m.GetSession(ctx, "tok")
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
}
