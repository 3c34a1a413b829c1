package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/port"
	"github.com/lib/pq"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, applies the schema, and returns a
// store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// migrate creates tables if they do not exist. The partial unique index on
// scans enforces "at most one non-terminal scan per repository" at the
// database level, closing the check-then-act race between concurrent
// scan-start requests.
func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS repositories (
			id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			url             TEXT NOT NULL,
			owner           TEXT NOT NULL,
			name            TEXT NOT NULL,
			default_branch  TEXT NOT NULL DEFAULT 'main',
			last_scanned_at TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS scans (
			id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			repo_id              TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			status               TEXT NOT NULL DEFAULT 'pending',
			overall_score        INTEGER,
			technical_debt_score INTEGER,
			security_score       INTEGER,
			documentation_score  INTEGER,
			summary              TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS scans_one_active_per_repo
			ON scans (repo_id) WHERE status IN ('pending', 'processing')`,
		`CREATE TABLE IF NOT EXISTS file_analyses (
			id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			scan_id              TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
			file_path            TEXT NOT NULL,
			language             TEXT NOT NULL DEFAULT '',
			technical_debt_score INTEGER NOT NULL DEFAULT 0,
			security_score       INTEGER NOT NULL DEFAULT 0,
			documentation_score  INTEGER NOT NULL DEFAULT 0,
			issues               JSONB NOT NULL DEFAULT '[]',
			original_code        TEXT NOT NULL DEFAULT '',
			refactored_code      TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

// --- Users ---

// CreateUser inserts a new user; port.ErrEmailTaken on duplicate email.
func (s *PostgresStore) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `INSERT INTO users (email, password_hash, first_name, last_name)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, email, password_hash, first_name, last_name, created_at`

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, u.Email, u.PasswordHash, u.FirstName, u.LastName).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, port.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg interface{}) (*domain.User, error) {
	query := `SELECT id, email, password_hash, first_name, last_name, created_at FROM users ` + where

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// --- Sessions ---

// CreateSession inserts a session row.
func (s *PostgresStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	query := `INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, sess.Token, sess.UserID, sess.ExpiresAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token.
func (s *PostgresStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	query := `SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = $1`

	var sess domain.Session
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a session by token.
func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// --- Repositories ---

// CreateRepository inserts a new repository record.
func (s *PostgresStore) CreateRepository(ctx context.Context, r *domain.Repository) (*domain.Repository, error) {
	query := `INSERT INTO repositories (user_id, url, owner, name, default_branch)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, user_id, url, owner, name, default_branch, last_scanned_at, created_at`

	var repo domain.Repository
	err := s.db.QueryRowContext(ctx, query,
		r.UserID, r.URL, r.Owner, r.Name, r.DefaultBranch,
	).Scan(
		&repo.ID, &repo.UserID, &repo.URL, &repo.Owner, &repo.Name,
		&repo.DefaultBranch, &repo.LastScannedAt, &repo.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	return &repo, nil
}

// GetRepository returns a repository by its ID.
func (s *PostgresStore) GetRepository(ctx context.Context, id string) (*domain.Repository, error) {
	query := `SELECT id, user_id, url, owner, name, default_branch, last_scanned_at, created_at
	          FROM repositories WHERE id = $1`

	var r domain.Repository
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.UserID, &r.URL, &r.Owner, &r.Name,
		&r.DefaultBranch, &r.LastScannedAt, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrRepoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return &r, nil
}

// ListRepositories returns all repositories for a user, newest first.
func (s *PostgresStore) ListRepositories(ctx context.Context, userID string) ([]domain.Repository, error) {
	query := `SELECT id, user_id, url, owner, name, default_branch, last_scanned_at, created_at
	          FROM repositories WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []domain.Repository
	for rows.Next() {
		var r domain.Repository
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.URL, &r.Owner, &r.Name,
			&r.DefaultBranch, &r.LastScannedAt, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// DeleteRepository removes a repository; scans and analyses cascade.
func (s *PostgresStore) DeleteRepository(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	return err
}

// TouchRepositoryLastScanned records the completion time of a successful scan.
func (s *PostgresStore) TouchRepositoryLastScanned(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE repositories SET last_scanned_at = $1 WHERE id = $2`, at, id)
	return err
}

// --- Scans ---

// CreateScan inserts a new scan row. The scans_one_active_per_repo index
// rejects the insert when the repository already has a non-terminal scan;
// that violation maps to port.ErrScanInProgress.
func (s *PostgresStore) CreateScan(ctx context.Context, scan *domain.Scan) (*domain.Scan, error) {
	query := `INSERT INTO scans (repo_id, status, summary)
	          VALUES ($1, $2, $3)
	          RETURNING id, repo_id, status, overall_score, technical_debt_score,
	                    security_score, documentation_score, summary, created_at`

	var result domain.Scan
	err := s.db.QueryRowContext(ctx, query, scan.RepoID, scan.Status, scan.Summary).Scan(
		&result.ID, &result.RepoID, &result.Status,
		&result.OverallScore, &result.TechnicalDebtScore,
		&result.SecurityScore, &result.DocumentationScore,
		&result.Summary, &result.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, port.ErrScanInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}
	return &result, nil
}

// GetScan returns a scan by its ID.
func (s *PostgresStore) GetScan(ctx context.Context, id string) (*domain.Scan, error) {
	query := `SELECT id, repo_id, status, overall_score, technical_debt_score,
	                 security_score, documentation_score, summary, created_at
	          FROM scans WHERE id = $1`

	var scan domain.Scan
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&scan.ID, &scan.RepoID, &scan.Status,
		&scan.OverallScore, &scan.TechnicalDebtScore,
		&scan.SecurityScore, &scan.DocumentationScore,
		&scan.Summary, &scan.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return &scan, nil
}

// ListScans returns all scans for a repository, newest first.
func (s *PostgresStore) ListScans(ctx context.Context, repoID string) ([]domain.Scan, error) {
	query := `SELECT id, repo_id, status, overall_score, technical_debt_score,
	                 security_score, documentation_score, summary, created_at
	          FROM scans WHERE repo_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, repoID)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []domain.Scan
	for rows.Next() {
		var scan domain.Scan
		if err := rows.Scan(
			&scan.ID, &scan.RepoID, &scan.Status,
			&scan.OverallScore, &scan.TechnicalDebtScore,
			&scan.SecurityScore, &scan.DocumentationScore,
			&scan.Summary, &scan.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

// FinishScan moves a scan to its terminal state, optionally with aggregates.
func (s *PostgresStore) FinishScan(ctx context.Context, id, status, summary string, scores *domain.ScanScores) error {
	if scores != nil {
		query := `UPDATE scans SET status = $1, summary = $2, overall_score = $3,
		          technical_debt_score = $4, security_score = $5, documentation_score = $6
		          WHERE id = $7`
		_, err := s.db.ExecContext(ctx, query, status, summary,
			scores.Overall, scores.TechnicalDebt, scores.Security, scores.Documentation, id)
		return err
	}

	query := `UPDATE scans SET status = $1, summary = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, status, summary, id)
	return err
}

// --- File Analyses ---

// CreateFileAnalysis persists one file's analysis result.
func (s *PostgresStore) CreateFileAnalysis(ctx context.Context, fa *domain.FileAnalysis) (*domain.FileAnalysis, error) {
	issuesJSON, err := json.Marshal(fa.Issues)
	if err != nil {
		return nil, fmt.Errorf("marshal issues: %w", err)
	}
	if fa.Issues == nil {
		issuesJSON = []byte("[]")
	}

	query := `INSERT INTO file_analyses
	          (scan_id, file_path, language, technical_debt_score, security_score,
	           documentation_score, issues, original_code, refactored_code)
	          VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
	          RETURNING id, created_at`

	result := *fa
	err = s.db.QueryRowContext(ctx, query,
		fa.ScanID, fa.FilePath, fa.Language,
		fa.TechnicalDebtScore, fa.SecurityScore, fa.DocumentationScore,
		string(issuesJSON), fa.OriginalCode, fa.RefactoredCode,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create file analysis: %w", err)
	}
	return &result, nil
}

// ListFileAnalyses returns a scan's file analyses, worst debt first.
func (s *PostgresStore) ListFileAnalyses(ctx context.Context, scanID string) ([]domain.FileAnalysis, error) {
	query := `SELECT id, scan_id, file_path, language, technical_debt_score,
	                 security_score, documentation_score, issues::text,
	                 original_code, refactored_code, created_at
	          FROM file_analyses WHERE scan_id = $1 ORDER BY technical_debt_score DESC`

	rows, err := s.db.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("list file analyses: %w", err)
	}
	defer rows.Close()

	var analyses []domain.FileAnalysis
	for rows.Next() {
		var fa domain.FileAnalysis
		var issuesJSON string
		if err := rows.Scan(
			&fa.ID, &fa.ScanID, &fa.FilePath, &fa.Language,
			&fa.TechnicalDebtScore, &fa.SecurityScore, &fa.DocumentationScore,
			&issuesJSON, &fa.OriginalCode, &fa.RefactoredCode, &fa.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file analysis: %w", err)
		}
		if err := json.Unmarshal([]byte(issuesJSON), &fa.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}
		analyses = append(analyses, fa)
	}
	return analyses, rows.Err()
}

// --- Stats ---

// GetDashboardStats aggregates counts and averages over a user's data.
func (s *PostgresStore) GetDashboardStats(ctx context.Context, userID string) (*domain.DashboardStats, error) {
	query := `SELECT
	              (SELECT COUNT(*) FROM repositories WHERE user_id = $1),
	              COUNT(sc.id),
	              COUNT(sc.id) FILTER (WHERE sc.status = 'completed'),
	              COUNT(sc.id) FILTER (WHERE sc.status = 'failed'),
	              COALESCE(ROUND(AVG(sc.overall_score)        FILTER (WHERE sc.status = 'completed')), 0),
	              COALESCE(ROUND(AVG(sc.technical_debt_score) FILTER (WHERE sc.status = 'completed')), 0),
	              COALESCE(ROUND(AVG(sc.security_score)       FILTER (WHERE sc.status = 'completed')), 0),
	              COALESCE(ROUND(AVG(sc.documentation_score)  FILTER (WHERE sc.status = 'completed')), 0)
	          FROM scans sc
	          JOIN repositories r ON r.id = sc.repo_id
	          WHERE r.user_id = $1`

	var stats domain.DashboardStats
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.Repositories, &stats.Scans, &stats.CompletedScans, &stats.FailedScans,
		&stats.AverageOverallScore, &stats.AverageTechnicalDebtScore,
		&stats.AverageSecurityScore, &stats.AverageDocumentationScore,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &stats, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
