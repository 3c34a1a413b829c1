package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/kvxlabs/vanguard/internal/port"
	"golang.org/x/oauth2"
)

// Path substrings excluded from scans: vendored deps, build output, lockfiles.
var defaultIgnorePatterns = []string{
	"node_modules/", "vendor/", "dist/", "build/", ".git/",
	"package-lock.json", "yarn.lock",
}

// Extensions considered source code worth analyzing.
var defaultExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".py", ".go", ".rs", ".java", ".c", ".cpp",
}

// GitHubProvider implements port.SourceProvider against the GitHub REST API.
type GitHubProvider struct {
	client         *github.Client
	ignorePatterns []string
	extensions     []string
}

// NewGitHubProvider creates a GitHub-backed source provider. The token is
// optional; public repositories work unauthenticated at a lower rate limit.
func NewGitHubProvider(token string) *GitHubProvider {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	return &GitHubProvider{
		client:         github.NewClient(hc),
		ignorePatterns: defaultIgnorePatterns,
		extensions:     defaultExtensions,
	}
}

// ListSourceFiles resolves branch → commit → recursive tree and returns the
// filtered blob entries. When the requested branch is the default guess
// "main" and does not exist, it retries once with "master".
func (g *GitHubProvider) ListSourceFiles(ctx context.Context, owner, repo, branch string) ([]port.TreeFile, error) {
	br, resp, err := g.client.Repositories.GetBranch(ctx, owner, repo, branch, 2)
	if err != nil {
		if branch == "main" && resp != nil && resp.StatusCode == http.StatusNotFound {
			return g.ListSourceFiles(ctx, owner, repo, "master")
		}
		return nil, fmt.Errorf("fetch branch %s: %w", branch, err)
	}

	treeSHA := br.GetCommit().GetCommit().GetTree().GetSHA()
	tree, _, err := g.client.Git.GetTree(ctx, owner, repo, treeSHA, true)
	if err != nil {
		return nil, fmt.Errorf("fetch tree: %w", err)
	}

	var files []port.TreeFile
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if !g.relevant(path) {
			continue
		}
		files = append(files, port.TreeFile{
			Path: path,
			SHA:  entry.GetSHA(),
			Size: entry.GetSize(),
		})
	}
	return files, nil
}

// FetchFileContent reads a blob and decodes its base64 payload.
func (g *GitHubProvider) FetchFileContent(ctx context.Context, owner, repo string, file port.TreeFile) (string, error) {
	blob, _, err := g.client.Git.GetBlob(ctx, owner, repo, file.SHA)
	if err != nil {
		return "", fmt.Errorf("fetch blob %s: %w", file.Path, err)
	}

	content := blob.GetContent()
	if blob.GetEncoding() == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode blob %s: %w", file.Path, err)
		}
		return string(decoded), nil
	}
	return content, nil
}

func (g *GitHubProvider) relevant(path string) bool {
	for _, pattern := range g.ignorePatterns {
		if strings.Contains(path, pattern) {
			return false
		}
	}
	for _, ext := range g.extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
