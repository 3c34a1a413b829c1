package port

import "context"

// TreeFile is one blob entry from a repository's recursive tree listing.
type TreeFile struct {
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Size int    `json:"size"`
}

// SourceProvider abstracts the source-hosting API used to read repository
// contents. Implementations perform outbound HTTP only; no local caching.
type SourceProvider interface {
	// ListSourceFiles resolves branch → commit → recursive tree and returns
	// the blob entries that survive the ignore/extension filters.
	ListSourceFiles(ctx context.Context, owner, repo, branch string) ([]TreeFile, error)

	// FetchFileContent returns a blob's decoded text content.
	FetchFileContent(ctx context.Context, owner, repo string, file TreeFile) (string, error)
}
