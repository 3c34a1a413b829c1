package handler

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/middleware"
	"github.com/kvxlabs/vanguard/internal/port"
	"github.com/kvxlabs/vanguard/internal/service"
)

// Only public github.com HTTPS URLs are accepted. Owner and name are
// captured; a trailing .git or slash is tolerated.
var githubURLPattern = regexp.MustCompile(`^https://github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?$`)

// RepoHandler handles repository registration and scan triggering.
type RepoHandler struct {
	store       port.Store
	scanService *service.ScanService
}

// NewRepoHandler creates a new repo handler.
func NewRepoHandler(store port.Store, scanService *service.ScanService) *RepoHandler {
	return &RepoHandler{store: store, scanService: scanService}
}

// Register sets up repo routes on a protected group.
func (h *RepoHandler) Register(api fiber.Router) {
	repos := api.Group("/repos")
	repos.Get("/", h.List)
	repos.Post("/", h.Create)
	repos.Get("/:id", h.Get)
	repos.Delete("/:id", h.Delete)
	repos.Post("/:id/scan", h.Scan)
	repos.Get("/:id/scans", h.ListScans)
}

// Create registers a public GitHub repository for the current user.
func (h *RepoHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	url := strings.TrimSpace(body.URL)
	m := githubURLPattern.FindStringSubmatch(url)
	if m == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url must look like https://github.com/{owner}/{name}",
		})
	}

	repo, err := h.store.CreateRepository(c.Context(), &domain.Repository{
		UserID:        uc.UserID,
		URL:           url,
		Owner:         m[1],
		Name:          m[2],
		DefaultBranch: "main",
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(repo)
}

// List returns the caller's repositories, newest first.
func (h *RepoHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repos, err := h.store.ListRepositories(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"repos": repos, "count": len(repos)})
}

// Get returns one of the caller's repositories.
func (h *RepoHandler) Get(c fiber.Ctx) error {
	repo, status := h.ownedRepo(c)
	if repo == nil {
		return status
	}
	return c.JSON(repo)
}

// Delete removes a repository along with its scans and analyses.
func (h *RepoHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repo, err := h.store.GetRepository(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrRepoNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if repo.UserID != uc.UserID {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.store.DeleteRepository(c.Context(), repo.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Scan starts a new scan for the repository. The scan is returned
// immediately in the processing state; progress is observed by polling.
func (h *RepoHandler) Scan(c fiber.Ctx) error {
	repo, status := h.ownedRepo(c)
	if repo == nil {
		return status
	}

	scan, err := h.scanService.StartScan(c.Context(), repo.ID)
	if errors.Is(err, port.ErrScanInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a scan is already running for this repository"})
	}
	if errors.Is(err, port.ErrRepoNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(scan)
}

// ListScans returns the repository's scans, newest first.
func (h *RepoHandler) ListScans(c fiber.Ctx) error {
	repo, status := h.ownedRepo(c)
	if repo == nil {
		return status
	}

	scans, err := h.store.ListScans(c.Context(), repo.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"scans": scans, "count": len(scans)})
}

// ownedRepo loads the :id repository and checks ownership. On failure it
// writes the error response and returns a nil repo.
func (h *RepoHandler) ownedRepo(c fiber.Ctx) (*domain.Repository, error) {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repo, err := h.store.GetRepository(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrRepoNotFound) {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	}
	if err != nil {
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	// Other users' repositories are indistinguishable from absent ones.
	if repo.UserID != uc.UserID {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	}
	return repo, nil
}
