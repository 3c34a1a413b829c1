package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/middleware"
	"github.com/kvxlabs/vanguard/internal/port"
	"github.com/kvxlabs/vanguard/internal/report"
)

// ScanHandler serves scan results and the HTML report export.
type ScanHandler struct {
	store port.Store
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(store port.Store) *ScanHandler {
	return &ScanHandler{store: store}
}

// Register sets up scan routes on a protected group.
func (h *ScanHandler) Register(api fiber.Router) {
	scans := api.Group("/scans")
	scans.Get("/:id", h.Get)
	scans.Get("/:id/export", h.Export)
}

// Get returns a scan together with its file analyses, worst debt first.
// Clients poll this endpoint until scan.status turns terminal.
func (h *ScanHandler) Get(c fiber.Ctx) error {
	scan, _, errResp := h.ownedScan(c)
	if scan == nil {
		return errResp
	}

	files, err := h.store.ListFileAnalyses(c.Context(), scan.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"scan": scan, "files": files})
}

// Export renders the scan as a downloadable self-contained HTML report.
func (h *ScanHandler) Export(c fiber.Ctx) error {
	scan, repo, errResp := h.ownedScan(c)
	if scan == nil {
		return errResp
	}

	files, err := h.store.ListFileAnalyses(c.Context(), scan.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	html, err := report.Render(report.Data{Repo: repo, Scan: scan, Files: files})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to generate report"})
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(repo, scan)))
	return c.Send(html)
}

// ownedScan loads the :id scan and its repository, checking that the caller
// owns it. On failure it writes the error response and returns a nil scan.
func (h *ScanHandler) ownedScan(c fiber.Ctx) (*domain.Scan, *domain.Repository, error) {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return nil, nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	scan, err := h.store.GetScan(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrScanNotFound) {
		return nil, nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scan not found"})
	}
	if err != nil {
		return nil, nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	repo, err := h.store.GetRepository(c.Context(), scan.RepoID)
	if err != nil || repo.UserID != uc.UserID {
		return nil, nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scan not found"})
	}

	return scan, repo, nil
}
