package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/kvxlabs/vanguard/internal/middleware"
	"github.com/kvxlabs/vanguard/internal/port"
)

// StatsHandler serves the dashboard aggregates.
type StatsHandler struct {
	store port.Store
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store port.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// Register sets up the stats route on a protected group.
func (h *StatsHandler) Register(api fiber.Router) {
	api.Get("/stats", h.Get)
}

// Get returns counts and score averages over the caller's data.
func (h *StatsHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	stats, err := h.store.GetDashboardStats(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(stats)
}
