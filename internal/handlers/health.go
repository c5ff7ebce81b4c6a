package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Cache       string `json:"cache"`
	Storage     string `json:"storage"`
	Environment string `json:"environment"`
}

// Health reports 503 only when the database is unreachable; cache and storage problems
// are surfaced but do not fail the probe.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Database:    h.probe(ctx, "database", h.checks.Database),
		Cache:       h.probe(ctx, "cache", h.checks.Cache),
		Storage:     h.probe(ctx, "storage", h.checks.Storage),
		Environment: h.cfg.Environment,
	}

	status := http.StatusOK
	if resp.Database != "ok" {
		resp.Status = "error"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

func (h HandlerSet) probe(ctx context.Context, name string, check func(context.Context) error) string {
	if check == nil {
		return "disabled"
	}
	if err := check(ctx); err != nil {
		h.log.Error().Err(err).Str("component", name).Msg("health check failed")
		return "error"
	}
	return "ok"
}
