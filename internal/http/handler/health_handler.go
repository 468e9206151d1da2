package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db      *gorm.DB
	backend *backend.Client
	logger  *zap.Logger
}

func NewHealthHandler(db *gorm.DB, client *backend.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, backend: client, logger: logger}
}

// Live handles GET /health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /health/ready and checks the database and the CRM backend
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]map[string]string{
		"database": h.check(ctx, "database", func(ctx context.Context) error { return database.Ping(ctx, h.db) }),
		"backend":  h.check(ctx, "backend", h.backend.Ping),
	}

	status, code := "healthy", http.StatusOK
	for _, c := range checks {
		if c["status"] != "healthy" {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	respondJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

func (h *HealthHandler) check(ctx context.Context, name string, probe func(context.Context) error) map[string]string {
	if err := probe(ctx); err != nil {
		h.logger.Error("health check failed", zap.String("service", name), zap.Error(err))
		return map[string]string{"status": "unhealthy", "error": err.Error()}
	}
	return map[string]string{"status": "healthy"}
}
