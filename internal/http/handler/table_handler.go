package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/salesdesk/internal/auth"
	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/table"
	"go.uber.org/zap"
)

// TableHandler serves one-shot table views that keep no server state
type TableHandler struct {
	client       *backend.Client
	apiKey       string
	fetchTimeout time.Duration
	logger       *zap.Logger
}

func NewTableHandler(client *backend.Client, apiKey string, fetchTimeout time.Duration, logger *zap.Logger) *TableHandler {
	return &TableHandler{
		client:       client,
		apiKey:       apiKey,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// Get handles GET /tables/{entity}?<query>. The query is parsed exactly like
// a session location; the canonical form is returned as view.query.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	entity := domain.Entity(chi.URLParam(r, "entity"))

	view, err := table.Load(r.Context(), entity, h.client, credentials(user, h.apiKey), r.URL.RawQuery, h.fetchTimeout)
	if err != nil {
		respondError(w, h.logger, err, "load the table")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Entities handles GET /tables and lists the table names
func (h *TableHandler) Entities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": table.Names()})
}
