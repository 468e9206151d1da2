package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/salesdesk/internal/auth"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/service"
	"go.uber.org/zap"
)

// SavedViewHandler manages the caller's named table locations
type SavedViewHandler struct {
	views    *service.SavedViewService
	sessions *SessionHandler
	logger   *zap.Logger
}

func NewSavedViewHandler(views *service.SavedViewService, sessions *SessionHandler, logger *zap.Logger) *SavedViewHandler {
	return &SavedViewHandler{
		views:    views,
		sessions: sessions,
		logger:   logger,
	}
}

// List handles GET /views, optionally filtered by ?entity=
func (h *SavedViewHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	entity := domain.Entity(r.URL.Query().Get("entity"))

	views, err := h.views.List(r.Context(), user.UserID, entity)
	if err != nil {
		respondError(w, h.logger, err, "list saved views")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": views})
}

// Create handles POST /views
func (h *SavedViewHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	var req domain.CreateSavedViewRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	view, err := h.views.Create(r.Context(), user.UserID, &req)
	if err != nil {
		respondError(w, h.logger, err, "save the view")
		return
	}

	w.Header().Set("Location", "/api/v1/views/"+view.ID.String())
	respondJSON(w, http.StatusCreated, view)
}

// Delete handles DELETE /views/{id}
func (h *SavedViewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid view ID format")
		return
	}

	if err := h.views.Delete(r.Context(), user.UserID, id); err != nil {
		respondError(w, h.logger, err, "delete the view")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Open handles POST /views/{id}/open and starts a table session at the stored location
func (h *SavedViewHandler) Open(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid view ID format")
		return
	}

	view, err := h.views.Get(r.Context(), user.UserID, id)
	if err != nil {
		respondError(w, h.logger, err, "open the view")
		return
	}

	s, err := h.sessions.sessions.Create(user.UserID, user.AccessToken, view.Entity, view.Query)
	if err != nil {
		respondError(w, h.logger, err, "open the view")
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+s.ID.String())
	h.sessions.respondSession(w, r, s, http.StatusCreated, true)
}
