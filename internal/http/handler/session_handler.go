package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/salesdesk/internal/auth"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/mapper"
	"github.com/straye-as/salesdesk/internal/session"
	"github.com/straye-as/salesdesk/internal/table"
	"github.com/straye-as/salesdesk/internal/urlstate"
	"go.uber.org/zap"
)

// SessionHandler forwards UI interactions to live table sessions
type SessionHandler struct {
	sessions *session.Manager
	// settleTimeout bounds how long a response waits for the fetches an
	// interaction started; after that the view is returned still loading
	settleTimeout time.Duration
	logger        *zap.Logger
}

func NewSessionHandler(sessions *session.Manager, settleTimeout time.Duration, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:      sessions,
		settleTimeout: settleTimeout,
		logger:        logger,
	}
}

// Create handles POST /tables/{entity}/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	entity := domain.Entity(chi.URLParam(r, "entity"))

	var req domain.CreateSessionRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	s, err := h.sessions.Create(user.UserID, user.AccessToken, entity, req.Query)
	if err != nil {
		respondError(w, h.logger, err, "open the table")
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+s.ID.String())
	h.respondSession(w, r, s, http.StatusCreated, true)
}

// Get handles GET /sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondSession(w, r, s, http.StatusOK, r.URL.Query().Get("wait") == "true")
}

// Delete handles DELETE /sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	if err := h.sessions.Delete(id, user.UserID); err != nil {
		respondError(w, h.logger, err, "close the table")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles PUT /sessions/{id}/search. The value is debounced, so the
// response does not wait for the resulting fetch unless flush=true.
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	s, ok := h.lookupWithBody(w, r, &req)
	if !ok {
		return
	}
	s.Table.SetSearch(req.Value)
	flush := r.URL.Query().Get("flush") == "true"
	if flush {
		s.Table.FlushSearch()
	}
	h.respondSession(w, r, s, http.StatusOK, flush)
}

// Stage handles PUT /sessions/{id}/stage
func (h *SessionHandler) Stage(w http.ResponseWriter, r *http.Request) {
	var req domain.StageRequest
	h.mutateWithBody(w, r, &req, "change the stage", func(t table.Table) error {
		return t.SetStage(req.Stage)
	})
}

// Filter handles PUT /sessions/{id}/filters/{name}. A values list replaces a
// multi-select filter; a single value sets either kind.
func (h *SessionHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req domain.FilterRequest
	name := chi.URLParam(r, "name")
	h.mutateWithBody(w, r, &req, "apply the filter", func(t table.Table) error {
		if req.Values != nil {
			return t.SetMultiFilter(name, req.Values)
		}
		return t.SetFilter(name, req.Value)
	})
}

// ToggleFilter handles POST /sessions/{id}/filters/{name}/toggle
func (h *SessionHandler) ToggleFilter(w http.ResponseWriter, r *http.Request) {
	var req domain.ToggleFilterRequest
	name := chi.URLParam(r, "name")
	h.mutateWithBody(w, r, &req, "apply the filter", func(t table.Table) error {
		return t.ToggleFilter(name, req.Value)
	})
}

// ClearFilters handles DELETE /sessions/{id}/filters
func (h *SessionHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "clear the filters", func(t table.Table) error {
		t.ClearFilters()
		return nil
	})
}

// DateRange handles PUT /sessions/{id}/date-range. Both ends or neither;
// neither clears the range.
func (h *SessionHandler) DateRange(w http.ResponseWriter, r *http.Request) {
	var req domain.DateRangeRequest
	s, ok := h.lookupWithBody(w, r, &req)
	if !ok {
		return
	}

	var dateRange *urlstate.DateRange
	switch {
	case req.From == "" && req.To == "":
	case req.From == "" || req.To == "":
		respondWithError(w, http.StatusBadRequest, "A date range needs both from and to")
		return
	default:
		from, errFrom := time.Parse(urlstate.DateLayout, req.From)
		to, errTo := time.Parse(urlstate.DateLayout, req.To)
		if errFrom != nil || errTo != nil {
			respondWithError(w, http.StatusBadRequest, "Dates must use the yyyy-MM-dd format")
			return
		}
		if to.Before(from) {
			respondWithError(w, http.StatusBadRequest, "The range must not end before it starts")
			return
		}
		dateRange = &urlstate.DateRange{From: from, To: to}
	}

	s.Table.SetDateRange(dateRange)
	h.respondSession(w, r, s, http.StatusOK, true)
}

// Page handles POST /sessions/{id}/page
func (h *SessionHandler) Page(w http.ResponseWriter, r *http.Request) {
	var req domain.PageRequest
	h.mutateWithBody(w, r, &req, "change the page", func(t table.Table) error {
		switch req.Action {
		case "next":
			t.NextPage()
		case "prev":
			t.PrevPage()
		case "jump":
			t.JumpToPage(*req.Page)
		}
		return nil
	})
}

// PageSize handles PUT /sessions/{id}/page-size
func (h *SessionHandler) PageSize(w http.ResponseWriter, r *http.Request) {
	var req domain.PageSizeRequest
	h.mutateWithBody(w, r, &req, "change the page size", func(t table.Table) error {
		return t.SetPageSize(req.PageSize)
	})
}

// Sort handles POST /sessions/{id}/sort/{column}. multi=true adds the column
// to the existing sort instead of replacing it.
func (h *SessionHandler) Sort(w http.ResponseWriter, r *http.Request) {
	column := chi.URLParam(r, "column")
	multi, _ := strconv.ParseBool(r.URL.Query().Get("multi"))
	h.mutate(w, r, "sort the table", func(t table.Table) error {
		return t.ToggleSort(column, multi)
	})
}

// Column handles PUT /sessions/{id}/columns/{column}
func (h *SessionHandler) Column(w http.ResponseWriter, r *http.Request) {
	var req domain.ColumnVisibilityRequest
	column := chi.URLParam(r, "column")
	h.mutateWithBody(w, r, &req, "change the column", func(t table.Table) error {
		return t.SetColumnVisible(column, *req.Visible)
	})
}

// SelectRow handles PUT /sessions/{id}/selection/{rowId}
func (h *SessionHandler) SelectRow(w http.ResponseWriter, r *http.Request) {
	var req domain.SelectionRequest
	rowID := chi.URLParam(r, "rowId")
	h.mutateWithBody(w, r, &req, "change the selection", func(t table.Table) error {
		return t.Select(rowID, *req.Selected)
	})
}

// SelectPage handles PUT /sessions/{id}/selection and covers the current page only
func (h *SessionHandler) SelectPage(w http.ResponseWriter, r *http.Request) {
	var req domain.SelectionRequest
	h.mutateWithBody(w, r, &req, "change the selection", func(t table.Table) error {
		t.SelectPage(*req.Selected)
		return nil
	})
}

// Refresh handles POST /sessions/{id}/refresh
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "refresh the table", func(t table.Table) error {
		t.Refresh()
		return nil
	})
}

// UpdatePriority handles POST /sessions/{id}/actions/priority for the selected rows
func (h *SessionHandler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkPriorityRequest
	h.mutateWithBody(w, r, &req, "update the priority", func(t table.Table) error {
		ctx, cancel := context.WithTimeout(r.Context(), h.settleTimeout)
		defer cancel()
		return t.UpdatePriority(ctx, string(req.Priority))
	})
}

// UpdateStatus handles POST /sessions/{id}/actions/status for one row
func (h *SessionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.StatusUpdateRequest
	h.mutateWithBody(w, r, &req, "update the status", func(t table.Table) error {
		ctx, cancel := context.WithTimeout(r.Context(), h.settleTimeout)
		defer cancel()
		return t.UpdateStatus(ctx, req.ID, req.Status)
	})
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	user := auth.MustFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid session ID format")
		return nil, false
	}
	s, err := h.sessions.Get(id, user.UserID, user.AccessToken)
	if err != nil {
		respondError(w, h.logger, err, "find the table")
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) lookupWithBody(w http.ResponseWriter, r *http.Request, req interface{}) (*session.Session, bool) {
	s, ok := h.lookup(w, r)
	if !ok || !decodeRequest(w, r, req) {
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) mutate(w http.ResponseWriter, r *http.Request, action string, fn func(table.Table) error) {
	if s, ok := h.lookup(w, r); ok {
		h.apply(w, r, s, action, fn)
	}
}

func (h *SessionHandler) mutateWithBody(w http.ResponseWriter, r *http.Request, req interface{}, action string, fn func(table.Table) error) {
	if s, ok := h.lookupWithBody(w, r, req); ok {
		h.apply(w, r, s, action, fn)
	}
}

func (h *SessionHandler) apply(w http.ResponseWriter, r *http.Request, s *session.Session, action string, fn func(table.Table) error) {
	if err := fn(s.Table); err != nil {
		respondError(w, h.logger, err, action)
		return
	}
	h.respondSession(w, r, s, http.StatusOK, true)
}

// respondSession writes the session view, first waiting for the table to
// settle when wait is set
func (h *SessionHandler) respondSession(w http.ResponseWriter, r *http.Request, s *session.Session, status int, wait bool) {
	if wait {
		ctx, cancel := context.WithTimeout(r.Context(), h.settleTimeout)
		defer cancel()
		if err := s.Table.Settle(ctx); err != nil {
			h.logger.Debug("responding before the table settled",
				zap.String("session_id", s.ID.String()),
				zap.Error(err))
		}
	}
	respondJSON(w, status, mapper.ToSessionDTO(s))
}
