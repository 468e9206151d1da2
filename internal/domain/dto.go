package domain

import (
	"github.com/google/uuid"
)

// ServerPage is the backend list envelope. Data holds at most pageSize items;
// fewer only on the last page.
type ServerPage[T any] struct {
	Data  []T   `json:"data"`
	Total int64 `json:"total"`
}

// StageCounts maps a stage or status value to its row count
type StageCounts map[string]int64

// StageCountsResponse is the backend counts envelope
type StageCountsResponse struct {
	StageCounts StageCounts `json:"stageCounts"`
}

// Notification is a transient user-visible message
type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Request DTOs

type CreateSessionRequest struct {
	Query string `json:"query" validate:"max=4096"`
}

type SearchRequest struct {
	Value string `json:"value" validate:"max=200"`
}

type StageRequest struct {
	Stage string `json:"stage" validate:"max=50"`
}

type FilterRequest struct {
	Value  string   `json:"value,omitempty" validate:"max=100"`
	Values []string `json:"values,omitempty" validate:"omitempty,max=50,dive,required,max=100"`
}

type ToggleFilterRequest struct {
	Value string `json:"value" validate:"required,max=100"`
}

type DateRangeRequest struct {
	From string `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// PageRequest moves the table. Page is a pointer so that a jump to page 0
// is clamped rather than treated as missing.
type PageRequest struct {
	Action string `json:"action" validate:"required,oneof=next prev jump"`
	Page   *int   `json:"page,omitempty" validate:"required_if=Action jump"`
}

type PageSizeRequest struct {
	PageSize int `json:"pageSize" validate:"required,gt=0"`
}

type ColumnVisibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

type SelectionRequest struct {
	Selected *bool `json:"selected" validate:"required"`
}

type BulkPriorityRequest struct {
	Priority Priority `json:"priority" validate:"required,oneof=low medium high"`
}

type StatusUpdateRequest struct {
	ID     string `json:"id" validate:"required,max=100"`
	Status string `json:"status" validate:"required,max=50"`
}

type CreateSavedViewRequest struct {
	Entity Entity `json:"entity" validate:"required,oneof=leads groups tasks handovers"`
	Name   string `json:"name" validate:"required,max=200"`
	Query  string `json:"query" validate:"max=4096"`
}

// Response DTOs

type SavedViewDTO struct {
	ID        uuid.UUID `json:"id"`
	Entity    Entity    `json:"entity"`
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

// SessionDTO describes a live table session and its current view
type SessionDTO struct {
	ID        uuid.UUID `json:"id"`
	Entity    Entity    `json:"entity"`
	CreatedAt string    `json:"createdAt"`
	View      any       `json:"view"`
}
