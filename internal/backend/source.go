package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/straye-as/salesdesk/internal/domain"
)

// Endpoints are the backend paths of one table
type Endpoints struct {
	List   string
	Counts string
	// Priority accepts PATCH {ids, priority}
	Priority string
	// Status accepts PATCH {status}; "{id}" is replaced with the row id
	Status string
}

// Source binds a client, the caller's credentials and a table's endpoints
type Source[T any] struct {
	client    *Client
	creds     Credentials
	endpoints Endpoints
}

// NewSource creates a table source
func NewSource[T any](client *Client, creds Credentials, endpoints Endpoints) *Source[T] {
	return &Source[T]{client: client, creds: creds, endpoints: endpoints}
}

// FetchPage loads one page of rows
func (s *Source[T]) FetchPage(ctx context.Context, params url.Values) (domain.ServerPage[T], error) {
	var page domain.ServerPage[T]
	if err := s.client.Get(ctx, s.creds, s.endpoints.List, params, &page); err != nil {
		return domain.ServerPage[T]{}, err
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	if page.Total < 0 {
		page.Total = 0
	}
	return page, nil
}

// FetchCounts loads the per-stage counts
func (s *Source[T]) FetchCounts(ctx context.Context, params url.Values) (domain.StageCounts, error) {
	if s.endpoints.Counts == "" {
		return nil, ErrUnsupported
	}
	var resp domain.StageCountsResponse
	if err := s.client.Get(ctx, s.creds, s.endpoints.Counts, params, &resp); err != nil {
		return nil, err
	}
	if resp.StageCounts == nil {
		resp.StageCounts = domain.StageCounts{}
	}
	return resp.StageCounts, nil
}

// UpdatePriority sets the priority of the listed rows
func (s *Source[T]) UpdatePriority(ctx context.Context, ids []string, priority string) error {
	if s.endpoints.Priority == "" {
		return ErrUnsupported
	}
	body := map[string]any{"ids": ids, "priority": priority}
	return s.client.Send(ctx, s.creds, http.MethodPatch, s.endpoints.Priority, body, nil)
}

// UpdateStatus sets the status of one row
func (s *Source[T]) UpdateStatus(ctx context.Context, id, status string) error {
	if s.endpoints.Status == "" {
		return ErrUnsupported
	}
	path := strings.ReplaceAll(s.endpoints.Status, "{id}", url.PathEscape(id))
	return s.client.Send(ctx, s.creds, http.MethodPatch, path, map[string]string{"status": status}, nil)
}
