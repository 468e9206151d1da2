package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/mapper"
	"github.com/straye-as/salesdesk/internal/repository"
	"github.com/straye-as/salesdesk/internal/table"
	"github.com/straye-as/salesdesk/internal/urlstate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SavedViewService handles named table locations stored per user
type SavedViewService struct {
	repo   *repository.SavedViewRepository
	logger *zap.Logger
}

// NewSavedViewService creates a new SavedViewService instance
func NewSavedViewService(repo *repository.SavedViewRepository, logger *zap.Logger) *SavedViewService {
	return &SavedViewService{
		repo:   repo,
		logger: logger,
	}
}

// List returns the owner's views, optionally limited to one table
func (s *SavedViewService) List(ctx context.Context, ownerID string, entity domain.Entity) ([]domain.SavedViewDTO, error) {
	if entity != "" {
		if _, err := table.SchemaFor(entity); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	views, err := s.repo.ListByOwner(ctx, ownerID, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved views: %w", err)
	}
	return mapper.ToSavedViewDTOs(views), nil
}

// Create stores a view. The query is normalized so that opening the view
// reproduces the table exactly.
func (s *SavedViewService) Create(ctx context.Context, ownerID string, req *domain.CreateSavedViewRequest) (*domain.SavedViewDTO, error) {
	schema, err := table.SchemaFor(req.Entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	view := &domain.SavedView{
		OwnerID: ownerID,
		Entity:  req.Entity,
		Name:    name,
		Query:   NormalizeQuery(schema, req.Query),
	}
	if err := s.repo.Create(ctx, view); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a view named %q already exists", ErrConflict, name)
		}
		return nil, fmt.Errorf("failed to create saved view: %w", err)
	}

	s.logger.Info("saved view created",
		zap.String("viewID", view.ID.String()),
		zap.String("userID", ownerID),
		zap.String("entity", string(view.Entity)),
	)

	dto := mapper.ToSavedViewDTO(view)
	return &dto, nil
}

// Get returns one of the owner's views
func (s *SavedViewService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.SavedView, error) {
	view, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get saved view: %w", err)
	}
	return view, nil
}

// Delete removes one of the owner's views
func (s *SavedViewService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete saved view: %w", err)
	}
	s.logger.Info("saved view deleted", zap.String("viewID", id.String()), zap.String("userID", ownerID))
	return nil
}

// NormalizeQuery rewrites a query to the canonical form of schema. Unknown keys are dropped.
func NormalizeQuery(schema *urlstate.Schema, raw string) string {
	return schema.Encode(schema.Parse(strings.TrimPrefix(raw, "?"))).Encode()
}
