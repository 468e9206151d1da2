package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/salesdesk/internal/domain"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when a unique index rejects a write
var ErrDuplicate = errors.New("duplicate record")

type SavedViewRepository struct {
	db *gorm.DB
}

func NewSavedViewRepository(db *gorm.DB) *SavedViewRepository {
	return &SavedViewRepository{db: db}
}

func (r *SavedViewRepository) Create(ctx context.Context, view *domain.SavedView) error {
	err := r.db.WithContext(ctx).Create(view).Error
	if isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns the view when it belongs to ownerID
func (r *SavedViewRepository) GetByID(ctx context.Context, id uuid.UUID, ownerID string) (*domain.SavedView, error) {
	var view domain.SavedView
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&view).Error
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListByOwner returns the owner's views ordered by name, optionally for one entity
func (r *SavedViewRepository) ListByOwner(ctx context.Context, ownerID string, entity domain.Entity) ([]domain.SavedView, error) {
	var views []domain.SavedView
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if entity != "" {
		query = query.Where("entity = ?", entity)
	}
	err := query.Order("entity ASC, name ASC").Find(&views).Error
	return views, err
}

// Delete removes the owner's view. It returns gorm.ErrRecordNotFound when nothing was deleted.
func (r *SavedViewRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.SavedView{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "sqlstate 23505")
}
