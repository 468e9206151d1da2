package mapper

import (
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/session"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// ToSavedViewDTO converts SavedView to SavedViewDTO
func ToSavedViewDTO(view *domain.SavedView) domain.SavedViewDTO {
	return domain.SavedViewDTO{
		ID:        view.ID,
		Entity:    view.Entity,
		Name:      view.Name,
		Query:     view.Query,
		CreatedAt: view.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt: view.UpdatedAt.UTC().Format(timestampLayout),
	}
}

// ToSavedViewDTOs converts a list of saved views
func ToSavedViewDTOs(views []domain.SavedView) []domain.SavedViewDTO {
	dtos := make([]domain.SavedViewDTO, 0, len(views))
	for i := range views {
		dtos = append(dtos, ToSavedViewDTO(&views[i]))
	}
	return dtos
}

// ToSessionDTO converts a live session and its current table view
func ToSessionDTO(s *session.Session) domain.SessionDTO {
	return domain.SessionDTO{
		ID:        s.ID,
		Entity:    s.Entity,
		CreatedAt: s.CreatedAt.UTC().Format(timestampLayout),
		View:      s.Table.View(),
	}
}
