package publication

import (
	"time"

	"living-science-documents/internal/domain"
	"living-science-documents/internal/version"
)

type CreateRequest struct {
	Title      string  `json:"title" binding:"required,min=1,max=500"`
	ShortTitle string  `json:"short_title" binding:"max=200"`
	MetaDOI    *string `json:"meta_doi" binding:"omitempty,max=200"`
}

type PublicationResponse struct {
	ID           uint64    `json:"id"`
	Title        string    `json:"title"`
	ShortTitle   string    `json:"short_title"`
	MetaDOI      *string   `json:"meta_doi"`
	OwnerID      uint64    `json:"owner_id"`
	VersionCount uint      `json:"version_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewPublicationResponse(p *domain.Publication) PublicationResponse {
	return PublicationResponse{
		ID:           p.ID,
		Title:        p.Title,
		ShortTitle:   p.ShortTitle,
		MetaDOI:      p.MetaDOI,
		OwnerID:      p.OwnerID,
		VersionCount: p.VersionSeq,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type PaginatedVersions struct {
	Data []version.VersionSummary `json:"data"`
	Meta version.VersionsMeta     `json:"meta"`
}
