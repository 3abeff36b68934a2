package version

import (
	"time"

	"living-science-documents/internal/domain"
)

type EditRequest struct {
	Content domain.ContentPatch     `json:"content"`
	Status  *domain.EditorialStatus `json:"status"`
}

// EditResult tells whether ProposeEdit materialised a new version.
type EditResult struct {
	Created bool                    `json:"created"`
	Version *domain.DocumentVersion `json:"-"`
}

type ReviewRequest struct {
	Decision domain.ReviewDecision `json:"decision" binding:"required,oneof=accept revise reject"`
}

type AuthorInput struct {
	Name            string  `json:"name" binding:"required,max=255"`
	Address         string  `json:"address"`
	Institution     string  `json:"institution" binding:"max=255"`
	Email           string  `json:"email" binding:"omitempty,email"`
	ORCID           string  `json:"orcid" binding:"max=50"`
	UserID          *uint64 `json:"user_id"`
	Order           int     `json:"order"`
	IsCorresponding bool    `json:"is_corresponding"`
}

type FigureInput struct {
	FigureNumber int    `json:"figure_number" binding:"required,min=1"`
	Title        string `json:"title"`
	Caption      string `json:"caption"`
	ImagePath    string `json:"image_path"`
}

type TableInput struct {
	TableNumber int    `json:"table_number" binding:"required,min=1"`
	Title       string `json:"title"`
	Caption     string `json:"caption"`
	Content     string `json:"content"`
}

type AttachmentInput struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	FilePath    string `json:"file_path"`
	FileType    string `json:"file_type"`
	Position    int    `json:"position"`
}

// InitialVersionRequest creates version 1 of a publication.
type InitialVersionRequest struct {
	Content     domain.ContentFields `json:"content"`
	Authors     []AuthorInput        `json:"authors" binding:"required,min=1,dive"`
	Figures     []FigureInput        `json:"figures" binding:"dive"`
	Tables      []TableInput         `json:"tables" binding:"dive"`
	Keywords    []string             `json:"keywords" binding:"dive,required,max=100"`
	Attachments []AttachmentInput    `json:"attachments" binding:"dive"`
}

func (r InitialVersionRequest) children() ([]domain.Author, []domain.Figure, []domain.Table, []domain.Keyword, []domain.Attachment) {
	authors := make([]domain.Author, 0, len(r.Authors))
	for _, a := range r.Authors {
		authors = append(authors, domain.Author{
			Name:            a.Name,
			Address:         a.Address,
			Institution:     a.Institution,
			Email:           a.Email,
			ORCID:           a.ORCID,
			UserID:          a.UserID,
			Order:           a.Order,
			IsCorresponding: a.IsCorresponding,
		})
	}
	figures := make([]domain.Figure, 0, len(r.Figures))
	for _, f := range r.Figures {
		figures = append(figures, domain.Figure{FigureNumber: f.FigureNumber, Title: f.Title, Caption: f.Caption, ImagePath: f.ImagePath})
	}
	tables := make([]domain.Table, 0, len(r.Tables))
	for _, t := range r.Tables {
		tables = append(tables, domain.Table{TableNumber: t.TableNumber, Title: t.Title, Caption: t.Caption, Content: t.Content})
	}
	keywords := make([]domain.Keyword, 0, len(r.Keywords))
	for i, k := range r.Keywords {
		keywords = append(keywords, domain.Keyword{Keyword: k, Position: i})
	}
	attachments := make([]domain.Attachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		attachments = append(attachments, domain.Attachment{
			Title:       a.Title,
			Description: a.Description,
			FilePath:    a.FilePath,
			FileType:    a.FileType,
			Position:    a.Position,
		})
	}
	return authors, figures, tables, keywords, attachments
}

type AuthorResponse struct {
	ID              uint64  `json:"id"`
	Name            string  `json:"name"`
	Institution     string  `json:"institution,omitempty"`
	ORCID           string  `json:"orcid,omitempty"`
	UserID          *uint64 `json:"user_id,omitempty"`
	Order           int     `json:"order"`
	IsCorresponding bool    `json:"is_corresponding"`
}

type FigureResponse struct {
	ID           uint64 `json:"id"`
	FigureNumber int    `json:"figure_number"`
	Title        string `json:"title"`
	Caption      string `json:"caption"`
	ImagePath    string `json:"image_path"`
}

type TableResponse struct {
	ID          uint64 `json:"id"`
	TableNumber int    `json:"table_number"`
	Title       string `json:"title"`
	Caption     string `json:"caption"`
	Content     string `json:"content"`
}

type AttachmentResponse struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FilePath    string `json:"file_path"`
	FileType    string `json:"file_type"`
	Position    int    `json:"position"`
}

// VersionResponse is the public projection of a version.
type VersionResponse struct {
	ID               uint64                  `json:"id"`
	PublicationID    uint64                  `json:"publication_id"`
	VersionNumber    uint                    `json:"version_number"`
	DOI              string                  `json:"doi"`
	Status           domain.EditorialStatus  `json:"status"`
	StatusDate       time.Time               `json:"status_date"`
	ReleaseDate      *time.Time              `json:"release_date"`
	DiscussionStatus domain.DiscussionStatus `json:"discussion_status"`
	DOIStatus        domain.IdentifierStatus `json:"doi_status"`
	DOIRetryPending  bool                    `json:"doi_retry_pending"`
	Content          domain.ContentFields    `json:"content"`
	Authors          []AuthorResponse        `json:"authors"`
	Figures          []FigureResponse        `json:"figures"`
	Tables           []TableResponse         `json:"tables"`
	Keywords         []string                `json:"keywords"`
	Attachments      []AttachmentResponse    `json:"attachments"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
	UpdatedByID      *uint64                 `json:"updated_by_id,omitempty"`
}

// VersionSummary is used in listings, without content or children.
type VersionSummary struct {
	ID               uint64                  `json:"id"`
	VersionNumber    uint                    `json:"version_number"`
	DOI              string                  `json:"doi"`
	Status           domain.EditorialStatus  `json:"status"`
	ReleaseDate      *time.Time              `json:"release_date"`
	DiscussionStatus domain.DiscussionStatus `json:"discussion_status"`
	DOIStatus        domain.IdentifierStatus `json:"doi_status"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func NewVersionResponse(v *domain.DocumentVersion) VersionResponse {
	r := VersionResponse{
		ID:               v.ID,
		PublicationID:    v.PublicationID,
		VersionNumber:    v.VersionNumber,
		DOI:              v.DOI,
		Status:           v.Status,
		StatusDate:       v.StatusDate,
		ReleaseDate:      v.ReleaseDate,
		DiscussionStatus: v.DiscussionStatus,
		DOIStatus:        v.DOIStatus,
		DOIRetryPending:  v.DOIRetryPending,
		Content:          v.ContentFields,
		Authors:          make([]AuthorResponse, 0, len(v.Authors)),
		Figures:          make([]FigureResponse, 0, len(v.Figures)),
		Tables:           make([]TableResponse, 0, len(v.Tables)),
		Keywords:         make([]string, 0, len(v.Keywords)),
		Attachments:      make([]AttachmentResponse, 0, len(v.Attachments)),
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
		UpdatedByID:      v.UpdatedByID,
	}
	for _, a := range v.Authors {
		r.Authors = append(r.Authors, AuthorResponse{
			ID: a.ID, Name: a.Name, Institution: a.Institution, ORCID: a.ORCID,
			UserID: a.UserID, Order: a.Order, IsCorresponding: a.IsCorresponding,
		})
	}
	for _, f := range v.Figures {
		r.Figures = append(r.Figures, FigureResponse{ID: f.ID, FigureNumber: f.FigureNumber, Title: f.Title, Caption: f.Caption, ImagePath: f.ImagePath})
	}
	for _, t := range v.Tables {
		r.Tables = append(r.Tables, TableResponse{ID: t.ID, TableNumber: t.TableNumber, Title: t.Title, Caption: t.Caption, Content: t.Content})
	}
	for _, k := range v.Keywords {
		r.Keywords = append(r.Keywords, k.Keyword)
	}
	for _, a := range v.Attachments {
		r.Attachments = append(r.Attachments, AttachmentResponse{
			ID: a.ID, Title: a.Title, Description: a.Description,
			FilePath: a.FilePath, FileType: a.FileType, Position: a.Position,
		})
	}
	return r
}

func NewVersionSummary(v *domain.DocumentVersion) VersionSummary {
	return VersionSummary{
		ID:               v.ID,
		VersionNumber:    v.VersionNumber,
		DOI:              v.DOI,
		Status:           v.Status,
		ReleaseDate:      v.ReleaseDate,
		DiscussionStatus: v.DiscussionStatus,
		DOIStatus:        v.DOIStatus,
		UpdatedAt:        v.UpdatedAt,
	}
}
