package domain

import (
	"time"
)

// Publication is the container that groups the versions of one scientific work.
type Publication struct {
	ID         uint64  `gorm:"primaryKey"`
	Title      string  `gorm:"size:500;not null"`
	ShortTitle string  `gorm:"size:200"`
	MetaDOI    *string `gorm:"column:meta_doi;size:200;uniqueIndex"`
	OwnerID    uint64  `gorm:"column:editorial_board_id;index"`
	// VersionSeq is the highest version number ever assigned.
	VersionSeq uint `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentVersion is one citable rendition of a publication.
type DocumentVersion struct {
	ID            uint64 `gorm:"primaryKey"`
	PublicationID uint64 `gorm:"not null;uniqueIndex:idx_publication_version_number"`
	VersionNumber uint   `gorm:"not null;uniqueIndex:idx_publication_version_number"`
	DOI           string `gorm:"column:doi;size:200;not null;uniqueIndex"`

	ContentFields `gorm:"embedded"`

	Status       EditorialStatus `gorm:"size:20;not null;default:draft;index"`
	StatusDate   time.Time
	StatusUserID *uint64
	ReleaseDate  *time.Time `gorm:"type:date"`

	DiscussionStatus     DiscussionStatus `gorm:"size:20;not null;default:open"`
	DiscussionClosedAt   *time.Time
	DiscussionClosedByID *uint64

	DOIStatus       IdentifierStatus `gorm:"column:doi_status;size:20;not null;default:draft"`
	DOIRetryPending bool             `gorm:"column:doi_retry_pending;not null;default:false;index"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	UpdatedByID *uint64

	Authors     []Author     `gorm:"foreignKey:DocumentVersionID;constraint:OnDelete:CASCADE"`
	Figures     []Figure     `gorm:"foreignKey:DocumentVersionID;constraint:OnDelete:CASCADE"`
	Tables      []Table      `gorm:"foreignKey:DocumentVersionID;constraint:OnDelete:CASCADE"`
	Keywords    []Keyword    `gorm:"foreignKey:DocumentVersionID;constraint:OnDelete:CASCADE"`
	Attachments []Attachment `gorm:"foreignKey:DocumentVersionID;constraint:OnDelete:CASCADE"`
}

type Author struct {
	ID                uint64 `gorm:"primaryKey"`
	DocumentVersionID uint64 `gorm:"not null;index"`
	Name              string `gorm:"size:255;not null"`
	Address           string
	Institution       string  `gorm:"size:255"`
	Email             string  `gorm:"size:255"`
	ORCID             string  `gorm:"column:orcid;size:50"`
	UserID            *uint64 `gorm:"index"`
	Order             int     `gorm:"column:sort_order;not null;default:0"`
	IsCorresponding   bool
	CreatedAt         time.Time
}

type Figure struct {
	ID                uint64 `gorm:"primaryKey"`
	DocumentVersionID uint64 `gorm:"not null;uniqueIndex:idx_version_figure_number"`
	FigureNumber      int    `gorm:"not null;uniqueIndex:idx_version_figure_number"`
	Title             string `gorm:"size:500"`
	Caption           string
	ImagePath         string `gorm:"size:500"`
	CreatedAt         time.Time
}

type Table struct {
	ID                uint64 `gorm:"primaryKey"`
	DocumentVersionID uint64 `gorm:"not null;uniqueIndex:idx_version_table_number"`
	TableNumber       int    `gorm:"not null;uniqueIndex:idx_version_table_number"`
	Title             string `gorm:"size:500"`
	Caption           string
	Content           string
	CreatedAt         time.Time
}

// TableName avoids the bare "tables" relation name.
func (Table) TableName() string { return "document_tables" }

type Keyword struct {
	ID                uint64 `gorm:"primaryKey"`
	DocumentVersionID uint64 `gorm:"not null;uniqueIndex:idx_version_keyword"`
	Keyword           string `gorm:"size:100;not null;uniqueIndex:idx_version_keyword"`
	Position          int    `gorm:"not null;default:0"`
	CreatedAt         time.Time
}

type Attachment struct {
	ID                uint64 `gorm:"primaryKey"`
	DocumentVersionID uint64 `gorm:"not null;index"`
	Title             string `gorm:"size:255;not null"`
	Description       string
	FilePath          string `gorm:"size:500"`
	FileType          string `gorm:"size:50"`
	Position          int    `gorm:"not null;default:0"`
	CreatedAt         time.Time
}

// HasContributor reports whether userID is linked to one of the version authors.
func (v *DocumentVersion) HasContributor(userID uint64) bool {
	for _, a := range v.Authors {
		if a.UserID != nil && *a.UserID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of v, ids included.
func (v *DocumentVersion) Clone() *DocumentVersion {
	c := *v
	c.StatusUserID = cloneID(v.StatusUserID)
	c.DiscussionClosedByID = cloneID(v.DiscussionClosedByID)
	c.UpdatedByID = cloneID(v.UpdatedByID)
	c.ReleaseDate = cloneTime(v.ReleaseDate)
	c.DiscussionClosedAt = cloneTime(v.DiscussionClosedAt)
	c.Authors = append([]Author(nil), v.Authors...)
	for i := range c.Authors {
		c.Authors[i].UserID = cloneID(c.Authors[i].UserID)
	}
	c.Figures = append([]Figure(nil), v.Figures...)
	c.Tables = append([]Table(nil), v.Tables...)
	c.Keywords = append([]Keyword(nil), v.Keywords...)
	c.Attachments = append([]Attachment(nil), v.Attachments...)
	return &c
}

// DetachedChildren copies every child row of v with ids and owner references
// cleared, ready to be inserted under a new version. Ordering fields are kept.
func (v *DocumentVersion) DetachedChildren() ([]Author, []Figure, []Table, []Keyword, []Attachment) {
	c := v.Clone()
	for i := range c.Authors {
		c.Authors[i].ID, c.Authors[i].DocumentVersionID = 0, 0
		c.Authors[i].CreatedAt = time.Time{}
	}
	for i := range c.Figures {
		c.Figures[i].ID, c.Figures[i].DocumentVersionID = 0, 0
		c.Figures[i].CreatedAt = time.Time{}
	}
	for i := range c.Tables {
		c.Tables[i].ID, c.Tables[i].DocumentVersionID = 0, 0
		c.Tables[i].CreatedAt = time.Time{}
	}
	for i := range c.Keywords {
		c.Keywords[i].ID, c.Keywords[i].DocumentVersionID = 0, 0
		c.Keywords[i].CreatedAt = time.Time{}
	}
	for i := range c.Attachments {
		c.Attachments[i].ID, c.Attachments[i].DocumentVersionID = 0, 0
		c.Attachments[i].CreatedAt = time.Time{}
	}
	return c.Authors, c.Figures, c.Tables, c.Keywords, c.Attachments
}

func cloneID(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
