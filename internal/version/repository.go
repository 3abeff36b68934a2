package version

import (
	"context"
	"time"

	"living-science-documents/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the Version Store. Reads return gorm.ErrRecordNotFound when
// nothing matches.
type Repository interface {
	CreatePublication(ctx context.Context, pub *domain.Publication) error
	FindPublication(ctx context.Context, id uint64) (*domain.Publication, error)

	FindByID(ctx context.Context, id uint64) (*domain.DocumentVersion, error)
	Latest(ctx context.Context, publicationID uint64) (*domain.DocumentVersion, error)
	CurrentPublic(ctx context.Context, publicationID uint64) (*domain.DocumentVersion, error)
	// ListByPublication pages through versions newest first. publicOnly hides
	// versions that are neither published nor archived.
	ListByPublication(ctx context.Context, publicationID uint64, publicOnly bool, page, pageSize int) ([]domain.DocumentVersion, VersionsMeta, error)
	CountVersions(ctx context.Context, publicationID uint64) (int64, error)
	// ListOpenBefore returns versions numbered below number whose discussion is open.
	ListOpenBefore(ctx context.Context, publicationID uint64, number uint) ([]domain.DocumentVersion, error)
	ListRetryPending(ctx context.Context, limit int) ([]domain.DocumentVersion, error)

	// NextVersionNumber bumps the publication counter and returns the new value.
	NextVersionNumber(ctx context.Context, publicationID uint64) (uint, error)
	// Insert stores v together with its child rows.
	Insert(ctx context.Context, v *domain.DocumentVersion) error
	// SaveState writes the status and audit columns of v. Content is never touched.
	SaveState(ctx context.Context, v *domain.DocumentVersion) error

	// WithPublicationLock runs fn atomically while holding the publication row lock.
	WithPublicationLock(ctx context.Context, publicationID uint64, fn func(repo Repository) error) error
}

type VersionsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func newMeta(total int64, page, pageSize int) VersionsMeta {
	return VersionsMeta{
		Total:       total,
		CurrentPage: page,
		PerPage:     pageSize,
		TotalPage:   int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

// stateColumns are the only columns SaveState may write.
var stateColumns = []string{
	"status", "status_date", "status_user_id", "release_date",
	"discussion_status", "discussion_closed_at", "discussion_closed_by_id",
	"doi_status", "doi_retry_pending",
	"updated_at", "updated_by_id",
}

type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates the postgres backed store
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) CreatePublication(ctx context.Context, pub *domain.Publication) error {
	now := time.Now().UTC()
	pub.CreatedAt = now
	pub.UpdatedAt = now
	return r.db.WithContext(ctx).Create(pub).Error
}

func (r *RepositoryImpl) FindPublication(ctx context.Context, id uint64) (*domain.Publication, error) {
	var pub domain.Publication
	if err := r.db.WithContext(ctx).First(&pub, id).Error; err != nil {
		return nil, err
	}
	return &pub, nil
}

// withChildren preloads every child collection in its display order.
func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Authors", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Preload("Figures", func(db *gorm.DB) *gorm.DB { return db.Order("figure_number, id") }).
		Preload("Tables", func(db *gorm.DB) *gorm.DB { return db.Order("table_number, id") }).
		Preload("Keywords", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") })
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	if err := withChildren(r.db.WithContext(ctx)).First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *RepositoryImpl) Latest(ctx context.Context, publicationID uint64) (*domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	err := withChildren(r.db.WithContext(ctx)).
		Where("publication_id = ?", publicationID).
		Order("version_number DESC").
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *RepositoryImpl) CurrentPublic(ctx context.Context, publicationID uint64) (*domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	err := withChildren(r.db.WithContext(ctx)).
		Where("publication_id = ? AND status = ?", publicationID, domain.StatusPublished).
		Order("version_number DESC").
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *RepositoryImpl) ListByPublication(ctx context.Context, publicationID uint64, publicOnly bool, page, pageSize int) ([]domain.DocumentVersion, VersionsMeta, error) {
	var versions []domain.DocumentVersion
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("publication_id = ?", publicationID)
		if publicOnly {
			db = db.Where("status IN ?", []domain.EditorialStatus{domain.StatusPublished, domain.StatusArchived})
		}
		return db
	}

	db := r.db.WithContext(ctx)
	if err := db.Model(&domain.DocumentVersion{}).
		Scopes(scope).
		Count(&total).Error; err != nil {
		return nil, VersionsMeta{}, err
	}

	err := db.Scopes(scope).
		Order("version_number DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&versions).Error

	return versions, newMeta(total, page, pageSize), err
}

func (r *RepositoryImpl) CountVersions(ctx context.Context, publicationID uint64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&domain.DocumentVersion{}).
		Where("publication_id = ?", publicationID).
		Count(&total).Error
	return total, err
}

func (r *RepositoryImpl) ListOpenBefore(ctx context.Context, publicationID uint64, number uint) ([]domain.DocumentVersion, error) {
	var versions []domain.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("publication_id = ? AND version_number < ? AND discussion_status = ?",
			publicationID, number, domain.DiscussionOpen).
		Order("version_number").
		Find(&versions).Error
	return versions, err
}

func (r *RepositoryImpl) ListRetryPending(ctx context.Context, limit int) ([]domain.DocumentVersion, error) {
	var versions []domain.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("doi_retry_pending = ?", true).
		Order("updated_at").
		Limit(limit).
		Find(&versions).Error
	return versions, err
}

func (r *RepositoryImpl) NextVersionNumber(ctx context.Context, publicationID uint64) (uint, error) {
	var seq uint
	err := r.db.WithContext(ctx).Raw(`
		UPDATE publications
		SET version_seq = version_seq + 1,
		    updated_at = ?
		WHERE id = ?
		RETURNING version_seq
	`, time.Now().UTC(), publicationID).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	if seq == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return seq, nil
}

func (r *RepositoryImpl) Insert(ctx context.Context, v *domain.DocumentVersion) error {
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *RepositoryImpl) SaveState(ctx context.Context, v *domain.DocumentVersion) error {
	v.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.DocumentVersion{ID: v.ID}).
		Select(stateColumns).
		Updates(v)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *RepositoryImpl) WithPublicationLock(ctx context.Context, publicationID uint64, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pub domain.Publication
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&pub, publicationID).Error; err != nil {
			return err
		}
		return fn(&RepositoryImpl{db: tx})
	})
}
