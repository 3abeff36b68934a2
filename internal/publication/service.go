// Package publication serves the container view of a work: its metadata and
// the queries that pick one of its versions.
package publication

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"living-science-documents/internal/access"
	"living-science-documents/internal/cache"
	"living-science-documents/internal/domain"
	"living-science-documents/internal/errors"
	"living-science-documents/internal/identifier"
	"living-science-documents/internal/version"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const cacheTTL = time.Hour

type Service interface {
	CreatePublication(ctx context.Context, actor domain.Principal, req CreateRequest) (*domain.Publication, error)
	GetPublication(ctx context.Context, id uint64) (*domain.Publication, error)
	// LatestVersion returns the highest numbered version regardless of status.
	LatestVersion(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)
	// CurrentPublicVersion returns the highest numbered published version.
	CurrentPublicVersion(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)
	ListVersions(ctx context.Context, actor domain.Principal, id uint64, page, pageSize int) (*PaginatedVersions, error)
}

type DefaultService struct {
	repo  version.Repository
	cache *cache.Cache
	log   zerolog.Logger
}

// NewService builds the publication service. A nil cache disables caching.
func NewService(repo version.Repository, c *cache.Cache, log zerolog.Logger) *DefaultService {
	return &DefaultService{repo: repo, cache: c, log: log}
}

func (s *DefaultService) CreatePublication(ctx context.Context, actor domain.Principal, req CreateRequest) (*domain.Publication, error) {
	if actor.UserID == 0 {
		return nil, errors.Unauthorized("Authentication required", nil)
	}
	if req.MetaDOI != nil && !identifier.Valid(*req.MetaDOI) {
		return nil, errors.UnprocessableEntity("meta_doi is not a valid DOI", nil)
	}

	pub := &domain.Publication{
		Title:      req.Title,
		ShortTitle: req.ShortTitle,
		MetaDOI:    req.MetaDOI,
		OwnerID:    actor.UserID,
	}
	if err := s.repo.CreatePublication(ctx, pub); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Conflict("meta_doi is already used by another publication", err)
		}
		return nil, err
	}
	s.log.Info().Uint64("publication_id", pub.ID).Uint64("owner_id", pub.OwnerID).Msg("publication created")
	return pub, nil
}

func (s *DefaultService) GetPublication(ctx context.Context, id uint64) (*domain.Publication, error) {
	pub, err := s.repo.FindPublication(ctx, id)
	if err != nil {
		return nil, notFound(err, "Publication not found")
	}
	return pub, nil
}

func (s *DefaultService) LatestVersion(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	pub, err := s.GetPublication(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.cached(ctx, id, "latest", func() (*domain.DocumentVersion, error) {
		return s.repo.Latest(ctx, id)
	})
	if err != nil {
		return nil, notFound(err, "Publication has no versions")
	}
	if !access.Resolve(actor, access.FactsFor(actor, pub, v)).Can(access.Read) {
		return nil, errors.NotFound("Publication has no visible latest version", nil)
	}
	return v, nil
}

func (s *DefaultService) CurrentPublicVersion(ctx context.Context, _ domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	if _, err := s.GetPublication(ctx, id); err != nil {
		return nil, err
	}
	v, err := s.cached(ctx, id, "current", func() (*domain.DocumentVersion, error) {
		return s.repo.CurrentPublic(ctx, id)
	})
	if err != nil {
		return nil, notFound(err, "Publication has no published version")
	}
	return v, nil
}

func (s *DefaultService) ListVersions(ctx context.Context, actor domain.Principal, id uint64, page, pageSize int) (*PaginatedVersions, error) {
	pub, err := s.GetPublication(ctx, id)
	if err != nil {
		return nil, err
	}

	// owners, reviewers and staff see the whole history
	publicOnly := !access.Resolve(actor, access.FactsFor(actor, pub, nil)).Can(access.Review)

	ver := s.cache.GetVersion(ctx, cache.PublicationVersionKey(id))
	cacheKey := fmt.Sprintf("pub:%d:v:%d:list:public:%t:p:%d:ps:%d", id, ver, publicOnly, page, pageSize)

	var result PaginatedVersions
	if found, _ := s.cache.Get(ctx, cacheKey, &result); found {
		return &result, nil
	}

	versions, meta, err := s.repo.ListByPublication(ctx, id, publicOnly, page, pageSize)
	if err != nil {
		return nil, err
	}
	result = PaginatedVersions{Data: make([]version.VersionSummary, 0, len(versions)), Meta: meta}
	for i := range versions {
		result.Data = append(result.Data, version.NewVersionSummary(&versions[i]))
	}
	s.store(ctx, cacheKey, result)
	return &result, nil
}

// cached reads one version projection of a publication through the cache.
func (s *DefaultService) cached(ctx context.Context, id uint64, name string, load func() (*domain.DocumentVersion, error)) (*domain.DocumentVersion, error) {
	ver := s.cache.GetVersion(ctx, cache.PublicationVersionKey(id))
	cacheKey := fmt.Sprintf("pub:%d:v:%d:%s", id, ver, name)

	var v domain.DocumentVersion
	if found, _ := s.cache.Get(ctx, cacheKey, &v); found {
		return &v, nil
	}
	loaded, err := load()
	if err != nil {
		return nil, err
	}
	s.store(ctx, cacheKey, loaded)
	return loaded, nil
}

func (s *DefaultService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(context.WithoutCancel(ctx), key, value, cacheTTL); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func notFound(err error, msg string) error {
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(msg, err)
	}
	return err
}
