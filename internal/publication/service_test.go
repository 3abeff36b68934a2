package publication

import (
	"context"
	"fmt"
	"testing"

	"living-science-documents/internal/cache"
	"living-science-documents/internal/domain"
	"living-science-documents/internal/errors"
	"living-science-documents/internal/version"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerID = 1

var (
	owner    = domain.Principal{UserID: ownerID}
	stranger = domain.Principal{UserID: 3}
	reviewer = domain.Principal{UserID: 4, Roles: []domain.Role{domain.RoleReviewer}}
)

type fixture struct {
	repo  *version.MemoryRepository
	cache *cache.Cache
	svc   *DefaultService
	pubID uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := version.NewMemoryRepository()
	c := cache.NewLocal(zerolog.Nop())
	svc := NewService(repo, c, zerolog.Nop())
	pub, err := svc.CreatePublication(context.Background(), owner, CreateRequest{Title: "Glaciers"})
	require.NoError(t, err)
	return &fixture{repo: repo, cache: c, svc: svc, pubID: pub.ID}
}

func (f *fixture) add(t *testing.T, status domain.EditorialStatus) *domain.DocumentVersion {
	t.Helper()
	ctx := context.Background()
	n, err := f.repo.NextVersionNumber(ctx, f.pubID)
	require.NoError(t, err)
	v := &domain.DocumentVersion{
		PublicationID:    f.pubID,
		VersionNumber:    n,
		DOI:              fmt.Sprintf("10.1234/lsd.document_version.%d.%d", f.pubID, n),
		ContentFields:    domain.ContentFields{MainText: fmt.Sprintf("text %d", n)},
		Status:           status,
		DiscussionStatus: domain.DiscussionOpen,
		DOIStatus:        domain.IdentifierDraft,
	}
	require.NoError(t, f.repo.Insert(ctx, v))
	f.cache.IncrementVersion(ctx, cache.PublicationVersionKey(f.pubID))
	return v
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	return apiErr.Code
}

func TestCreatePublication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pub, err := f.svc.GetPublication(ctx, f.pubID)
	require.NoError(t, err)
	assert.Equal(t, "Glaciers", pub.Title)
	assert.Equal(t, uint64(ownerID), pub.OwnerID)

	_, err = f.svc.CreatePublication(ctx, domain.Principal{}, CreateRequest{Title: "x"})
	assert.Equal(t, errors.CodeUnauthorized, apiCode(t, err))

	bad := "not-a-doi"
	_, err = f.svc.CreatePublication(ctx, owner, CreateRequest{Title: "x", MetaDOI: &bad})
	assert.Equal(t, errors.CodeValidation, apiCode(t, err))

	meta := "10.1234/lsd.publication.7"
	_, err = f.svc.CreatePublication(ctx, owner, CreateRequest{Title: "x", MetaDOI: &meta})
	require.NoError(t, err)
	_, err = f.svc.CreatePublication(ctx, owner, CreateRequest{Title: "y", MetaDOI: &meta})
	assert.Equal(t, errors.CodeConflict, apiCode(t, err))

	_, err = f.svc.GetPublication(ctx, 999)
	assert.Equal(t, errors.CodeNotFound, apiCode(t, err))
}

func TestLatestAndCurrentVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.LatestVersion(ctx, owner, f.pubID)
	assert.Equal(t, errors.CodeNotFound, apiCode(t, err))
	_, err = f.svc.CurrentPublicVersion(ctx, stranger, f.pubID)
	assert.Equal(t, errors.CodeNotFound, apiCode(t, err))

	f.add(t, domain.StatusPublished)
	v2 := f.add(t, domain.StatusPublished)
	v3 := f.add(t, domain.StatusDraft)

	latest, err := f.svc.LatestVersion(ctx, owner, f.pubID)
	require.NoError(t, err)
	assert.Equal(t, v3.ID, latest.ID)

	// the latest version is a draft nobody but the owner may read
	_, err = f.svc.LatestVersion(ctx, stranger, f.pubID)
	assert.Equal(t, errors.CodeNotFound, apiCode(t, err))

	current, err := f.svc.CurrentPublicVersion(ctx, stranger, f.pubID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, current.ID)
	assert.Equal(t, "text 2", current.MainText)
}

func TestListVersions_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, domain.StatusPublished)
	f.add(t, domain.StatusArchived)
	f.add(t, domain.StatusDraft)

	all, err := f.svc.ListVersions(ctx, owner, f.pubID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Meta.Total)
	require.Len(t, all.Data, 3)
	assert.Equal(t, uint(3), all.Data[0].VersionNumber)

	byReviewer, err := f.svc.ListVersions(ctx, reviewer, f.pubID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, byReviewer.Data, 3)

	public, err := f.svc.ListVersions(ctx, stranger, f.pubID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), public.Meta.Total)
	for _, s := range public.Data {
		assert.True(t, s.Status.Public(), "version %d should be hidden", s.VersionNumber)
	}

	paged, err := f.svc.ListVersions(ctx, owner, f.pubID, 2, 2)
	require.NoError(t, err)
	require.Len(t, paged.Data, 1)
	assert.Equal(t, 2, paged.Meta.TotalPage)
	assert.Equal(t, uint(1), paged.Data[0].VersionNumber)
}

func TestListVersions_CacheFollowsInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, domain.StatusPublished)

	first, err := f.svc.ListVersions(ctx, stranger, f.pubID, 1, 10)
	require.NoError(t, err)
	require.Len(t, first.Data, 1)

	// a write that skips invalidation is not visible through the cache
	n, err := f.repo.NextVersionNumber(ctx, f.pubID)
	require.NoError(t, err)
	require.NoError(t, f.repo.Insert(ctx, &domain.DocumentVersion{
		PublicationID: f.pubID, VersionNumber: n, DOI: "10.1234/lsd.document_version.1.99",
		Status: domain.StatusPublished, DiscussionStatus: domain.DiscussionOpen, DOIStatus: domain.IdentifierFindable,
	}))
	stale, err := f.svc.ListVersions(ctx, stranger, f.pubID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, stale.Data, 1)

	f.cache.IncrementVersion(ctx, cache.PublicationVersionKey(f.pubID))
	fresh, err := f.svc.ListVersions(ctx, stranger, f.pubID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, fresh.Data, 2)
}

func TestReadsWithoutCache(t *testing.T) {
	repo := version.NewMemoryRepository()
	svc := NewService(repo, nil, zerolog.Nop())
	ctx := context.Background()

	pub, err := svc.CreatePublication(ctx, owner, CreateRequest{Title: "No cache"})
	require.NoError(t, err)

	list, err := svc.ListVersions(ctx, owner, pub.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list.Data)
	assert.Equal(t, int64(0), list.Meta.Total)
}
