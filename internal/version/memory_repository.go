package version

import (
	"context"
	"sort"
	"sync"
	"time"

	"living-science-documents/internal/domain"

	"gorm.io/gorm"
)

// MemoryRepository keeps everything in process. It backs STORE_DRIVER=memory
// and the lifecycle tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	publications map[uint64]*domain.Publication
	versions     map[uint64]*domain.DocumentVersion
	nextPubID    uint64
	nextID       uint64
	nextChildID  uint64

	lockMu   sync.Mutex
	pubLocks map[uint64]*sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		publications: make(map[uint64]*domain.Publication),
		versions:     make(map[uint64]*domain.DocumentVersion),
		pubLocks:     make(map[uint64]*sync.Mutex),
	}
}

func (r *MemoryRepository) CreatePublication(_ context.Context, pub *domain.Publication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pub.MetaDOI != nil {
		for _, p := range r.publications {
			if p.MetaDOI != nil && *p.MetaDOI == *pub.MetaDOI {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.nextPubID++
	now := time.Now().UTC()
	pub.ID = r.nextPubID
	pub.CreatedAt = now
	pub.UpdatedAt = now
	stored := *pub
	r.publications[pub.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindPublication(_ context.Context, id uint64) (*domain.Publication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pub, ok := r.publications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *pub
	return &c, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uint64) (*domain.DocumentVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.versions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return v.Clone(), nil
}

// byPublication returns the versions of one publication, highest number first.
func (r *MemoryRepository) byPublication(publicationID uint64) []*domain.DocumentVersion {
	var out []*domain.DocumentVersion
	for _, v := range r.versions {
		if v.PublicationID == publicationID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out
}

func (r *MemoryRepository) Latest(_ context.Context, publicationID uint64) (*domain.DocumentVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.byPublication(publicationID)
	if len(versions) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return versions[0].Clone(), nil
}

func (r *MemoryRepository) CurrentPublic(_ context.Context, publicationID uint64) (*domain.DocumentVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.byPublication(publicationID) {
		if v.Status == domain.StatusPublished {
			return v.Clone(), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) ListByPublication(_ context.Context, publicationID uint64, publicOnly bool, page, pageSize int) ([]domain.DocumentVersion, VersionsMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.DocumentVersion
	for _, v := range r.byPublication(publicationID) {
		if !publicOnly || v.Status.Public() {
			all = append(all, v)
		}
	}
	meta := newMeta(int64(len(all)), page, pageSize)

	start := (page - 1) * pageSize
	if start >= len(all) {
		return []domain.DocumentVersion{}, meta, nil
	}
	end := min(start+pageSize, len(all))

	out := make([]domain.DocumentVersion, 0, end-start)
	for _, v := range all[start:end] {
		out = append(out, *v.Clone())
	}
	return out, meta, nil
}

func (r *MemoryRepository) CountVersions(_ context.Context, publicationID uint64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byPublication(publicationID))), nil
}

func (r *MemoryRepository) ListOpenBefore(_ context.Context, publicationID uint64, number uint) ([]domain.DocumentVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.DocumentVersion
	all := r.byPublication(publicationID)
	for i := len(all) - 1; i >= 0; i-- {
		v := all[i]
		if v.VersionNumber < number && v.DiscussionStatus == domain.DiscussionOpen {
			out = append(out, *v.Clone())
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListRetryPending(_ context.Context, limit int) ([]domain.DocumentVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.DocumentVersion
	for _, v := range r.versions {
		if v.DOIRetryPending {
			out = append(out, *v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) NextVersionNumber(_ context.Context, publicationID uint64) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pub, ok := r.publications[publicationID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	pub.VersionSeq++
	pub.UpdatedAt = time.Now().UTC()
	return pub.VersionSeq, nil
}

func (r *MemoryRepository) Insert(_ context.Context, v *domain.DocumentVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.publications[v.PublicationID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	for _, existing := range r.versions {
		if existing.DOI == v.DOI ||
			(existing.PublicationID == v.PublicationID && existing.VersionNumber == v.VersionNumber) {
			return gorm.ErrDuplicatedKey
		}
	}

	r.nextID++
	now := time.Now().UTC()
	v.ID = r.nextID
	v.CreatedAt = now
	v.UpdatedAt = now
	for i := range v.Authors {
		v.Authors[i].ID, v.Authors[i].DocumentVersionID, v.Authors[i].CreatedAt = r.childID(), v.ID, now
	}
	for i := range v.Figures {
		v.Figures[i].ID, v.Figures[i].DocumentVersionID, v.Figures[i].CreatedAt = r.childID(), v.ID, now
	}
	for i := range v.Tables {
		v.Tables[i].ID, v.Tables[i].DocumentVersionID, v.Tables[i].CreatedAt = r.childID(), v.ID, now
	}
	for i := range v.Keywords {
		v.Keywords[i].ID, v.Keywords[i].DocumentVersionID, v.Keywords[i].CreatedAt = r.childID(), v.ID, now
	}
	for i := range v.Attachments {
		v.Attachments[i].ID, v.Attachments[i].DocumentVersionID, v.Attachments[i].CreatedAt = r.childID(), v.ID, now
	}
	r.versions[v.ID] = v.Clone()
	return nil
}

func (r *MemoryRepository) childID() uint64 {
	r.nextChildID++
	return r.nextChildID
}

func (r *MemoryRepository) SaveState(_ context.Context, v *domain.DocumentVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.versions[v.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	src := v.Clone()
	src.UpdatedAt = time.Now().UTC()
	v.UpdatedAt = src.UpdatedAt

	stored.Status = src.Status
	stored.StatusDate = src.StatusDate
	stored.StatusUserID = src.StatusUserID
	stored.ReleaseDate = src.ReleaseDate
	stored.DiscussionStatus = src.DiscussionStatus
	stored.DiscussionClosedAt = src.DiscussionClosedAt
	stored.DiscussionClosedByID = src.DiscussionClosedByID
	stored.DOIStatus = src.DOIStatus
	stored.DOIRetryPending = src.DOIRetryPending
	stored.UpdatedAt = src.UpdatedAt
	stored.UpdatedByID = src.UpdatedByID
	return nil
}

func (r *MemoryRepository) publicationLock(id uint64) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	l, ok := r.pubLocks[id]
	if !ok {
		l = &sync.Mutex{}
		r.pubLocks[id] = l
	}
	return l
}

// WithPublicationLock serialises fn per publication. When fn fails, the
// publication and its versions are restored to their state before the call.
func (r *MemoryRepository) WithPublicationLock(ctx context.Context, publicationID uint64, fn func(repo Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := r.publicationLock(publicationID)
	l.Lock()
	defer l.Unlock()

	r.mu.RLock()
	pub, ok := r.publications[publicationID]
	if !ok {
		r.mu.RUnlock()
		return gorm.ErrRecordNotFound
	}
	savedPub := *pub
	savedVersions := make(map[uint64]*domain.DocumentVersion)
	for id, v := range r.versions {
		if v.PublicationID == publicationID {
			savedVersions[id] = v.Clone()
		}
	}
	r.mu.RUnlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		*r.publications[publicationID] = savedPub
		for id, v := range r.versions {
			if v.PublicationID != publicationID {
				continue
			}
			if saved, ok := savedVersions[id]; ok {
				r.versions[id] = saved
			} else {
				delete(r.versions, id)
			}
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
