package version

import (
	"context"
	"encoding/json"
	defError "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"living-science-documents/internal/access"
	"living-science-documents/internal/cache"
	"living-science-documents/internal/domain"
	"living-science-documents/internal/errors"
	"living-science-documents/internal/identifier"
	"living-science-documents/internal/metrics"
	"living-science-documents/internal/registration"
	"living-science-documents/internal/tracing"
	"living-science-documents/internal/worker"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Service is the Lifecycle Controller. It is the only writer of version
// status fields and the only creator of version rows.
type Service interface {
	CreateInitialVersion(ctx context.Context, actor domain.Principal, publicationID uint64, req InitialVersionRequest) (*domain.DocumentVersion, error)
	Get(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)
	ProposeEdit(ctx context.Context, actor domain.Principal, id uint64, req EditRequest) (*EditResult, error)

	SubmitForReview(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)
	StartReview(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)
	CompleteReview(ctx context.Context, actor domain.Principal, id uint64, decision domain.ReviewDecision) (*domain.DocumentVersion, error)
	Publish(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)
	Withdraw(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)
	CloseDiscussion(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)
	SyncIdentifier(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error)

	// RetryRegistration re-sends the pending withdraw registration of one version.
	RetryRegistration(ctx context.Context, id uint64) error
	// RetryPending sweeps up to limit flagged versions and returns how many succeeded.
	RetryPending(ctx context.Context, limit int) (int, error)
}

// Submitter queues background work.
type Submitter interface {
	Submit(t worker.Task) bool
}

type Config struct {
	DOIPrefix     string
	FrontendURL   string
	PublisherName string
	// RequireLanding makes an unreachable landing page block publication.
	RequireLanding bool
}

type Option func(*DefaultService)

func WithCache(c *cache.Cache) Option { return func(s *DefaultService) { s.cache = c } }
func WithRetryQueue(q Submitter) Option { return func(s *DefaultService) { s.retries = q } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *DefaultService) { s.metrics = m } }
func WithTracer(t trace.Tracer) Option { return func(s *DefaultService) { s.tracer = t } }
func WithLogger(l zerolog.Logger) Option { return func(s *DefaultService) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *DefaultService) { s.now = now } }

// WithRetryDelay sets the wait before the first requeue of a failed withdraw
// registration. Each later attempt doubles it.
func WithRetryDelay(d time.Duration) Option { return func(s *DefaultService) { s.retryDelay = d } }

const (
	defaultRetryDelay = 30 * time.Second
	maxRetryAttempts  = 5
)

type DefaultService struct {
	repo      Repository
	registrar registration.Registrar
	cfg       Config
	cache     *cache.Cache
	retries   Submitter
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	log       zerolog.Logger
	now       func() time.Time
	publishes singleflight.Group

	retryDelay time.Duration
}

func NewService(repo Repository, registrar registration.Registrar, cfg Config, opts ...Option) *DefaultService {
	if cfg.DOIPrefix == "" {
		cfg.DOIPrefix = identifier.DefaultPrefix
	}
	s := &DefaultService{
		repo:      repo,
		registrar: registrar,
		cfg:       cfg,
		tracer:    tracing.Nop(),
		log:       zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },

		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load reads a version and checks what actor may do with it. Versions the
// actor cannot read are reported as missing.
func (s *DefaultService) load(ctx context.Context, actor domain.Principal, id uint64, want access.Capability) (*domain.DocumentVersion, *domain.Publication, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "Version not found")
	}
	pub, err := s.repo.FindPublication(ctx, v.PublicationID)
	if err != nil {
		return nil, nil, notFound(err, "Publication not found")
	}

	caps := access.Resolve(actor, access.FactsFor(actor, pub, v))
	if !caps.Can(access.Read) {
		return nil, nil, errors.NotFound("Version not found", nil)
	}
	if !caps.Can(want) {
		return nil, nil, errors.Forbidden("You are not allowed to perform this action", nil)
	}
	return v, pub, nil
}

func notFound(err error, msg string) error {
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(msg, err)
	}
	return err
}

func (s *DefaultService) start(ctx context.Context, action string, id uint64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "version."+action, trace.WithAttributes(
		attribute.String("lifecycle.action", action),
		attribute.Int64("version.id", int64(id)),
	))
}

// finish records the outcome of one lifecycle action on logs, metrics and the span.
func (s *DefaultService) finish(span trace.Span, action string, v *domain.DocumentVersion, err error) {
	defer span.End()
	s.metrics.ObserveTransition(action, err)

	event := s.log.Info()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		event = s.log.Warn().Err(err)
	}
	if v != nil {
		event = event.
			Uint64("version_id", v.ID).
			Uint64("publication_id", v.PublicationID).
			Uint("version_number", v.VersionNumber).
			Str("status", string(v.Status)).
			Str("doi_status", string(v.DOIStatus))
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	event.Str("action", action).Str("outcome", outcome).Msg("lifecycle action")
}

func (s *DefaultService) invalidate(ctx context.Context, publicationID uint64) {
	s.cache.IncrementVersion(ctx, cache.PublicationVersionKey(publicationID))
}

func setStatus(v *domain.DocumentVersion, status domain.EditorialStatus, actor domain.Principal, now time.Time) {
	v.Status = status
	v.StatusDate = now
	v.StatusUserID = userRef(actor)
}

func userRef(actor domain.Principal) *uint64 {
	if actor.UserID == 0 {
		return nil
	}
	id := actor.UserID
	return &id
}

func (s *DefaultService) CreateInitialVersion(ctx context.Context, actor domain.Principal, publicationID uint64, req InitialVersionRequest) (*domain.DocumentVersion, error) {
	ctx, span := s.start(ctx, "create_initial_version", 0)
	var out *domain.DocumentVersion
	var err error
	defer func() { s.finish(span, "create_initial_version", out, err) }()

	pub, err := s.repo.FindPublication(ctx, publicationID)
	if err != nil {
		err = notFound(err, "Publication not found")
		return nil, err
	}
	if !access.Resolve(actor, access.FactsFor(actor, pub, nil)).Can(access.Publish) {
		err = errors.Forbidden("Only the publication owner can add the first version", nil)
		return nil, err
	}

	err = s.repo.WithPublicationLock(ctx, publicationID, func(repo Repository) error {
		count, err := repo.CountVersions(ctx, publicationID)
		if err != nil {
			return err
		}
		if count > 0 {
			return errors.InvalidTransition("Publication already has versions; edit the latest version instead")
		}
		n, err := repo.NextVersionNumber(ctx, publicationID)
		if err != nil {
			return err
		}

		now := s.now()
		v := &domain.DocumentVersion{
			PublicationID:    publicationID,
			VersionNumber:    n,
			DOI:              identifier.Mint(s.cfg.DOIPrefix, identifier.EntityDocumentVersion, publicationID, n),
			ContentFields:    req.Content,
			DiscussionStatus: domain.DiscussionOpen,
			DOIStatus:        domain.IdentifierDraft,
			UpdatedByID:      userRef(actor),
		}
		setStatus(v, domain.StatusDraft, actor, now)
		v.Authors, v.Figures, v.Tables, v.Keywords, v.Attachments = req.children()

		if err := repo.Insert(ctx, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveVersionCreated()
	s.invalidate(ctx, publicationID)
	return out, nil
}

func (s *DefaultService) Get(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	v, _, err := s.load(ctx, actor, id, access.Read)
	return v, err
}

// ProposeEdit applies an edit copy-on-write: unchanged content is updated in
// place, changed content always becomes a new version.
func (s *DefaultService) ProposeEdit(ctx context.Context, actor domain.Principal, id uint64, req EditRequest) (*EditResult, error) {
	ctx, span := s.start(ctx, "propose_edit", id)
	var result *EditResult
	var err error
	defer func() {
		var v *domain.DocumentVersion
		if result != nil {
			v = result.Version
		}
		s.finish(span, "propose_edit", v, err)
	}()

	if req.Status != nil && !req.Status.Valid() {
		err = errors.UnprocessableEntity("Unknown editorial status", nil)
		return nil, err
	}

	v, _, err := s.load(ctx, actor, id, access.Write)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithPublicationLock(ctx, v.PublicationID, func(repo Repository) error {
		cur, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if cur.DiscussionStatus == domain.DiscussionWithdrawn {
			return errors.InvalidTransition("Version is withdrawn and can no longer be edited")
		}

		now := s.now()
		proposed := req.Content.Apply(cur.ContentFields)
		if len(cur.ContentFields.Diff(proposed)) == 0 {
			if req.Status != nil && *req.Status != cur.Status {
				if !inPlaceStatusChange(cur.Status, *req.Status) {
					return errors.InvalidTransition(fmt.Sprintf("Cannot change status from %s to %s by editing", cur.Status, *req.Status))
				}
				setStatus(cur, *req.Status, actor, now)
			}
			cur.UpdatedByID = userRef(actor)
			if err := repo.SaveState(ctx, cur); err != nil {
				return err
			}
			result = &EditResult{Created: false, Version: cur}
			return nil
		}

		n, err := repo.NextVersionNumber(ctx, cur.PublicationID)
		if err != nil {
			return err
		}
		next := &domain.DocumentVersion{
			PublicationID:    cur.PublicationID,
			VersionNumber:    n,
			DOI:              identifier.Mint(s.cfg.DOIPrefix, identifier.EntityDocumentVersion, cur.PublicationID, n),
			ContentFields:    proposed,
			DiscussionStatus: domain.DiscussionOpen,
			DOIStatus:        domain.IdentifierDraft,
			UpdatedByID:      userRef(actor),
		}
		setStatus(next, newVersionStatus(cur.Status, req.Status), actor, now)
		next.Authors, next.Figures, next.Tables, next.Keywords, next.Attachments = cur.DetachedChildren()

		if err := repo.Insert(ctx, next); err != nil {
			return err
		}
		result = &EditResult{Created: true, Version: next}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		s.metrics.ObserveVersionCreated()
	}
	s.invalidate(ctx, v.PublicationID)
	return result, nil
}

// inPlaceStatusChange lists the status changes an edit without content
// changes may carry. Everything else goes through the explicit actions.
func inPlaceStatusChange(from, to domain.EditorialStatus) bool {
	return (from == domain.StatusDraft && to == domain.StatusRevision) ||
		(from == domain.StatusRevision && to == domain.StatusDraft)
}

// newVersionStatus picks the editorial status of a version created by an edit.
func newVersionStatus(prior domain.EditorialStatus, requested *domain.EditorialStatus) domain.EditorialStatus {
	editable := func(s domain.EditorialStatus) bool {
		return s == domain.StatusDraft || s == domain.StatusSubmitted || s == domain.StatusRevision
	}
	if requested != nil && editable(*requested) {
		return *requested
	}
	if editable(prior) {
		return prior
	}
	return domain.StatusDraft
}

// transition runs a status change under the publication lock on a fresh copy
// of the version.
func (s *DefaultService) transition(
	ctx context.Context,
	actor domain.Principal,
	id uint64,
	action string,
	want access.Capability,
	apply func(v *domain.DocumentVersion, now time.Time) error,
) (*domain.DocumentVersion, error) {
	ctx, span := s.start(ctx, action, id)
	var out *domain.DocumentVersion
	var err error
	defer func() { s.finish(span, action, out, err) }()

	v, _, err := s.load(ctx, actor, id, want)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithPublicationLock(ctx, v.PublicationID, func(repo Repository) error {
		cur, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := apply(cur, now); err != nil {
			return err
		}
		cur.UpdatedByID = userRef(actor)
		if err := repo.SaveState(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	s.invalidate(ctx, out.PublicationID)
	return out, nil
}

func refuseWithdrawn(v *domain.DocumentVersion) error {
	if v.DiscussionStatus == domain.DiscussionWithdrawn {
		return errors.InvalidTransition("Version is withdrawn")
	}
	return nil
}

func (s *DefaultService) SubmitForReview(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	return s.transition(ctx, actor, id, "submit_for_review", access.Write, func(v *domain.DocumentVersion, now time.Time) error {
		if err := refuseWithdrawn(v); err != nil {
			return err
		}
		if v.Status != domain.StatusDraft && v.Status != domain.StatusRevision {
			return errors.InvalidTransition(fmt.Sprintf("Cannot submit a version in status %s", v.Status))
		}
		setStatus(v, domain.StatusSubmitted, actor, now)
		return nil
	})
}

func (s *DefaultService) StartReview(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	return s.transition(ctx, actor, id, "start_review", access.Review, func(v *domain.DocumentVersion, now time.Time) error {
		if err := refuseWithdrawn(v); err != nil {
			return err
		}
		if v.Status != domain.StatusSubmitted {
			return errors.InvalidTransition(fmt.Sprintf("Cannot start review of a version in status %s", v.Status))
		}
		setStatus(v, domain.StatusUnderReview, actor, now)
		return nil
	})
}

func (s *DefaultService) CompleteReview(ctx context.Context, actor domain.Principal, id uint64, decision domain.ReviewDecision) (*domain.DocumentVersion, error) {
	target, ok := decision.Target()
	if !ok {
		return nil, errors.UnprocessableEntity("Unknown review decision", nil)
	}
	return s.transition(ctx, actor, id, "complete_review", access.Review, func(v *domain.DocumentVersion, now time.Time) error {
		if err := refuseWithdrawn(v); err != nil {
			return err
		}
		if !v.Status.InReview() {
			return errors.InvalidTransition(fmt.Sprintf("Cannot complete review of a version in status %s", v.Status))
		}
		setStatus(v, target, actor, now)
		return nil
	})
}

func (s *DefaultService) CloseDiscussion(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	return s.transition(ctx, actor, id, "close_discussion", access.Moderate, func(v *domain.DocumentVersion, now time.Time) error {
		if v.DiscussionStatus != domain.DiscussionOpen {
			return errors.AlreadyClosed(fmt.Sprintf("Discussion is already %s", v.DiscussionStatus))
		}
		closeDiscussion(v, domain.DiscussionClosed, actor, now)
		return nil
	})
}

func closeDiscussion(v *domain.DocumentVersion, to domain.DiscussionStatus, actor domain.Principal, now time.Time) {
	v.DiscussionStatus = to
	at := now
	v.DiscussionClosedAt = &at
	v.DiscussionClosedByID = userRef(actor)
}

// Publish registers the identifier and then commits the published state.
// Concurrent calls for the same version share one execution.
func (s *DefaultService) Publish(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	ctx, span := s.start(ctx, "publish", id)
	var out *domain.DocumentVersion
	var err error
	defer func() { s.finish(span, "publish", out, err) }()

	v, pub, err := s.load(ctx, actor, id, access.Publish)
	if err != nil {
		return nil, err
	}

	key := identifier.IdempotencyKey(identifier.OpPublish, v.PublicationID, v.VersionNumber)
	res, err, shared := s.publishes.Do(key, func() (interface{}, error) {
		return s.publish(ctx, actor, v, pub, key)
	})
	span.SetAttributes(attribute.Bool("publish.shared", shared))
	if err != nil {
		return nil, err
	}
	out = res.(*domain.DocumentVersion).Clone()
	return out, nil
}

func (s *DefaultService) publish(ctx context.Context, actor domain.Principal, v *domain.DocumentVersion, pub *domain.Publication, key string) (*domain.DocumentVersion, error) {
	if v.Status == domain.StatusPublished {
		return s.reconfirm(ctx, v, key)
	}
	if err := refuseWithdrawn(v); err != nil {
		return nil, err
	}
	if v.Status != domain.StatusAccepted {
		return nil, errors.InvalidTransition(fmt.Sprintf("Cannot publish a version in status %s", v.Status))
	}

	md := s.metadata(v, pub)
	if err := s.register(ctx, v, md, key); err != nil {
		s.markIdentifierError(ctx, v.PublicationID, v.ID)
		return nil, registrationError(err)
	}

	// the authority now advertises the identifier, so the local commit
	// runs to completion even if the caller goes away
	commitCtx := context.WithoutCancel(ctx)

	var out *domain.DocumentVersion
	err := s.repo.WithPublicationLock(commitCtx, v.PublicationID, func(repo Repository) error {
		cur, err := repo.FindByID(commitCtx, v.ID)
		if err != nil {
			return err
		}
		if cur.Status == domain.StatusPublished {
			out = cur
			return nil
		}
		if cur.Status != domain.StatusAccepted || cur.DiscussionStatus == domain.DiscussionWithdrawn {
			return errors.InvalidTransition(fmt.Sprintf("Version changed to %s while publishing", cur.Status))
		}

		now := s.now()
		setStatus(cur, domain.StatusPublished, actor, now)
		release := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		cur.ReleaseDate = &release
		cur.DOIStatus = domain.IdentifierFindable
		cur.UpdatedByID = userRef(actor)
		if err := repo.SaveState(commitCtx, cur); err != nil {
			return err
		}

		older, err := repo.ListOpenBefore(commitCtx, cur.PublicationID, cur.VersionNumber)
		if err != nil {
			return err
		}
		for i := range older {
			o := &older[i]
			closeDiscussion(o, domain.DiscussionClosed, actor, now)
			o.UpdatedByID = userRef(actor)
			if err := repo.SaveState(commitCtx, o); err != nil {
				return err
			}
		}
		out = cur
		return nil
	})
	if err != nil {
		var apiErr *errors.APIError
		if defError.As(err, &apiErr) {
			return nil, err
		}
		s.log.Error().Err(err).Uint64("version_id", v.ID).Str("doi", v.DOI).Msg("identifier findable but local publish commit failed")
		s.markIdentifierError(commitCtx, v.PublicationID, v.ID)
		return nil, errors.RegistrationTransient("Identifier was registered but the publication could not be saved, retry later", err)
	}
	s.invalidate(commitCtx, out.PublicationID)

	// resolution lags behind registration; a miss is only logged
	s.registrar.VerifyResolution(ctx, out.DOI)
	return out, nil
}

// reconfirm repeats the final publish step for a version that is already
// published. A failure is reported but never downgrades the stored state.
func (s *DefaultService) reconfirm(ctx context.Context, v *domain.DocumentVersion, key string) (*domain.DocumentVersion, error) {
	if err := s.registrar.SetFindable(ctx, v.DOI, identifier.StepKey(key, "findable")); err != nil {
		return nil, registrationError(err)
	}
	return v, nil
}

// register runs the authority calls of a publish, each under its own step key.
func (s *DefaultService) register(ctx context.Context, v *domain.DocumentVersion, md registration.Metadata, key string) error {
	if err := s.registrar.EnsureDraft(ctx, v.DOI, identifier.StepKey(key, "draft")); err != nil {
		return err
	}
	if err := s.registrar.UpdateMetadata(ctx, md, identifier.StepKey(key, "metadata")); err != nil {
		return err
	}
	if !s.registrar.VerifyLanding(ctx, md.URL) && s.cfg.RequireLanding {
		return &registration.Error{
			Op:   "verify_landing",
			Kind: registration.Transient,
			Err:  fmt.Errorf("landing page %s is not reachable", md.URL),
		}
	}
	return s.registrar.SetFindable(ctx, v.DOI, identifier.StepKey(key, "findable"))
}

// markIdentifierError records a failed publish. It commits even when the
// caller has gone away.
func (s *DefaultService) markIdentifierError(ctx context.Context, publicationID, id uint64) {
	ctx = context.WithoutCancel(ctx)
	err := s.repo.WithPublicationLock(ctx, publicationID, func(repo Repository) error {
		cur, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == domain.StatusPublished {
			return nil
		}
		cur.DOIStatus = domain.IdentifierError
		return repo.SaveState(ctx, cur)
	})
	if err != nil {
		s.log.Error().Err(err).Uint64("version_id", id).Msg("failed to record identifier error")
		return
	}
	s.invalidate(ctx, publicationID)
}

func registrationError(err error) error {
	var regErr *registration.Error
	if defError.As(err, &regErr) && regErr.Kind == registration.Permanent {
		return errors.RegistrationPermanent("Identifier registration was rejected", err)
	}
	return errors.RegistrationTransient("Identifier registration failed, retry later", err)
}

// Withdraw commits the local withdrawal first. The authority is told
// afterwards; a failure there leaves the version flagged for retry.
func (s *DefaultService) Withdraw(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	ctx, span := s.start(ctx, "withdraw", id)
	var out *domain.DocumentVersion
	var err error
	defer func() { s.finish(span, "withdraw", out, err) }()

	v, _, err := s.load(ctx, actor, id, access.Withdraw)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithPublicationLock(ctx, v.PublicationID, func(repo Repository) error {
		cur, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if cur.DiscussionStatus == domain.DiscussionWithdrawn {
			return errors.AlreadyWithdrawn("Version is already withdrawn")
		}
		now := s.now()
		closeDiscussion(cur, domain.DiscussionWithdrawn, actor, now)
		if cur.Status == domain.StatusPublished {
			setStatus(cur, domain.StatusArchived, actor, now)
		}
		cur.DOIRetryPending = needsHide(cur.DOIStatus)
		cur.UpdatedByID = userRef(actor)
		if err := repo.SaveState(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	s.invalidate(ctx, out.PublicationID)

	if !out.DOIRetryPending {
		return out, nil
	}
	if hidden, herr := s.hide(ctx, out); herr != nil {
		s.log.Warn().Err(herr).Uint64("version_id", out.ID).Msg("withdraw registration failed, queued for retry")
		s.enqueueRetry(out.ID, 0)
	} else {
		out = hidden
	}
	return out, nil
}

// needsHide reports whether the authority may still advertise the identifier.
func needsHide(st domain.IdentifierStatus) bool {
	return st == domain.IdentifierFindable || st == domain.IdentifierError
}

// hide moves the identifier to registered and clears the retry flag.
func (s *DefaultService) hide(ctx context.Context, v *domain.DocumentVersion) (*domain.DocumentVersion, error) {
	key := identifier.IdempotencyKey(identifier.OpWithdraw, v.PublicationID, v.VersionNumber)
	if err := s.registrar.SetRegistered(ctx, v.DOI, identifier.StepKey(key, "registered")); err != nil {
		return nil, err
	}

	var out *domain.DocumentVersion
	err := s.repo.WithPublicationLock(ctx, v.PublicationID, func(repo Repository) error {
		cur, err := repo.FindByID(ctx, v.ID)
		if err != nil {
			return err
		}
		cur.DOIStatus = domain.IdentifierRegistered
		cur.DOIRetryPending = false
		if err := repo.SaveState(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, v.PublicationID)
	return out, nil
}

// enqueueRetry queues a withdraw registration retry. Attempt zero runs as
// soon as a worker is free; a transient failure is requeued after a doubling
// delay until maxRetryAttempts, after which the periodic sweep owns it.
func (s *DefaultService) enqueueRetry(id uint64, attempt int) {
	if s.retries == nil {
		return
	}
	ok := s.retries.Submit(func(ctx context.Context) error {
		err := s.RetryRegistration(ctx, id)
		if err != nil && registration.IsTransient(err) && attempt+1 < maxRetryAttempts {
			s.requeueRetry(id, attempt+1)
		}
		return err
	})
	if !ok {
		s.log.Warn().Uint64("version_id", id).Int("attempt", attempt).Msg("retry queue rejected task, left for the periodic sweep")
	}
}

func (s *DefaultService) requeueRetry(id uint64, attempt int) {
	delay := s.retryDelay << (attempt - 1)
	if delay <= 0 {
		s.enqueueRetry(id, attempt)
		return
	}
	time.AfterFunc(delay, func() { s.enqueueRetry(id, attempt) })
}

func (s *DefaultService) RetryRegistration(ctx context.Context, id uint64) error {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !v.DOIRetryPending {
		return nil
	}

	_, err = s.hide(ctx, v)
	s.metrics.ObserveTransition("retry_registration", err)
	if err == nil {
		s.log.Info().Uint64("version_id", id).Msg("withdraw registration completed")
		return nil
	}
	if registration.IsTransient(err) {
		return err
	}

	// the authority will not accept this request; stop retrying
	s.log.Error().Err(err).Uint64("version_id", id).Str("doi", v.DOI).Msg("withdraw registration rejected")
	clearErr := s.repo.WithPublicationLock(ctx, v.PublicationID, func(repo Repository) error {
		cur, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		cur.DOIRetryPending = false
		return repo.SaveState(ctx, cur)
	})
	if clearErr != nil {
		return clearErr
	}
	s.invalidate(ctx, v.PublicationID)
	return err
}

func (s *DefaultService) RetryPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.ListRetryPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	s.metrics.SetRetryPending(len(pending))

	done := 0
	for _, v := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := s.RetryRegistration(ctx, v.ID); err != nil {
			s.log.Warn().Err(err).Uint64("version_id", v.ID).Msg("retry failed")
			continue
		}
		done++
	}
	s.metrics.SetRetryPending(len(pending) - done)
	return done, nil
}

// SyncIdentifier re-pushes the metadata of a registered identifier. The key
// changes only when the payload does.
func (s *DefaultService) SyncIdentifier(ctx context.Context, actor domain.Principal, id uint64) (*domain.DocumentVersion, error) {
	ctx, span := s.start(ctx, "sync_identifier", id)
	var out *domain.DocumentVersion
	var err error
	defer func() { s.finish(span, "sync_identifier", out, err) }()

	v, pub, err := s.load(ctx, actor, id, access.Publish)
	if err != nil {
		return nil, err
	}
	if !v.DOIStatus.Resolvable() {
		err = errors.InvalidTransition(fmt.Sprintf("Identifier is %s, nothing to synchronise", v.DOIStatus))
		return nil, err
	}

	md := s.metadata(v, pub)
	payload, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	key := identifier.ContentKey(identifier.IdempotencyKey(identifier.OpSyncMetadata, v.PublicationID, v.VersionNumber), payload)
	if rerr := s.registrar.UpdateMetadata(ctx, md, key); rerr != nil {
		err = registrationError(rerr)
		return nil, err
	}
	out = v
	return out, nil
}

func (s *DefaultService) landingURL(v *domain.DocumentVersion) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/versions/" + strconv.FormatUint(v.ID, 10)
}

// metadata builds the authority record of v.
func (s *DefaultService) metadata(v *domain.DocumentVersion, pub *domain.Publication) registration.Metadata {
	authors := append([]domain.Author(nil), v.Authors...)
	sort.SliceStable(authors, func(i, j int) bool { return authors[i].Order < authors[j].Order })

	md := registration.Metadata{
		DOI:             v.DOI,
		Title:           pub.Title,
		Publisher:       s.cfg.PublisherName,
		PublicationYear: s.now().Year(),
		URL:             s.landingURL(v),
		Version:         v.VersionNumber,
		Abstract:        v.TechnicalAbstract,
	}
	if v.ReleaseDate != nil {
		md.PublicationYear = v.ReleaseDate.Year()
	}
	for _, a := range authors {
		md.Creators = append(md.Creators, registration.Creator{
			Name:        a.Name,
			ORCID:       a.ORCID,
			Affiliation: a.Institution,
		})
	}
	for _, k := range v.Keywords {
		md.Subjects = append(md.Subjects, k.Keyword)
	}
	if pub.MetaDOI != nil {
		md.ContainerDOI = *pub.MetaDOI
	}
	return md
}

var _ Service = (*DefaultService)(nil)
