package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"living-science-documents/internal/domain"
	"living-science-documents/internal/registration"
	"living-science-documents/internal/version"
	"living-science-documents/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlineQueue runs submitted tasks on the caller's goroutine.
type inlineQueue struct {
	ran    atomic.Int32
	reject bool
}

func (q *inlineQueue) Submit(t worker.Task) bool {
	if q.reject {
		return false
	}
	q.ran.Add(1)
	_ = t(context.Background())
	return true
}

func TestSweepRetries(t *testing.T) {
	ctx := context.Background()
	repo := version.NewMemoryRepository()
	pub := &domain.Publication{Title: "Sweep", OwnerID: 1}
	require.NoError(t, repo.CreatePublication(ctx, pub))
	pending := &domain.DocumentVersion{
		PublicationID:    pub.ID,
		VersionNumber:    1,
		DOI:              "10.1234/lsd.document_version.1.1",
		Status:           domain.StatusArchived,
		DiscussionStatus: domain.DiscussionWithdrawn,
		DOIStatus:        domain.IdentifierFindable,
		DOIRetryPending:  true,
	}
	require.NoError(t, repo.Insert(ctx, pending))
	svc := version.NewService(repo, registration.NewSandbox(), version.Config{})

	sweepCtx, cancel := context.WithCancel(ctx)
	q := &inlineQueue{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweepRetries(sweepCtx, q, svc, 5*time.Millisecond)
	}()

	// the first sweep runs immediately, later ones on every tick
	assert.Eventually(t, func() bool { return q.ran.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done

	stored, err := repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, stored.DOIRetryPending)
	assert.Equal(t, domain.IdentifierRegistered, stored.DOIStatus)
}

func TestSweepRetries_RejectedSubmitKeepsTicking(t *testing.T) {
	svc := version.NewService(version.NewMemoryRepository(), registration.NewSandbox(), version.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	q := &inlineQueue{reject: true}
	sweepRetries(ctx, q, svc, time.Millisecond)
	assert.Zero(t, q.ran.Load())
}
