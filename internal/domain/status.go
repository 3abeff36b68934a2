package domain

// EditorialStatus is the workflow state of a document version.
type EditorialStatus string

const (
	StatusDraft       EditorialStatus = "draft"
	StatusSubmitted   EditorialStatus = "submitted"
	StatusUnderReview EditorialStatus = "under_review"
	StatusRevision    EditorialStatus = "revision"
	StatusAccepted    EditorialStatus = "accepted"
	StatusPublished   EditorialStatus = "published"
	StatusArchived    EditorialStatus = "archived"
	StatusRejected    EditorialStatus = "rejected"
)

// Valid reports whether s is a known editorial status.
func (s EditorialStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusRevision,
		StatusAccepted, StatusPublished, StatusArchived, StatusRejected:
		return true
	}
	return false
}

// InReview is true while a review decision is pending.
func (s EditorialStatus) InReview() bool {
	return s == StatusSubmitted || s == StatusUnderReview
}

// Public is true for statuses that anyone may read.
func (s EditorialStatus) Public() bool {
	return s == StatusPublished || s == StatusArchived
}

// DiscussionStatus tells whether commentary is accepted on a version.
type DiscussionStatus string

const (
	DiscussionOpen      DiscussionStatus = "open"
	DiscussionClosed    DiscussionStatus = "closed"
	DiscussionWithdrawn DiscussionStatus = "withdrawn"
)

// IdentifierStatus is the registration state of a version DOI.
type IdentifierStatus string

const (
	IdentifierDraft      IdentifierStatus = "draft"
	IdentifierRegistered IdentifierStatus = "registered"
	IdentifierFindable   IdentifierStatus = "findable"
	IdentifierError      IdentifierStatus = "error"
)

// Resolvable is true once the authority knows the identifier beyond draft.
func (s IdentifierStatus) Resolvable() bool {
	return s == IdentifierRegistered || s == IdentifierFindable
}

// ReviewDecision is the outcome of completeReview.
type ReviewDecision string

const (
	DecisionAccept ReviewDecision = "accept"
	DecisionRevise ReviewDecision = "revise"
	DecisionReject ReviewDecision = "reject"
)

// Target returns the editorial status a decision leads to.
func (d ReviewDecision) Target() (EditorialStatus, bool) {
	switch d {
	case DecisionAccept:
		return StatusAccepted, true
	case DecisionRevise:
		return StatusRevision, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}
