// Package registration talks to the DOI registration authority (DataCite REST
// API). Every mutating call carries an idempotency key and is retried on
// transient failures; the package never touches persisted state.
package registration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Registrar is the contract the lifecycle depends on.
type Registrar interface {
	// EnsureDraft creates the DOI record if absent. An existing record is success.
	EnsureDraft(ctx context.Context, doi, requestID string) error
	// UpdateMetadata fully replaces the descriptive metadata of a DOI.
	UpdateMetadata(ctx context.Context, md Metadata, requestID string) error
	// SetFindable asks the authority to advertise the DOI.
	SetFindable(ctx context.Context, doi, requestID string) error
	// SetRegistered keeps the DOI resolvable but no longer findable.
	SetRegistered(ctx context.Context, doi, requestID string) error
	// VerifyResolution polls the public resolver. It never fails the caller.
	VerifyResolution(ctx context.Context, doi string) bool
	// VerifyLanding polls the version target URL. It never fails the caller.
	VerifyLanding(ctx context.Context, url string) bool
}

// Config is injected at construction; nothing in this package reads the environment.
type Config struct {
	Enabled        bool
	APIURL         string
	Username       string
	Password       string
	ResolverURL    string
	MaxAttempts    int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
	// RateLimit is requests per second against the authority, 0 disables limiting.
	RateLimit float64
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	return c
}

// Kind classifies a failure for the caller.
type Kind int

const (
	Transient Kind = iota + 1
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	}
	return "unknown"
}

// Error is returned by every failing Registrar call.
type Error struct {
	Op       string
	Kind     Kind
	Status   int // last HTTP status, 0 for transport errors
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("registration %s failed (%s, status=%d, attempts=%d): %v", e.Op, e.Kind, e.Status, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a registration failure worth retrying.
func IsTransient(err error) bool {
	var regErr *Error
	return errors.As(err, &regErr) && regErr.Kind == Transient
}

// New returns the DataCite client, or the sandbox when the integration is off.
func New(cfg Config, opts ...Option) Registrar {
	if !cfg.Enabled {
		return NewSandbox(opts...)
	}
	return NewClient(cfg, opts...)
}
