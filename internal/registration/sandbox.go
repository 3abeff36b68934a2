package registration

import (
	"context"

	"github.com/rs/zerolog"
)

// Sandbox stands in for the authority when the integration is disabled. Every
// call reports the locally desired state as reached.
type Sandbox struct {
	log zerolog.Logger
}

func NewSandbox(opts ...Option) *Sandbox {
	o := buildOptions(opts)
	return &Sandbox{log: o.log}
}

func (s *Sandbox) EnsureDraft(_ context.Context, doi, requestID string) error {
	s.log.Debug().Str("doi", doi).Str("request_id", requestID).Msg("sandbox: draft ensured")
	return nil
}

func (s *Sandbox) UpdateMetadata(_ context.Context, md Metadata, requestID string) error {
	s.log.Debug().Str("doi", md.DOI).Str("request_id", requestID).Msg("sandbox: metadata updated")
	return nil
}

func (s *Sandbox) SetFindable(_ context.Context, doi, requestID string) error {
	s.log.Debug().Str("doi", doi).Str("request_id", requestID).Msg("sandbox: findable")
	return nil
}

func (s *Sandbox) SetRegistered(_ context.Context, doi, requestID string) error {
	s.log.Debug().Str("doi", doi).Str("request_id", requestID).Msg("sandbox: registered")
	return nil
}

func (s *Sandbox) VerifyResolution(context.Context, string) bool { return true }

func (s *Sandbox) VerifyLanding(context.Context, string) bool { return true }

var _ Registrar = (*Sandbox)(nil)
