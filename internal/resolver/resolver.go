package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"elsa-fe/internal/domain"
)

// MetadataAPI is the slice of the metadata collaborator the resolver needs.
type MetadataAPI interface {
	SessionByCode(ctx context.Context, code string) (domain.SessionDescriptor, error)
	Participants(ctx context.Context, sessionID string) ([]domain.Participant, error)
}

// Resolver validates that an identity may join a session code before any
// realtime channel is opened.
type Resolver struct {
	api MetadataAPI
	log zerolog.Logger
}

func New(api MetadataAPI, log zerolog.Logger) *Resolver {
	return &Resolver{api: api, log: log}
}

// Resolve runs the pre-join checks and returns an Admission on success.
// Failures: ErrSessionNotFound (bad code), ErrAlreadyStarted (session is
// running), ErrAlreadyJoined (identity already in the roster).
//
// The roster check races with other tabs joining between check and channel
// open. That window is accepted: the server's own rejection of a duplicate
// join, delivered through the channel, is the final authority.
func (r *Resolver) Resolve(ctx context.Context, code, identity string) (domain.Admission, error) {
	desc, err := r.api.SessionByCode(ctx, code)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("resolve session %q: %w", code, err)
	}

	if desc.Status == domain.StatusRunning {
		return domain.Admission{}, fmt.Errorf("resolve session %q: %w", code, domain.ErrAlreadyStarted)
	}

	roster, err := r.api.Participants(ctx, desc.ID)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("fetch roster for %q: %w", code, err)
	}
	for _, p := range roster {
		if strings.EqualFold(p.Email, identity) {
			return domain.Admission{}, fmt.Errorf("resolve session %q: %w", code, domain.ErrAlreadyJoined)
		}
	}

	r.log.Debug().
		Str("code", code).
		Str("session_id", desc.ID).
		Int("roster_size", len(roster)).
		Msg("admission granted")

	return domain.Admission{Descriptor: desc, Identity: identity}, nil
}
