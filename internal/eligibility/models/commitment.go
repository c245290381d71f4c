package models

import (
	"time"

	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// Commitment is a hiding, binding anchor registered by a principal: a digest
// of a private (secret, nullifier) pair. One active commitment per principal;
// created by self-registration, deactivated only by the authority, never
// mutated otherwise.
type Commitment struct {
	Principal      domain.Principal
	CommitmentHash domain.Hash32
	RegisteredAt   time.Time
	Active         bool
}

// NewCommitment validates and constructs an active commitment.
func NewCommitment(principal domain.Principal, hash domain.Hash32, now time.Time) (*Commitment, error) {
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidParameters, "principal is required")
	}
	if hash.IsZero() {
		return nil, dErrors.New(dErrors.CodeZeroCommitment, "commitment hash cannot be zero")
	}
	return &Commitment{
		Principal:      principal,
		CommitmentHash: hash,
		RegisteredAt:   now,
		Active:         true,
	}, nil
}

// CanRevoke checks the active → inactive transition.
func (c *Commitment) CanRevoke() error {
	if !c.Active {
		return dErrors.New(dErrors.CodeNoActiveCommitment, "commitment is already inactive")
	}
	return nil
}

// ApplyRevocation flips the commitment inactive. Call CanRevoke first.
func (c *Commitment) ApplyRevocation() {
	c.Active = false
}
