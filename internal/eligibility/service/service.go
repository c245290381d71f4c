// Package service implements the eligibility gate: the commitment registry
// and proof verification against it.
//
// "Has an active commitment" is a cheap existence check the registry runs on
// every mutating call; full proof verification is reserved for flows that
// need privacy-preserving disclosure (knowledge proofs, range proofs for
// selective compliance).
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"tessera/internal/eligibility/models"
	"tessera/internal/eligibility/verifier"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/events"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/requestcontext"
)

// CommitmentStore persists the commitment registry.
type CommitmentStore interface {
	CreateIfAbsent(ctx context.Context, c *models.Commitment) error
	FindByPrincipal(ctx context.Context, principal domain.Principal) (*models.Commitment, error)
	Update(ctx context.Context, c *models.Commitment) error
}

// ProofVerifier is the external proof-system primitive, injected so the
// gate's logic and tests are independent of the concrete proof system.
type ProofVerifier interface {
	Verify(circuit verifier.Circuit, publicInputs [][]byte, proof []byte) (bool, error)
}

type rangeKey struct {
	assetID domain.AssetID
	holder  domain.Principal
}

// Service is the eligibility gate.
type Service struct {
	commitments CommitmentStore
	verifier    ProofVerifier
	admin       domain.AdminCapability
	publisher   events.Publisher
	logger      *slog.Logger

	// Advisory range-verified flags. Derived state for downstream policy
	// (compliance reporting); never gates a ledger mutation by itself.
	rangeMu       sync.RWMutex
	rangeVerified map[rangeKey]bool
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// New constructs the gate. The admin capability gates revocation.
func New(commitments CommitmentStore, proofVerifier ProofVerifier, admin domain.AdminCapability, opts ...Option) *Service {
	s := &Service{
		commitments:   commitments,
		verifier:      proofVerifier,
		admin:         admin,
		rangeVerified: make(map[rangeKey]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// RegisterCommitment stores a new active commitment for the principal.
// A principal with an active commitment must be revoked before re-registering;
// there is no silent overwrite.
func (s *Service) RegisterCommitment(ctx context.Context, principal domain.Principal, hash domain.Hash32) error {
	now := requestcontext.Now(ctx)
	c, err := models.NewCommitment(principal, hash, now)
	if err != nil {
		return err
	}

	if err := s.commitments.CreateIfAbsent(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Newf(dErrors.CodeAlreadyActive, "principal %s already has an active commitment", principal)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store commitment")
	}

	if s.publisher != nil {
		if err := s.publisher.Emit(ctx, events.Event{
			Type:           events.TypeCommitmentRegistered,
			Timestamp:      now,
			RequestID:      requestcontext.RequestID(ctx),
			Principal:      principal,
			CommitmentHash: hash,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record commitment event")
		}
	}
	return nil
}

// CheckEligible reports whether the principal has an active commitment. This
// is the gate used by issuance, purchase, and transfer.
func (s *Service) CheckEligible(ctx context.Context, principal domain.Principal) (bool, error) {
	c, err := s.commitments.FindByPrincipal(ctx, principal)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read commitment")
	}
	return c.Active, nil
}

// VerifyKnowledgeProof checks that the prover knows the preimage behind the
// stored commitment. Both modes reject when no active commitment exists,
// independent of proof validity.
func (s *Service) VerifyKnowledgeProof(ctx context.Context, principal domain.Principal, claimedCommitment domain.Hash32, proof models.Proof) (bool, error) {
	stored, err := s.activeCommitment(ctx, principal)
	if err != nil || stored == nil {
		return false, err
	}
	if claimedCommitment != stored.CommitmentHash {
		return false, nil
	}

	switch p := proof.(type) {
	case models.LegacyProof:
		recomputed := CommitmentHash(p.Secret, p.Nullifier)
		return subtle.ConstantTimeCompare(recomputed[:], claimedCommitment[:]) == 1, nil
	case models.Groth16Proof:
		ok, err := s.verifier.Verify(verifier.CircuitKnowledge, [][]byte{claimedCommitment[:]}, p.Blob)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "proof verifier failed")
		}
		return ok, nil
	default:
		return false, dErrors.Newf(dErrors.CodeInvalidParameters, "unknown proof variant %T", proof)
	}
}

// VerifyRangeProof checks that the holder's position in an asset lies within
// [minRange, maxRange] without revealing it. On success the (asset, holder)
// pair is marked range-verified; the flag is advisory only.
func (s *Service) VerifyRangeProof(ctx context.Context, assetID domain.AssetID, holder domain.Principal, minRange, maxRange uint64, rangeCommitment domain.Hash32, proof []byte) (bool, error) {
	if minRange > maxRange {
		return false, dErrors.New(dErrors.CodeInvalidParameters, "range bounds are inverted").
			With("min_range", minRange).
			With("max_range", maxRange)
	}

	stored, err := s.activeCommitment(ctx, holder)
	if err != nil || stored == nil {
		return false, err
	}

	publicInputs := [][]byte{
		new(big.Int).SetUint64(minRange).Bytes(),
		new(big.Int).SetUint64(maxRange).Bytes(),
		rangeCommitment[:],
	}
	ok, err := s.verifier.Verify(verifier.CircuitRange, publicInputs, proof)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "proof verifier failed")
	}
	if !ok {
		return false, nil
	}

	s.rangeMu.Lock()
	s.rangeVerified[rangeKey{assetID: assetID, holder: holder}] = true
	s.rangeMu.Unlock()
	return true, nil
}

// RangeVerified reports the advisory range-verified flag for (asset, holder).
func (s *Service) RangeVerified(assetID domain.AssetID, holder domain.Principal) bool {
	s.rangeMu.RLock()
	defer s.rangeMu.RUnlock()
	return s.rangeVerified[rangeKey{assetID: assetID, holder: holder}]
}

// RevokeCommitment deactivates a principal's commitment. Authority only; the
// principal cannot pass the gate again until re-registering.
func (s *Service) RevokeCommitment(ctx context.Context, cap domain.AdminCapability, principal domain.Principal) error {
	if !s.admin.Grants(cap) {
		return dErrors.New(dErrors.CodeForbidden, "revocation requires the admin capability")
	}

	c, err := s.commitments.FindByPrincipal(ctx, principal)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNoActiveCommitment, "principal %s has no commitment", principal)
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read commitment")
	}
	if err := c.CanRevoke(); err != nil {
		return err
	}
	c.ApplyRevocation()

	if err := s.commitments.Update(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store revocation")
	}

	if s.publisher != nil {
		if err := s.publisher.Emit(ctx, events.Event{
			Type:           events.TypeCommitmentRevoked,
			Timestamp:      requestcontext.Now(ctx),
			RequestID:      requestcontext.RequestID(ctx),
			Principal:      principal,
			CommitmentHash: c.CommitmentHash,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record revocation event")
		}
	}
	return nil
}

// activeCommitment returns the principal's commitment iff it is active, nil
// when missing or inactive.
func (s *Service) activeCommitment(ctx context.Context, principal domain.Principal) (*models.Commitment, error) {
	c, err := s.commitments.FindByPrincipal(ctx, principal)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read commitment")
	}
	if !c.Active {
		return nil, nil
	}
	return c, nil
}

// CommitmentHash recomputes the legacy one-way commitment digest from a
// (secret, nullifier) preimage. The length prefix keeps distinct splits of
// the same concatenation from colliding.
func CommitmentHash(secret, nullifier []byte) domain.Hash32 {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", len(secret))
	h.Write(secret)
	h.Write(nullifier)
	var out domain.Hash32
	copy(out[:], h.Sum(nil))
	return out
}
