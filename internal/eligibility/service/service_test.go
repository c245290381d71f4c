package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/eligibility/models"
	"tessera/internal/eligibility/store/commitment"
	"tessera/internal/eligibility/verifier"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/events"
	eventsmem "tessera/pkg/platform/events/store/memory"
	"tessera/pkg/requestcontext"
)

// fakeVerifier records calls and returns a scripted result so gate logic is
// tested independently of the proof system.
type fakeVerifier struct {
	result      bool
	err         error
	lastCircuit verifier.Circuit
	lastInputs  [][]byte
	calls       int
}

func (f *fakeVerifier) Verify(circuit verifier.Circuit, publicInputs [][]byte, proof []byte) (bool, error) {
	f.calls++
	f.lastCircuit = circuit
	f.lastInputs = publicInputs
	return f.result, f.err
}

type EligibilitySuite struct {
	suite.Suite
	store       *commitment.InMemoryStore
	verifier    *fakeVerifier
	eventsStore *eventsmem.InMemoryStore
	admin       domain.AdminCapability
	service     *Service
	ctx         context.Context
}

func TestEligibilitySuite(t *testing.T) {
	suite.Run(t, new(EligibilitySuite))
}

func (s *EligibilitySuite) SetupTest() {
	s.store = commitment.NewInMemoryStore()
	s.verifier = &fakeVerifier{result: true}
	s.eventsStore = eventsmem.NewInMemoryStore()
	s.admin = domain.NewAdminCapability("test-admin")
	s.service = New(s.store, s.verifier, s.admin,
		WithPublisher(events.NewStorePublisher(s.eventsStore, nil)),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func (s *EligibilitySuite) register(principal domain.Principal, secret, nullifier string) domain.Hash32 {
	hash := CommitmentHash([]byte(secret), []byte(nullifier))
	s.Require().NoError(s.service.RegisterCommitment(s.ctx, principal, hash))
	return hash
}

func (s *EligibilitySuite) TestRegisterCommitment() {
	s.Run("zero commitment is rejected", func() {
		err := s.service.RegisterCommitment(s.ctx, "alice", domain.Hash32{})
		s.True(dErrors.HasCode(err, dErrors.CodeZeroCommitment))
	})

	s.Run("registration activates the gate and emits event", func() {
		hash := s.register("alice", "secret", "nullifier")

		eligible, err := s.service.CheckEligible(s.ctx, "alice")
		s.Require().NoError(err)
		s.True(eligible)

		recorded, err := s.eventsStore.ListAll(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(recorded, 1)
		s.Equal(events.TypeCommitmentRegistered, recorded[0].Type)
		s.Equal(hash, recorded[0].CommitmentHash)
	})

	s.Run("second active registration is rejected", func() {
		err := s.service.RegisterCommitment(s.ctx, "alice", CommitmentHash([]byte("other"), []byte("pair")))
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyActive))
	})
}

func (s *EligibilitySuite) TestCheckEligible() {
	s.Run("unregistered principal is not eligible", func() {
		eligible, err := s.service.CheckEligible(s.ctx, "ghost")
		s.Require().NoError(err)
		s.False(eligible)
	})

	s.Run("revoked principal stays ineligible until re-registering", func() {
		s.register("bob", "s", "n")
		s.Require().NoError(s.service.RevokeCommitment(s.ctx, s.admin, "bob"))

		eligible, err := s.service.CheckEligible(s.ctx, "bob")
		s.Require().NoError(err)
		s.False(eligible)

		// Re-registration restores the gate.
		s.Require().NoError(s.service.RegisterCommitment(s.ctx, "bob", CommitmentHash([]byte("s2"), []byte("n2"))))
		eligible, err = s.service.CheckEligible(s.ctx, "bob")
		s.Require().NoError(err)
		s.True(eligible)
	})
}

func (s *EligibilitySuite) TestVerifyKnowledgeProof() {
	hash := s.register("carol", "top-secret", "nullifier-1")

	s.Run("legacy preimage verifies", func() {
		ok, err := s.service.VerifyKnowledgeProof(s.ctx, "carol", hash, models.LegacyProof{
			Secret:    []byte("top-secret"),
			Nullifier: []byte("nullifier-1"),
		})
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("wrong preimage fails", func() {
		ok, err := s.service.VerifyKnowledgeProof(s.ctx, "carol", hash, models.LegacyProof{
			Secret:    []byte("guess"),
			Nullifier: []byte("nullifier-1"),
		})
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("groth16 mode delegates with the claimed commitment as public input", func() {
		ok, err := s.service.VerifyKnowledgeProof(s.ctx, "carol", hash, models.Groth16Proof{Blob: []byte("artifact")})
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(verifier.CircuitKnowledge, s.verifier.lastCircuit)
		s.Require().Len(s.verifier.lastInputs, 1)
		s.Equal(hash[:], s.verifier.lastInputs[0])
	})

	s.Run("claimed commitment mismatch fails either mode", func() {
		other := CommitmentHash([]byte("x"), []byte("y"))
		ok, err := s.service.VerifyKnowledgeProof(s.ctx, "carol", other, models.Groth16Proof{Blob: []byte("artifact")})
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("no active commitment rejects independent of proof validity", func() {
		s.verifier.calls = 0
		ok, err := s.service.VerifyKnowledgeProof(s.ctx, "nobody", hash, models.LegacyProof{
			Secret:    []byte("top-secret"),
			Nullifier: []byte("nullifier-1"),
		})
		s.Require().NoError(err)
		s.False(ok)
		s.Zero(s.verifier.calls)
	})
}

func (s *EligibilitySuite) TestVerifyRangeProof() {
	s.register("dave", "s", "n")
	rangeCommitment := CommitmentHash([]byte("holding"), []byte("blind"))

	s.Run("inverted bounds are invalid parameters", func() {
		_, err := s.service.VerifyRangeProof(s.ctx, 1, "dave", 100, 10, rangeCommitment, []byte("p"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidParameters))
	})

	s.Run("success marks the pair range-verified", func() {
		ok, err := s.service.VerifyRangeProof(s.ctx, 1, "dave", 10, 100, rangeCommitment, []byte("p"))
		s.Require().NoError(err)
		s.True(ok)
		s.True(s.service.RangeVerified(1, "dave"))
		s.False(s.service.RangeVerified(2, "dave"))
		s.Equal(verifier.CircuitRange, s.verifier.lastCircuit)
		s.Require().Len(s.verifier.lastInputs, 3)
	})

	s.Run("verifier rejection leaves the flag unset", func() {
		s.verifier.result = false
		ok, err := s.service.VerifyRangeProof(s.ctx, 3, "dave", 10, 100, rangeCommitment, []byte("p"))
		s.Require().NoError(err)
		s.False(ok)
		s.False(s.service.RangeVerified(3, "dave"))
		s.verifier.result = true
	})

	s.Run("holder without active commitment is always rejected", func() {
		s.verifier.calls = 0
		ok, err := s.service.VerifyRangeProof(s.ctx, 1, "ghost", 10, 100, rangeCommitment, []byte("p"))
		s.Require().NoError(err)
		s.False(ok)
		s.Zero(s.verifier.calls)
	})
}

func (s *EligibilitySuite) TestRevokeCommitment() {
	s.register("erin", "s", "n")

	s.Run("requires the admin capability", func() {
		err := s.service.RevokeCommitment(s.ctx, domain.NewAdminCapability("impostor"), "erin")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("revocation deactivates and emits", func() {
		s.Require().NoError(s.service.RevokeCommitment(s.ctx, s.admin, "erin"))

		eligible, err := s.service.CheckEligible(s.ctx, "erin")
		s.Require().NoError(err)
		s.False(eligible)
	})

	s.Run("double revocation fails", func() {
		err := s.service.RevokeCommitment(s.ctx, s.admin, "erin")
		s.True(dErrors.HasCode(err, dErrors.CodeNoActiveCommitment))
	})

	s.Run("unknown principal fails", func() {
		err := s.service.RevokeCommitment(s.ctx, s.admin, "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNoActiveCommitment))
	})
}
