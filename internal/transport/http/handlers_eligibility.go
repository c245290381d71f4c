package httptransport

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	eligibilitymodels "tessera/internal/eligibility/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/httputil"
	adminmw "tessera/pkg/platform/middleware/admin"
	"tessera/pkg/requestcontext"
)

type eligibilityHandler struct {
	service EligibilityService
	logger  *slog.Logger
}

func newEligibilityHandler(service EligibilityService, logger *slog.Logger) *eligibilityHandler {
	return &eligibilityHandler{service: service, logger: logger}
}

// Register mounts the public eligibility endpoints.
func (h *eligibilityHandler) Register(r chi.Router) {
	r.Post("/eligibility/commitments", h.handleRegister)
	r.Get("/eligibility/{principal}", h.handleCheck)
	r.Post("/eligibility/{principal}/verify-knowledge", h.handleVerifyKnowledge)
	r.Post("/eligibility/{principal}/verify-range", h.handleVerifyRange)
}

// RegisterAdmin mounts revocation under the admin guard.
func (h *eligibilityHandler) RegisterAdmin(r chi.Router) {
	r.Delete("/eligibility/{principal}", h.handleRevoke)
}

type registerCommitmentRequest struct {
	Principal      string `json:"principal"`
	CommitmentHash string `json:"commitment_hash"`
}

func (h *eligibilityHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[registerCommitmentRequest](w, r)
	if !ok {
		return
	}
	principal, err := domain.ParsePrincipal(req.Principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hash, err := domain.ParseHash32(req.CommitmentHash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.RegisterCommitment(ctx, principal, hash); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "commitment registered",
		"request_id", requestcontext.RequestID(ctx),
		"principal", principal,
	)
	w.WriteHeader(http.StatusCreated)
}

func (h *eligibilityHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	eligible, err := h.service.CheckEligible(ctx, principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"eligible": eligible})
}

// proofPayload is the wire form of a knowledge proof. Legacy proofs carry the
// base64 preimage pair; groth16 proofs carry the serialized artifact.
type proofPayload struct {
	Type      string `json:"type"`
	Secret    string `json:"secret,omitempty"`
	Nullifier string `json:"nullifier,omitempty"`
	Blob      string `json:"blob,omitempty"`
}

func (p proofPayload) toProof() (eligibilitymodels.Proof, error) {
	switch p.Type {
	case "legacy":
		secret, err := base64.StdEncoding.DecodeString(p.Secret)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidParameters, "secret must be base64 encoded")
		}
		nullifier, err := base64.StdEncoding.DecodeString(p.Nullifier)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidParameters, "nullifier must be base64 encoded")
		}
		return eligibilitymodels.LegacyProof{Secret: secret, Nullifier: nullifier}, nil
	case "groth16":
		blob, err := base64.StdEncoding.DecodeString(p.Blob)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidParameters, "proof blob must be base64 encoded")
		}
		return eligibilitymodels.Groth16Proof{Blob: blob}, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidParameters, "unknown proof type %q", p.Type)
	}
}

type verifyKnowledgeRequest struct {
	ClaimedCommitment string       `json:"claimed_commitment"`
	Proof             proofPayload `json:"proof"`
}

func (h *eligibilityHandler) handleVerifyKnowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[verifyKnowledgeRequest](w, r)
	if !ok {
		return
	}
	claimed, err := domain.ParseHash32(req.ClaimedCommitment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	proof, err := req.Proof.toProof()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	valid, err := h.service.VerifyKnowledgeProof(ctx, principal, claimed, proof)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"valid": valid})
}

type verifyRangeRequest struct {
	AssetID         uint64 `json:"asset_id"`
	Min             uint64 `json:"min"`
	Max             uint64 `json:"max"`
	RangeCommitment string `json:"range_commitment"`
	Proof           string `json:"proof"`
}

func (h *eligibilityHandler) handleVerifyRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[verifyRangeRequest](w, r)
	if !ok {
		return
	}
	rangeCommitment, err := domain.ParseHash32(req.RangeCommitment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	blob, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidParameters, "proof must be base64 encoded"))
		return
	}

	valid, err := h.service.VerifyRangeProof(ctx, domain.AssetID(req.AssetID), principal, req.Min, req.Max, rangeCommitment, blob)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"valid": valid})
}

func (h *eligibilityHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.RevokeCommitment(ctx, adminmw.FromRequest(r), principal); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "commitment revoked",
		"request_id", requestcontext.RequestID(ctx),
		"principal", principal,
	)
	w.WriteHeader(http.StatusNoContent)
}
