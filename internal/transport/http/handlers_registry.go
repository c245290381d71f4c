package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	registrysvc "tessera/internal/registry/service"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/httputil"
	adminmw "tessera/pkg/platform/middleware/admin"
	"tessera/pkg/requestcontext"
)

type registryHandler struct {
	registry  RegistryService
	valuation ValuationService
	logger    *slog.Logger
}

func newRegistryHandler(registry RegistryService, valuation ValuationService, logger *slog.Logger) *registryHandler {
	return &registryHandler{registry: registry, valuation: valuation, logger: logger}
}

// Register mounts the public asset endpoints.
func (h *registryHandler) Register(r chi.Router) {
	r.Post("/assets", h.handleIssue)
	r.Get("/assets/{assetID}", h.handleGetRecord)
	r.Get("/assets/{assetID}/balances/{principal}", h.handleGetBalance)
	r.Get("/assets/{assetID}/fraction-value", h.handleFractionValue)
	r.Post("/assets/{assetID}/yield", h.handleYield)
	r.Post("/assets/{assetID}/purchase", h.handlePurchase)
	r.Post("/assets/{assetID}/transfer", h.handleTransfer)
	r.Post("/assets/{assetID}/recombine", h.handleRecombine)
}

// RegisterAdmin mounts the per-asset policy endpoints under the admin guard.
func (h *registryHandler) RegisterAdmin(r chi.Router, policy PolicyAdmin) {
	r.Put("/assets/{assetID}/min-unit", h.handleSetMinUnit(policy))
	r.Put("/assets/{assetID}/lockup", h.handleSetLockup(policy))
}

type issueRequest struct {
	Issuer          string `json:"issuer"`
	DocumentHash    string `json:"document_hash"`
	TotalValueMinor int64  `json:"total_value_minor"`
	FractionCount   int64  `json:"fraction_count"`
	MinFractionUnit int64  `json:"min_fraction_unit"`
	LockupSeconds   int64  `json:"lockup_seconds"`
	FeedID          string `json:"feed_id"`
}

func (h *registryHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[issueRequest](w, r)
	if !ok {
		return
	}
	issuer, err := domain.ParsePrincipal(req.Issuer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	documentHash, err := domain.ParseHash32(req.DocumentHash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	feedID, err := domain.ParseFeedID(req.FeedID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	assetID, err := h.registry.IssueAsset(ctx, registrysvc.IssueAssetParams{
		Issuer:          issuer,
		DocumentHash:    documentHash,
		TotalValueMinor: req.TotalValueMinor,
		FractionCount:   req.FractionCount,
		MinFractionUnit: req.MinFractionUnit,
		LockupDuration:  time.Duration(req.LockupSeconds) * time.Second,
		FeedID:          feedID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "asset issuance failed",
			"request_id", requestcontext.RequestID(ctx),
			"issuer", issuer,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"asset_id": assetID})
}

func (h *registryHandler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, ok := parseAssetID(w, r)
	if !ok {
		return
	}

	record, exists, err := h.registry.GetAssetRecord(ctx, assetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !exists {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeAssetNotFound, "asset %d does not exist", assetID))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"asset_id":          record.AssetID,
		"issuer":            record.Issuer,
		"document_hash":     record.DocumentHash.String(),
		"total_value_minor": record.TotalValueMinor,
		"fraction_count":    record.FractionCount,
		"min_fraction_unit": record.MinFractionUnit,
		"minted_at_feed":    record.MintedAtFeed,
		"minted_at_price":   record.MintedAtPrice,
		"minted_at_expo":    record.MintedAtExpo,
		"minted_at":         record.MintedAt,
		"verified":          record.Verified,
	})
}

func (h *registryHandler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	holder, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	amount, err := h.registry.Balance(ctx, assetID, holder)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"amount": amount})
}

func (h *registryHandler) handleFractionValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	value, err := h.valuation.PreviewFractionValue(ctx, assetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"value_minor": value})
}

type yieldRequest struct {
	PrincipalMinor int64 `json:"principal_minor"`
	Days           int64 `json:"days"`
}

func (h *registryHandler) handleYield(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[yieldRequest](w, r)
	if !ok {
		return
	}

	total, err := h.valuation.CalculateYield(ctx, assetID, req.PrincipalMinor, time.Duration(req.Days)*24*time.Hour)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"total_minor": total})
}

type purchaseRequest struct {
	Buyer        string `json:"buyer"`
	Amount       int64  `json:"amount"`
	PaymentMinor int64  `json:"payment_minor"`
}

func (h *registryHandler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	assetID, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[purchaseRequest](w, r)
	if !ok {
		return
	}
	buyer, err := domain.ParsePrincipal(req.Buyer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.registry.PurchaseFraction(ctx, assetID, buyer, req.Amount, req.PaymentMinor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "fraction purchased",
		"request_id", requestcontext.RequestID(ctx),
		"asset_id", assetID,
		"buyer", buyer,
		"amount", req.Amount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"cost_minor":    result.Cost,
		"surplus_minor": result.Surplus,
	})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

func (h *registryHandler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[transferRequest](w, r)
	if !ok {
		return
	}
	from, err := domain.ParsePrincipal(req.From)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := domain.ParsePrincipal(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.registry.TransferFraction(ctx, assetID, from, to, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recombineRequest struct {
	Holder string `json:"holder"`
	Amount int64  `json:"amount"`
}

func (h *registryHandler) handleRecombine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[recombineRequest](w, r)
	if !ok {
		return
	}
	holder, err := domain.ParsePrincipal(req.Holder)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.registry.Recombine(ctx, assetID, holder, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"whole_asset_id": assetID.Whole()})
}

type minUnitRequest struct {
	MinUnit int64 `json:"min_unit"`
}

func (h *registryHandler) handleSetMinUnit(policy PolicyAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		assetID, ok := parseAssetID(w, r)
		if !ok {
			return
		}
		req, ok := httputil.Decode[minUnitRequest](w, r)
		if !ok {
			return
		}
		if err := policy.SetMinUnit(ctx, adminmw.FromRequest(r), assetID, req.MinUnit); err != nil {
			httputil.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type lockupRequest struct {
	LockupEnd time.Time `json:"lockup_end"`
}

func (h *registryHandler) handleSetLockup(policy PolicyAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		assetID, ok := parseAssetID(w, r)
		if !ok {
			return
		}
		req, ok := httputil.Decode[lockupRequest](w, r)
		if !ok {
			return
		}
		if err := policy.SetLockupEnd(ctx, adminmw.FromRequest(r), assetID, req.LockupEnd); err != nil {
			httputil.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseAssetID(w http.ResponseWriter, r *http.Request) (domain.AssetID, bool) {
	raw := chi.URLParam(r, "assetID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidParameters, "asset id must be a positive integer"))
		return 0, false
	}
	return domain.AssetID(id), true
}
