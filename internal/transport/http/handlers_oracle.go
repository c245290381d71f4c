package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tessera/pkg/domain"
	"tessera/pkg/platform/httputil"
	adminmw "tessera/pkg/platform/middleware/admin"
	"tessera/pkg/requestcontext"
)

type oracleHandler struct {
	service OracleService
	logger  *slog.Logger
}

func newOracleHandler(service OracleService, logger *slog.Logger) *oracleHandler {
	return &oracleHandler{service: service, logger: logger}
}

// Register mounts the public oracle endpoints.
func (h *oracleHandler) Register(r chi.Router) {
	r.Post("/oracle/updates", h.handleIngest)
	r.Get("/oracle/prices/{feedID}", h.handleReadFresh)
}

// RegisterAdmin mounts feed and staleness management under the admin guard.
func (h *oracleHandler) RegisterAdmin(r chi.Router) {
	r.Post("/oracle/feeds", h.handleAddFeed)
	r.Delete("/oracle/feeds/{feedID}", h.handleRemoveFeed)
	r.Put("/oracle/staleness", h.handleSetStaleness)
}

type ingestRequest struct {
	FeedID      string `json:"feed_id"`
	Attestation string `json:"attestation"`
	FeeMinor    int64  `json:"fee_minor"`
}

func (h *oracleHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[ingestRequest](w, r)
	if !ok {
		return
	}
	feedID, err := domain.ParseFeedID(req.FeedID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.IngestUpdate(ctx, feedID, []byte(req.Attestation), req.FeeMinor)
	if err != nil {
		h.logger.WarnContext(ctx, "price update rejected",
			"request_id", requestcontext.RequestID(ctx),
			"feed_id", feedID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"snapshot":     result.Snapshot,
		"refund_minor": result.Refund,
	})
}

func (h *oracleHandler) handleReadFresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	feedID, err := domain.ParseFeedID(chi.URLParam(r, "feedID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	snapshot, err := h.service.ReadFreshPrice(ctx, feedID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

type addFeedRequest struct {
	FeedID string `json:"feed_id"`
}

func (h *oracleHandler) handleAddFeed(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[addFeedRequest](w, r)
	if !ok {
		return
	}
	feedID, err := domain.ParseFeedID(req.FeedID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.AddSupportedFeed(adminmw.FromRequest(r), feedID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *oracleHandler) handleRemoveFeed(w http.ResponseWriter, r *http.Request) {
	feedID, err := domain.ParseFeedID(chi.URLParam(r, "feedID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveSupportedFeed(adminmw.FromRequest(r), feedID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stalenessRequest struct {
	Seconds int64 `json:"seconds"`
}

func (h *oracleHandler) handleSetStaleness(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[stalenessRequest](w, r)
	if !ok {
		return
	}
	if err := h.service.SetStalenessThreshold(adminmw.FromRequest(r), time.Duration(req.Seconds)*time.Second); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
