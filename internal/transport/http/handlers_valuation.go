package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tessera/pkg/platform/httputil"
	adminmw "tessera/pkg/platform/middleware/admin"
	"tessera/pkg/requestcontext"
)

type valuationAdminHandler struct {
	service ValuationService
	logger  *slog.Logger
}

func newValuationAdminHandler(service ValuationService, logger *slog.Logger) *valuationAdminHandler {
	return &valuationAdminHandler{service: service, logger: logger}
}

// Register mounts the yield policy endpoint under the admin guard.
func (h *valuationAdminHandler) Register(r chi.Router) {
	r.Put("/valuation/base-apy", h.handleSetBaseAPY)
}

type baseAPYRequest struct {
	BasisPoints int64 `json:"basis_points"`
}

func (h *valuationAdminHandler) handleSetBaseAPY(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[baseAPYRequest](w, r)
	if !ok {
		return
	}
	if err := h.service.SetBaseAPY(ctx, adminmw.FromRequest(r), req.BasisPoints); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "base APY updated via admin API",
		"request_id", requestcontext.RequestID(ctx),
		"basis_points", req.BasisPoints,
	)
	w.WriteHeader(http.StatusNoContent)
}
