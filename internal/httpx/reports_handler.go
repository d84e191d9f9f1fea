package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alkuinvito/kasirin/internal/auth"
	"github.com/alkuinvito/kasirin/internal/reports"
)

type SalesReports interface {
	Summary(ctx context.Context, date string, top int) (*reports.DaySummary, error)
}

type ReportsHandler struct {
	Reports SalesReports
	Log     *slog.Logger
}

func (h *ReportsHandler) Register(r chi.Router) {
	r.With(RequireRole(auth.RoleManager, h.Log)).Get("/reports/sales", h.sales)
}

func (h *ReportsHandler) sales(w http.ResponseWriter, r *http.Request) {
	top, err := queryInt(r, "top", 10)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	sum, err := h.Reports.Summary(ctx, r.URL.Query().Get("date"), top)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
