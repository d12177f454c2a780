package reports

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/tenant"
)

// Handler serves CSV and PDF report downloads.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers report routes. All reports are read-only.
func (h *Handler) MountRoutes(read func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(read)
		r.Get("/aging.csv", h.agingCSV)
		r.Get("/trial-balance.csv", h.trialBalanceCSV)
		r.Get("/owner-ledger/{ownerID}.csv", h.ownerLedgerCSV)
		r.Get("/auditor-export.csv", h.auditorExportCSV)
		r.Get("/board-packet.pdf", h.boardPacketPDF)
		r.Get("/resale-disclosure/{unitID}.pdf", h.resaleDisclosurePDF)
	}
}

func (h *Handler) agingCSV(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of", h.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.service.AgingCSV(r.Context(), tenantID, asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.sendCSV(w, fmt.Sprintf("aging-%d-%s.csv", tenantID, asOf.Format(httpx.DateLayout)), data)
}

func (h *Handler) trialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fundID := httpx.QueryInt64(r, "fund_id")
	if fundID == 0 {
		httpx.RespondError(w, fmt.Errorf("%w: fund_id required", httpx.ErrValidation))
		return
	}
	data, err := h.service.TrialBalanceCSV(r.Context(), tenantID, fundID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.sendCSV(w, fmt.Sprintf("trial-balance-%d-%d.csv", tenantID, fundID), data)
}

func (h *Handler) ownerLedgerCSV(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ownerID, err := httpx.URLInt64(r, "ownerID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.service.OwnerLedgerCSV(r.Context(), tenantID, ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.sendCSV(w, fmt.Sprintf("owner-ledger-%d-%d.csv", tenantID, ownerID), data)
}

func (h *Handler) auditorExportCSV(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.service.AuditorExportCSV(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.sendCSV(w, fmt.Sprintf("auditor-export-%d.csv", tenantID), data)
}

func (h *Handler) boardPacketPDF(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.parsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.BoardPacketPDF(r.Context(), tenantID, period)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.sendPDF(w, fmt.Sprintf("board-packet-%d-%s.pdf", tenantID, period.Format("2006-01")), result.PDF)
}

func (h *Handler) resaleDisclosurePDF(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	unitID, err := httpx.URLInt64(r, "unitID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	monthly := decimal.Zero
	if raw := r.URL.Query().Get("monthly_assessment"); raw != "" {
		monthly, err = decimal.NewFromString(raw)
		if err != nil || monthly.IsNegative() {
			httpx.RespondError(w, fmt.Errorf("%w: monthly_assessment must be a non-negative decimal", httpx.ErrValidation))
			return
		}
	}
	result, err := h.service.ResaleDisclosurePDF(r.Context(), tenantID, unitID, monthly)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.sendPDF(w, fmt.Sprintf("resale-disclosure-%d-%d.pdf", tenantID, unitID), result.PDF)
}

// parsePeriod reads a YYYY-MM month, defaulting to the current month.
func (h *Handler) parsePeriod(raw string) (time.Time, error) {
	if raw == "" {
		now := h.now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	period, err := time.Parse("2006-01", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: period must be YYYY-MM", httpx.ErrValidation)
	}
	return period, nil
}

func (h *Handler) sendCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) sendPDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound), errors.Is(err, ledger.ErrFundNotFound),
		errors.Is(err, ar.ErrOwnerNotFound), errors.Is(err, ar.ErrUnitNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	default:
		if h.logger != nil {
			h.logger.Error("report request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
