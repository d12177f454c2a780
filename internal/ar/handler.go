package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/shared"
)

// Handler wires accounts-receivable endpoints under a tenant scope.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the AR handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers AR routes. Role enforcement happens in the router.
func (h *Handler) MountRoutes(read, write func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/owners", func(r chi.Router) {
			r.With(read).Get("/", h.listOwners)
			r.With(write).Post("/", h.createOwner)
			r.With(read).Get("/{ownerID}", h.getOwner)
			r.With(read).Get("/{ownerID}/ledger", h.ownerLedger)
		})
		r.Route("/units", func(r chi.Router) {
			r.With(read).Get("/", h.listUnits)
			r.With(write).Post("/", h.createUnit)
		})
		r.With(write).Post("/ownerships", h.transferOwnership)
		r.Route("/invoices", func(r chi.Router) {
			r.With(read).Get("/", h.listInvoices)
			r.With(write).Post("/", h.createInvoice)
			r.With(read).Get("/{invoiceID}", h.getInvoice)
			r.With(write).Post("/{invoiceID}/issue", h.issueInvoice)
			r.With(write).Post("/{invoiceID}/void", h.voidInvoice)
		})
		r.Route("/payments", func(r chi.Router) {
			r.With(write).Post("/", h.receivePayment)
			r.With(read).Get("/{paymentID}", h.getPayment)
		})
		r.With(read).Get("/aging", h.aging)
	}
}

func (h *Handler) listOwners(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageRequest(r)
	owners, total, err := h.service.ListOwners(r.Context(), tenantID, pageSize, shared.Offset(page, pageSize))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"owners":     owners,
		"pagination": shared.NewPagination(page, pageSize, total),
	})
}

type createOwnerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	MailingAddress string `json:"mailing_address"`
}

func (h *Handler) createOwner(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createOwnerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in := CreateOwnerInput{
		TenantID:       tenantID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		MailingAddress: req.MailingAddress,
	}
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	owner, err := h.service.CreateOwner(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, owner)
}

func (h *Handler) getOwner(w http.ResponseWriter, r *http.Request) {
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
	owner, err := h.service.GetOwner(r.Context(), tenantID, ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, owner)
}

func (h *Handler) ownerLedger(w http.ResponseWriter, r *http.Request) {
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
	statement, err := h.service.OwnerLedger(r.Context(), tenantID, ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageRequest(r)
	units, total, err := h.service.ListUnits(r.Context(), tenantID, pageSize, shared.Offset(page, pageSize))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"units":      units,
		"pagination": shared.NewPagination(page, pageSize, total),
	})
}

type createUnitRequest struct {
	UnitNumber string `json:"unit_number"`
	Address    string `json:"address"`
	SquareFeet int    `json:"square_feet"`
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createUnitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in := CreateUnitInput{
		TenantID:   tenantID,
		UnitNumber: req.UnitNumber,
		Address:    req.Address,
		SquareFeet: req.SquareFeet,
	}
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	unit, err := h.service.CreateUnit(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, unit)
}

type transferOwnershipRequest struct {
	OwnerID    int64           `json:"owner_id"`
	UnitID     int64           `json:"unit_id"`
	Percentage decimal.Decimal `json:"percentage"`
	StartDate  string          `json:"start_date"`
}

func (h *Handler) transferOwnership(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req transferOwnershipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	start, err := httpx.ParseDate("start_date", req.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CreateOwnershipInput{
		TenantID:   tenantID,
		OwnerID:    req.OwnerID,
		UnitID:     req.UnitID,
		Percentage: req.Percentage,
		StartDate:  start,
	}
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	ownership, err := h.service.TransferOwnership(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ownership)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageRequest(r)
	req := ListInvoicesRequest{
		Status:  InvoiceStatus(r.URL.Query().Get("status")),
		OwnerID: httpx.QueryInt64(r, "owner_id"),
		Limit:   pageSize,
		Offset:  shared.Offset(page, pageSize),
	}
	invoices, total, err := h.service.ListInvoices(r.Context(), tenantID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   invoices,
		"pagination": shared.NewPagination(page, pageSize, total),
	})
}

type invoiceLineRequest struct {
	Kind        LineKind        `json:"kind"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type createInvoiceRequest struct {
	OwnerID     int64                `json:"owner_id"`
	UnitID      int64                `json:"unit_id"`
	InvoiceDate string               `json:"invoice_date"`
	DueDate     string               `json:"due_date"`
	Lines       []invoiceLineRequest `json:"lines"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	invoiceDate, err := httpx.ParseDate("invoice_date", req.InvoiceDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dueDate, err := httpx.ParseDate("due_date", req.DueDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CreateInvoiceInput{
		TenantID:    tenantID,
		OwnerID:     req.OwnerID,
		UnitID:      req.UnitID,
		InvoiceDate: invoiceDate,
		DueDate:     dueDate,
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, InvoiceLineInput{
			Kind:        line.Kind,
			Description: line.Description,
			Amount:      line.Amount,
		})
	}
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	invoice, err := h.service.CreateInvoice(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoiceID, err := httpx.URLInt64(r, "invoiceID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), tenantID, invoiceID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) issueInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceTransition(w, r, h.service.IssueInvoice)
}

func (h *Handler) voidInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceTransition(w, r, h.service.VoidInvoice)
}

func (h *Handler) invoiceTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, tenantID, invoiceID int64) (Invoice, error)) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoiceID, err := httpx.URLInt64(r, "invoiceID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := op(r.Context(), tenantID, invoiceID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

type receivePaymentRequest struct {
	OwnerID      int64           `json:"owner_id"`
	ReceivedDate string          `json:"received_date"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method"`
	Reference    string          `json:"reference"`
}

func (h *Handler) receivePayment(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receivePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	received, err := httpx.ParseDate("received_date", req.ReceivedDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := ReceivePaymentInput{
		TenantID:     tenantID,
		OwnerID:      req.OwnerID,
		ReceivedDate: received,
		Amount:       req.Amount,
		Method:       req.Method,
		Reference:    req.Reference,
	}
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	payment, err := h.service.ReceivePayment(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	paymentID, err := httpx.URLInt64(r, "paymentID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.GetPayment(r.Context(), tenantID, paymentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of", h.service.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Aging(r.Context(), tenantID, asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOwnerNotFound), errors.Is(err, ErrUnitNotFound),
		errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrPaymentNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrHasPayments):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		if h.logger != nil {
			h.logger.Error("ar request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
