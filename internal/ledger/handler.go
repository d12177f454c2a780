package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/shared"
)

// Handler wires general ledger endpoints under a tenant scope.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes. Role enforcement happens in the router.
func (h *Handler) MountRoutes(read, write func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.With(read).Get("/funds", h.listFunds)
		r.With(write).Post("/funds", h.createFund)
		r.With(read).Get("/funds/{fundID}/trial-balance", h.trialBalance)
		r.With(read).Get("/accounts", h.listAccounts)
		r.With(write).Post("/accounts", h.createAccount)
		r.With(read).Get("/accounts/{accountID}/balance", h.accountBalance)
		r.With(read).Get("/entries", h.listEntries)
		r.With(write).Post("/entries", h.postEntry)
		r.With(read).Get("/entries/{entryID}", h.getEntry)
		r.With(write).Post("/entries/{entryID}/reverse", h.reverseEntry)
	}
}

func (h *Handler) listFunds(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	funds, err := h.service.ListFunds(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"funds": funds})
}

type createFundRequest struct {
	Type FundType `json:"type"`
	Name string   `json:"name"`
}

func (h *Handler) createFund(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createFundRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in := CreateFundInput{TenantID: tenantID, Type: req.Type, Name: req.Name}
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	fund, err := h.service.CreateFund(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fund)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fundID, err := httpx.URLInt64(r, "fundID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), tenantID, fundID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

type createAccountRequest struct {
	FundID   int64       `json:"fund_id"`
	Number   string      `json:"number"`
	Name     string      `json:"name"`
	Type     AccountType `json:"type"`
	ParentID *int64      `json:"parent_id"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in := CreateAccountInput{
		TenantID: tenantID,
		FundID:   req.FundID,
		Number:   req.Number,
		Name:     req.Name,
		Type:     req.Type,
		ParentID: req.ParentID,
	}
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	account, err := h.service.CreateAccount(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := httpx.URLInt64(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.AccountBalance(r.Context(), tenantID, accountID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageRequest(r)
	entries, total, err := h.service.ListEntries(r.Context(), tenantID, pageSize, shared.Offset(page, pageSize))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": shared.NewPagination(page, pageSize, total),
	})
}

type postingLineRequest struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo"`
}

type postEntryRequest struct {
	Date        string               `json:"date"`
	Type        EntryType            `json:"type"`
	Description string               `json:"description"`
	Lines       []postingLineRequest `json:"lines"`
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorID(r.Context())
	if actorID == 0 {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entryType := req.Type
	if entryType == "" {
		entryType = EntryStandard
	}
	in := PostingInput{
		TenantID:    tenantID,
		Date:        date,
		Type:        entryType,
		Description: req.Description,
		CreatedBy:   actorID,
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	if err := in.Validate(); err != nil {
		h.respondValidation(w, err)
		return
	}
	entry, err := h.service.PostEntry(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entryID, err := httpx.URLInt64(r, "entryID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), tenantID, entryID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type reverseEntryRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entryID, err := httpx.URLInt64(r, "entryID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorID(r.Context())
	if actorID == 0 {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req reverseEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.ReverseEntry(r.Context(), ReverseInput{
		TenantID:    tenantID,
		EntryID:     entryID,
		Date:        date,
		Description: req.Description,
		CreatedBy:   actorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// respondValidation covers service-level Validate failures, keeping the
// posting-specific sentinels on their dedicated statuses.
func (h *Handler) respondValidation(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnbalanced):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnbalanced, err))
	default:
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrFundNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrAccountExists), errors.Is(err, ErrFundExists),
		errors.Is(err, ErrAlreadyReversed):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnbalanced, err))
	case errors.Is(err, ErrFundMismatch):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		if h.logger != nil {
			h.logger.Error("ledger request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
