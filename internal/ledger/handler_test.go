package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/covenant/internal/shared"
	_ "github.com/covenant-hq/covenant/testing"
)

func passthrough(next http.Handler) http.Handler { return next }

func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(shared.WithActor(r.Context(), 7)))
	})
}

func newTestRouter(t *testing.T) (*Service, http.Handler) {
	t.Helper()
	svc := NewService(newMemoryRepo())
	h := NewHandler(nil, svc)
	router := chi.NewRouter()
	router.Use(withActor)
	router.Route("/tenants/{tenantID}/ledger", h.MountRoutes(passthrough, passthrough))
	return svc, router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndListFunds(t *testing.T) {
	_, router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/tenants/1/ledger/funds",
		`{"type":"OPERATING","name":"Operating Fund"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var fund Fund
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fund))
	require.Equal(t, FundOperating, fund.Type)
	require.NotZero(t, fund.ID)

	// A second fund of the same type conflicts
	rec = do(t, router, http.MethodPost, "/tenants/1/ledger/funds",
		`{"type":"OPERATING","name":"Another"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/tenants/1/ledger/funds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Funds []Fund `json:"funds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Funds, 1)
}

func TestHandlerPostEntry(t *testing.T) {
	svc, router := newTestRouter(t)
	ctx := context.Background()

	fund, err := svc.CreateFund(ctx, CreateFundInput{TenantID: 1, Type: FundOperating, Name: "Operating"})
	require.NoError(t, err)
	cash, err := svc.CreateAccount(ctx, CreateAccountInput{TenantID: 1, FundID: fund.ID, Number: "1010", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	revenue, err := svc.CreateAccount(ctx, CreateAccountInput{TenantID: 1, FundID: fund.ID, Number: "4100", Name: "Assessments", Type: AccountTypeRevenue})
	require.NoError(t, err)

	body := `{
		"date": "2026-02-01",
		"description": "February assessments",
		"lines": [
			{"account_id": ` + jsonID(cash.ID) + `, "debit": "350.00"},
			{"account_id": ` + jsonID(revenue.ID) + `, "credit": "350.00"}
		]
	}`
	rec := do(t, router, http.MethodPost, "/tenants/1/ledger/entries", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry JournalEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Equal(t, EntryStandard, entry.Type)
	require.EqualValues(t, 7, entry.CreatedBy)
	require.Len(t, entry.Lines, 2)

	rec = do(t, router, http.MethodGet, "/tenants/1/ledger/entries/"+jsonID(entry.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerPostEntryUnbalanced(t *testing.T) {
	svc, router := newTestRouter(t)
	ctx := context.Background()

	fund, err := svc.CreateFund(ctx, CreateFundInput{TenantID: 1, Type: FundOperating, Name: "Operating"})
	require.NoError(t, err)
	cash, err := svc.CreateAccount(ctx, CreateAccountInput{TenantID: 1, FundID: fund.ID, Number: "1010", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	revenue, err := svc.CreateAccount(ctx, CreateAccountInput{TenantID: 1, FundID: fund.ID, Number: "4100", Name: "Assessments", Type: AccountTypeRevenue})
	require.NoError(t, err)

	body := `{
		"date": "2026-02-01",
		"lines": [
			{"account_id": ` + jsonID(cash.ID) + `, "debit": "350.00"},
			{"account_id": ` + jsonID(revenue.ID) + `, "credit": "300.00"}
		]
	}`
	rec := do(t, router, http.MethodPost, "/tenants/1/ledger/entries", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerEntryBadRequests(t *testing.T) {
	_, router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/tenants/1/ledger/entries", `{"date":"02/01/2026","lines":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/tenants/1/ledger/entries/99", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/tenants/1/ledger/funds/42/trial-balance", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}
