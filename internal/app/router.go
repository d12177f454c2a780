package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/archreview"
	"github.com/covenant-hq/covenant/internal/auth"
	"github.com/covenant-hq/covenant/internal/bank"
	"github.com/covenant-hq/covenant/internal/budget"
	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/observability"
	"github.com/covenant-hq/covenant/internal/rbac"
	"github.com/covenant-hq/covenant/internal/reports"
	"github.com/covenant-hq/covenant/internal/tenant"
	"github.com/covenant-hq/covenant/internal/violations"
	"github.com/covenant-hq/covenant/internal/workorder"
	"github.com/covenant-hq/covenant/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Verifier auth.Verifier
	RBAC     rbac.Middleware
	Metrics  *observability.Metrics

	AuthHandler       *auth.Handler
	TenantHandler     *tenant.Handler
	LedgerHandler     *ledger.Handler
	ARHandler         *ar.Handler
	BankHandler       *bank.Handler
	BudgetHandler     *budget.Handler
	ViolationsHandler *violations.Handler
	ArchHandler       *archreview.Handler
	WorkOrderHandler  *workorder.Handler
	ReportsHandler    *reports.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Covenant defaults. The tree is a
// JSON API: public auth endpoints, then a bearer-token group where every
// tenant-scoped route is guarded by the membership role ladder.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	read := params.RBAC.RequireRole(tenant.RoleReadonly)
	write := params.RBAC.RequireRole(tenant.RoleManager)
	board := params.RBAC.RequireRole(tenant.RoleBoard)

	r.Route("/api/v1", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticator(params.Verifier))

			if params.TenantHandler != nil {
				r.Route("/tenants", func(r chi.Router) {
					params.TenantHandler.MountRoutes(r)
					r.Route("/{tenantID}", func(r chi.Router) {
						params.TenantHandler.MountTenantRoutes(r)

						if params.LedgerHandler != nil {
							r.Route("/ledger", params.LedgerHandler.MountRoutes(read, write))
						}
						if params.ARHandler != nil {
							params.ARHandler.MountRoutes(read, write)(r)
						}
						if params.BankHandler != nil {
							r.Route("/bank-accounts", params.BankHandler.MountRoutes(read, write))
						}
						if params.BudgetHandler != nil {
							r.Route("/budgets", params.BudgetHandler.MountRoutes(read, write))
						}
						if params.ViolationsHandler != nil {
							r.Route("/violations", params.ViolationsHandler.MountRoutes(read, write))
						}
						if params.ArchHandler != nil {
							r.Route("/arch-requests", params.ArchHandler.MountRoutes(read, write, board))
						}
						if params.WorkOrderHandler != nil {
							r.Route("/work-orders", params.WorkOrderHandler.MountRoutes(read, write))
						}
						if params.ReportsHandler != nil {
							r.Route("/reports", params.ReportsHandler.MountRoutes(board))
						}
					})
				})
			}
		})
	})

	return r
}
