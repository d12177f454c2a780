// Package reports assembles association reports: CSV exports for the books
// and PDF documents (board packet, resale disclosure) rendered via Gotenberg.
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/budget"
	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/tenant"
	"github.com/covenant-hq/covenant/internal/violations"
	"github.com/covenant-hq/covenant/internal/workorder"
)

// TenantPort resolves association metadata.
type TenantPort interface {
	Get(ctx context.Context, tenantID int64) (tenant.Tenant, error)
}

// LedgerPort exposes the ledger queries the report builders need.
type LedgerPort interface {
	ListFunds(ctx context.Context, tenantID int64) ([]ledger.Fund, error)
	ListAccounts(ctx context.Context, tenantID int64) ([]ledger.Account, error)
	ListEntries(ctx context.Context, tenantID int64, limit, offset int) ([]ledger.JournalEntry, int, error)
	TrialBalance(ctx context.Context, tenantID, fundID int64) (ledger.TrialBalance, error)
}

// ARPort exposes the receivables queries the report builders need.
type ARPort interface {
	Aging(ctx context.Context, tenantID int64, asOf time.Time) (ar.AgingReport, error)
	OwnerLedger(ctx context.Context, tenantID, ownerID int64) (ar.OwnerLedger, error)
	GetUnit(ctx context.Context, tenantID, unitID int64) (ar.Unit, error)
	CurrentOwner(ctx context.Context, tenantID, unitID int64) (ar.Owner, error)
	ListInvoices(ctx context.Context, tenantID int64, req ar.ListInvoicesRequest) ([]ar.Invoice, int, error)
}

// BudgetPort exposes budget variance queries.
type BudgetPort interface {
	List(ctx context.Context, tenantID int64) ([]budget.Budget, error)
	Variance(ctx context.Context, tenantID, budgetID int64, thresholdAmount, thresholdPercent *decimal.Decimal) (budget.VarianceReport, error)
}

// ViolationsPort exposes active violation queries.
type ViolationsPort interface {
	ListActive(ctx context.Context, tenantID int64) ([]violations.Violation, error)
}

// WorkOrderPort exposes work order queries.
type WorkOrderPort interface {
	List(ctx context.Context, tenantID int64, status workorder.Status, limit, offset int) ([]workorder.WorkOrder, int, error)
}

// FundSection pairs a fund with its trial balance for rendering.
type FundSection struct {
	Fund         ledger.Fund
	TrialBalance ledger.TrialBalance
}

// BoardPacketData is the board packet view model.
type BoardPacketData struct {
	Tenant         tenant.Tenant
	Period         time.Time
	GeneratedAt    time.Time
	Funds          []FundSection
	Aging          ar.AgingReport
	VarianceRows   []budget.VarianceRow
	OpenViolations []violations.Violation
	OpenWorkOrders []workorder.WorkOrder
	Warnings       []string
}

// ResaleDisclosureData is the resale disclosure certificate view model.
type ResaleDisclosureData struct {
	Tenant            tenant.Tenant
	Unit              ar.Unit
	Owner             ar.Owner
	Ledger            ar.OwnerLedger
	OpenInvoices      []ar.Invoice
	Violations        []violations.Violation
	MonthlyAssessment decimal.Decimal
	GoodStanding      bool
	GeneratedAt       time.Time
}

// Builder assembles report view models from the domain services.
type Builder struct {
	tenants    TenantPort
	gl         LedgerPort
	receivable ARPort
	budgets    BudgetPort
	violations ViolationsPort
	workorders WorkOrderPort
	now        func() time.Time
	topLimit   int
}

// NewBuilder wires the builder to its data sources.
func NewBuilder(tenants TenantPort, gl LedgerPort, receivable ARPort, budgets BudgetPort, vio ViolationsPort, wo WorkOrderPort) *Builder {
	return &Builder{
		tenants:    tenants,
		gl:         gl,
		receivable: receivable,
		budgets:    budgets,
		violations: vio,
		workorders: wo,
		now:        time.Now,
		topLimit:   10,
	}
}

// WithNow overrides the clock, for tests.
func (b *Builder) WithNow(now func() time.Time) {
	b.now = now
}

// WithTopVarianceLimit overrides how many variance rows the packet shows.
func (b *Builder) WithTopVarianceLimit(limit int) {
	if limit > 0 {
		b.topLimit = limit
	}
}

// BuildBoardPacket assembles the monthly board packet for the given period.
// Financial sections (trial balances, aging) must load; ancillary sections
// degrade into warnings so one bad feed never blocks the packet.
func (b *Builder) BuildBoardPacket(ctx context.Context, tenantID int64, period time.Time) (BoardPacketData, error) {
	tn, err := b.tenants.Get(ctx, tenantID)
	if err != nil {
		return BoardPacketData{}, err
	}

	funds, err := b.gl.ListFunds(ctx, tenantID)
	if err != nil {
		return BoardPacketData{}, err
	}
	sections := make([]FundSection, 0, len(funds))
	for _, fund := range funds {
		tb, err := b.gl.TrialBalance(ctx, tenantID, fund.ID)
		if err != nil {
			return BoardPacketData{}, fmt.Errorf("reports: trial balance for fund %d: %w", fund.ID, err)
		}
		sections = append(sections, FundSection{Fund: fund, TrialBalance: tb})
	}

	aging, err := b.receivable.Aging(ctx, tenantID, period)
	if err != nil {
		return BoardPacketData{}, fmt.Errorf("reports: aging: %w", err)
	}

	warnings := make([]string, 0)

	varianceRows, warn := b.topVariances(ctx, tenantID, period)
	if warn != "" {
		warnings = append(warnings, warn)
	}

	var openViolations []violations.Violation
	if b.violations != nil {
		openViolations, err = b.violations.ListActive(ctx, tenantID)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("violations unavailable: %v", err))
		}
	}

	var openWorkOrders []workorder.WorkOrder
	if b.workorders != nil {
		all, _, err := b.workorders.List(ctx, tenantID, "", 1000, 0)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("work orders unavailable: %v", err))
		} else {
			for _, wo := range all {
				if wo.Status == workorder.StatusCompleted || wo.Status == workorder.StatusCancelled {
					continue
				}
				openWorkOrders = append(openWorkOrders, wo)
			}
		}
	}

	return BoardPacketData{
		Tenant:         tn,
		Period:         period,
		GeneratedAt:    b.now(),
		Funds:          sections,
		Aging:          aging,
		VarianceRows:   varianceRows,
		OpenViolations: openViolations,
		OpenWorkOrders: openWorkOrders,
		Warnings:       warnings,
	}, nil
}

func (b *Builder) topVariances(ctx context.Context, tenantID int64, period time.Time) ([]budget.VarianceRow, string) {
	if b.budgets == nil {
		return nil, ""
	}
	budgets, err := b.budgets.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Sprintf("budgets unavailable: %v", err)
	}
	rows := make([]budget.VarianceRow, 0)
	for _, bd := range budgets {
		if bd.Year != period.Year() {
			continue
		}
		report, err := b.budgets.Variance(ctx, tenantID, bd.ID, nil, nil)
		if err != nil {
			return nil, fmt.Sprintf("variance for budget %d unavailable: %v", bd.ID, err)
		}
		rows = append(rows, report.Rows...)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Variance.Abs().GreaterThan(rows[j].Variance.Abs())
	})
	if len(rows) > b.topLimit {
		rows = rows[:b.topLimit]
	}
	return rows, ""
}

// BuildResaleDisclosure assembles the disclosure certificate for a unit sale.
// The owner of record, their statement, and any active violations against the
// unit must all load; there is no degraded form of a legal disclosure.
func (b *Builder) BuildResaleDisclosure(ctx context.Context, tenantID, unitID int64, monthlyAssessment decimal.Decimal) (ResaleDisclosureData, error) {
	tn, err := b.tenants.Get(ctx, tenantID)
	if err != nil {
		return ResaleDisclosureData{}, err
	}
	unit, err := b.receivable.GetUnit(ctx, tenantID, unitID)
	if err != nil {
		return ResaleDisclosureData{}, err
	}
	owner, err := b.receivable.CurrentOwner(ctx, tenantID, unitID)
	if err != nil {
		return ResaleDisclosureData{}, err
	}
	statement, err := b.receivable.OwnerLedger(ctx, tenantID, owner.ID)
	if err != nil {
		return ResaleDisclosureData{}, err
	}

	invoices, _, err := b.receivable.ListInvoices(ctx, tenantID, ar.ListInvoicesRequest{OwnerID: owner.ID, Limit: 1000})
	if err != nil {
		return ResaleDisclosureData{}, err
	}
	open := make([]ar.Invoice, 0)
	for _, inv := range invoices {
		if inv.Status == ar.InvoiceIssued || inv.Status == ar.InvoicePartial {
			open = append(open, inv)
		}
	}

	var unitViolations []violations.Violation
	if b.violations != nil {
		active, err := b.violations.ListActive(ctx, tenantID)
		if err != nil {
			return ResaleDisclosureData{}, err
		}
		for _, v := range active {
			if v.UnitID == unitID {
				unitViolations = append(unitViolations, v)
			}
		}
	}

	return ResaleDisclosureData{
		Tenant:            tn,
		Unit:              unit,
		Owner:             owner,
		Ledger:            statement,
		OpenInvoices:      open,
		Violations:        unitViolations,
		MonthlyAssessment: monthlyAssessment,
		GoodStanding:      statement.Balance.Sign() <= 0 && len(unitViolations) == 0,
		GeneratedAt:       b.now(),
	}, nil
}
