// Command covenantctl runs back-office operations from the shell: tenant
// onboarding, billing sweeps, bank imports and report exports, plus enqueueing
// background jobs without waiting for their cron slot.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/app"
	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/bank"
	"github.com/covenant-hq/covenant/internal/budget"
	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/platform/db"
	"github.com/covenant-hq/covenant/internal/reports"
	"github.com/covenant-hq/covenant/internal/tenant"
	"github.com/covenant-hq/covenant/internal/violations"
	"github.com/covenant-hq/covenant/internal/workorder"
	"github.com/covenant-hq/covenant/jobs"
	"github.com/covenant-hq/covenant/report"
)

const usage = `usage: covenantctl <command> [flags]

commands:
  onboard-tenant     create an association and seed its chart of accounts
  monthly-invoices   bill the monthly assessment for one or all associations
  late-fees          assess late fees on overdue invoices
  aging              print the AR aging report as CSV
  owner-ledger       print an owner statement as CSV
  import-bank-csv    import a bank statement CSV file
  import-payments-csv  import a lockbox payments CSV and apply each receipt
  setup-reserve-fund provision or repair the reserve fund chart section
  reconcile          reconcile a bank account against the ledger
  enqueue            submit a background task (reminders, escalate, variance, integrity, board-packet)
`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "onboard-tenant":
		err = runOnboardTenant(ctx, args)
	case "monthly-invoices":
		err = runMonthlyInvoices(ctx, args)
	case "late-fees":
		err = runLateFees(ctx, args)
	case "aging":
		err = runAging(ctx, args)
	case "owner-ledger":
		err = runOwnerLedger(ctx, args)
	case "import-bank-csv":
		err = runImportBankCSV(ctx, args)
	case "import-payments-csv":
		err = runImportPaymentsCSV(ctx, args)
	case "setup-reserve-fund":
		err = runSetupReserveFund(ctx, args)
	case "reconcile":
		err = runReconcile(ctx, args)
	case "enqueue":
		err = runEnqueue(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// env bundles the service graph the subcommands pick from.
type env struct {
	cfg        *app.Config
	pool       *pgxpool.Pool
	tenants    *tenant.Service
	ledger     *ledger.Service
	receivable *ar.Service
	bank       *bank.Service
	reports    *reports.Service
}

func newEnv(ctx context.Context) (*env, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	ledgerService := ledger.NewService(ledger.NewRepository(pool))
	tenantService := tenant.NewService(tenant.NewRepository(pool), ledgerService, logger)
	arService := ar.NewService(ar.NewRepository(pool), ledgerService, logger)
	bankService := bank.NewService(bank.NewRepository(pool), ledgerService, logger)
	budgetService := budget.NewService(budget.NewRepository(pool), ledgerService, logger)
	violationsService := violations.NewService(violations.NewRepository(pool), arService, logger)
	workOrderService := workorder.NewService(workorder.NewRepository(pool), ledgerService)

	renderer, err := reports.NewRenderer(report.NewClient(cfg.GotenbergURL))
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("parse report templates: %w", err)
	}
	builder := reports.NewBuilder(tenantService, ledgerService, arService, budgetService, violationsService, workOrderService)
	// No cache client: one-shot CLI runs always build fresh.
	reportsService := reports.NewService(builder, renderer, tenantService, ledgerService, arService, nil, 0, logger)

	e := &env{
		cfg:        cfg,
		pool:       pool,
		tenants:    tenantService,
		ledger:     ledgerService,
		receivable: arService,
		bank:       bankService,
		reports:    reportsService,
	}
	return e, pool.Close, nil
}

func runOnboardTenant(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("onboard-tenant", flag.ExitOnError)
	name := fs.String("name", "", "association name")
	slug := fs.String("slug", "", "url-safe identifier")
	timezone := fs.String("timezone", "UTC", "IANA timezone")
	admin := fs.Int64("admin", 0, "user ID of the first admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	tn, err := e.tenants.Onboard(ctx, tenant.OnboardInput{
		Name:        *name,
		Slug:        *slug,
		Timezone:    *timezone,
		AdminUserID: *admin,
	})
	if err != nil {
		return err
	}
	fmt.Printf("tenant %d (%s) onboarded with seeded chart of accounts\n", tn.ID, tn.Slug)
	return nil
}

func runMonthlyInvoices(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monthly-invoices", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID")
	period := fs.String("period", time.Now().UTC().Format("2006-01"), "billing period (YYYY-MM)")
	amount := fs.String("amount", "", "assessment amount")
	dueDays := fs.Int("due-days", 15, "days until the invoice is due")
	if err := fs.Parse(args); err != nil {
		return err
	}

	when, err := time.Parse("2006-01", *period)
	if err != nil {
		return fmt.Errorf("parse period: %w", err)
	}
	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	summary, err := e.receivable.GenerateMonthlyInvoices(ctx, *tenantID, when, amt, *dueDays)
	if err != nil {
		return err
	}
	fmt.Printf("invoices: %s\n", summary)
	return nil
}

func runLateFees(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("late-fees", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID")
	fee := fs.String("fee", "25.00", "flat late fee amount")
	graceDays := fs.Int("grace-days", 10, "grace period after the due date")
	asOf := fs.String("as-of", time.Now().UTC().Format("2006-01-02"), "assessment date")
	if err := fs.Parse(args); err != nil {
		return err
	}

	when, err := time.Parse("2006-01-02", *asOf)
	if err != nil {
		return fmt.Errorf("parse as-of: %w", err)
	}
	feeAmt, err := decimal.NewFromString(*fee)
	if err != nil {
		return fmt.Errorf("parse fee: %w", err)
	}

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	summary, err := e.receivable.AssessLateFees(ctx, *tenantID, when, feeAmt, *graceDays)
	if err != nil {
		return err
	}
	fmt.Printf("late fees: %s\n", summary)
	return nil
}

func runAging(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("aging", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID")
	asOf := fs.String("as-of", time.Now().UTC().Format("2006-01-02"), "report date")
	if err := fs.Parse(args); err != nil {
		return err
	}

	when, err := time.Parse("2006-01-02", *asOf)
	if err != nil {
		return fmt.Errorf("parse as-of: %w", err)
	}

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	data, err := e.reports.AgingCSV(ctx, *tenantID, when)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runOwnerLedger(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("owner-ledger", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID")
	ownerID := fs.Int64("owner", 0, "owner ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	data, err := e.reports.OwnerLedgerCSV(ctx, *tenantID, *ownerID)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runImportBankCSV(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import-bank-csv", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID")
	accountID := fs.Int64("account", 0, "bank account ID")
	file := fs.String("file", "", "statement CSV path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	summary, err := e.bank.ImportStatement(ctx, *tenantID, *accountID, f)
	if err != nil {
		return err
	}
	fmt.Printf("statement import: %s\n", summary)
	return nil
}

func runImportPaymentsCSV(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import-payments-csv", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID")
	file := fs.String("file", "", "payments CSV path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	summary, err := e.receivable.ImportPaymentsCSV(ctx, *tenantID, f)
	if err != nil {
		return err
	}
	fmt.Printf("payments import: %s\n", summary)
	return nil
}

func runSetupReserveFund(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("setup-reserve-fund", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	fund, err := e.tenants.SetupReserveFund(ctx, *tenantID)
	if err != nil {
		return err
	}
	fmt.Printf("reserve fund %d ready for tenant %d\n", fund.ID, *tenantID)
	return nil
}

func runReconcile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID")
	accountID := fs.Int64("account", 0, "bank account ID")
	from := fs.String("from", "", "window start (YYYY-MM-DD)")
	to := fs.String("to", "", "window end (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -1, 0)
	if *from != "" {
		var err error
		if start, err = time.Parse("2006-01-02", *from); err != nil {
			return fmt.Errorf("parse from: %w", err)
		}
	}
	if *to != "" {
		var err error
		if end, err = time.Parse("2006-01-02", *to); err != nil {
			return fmt.Errorf("parse to: %w", err)
		}
	}

	e, done, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer done()

	rpt, err := e.bank.Reconcile(ctx, *tenantID, *accountID, start, end)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rpt)
}

func runEnqueue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	tenantID := fs.Int64("tenant", 0, "tenant ID (0 sweeps every association)")
	period := fs.String("period", "", "period for board-packet (YYYY-MM)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected one task name: reminders, escalate, variance, integrity or board-packet")
	}

	var task *asynq.Task
	var err error
	switch fs.Arg(0) {
	case "reminders":
		task, err = jobs.NewOverdueRemindersTask(jobs.TenantScopedPayload{TenantID: *tenantID})
	case "escalate":
		task, err = jobs.NewViolationsEscalateTask(jobs.TenantScopedPayload{TenantID: *tenantID})
	case "variance":
		task, err = jobs.NewVarianceCheckTask(jobs.VarianceCheckPayload{TenantID: *tenantID})
	case "integrity":
		task, err = jobs.NewLedgerIntegrityTask(jobs.TenantScopedPayload{TenantID: *tenantID})
	case "board-packet":
		task, err = jobs.NewBoardPackTask(jobs.BoardPackPayload{TenantID: *tenantID, Period: *period})
	default:
		return fmt.Errorf("unknown task %q", fs.Arg(0))
	}
	if err != nil {
		return err
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		return err
	}
	defer client.Close()

	info, err := client.Enqueue(ctx, task)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s (%s)\n", info.Type, info.ID)
	return nil
}
