package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/archive"
	"github.com/dvloznov/academy-cashbook/internal/bootstrap"
	"github.com/dvloznov/academy-cashbook/internal/config"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/ledger"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
	"github.com/dvloznov/academy-cashbook/internal/records"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := bootstrap.Logger(cfg)

	switch os.Args[1] {
	case "report":
		runReport(cfg, log)
	case "movements":
		runMovements(cfg, log)
	case "record":
		runRecord(cfg, log)
	case "void":
		runVoid(cfg, log)
	case "close-day":
		runCloseDay(cfg, log)
	case "show-closing":
		runShowClosing(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Academy Cashbook CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  report        Print the reconciliation report of a day")
	fmt.Println("  movements     List the live cash movements of a register")
	fmt.Println("  record        Record a cash movement")
	fmt.Println("  void          Void a cash movement")
	fmt.Println("  close-day     Reconcile, archive and publish a day")
	fmt.Println("  show-closing  Print an archived day-close snapshot")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nThe record store is selected with RECORD_STORE (memory, postgres, bigquery).")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// session opens the configured store and returns it with a context carrying
// the logger. The returned function closes the store.
func session(cfg *config.Config, log zerolog.Logger, timeout time.Duration) (context.Context, records.Store, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, log)

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Str("record_store", cfg.RecordStore).Msg("Failed to open record store")
	}

	return ctx, store, func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("Failed to close record store")
		}
		cancel()
	}
}

// parseDay parses a -date flag value, defaulting to today in the business
// time zone.
func parseDay(cfg *config.Config, log zerolog.Logger, raw string) civil.Date {
	if raw == "" {
		return domain.Today(time.Now(), cfg.Location)
	}
	date, err := reconcile.ParseDate(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -date")
	}
	return date
}

// resolveRegister returns registerID, or the register session opened on the
// given day when registerID is empty.
func resolveRegister(ctx context.Context, log zerolog.Logger, store records.Store, registerID string, day civil.Date) string {
	if registerID != "" {
		return registerID
	}
	s, err := store.FindRegisterSession(ctx, day)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to find register session")
	}
	if s == nil {
		log.Fatal().Str("date", day.String()).Msg("No register was opened on that day; pass -register")
	}
	return s.ID
}

func runReport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dateFlag := fs.String("date", "", "Business date YYYY-MM-DD (defaults to today)")
	fs.Parse(os.Args[2:])

	day := parseDay(cfg, log, *dateFlag)
	ctx, store, done := session(cfg, log, 2*time.Minute)
	defer done()

	report, err := reconcile.NewEngine(store, cfg.Location).Report(ctx, day)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build reconciliation report")
	}

	printReport(report)
}

func printReport(r *reconcile.Report) {
	fmt.Printf("\n=== Reconciliation %s ===\n", r.Date)
	fmt.Printf("Register:       %s\n", r.RegisterStatus)
	fmt.Printf("Opening amount: %s\n", domain.FormatMoney(r.OpeningAmount))

	fmt.Printf("\nIncome (%d records): %s\n", r.IncomeCount, domain.FormatMoney(r.TotalIncome))
	for _, s := range r.IncomeBySource {
		fmt.Printf("  %-14s %12s  (%d)\n", s.Source, domain.FormatMoney(s.Total), s.Count)
	}
	printMethods(r.IncomeByMethod)

	fmt.Printf("\nExpenses (%d records): %s\n", r.ExpenseCount, domain.FormatMoney(r.TotalExpenses))
	for _, c := range r.ExpensesByCategory {
		fmt.Printf("  %-14s %12s  (%d)\n", c.Name, domain.FormatMoney(c.Total), c.Count)
	}
	printMethods(r.ExpensesByMethod)

	fmt.Printf("\nMovements (%d): deposits %s, in %s, out %s, net %s\n",
		r.Movements.Count,
		domain.FormatMoney(r.Movements.DepositsTotal),
		domain.FormatMoney(r.Movements.CashInTotal),
		domain.FormatMoney(r.Movements.CashOutTotal),
		domain.FormatMoney(r.Movements.NetEffect))

	fmt.Printf("\nCash in hand:   %s\n", domain.FormatMoney(r.CashInHand))
	fmt.Printf("In bank:        %s\n", domain.FormatMoney(r.InBank))
	fmt.Printf("Net balance:    %s\n", domain.FormatMoney(r.NetBalance))

	if len(r.Unmapped) > 0 {
		fmt.Printf("\nUnmapped payment methods:\n")
		for _, w := range r.Unmapped {
			fmt.Printf("  %s %q: %d records, %s\n", w.Origin, w.Raw, w.Count, domain.FormatMoney(w.Amount))
		}
	}
	fmt.Println()
}

func printMethods(m reconcile.MethodTotals) {
	fmt.Printf("  by method: cash %s, transfer %s, card %s, unmapped %s\n",
		domain.FormatMoney(m.Cash),
		domain.FormatMoney(m.Transfer),
		domain.FormatMoney(m.Card),
		domain.FormatMoney(m.Unmapped))
}

func runMovements(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("movements", flag.ExitOnError)
	registerID := fs.String("register", "", "Register session ID (defaults to the session of -date)")
	dateFlag := fs.String("date", "", "Business date YYYY-MM-DD used to find the register (defaults to today)")
	fs.Parse(os.Args[2:])

	day := parseDay(cfg, log, *dateFlag)
	ctx, store, done := session(cfg, log, time.Minute)
	defer done()

	regID := resolveRegister(ctx, log, store, *registerID, day)
	cashLedger := ledger.New(store)

	movements, err := cashLedger.ListMovements(ctx, regID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list movements")
	}

	fmt.Printf("\n=== Movements of register %s (%d) ===\n", regID, len(movements))
	for i, m := range movements {
		fmt.Printf("\n%d. %s %s\n", i+1, m.Type, domain.FormatMoney(m.Amount))
		fmt.Printf("   ID:   %s\n", m.ID)
		fmt.Printf("   At:   %s\n", m.MovementAt.In(cfg.Location).Format(time.RFC3339))
		if m.Bank != "" {
			fmt.Printf("   Bank: %s\n", m.Bank)
		}
		if m.Receipt != "" {
			fmt.Printf("   Receipt: %s\n", m.Receipt)
		}
		if m.Responsible != "" {
			fmt.Printf("   Responsible: %s\n", m.Responsible)
		}
		if m.Notes != "" {
			fmt.Printf("   Notes: %s\n", m.Notes)
		}
	}

	totals, err := cashLedger.Totals(ctx, regID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute movement totals")
	}
	fmt.Printf("\nDeposits %s, cash in %s, cash out %s, net effect %s\n\n",
		domain.FormatMoney(totals.DepositsTotal),
		domain.FormatMoney(totals.CashInTotal),
		domain.FormatMoney(totals.CashOutTotal),
		domain.FormatMoney(totals.NetEffect))
}

func runRecord(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	registerID := fs.String("register", "", "Register session ID (defaults to the session of -date)")
	dateFlag := fs.String("date", "", "Business date YYYY-MM-DD used to find the register (defaults to today)")
	typ := fs.String("type", "", "Movement type: deposit, withdrawal, owner_loan, owner_reimbursement")
	amountFlag := fs.String("amount", "", "Positive amount, e.g. 1500.50")
	bank := fs.String("bank", "", "Bank name")
	receipt := fs.String("receipt", "", "Receipt number")
	responsible := fs.String("responsible", "", "Person responsible")
	notes := fs.String("notes", "", "Free-form notes")
	fs.Parse(os.Args[2:])

	if *typ == "" || *amountFlag == "" {
		log.Fatal().Msg("Usage: cli record -type TYPE -amount AMOUNT [-register ID | -date YYYY-MM-DD]")
	}

	amount, err := domain.ParseMoney(*amountFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -amount")
	}

	day := parseDay(cfg, log, *dateFlag)
	ctx, store, done := session(cfg, log, time.Minute)
	defer done()

	regID := resolveRegister(ctx, log, store, *registerID, day)
	m, err := ledger.New(store).RecordMovement(ctx, regID, domain.MovementType(*typ), amount, domain.MovementDetails{
		Bank:        *bank,
		Receipt:     *receipt,
		Responsible: *responsible,
		Notes:       *notes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to record movement")
	}

	fmt.Printf("Recorded %s of %s as %s\n", m.Type, domain.FormatMoney(m.Amount), m.ID)
}

func runVoid(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("void", flag.ExitOnError)
	movementID := fs.String("id", "", "Movement ID to void")
	fs.Parse(os.Args[2:])

	if *movementID == "" {
		log.Fatal().Msg("Error: -id is required")
	}

	ctx, store, done := session(cfg, log, time.Minute)
	defer done()

	if err := ledger.New(store).VoidMovement(ctx, *movementID); err != nil {
		log.Fatal().Err(err).Msg("Failed to void movement")
	}

	fmt.Printf("Voided movement %s\n", *movementID)
}

func runCloseDay(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("close-day", flag.ExitOnError)
	dateFlag := fs.String("date", "", "Business date YYYY-MM-DD (defaults to today)")
	fs.Parse(os.Args[2:])

	day := parseDay(cfg, log, *dateFlag)
	ctx, store, done := session(cfg, log, 5*time.Minute)
	defer done()

	closer, closeCloser, err := bootstrap.NewCloser(ctx, cfg, reconcile.NewEngine(store, cfg.Location), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create day closer")
	}
	defer closeCloser()

	jobID := uuid.NewString()
	log.Info().Str("job_id", jobID).Str("date", day.String()).Msg("Closing day")

	result, err := closer.Close(ctx, day, jobID)
	if err != nil {
		log.Fatal().Err(err).Msg("Day close failed")
	}

	fmt.Printf("\n=== Day %s closed ===\n", day)
	fmt.Printf("Cash in hand: %s\n", result.CashInHand)
	fmt.Printf("In bank:      %s\n", result.InBank)
	fmt.Printf("Net balance:  %s\n", result.NetBalance)
	if result.SnapshotURI != "" {
		fmt.Printf("Snapshot:     %s\n", result.SnapshotURI)
	}
	if result.NotionPageID != "" {
		fmt.Printf("Notion page:  %s\n", result.NotionPageID)
	}
	fmt.Println()
}

func runShowClosing(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("show-closing", flag.ExitOnError)
	dateFlag := fs.String("date", "", "Business date YYYY-MM-DD (defaults to today)")
	uri := fs.String("uri", "", "gs:// URI of a snapshot (overrides -date)")
	fs.Parse(os.Args[2:])

	if !cfg.ArchiveEnabled() && *uri == "" {
		log.Fatal().Msg("ARCHIVE_BUCKET is not configured; pass -uri")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	gcs, err := archive.NewGCSObjectStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer gcs.Close()

	archiver := archive.New(gcs, cfg.ArchiveBucket)

	var snap *archive.Snapshot
	if *uri != "" {
		snap, err = archiver.LoadURI(ctx, *uri)
	} else {
		snap, err = archiver.Load(ctx, parseDay(cfg, log, *dateFlag))
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	fmt.Printf("Closed at %s by job %s\n", snap.ClosedAt.In(cfg.Location).Format(time.RFC3339), snap.JobID)
	printReport(snap.Report)
}
