package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/domain/events"
	"estateledger/internal/domain/partner"
	"estateledger/internal/infrastructure/storage/postgres"
	"estateledger/internal/platform/config"
	"estateledger/pkg/logger"
)

const dateLayout = "2006-01-02"

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

func runMigrate(ctx context.Context, cfg *config.Config, _ []string) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	return postgres.Migrate(ctx, cfg.DatabaseURL)
}

func runAudit(ctx context.Context, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("audit", pflag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	report, auditErr := a.reconciler.Audit(ctx)
	if report == nil {
		return auditErr
	}

	if *asJSON {
		if err := writeJSON(report); err != nil {
			return err
		}
		return auditErr
	}

	fmt.Fprintf(stdout, "checked %d safes, %d mismatches\n", report.Checked, len(report.Mismatches))
	if len(report.Mismatches) > 0 {
		w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SAFE\tSTORED\tCOMPUTED\tDIFF")
		for _, m := range report.Mismatches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.SafeName, m.Stored.StringFixed(2),
				m.Computed.StringFixed(2), m.Stored.Sub(m.Computed).StringFixed(2))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return auditErr
}

func runOverdue(ctx context.Context, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("overdue", pflag.ContinueOnError)
	asOfFlag := fs.String("as-of", "", "cut-off date (YYYY-MM-DD), default today")
	if err := fs.Parse(args); err != nil {
		return err
	}

	asOf := today()
	if *asOfFlag != "" {
		var err error
		if asOf, err = parseDate("as-of", *asOfFlag); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	n, err := a.schedules.MarkOverdue(ctx, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d installments marked overdue as of %s\n", n, asOf.Format(dateLayout))
	return nil
}

func runPreview(ctx context.Context, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("preview-schedule", pflag.ContinueOnError)
	terms := bindTerms(fs)
	contractFlag := fs.String("contract", "", "preview a stored contract instead of the given terms")
	asJSON := fs.Bool("json", false, "print the schedule as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var s *scheduleView
	if *contractFlag != "" {
		contractID, err := id.Parse(*contractFlag)
		if err != nil {
			return apperror.NewValidation("invalid contract id").WithDetail("field", "contract")
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		c, err := a.contracts.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		sched, err := a.schedules.Preview(c)
		if err != nil {
			return err
		}
		s = newScheduleView(sched)
	} else {
		c, err := terms.contract()
		if err != nil {
			return err
		}
		if s, err = previewTerms(c, cfg.Schedule); err != nil {
			return err
		}
	}

	if *asJSON {
		return writeJSON(s.schedule)
	}
	return s.write(stdout)
}

func runOutboxRelay(ctx context.Context, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("outbox-relay", pflag.ContinueOnError)
	follow := fs.Bool("follow", false, "keep polling until interrupted")
	interval := fs.Duration("interval", 5*time.Second, "poll interval with --follow")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	relay := postgres.NewOutboxRelay(a.txManager, cfg.OutboxBatchSize, postgres.OutboxHandlerFunc(logDelivery))

	total := 0
	for {
		n, err := relay.ProcessBatch(ctx)
		if err != nil {
			return err
		}
		total += n
		if n > 0 {
			continue
		}
		if !*follow {
			break
		}
		select {
		case <-ctx.Done():
			logger.Info(ctx, "outbox relay stopped", "delivered", total)
			return nil
		case <-time.After(*interval):
		}
	}
	fmt.Fprintf(stdout, "%d events delivered\n", total)
	return nil
}

// logDelivery is the relay's sink: every event becomes a log line.
func logDelivery(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "ledger event",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"payload", string(msg.Payload),
	)
	return nil
}

func runPartnerLedger(ctx context.Context, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("partner-ledger", pflag.ContinueOnError)
	partnerFlag := fs.String("partner", "", "partner id")
	fromFlag := fs.String("from", "", "first day (YYYY-MM-DD), default first of this month")
	toFlag := fs.String("to", "", "last day (YYYY-MM-DD), default today")
	if err := fs.Parse(args); err != nil {
		return err
	}

	partnerID, err := id.Parse(*partnerFlag)
	if err != nil {
		return apperror.NewValidation("invalid partner id").WithDetail("field", "partner")
	}
	to := today()
	from := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	if *fromFlag != "" {
		if from, err = parseDate("from", *fromFlag); err != nil {
			return err
		}
	}
	if *toFlag != "" {
		if to, err = parseDate("to", *toFlag); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	ledger, err := a.partners.PartnerLedger(ctx, partnerID, from, to)
	if err != nil {
		return err
	}
	return writeLedger(stdout, ledger)
}

func runBrokerOutstanding(ctx context.Context, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("broker-outstanding", pflag.ContinueOnError)
	brokerFlag := fs.String("broker", "", "broker id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	brokerID, err := id.Parse(*brokerFlag)
	if err != nil {
		return apperror.NewValidation("invalid broker id").WithDetail("field", "broker")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	total, err := a.brokers.Outstanding(ctx, brokerID)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "outstanding %s\n", total.StringFixed(2))
	return nil
}

func runHistory(ctx context.Context, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
	entity := fs.String("entity", events.AggregateSafe, "aggregate type (Safe, Voucher, Transfer, Contract)")
	entityFlag := fs.String("id", "", "entity id")
	limit := fs.Int("limit", 20, "newest entries to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entityID, err := id.Parse(*entityFlag)
	if err != nil {
		return apperror.NewValidation("invalid entity id").WithDetail("field", "id")
	}
	if *limit <= 0 {
		return apperror.NewValidation("limit must be positive").WithDetail("field", "limit")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	entries, err := a.journal.History(ctx, *entity, entityID, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "AT\tEVENT\tCHANGES\n")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.EventType, e.Changes)
	}
	return tw.Flush()
}

func writeLedger(w io.Writer, l *partner.Ledger) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "DATE\tTYPE\tAMOUNT\tBALANCE\t\n")
	fmt.Fprintf(tw, "%s\topening\t\t%s\t\n", l.From.Format(dateLayout), l.Opening.StringFixed(2))
	for _, e := range l.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			e.Transaction.TransactionDate.Format(dateLayout), e.Transaction.Type,
			e.Transaction.SignedAmount().StringFixed(2), e.Balance.StringFixed(2))
	}
	fmt.Fprintf(tw, "%s\tclosing\t\t%s\t\n", l.To.Format(dateLayout), l.Closing.StringFixed(2))
	return tw.Flush()
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func today() time.Time {
	return partner.Day(time.Now().UTC())
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperror.NewValidation("dates use YYYY-MM-DD").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return t, nil
}
