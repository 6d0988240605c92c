package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/csg33k/remessa-generator/internal/adapters/cnab"
	"github.com/csg33k/remessa-generator/internal/adapters/filesink"
	"github.com/csg33k/remessa-generator/internal/adapters/jsonarchive"
	"github.com/csg33k/remessa-generator/internal/domain"
	"github.com/csg33k/remessa-generator/internal/sequence"
	"github.com/csg33k/remessa-generator/internal/service"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	boldStyle = lipgloss.NewStyle().Bold(true)
)

// exitCode maps errors needing an operator to a distinct status.
func exitCode(err error) int {
	if errors.Is(err, domain.ErrSequenceCommit) || errors.Is(err, domain.ErrManualIntervention) ||
		errors.Is(err, domain.ErrChargesNotAssigned) {
		return 3
	}
	return 1
}

var generateCmd = &cobra.Command{
	Use:   "generate [charge-id...]",
	Short: "Build and deliver the next REMESSA file",
	Long: `Encodes every pending charge (or only the given ids) into a fixed-width
remittance file, writes it to the output directory and commits its NSA.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid charge id %q", a)
			}
			ids = append(ids, id)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.cfg.ValidateCompany(); err != nil {
			return err
		}

		enc, err := cnab.NewEncoder(a.layout)
		if err != nil {
			return err
		}
		sink, err := filesink.New(a.cfg.OutputDir)
		if err != nil {
			return err
		}
		svc := service.NewRemittances(a.repo, a.repo, sequence.New(a.repo), enc, sink, a.cfg.Company, a.logger)
		svc.Unresolved = a.cfg.Policy()
		if strict, _ := cmd.Flags().GetBool("strict"); strict {
			svc.Unresolved = domain.FailUnresolved
		}

		rem, err := svc.Generate(cmd.Context(), ids...)
		if rem != nil {
			printRemittance(rem, sink.Path(rem.FileName))
		}
		var ce *domain.SequenceCommitError
		if errors.As(err, &ce) {
			fmt.Println(errStyle.Render(fmt.Sprintf(
				"NSA %d was NOT saved. Confirm the bank received %s, then run: remessa nsa resolve %d",
				ce.Sequence.Number, ce.FileName, ce.Sequence.Number)))
		}
		if errors.Is(err, domain.ErrChargesNotAssigned) {
			fmt.Println(errStyle.Render(fmt.Sprintf(
				"charges %v were sent in %s but still show as pending; do not generate again until they are assigned",
				rem.Included, rem.FileName)))
		}
		return err
	},
}

func printRemittance(rem *domain.Remittance, path string) {
	fmt.Println(okStyle.Render("✓ " + rem.FileName))
	fmt.Printf("  path:    %s\n", path)
	fmt.Printf("  NSA:     %s\n", rem.Sequence.FileID())
	fmt.Printf("  charges: %d\n", rem.DetailCount)
	fmt.Printf("  total:   %s\n", rem.Total)
	if len(rem.Skipped) > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  skipped %d charge(s) without an active client: %v", len(rem.Skipped), rem.Skipped)))
	}
}

var retornoCmd = &cobra.Command{
	Use:   "retorno <file>",
	Short: "Reconcile a bank RETORNO file",
	Long: `Decodes a return file and matches each record to a remitted charge.
Without --apply nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		dec, err := cnab.NewDecoder(a.layout)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		apply, _ := cmd.Flags().GetBool("apply")
		report, err := service.NewReturns(a.repo, dec, a.logger).Reconcile(cmd.Context(), f, apply)
		if report != nil {
			printReport(report)
		}
		return err
	},
}

func printReport(r *service.ReconcileReport) {
	fmt.Println(boldStyle.Render(fmt.Sprintf("RETORNO NSA %s  %s  %s",
		r.File.NSA, r.File.BankName, r.File.GeneratedOn.Format(time.DateOnly))))
	for _, s := range r.Paid {
		fmt.Println(okStyle.Render(fmt.Sprintf("  paid      #%-5d %s %s", s.ChargeID, s.Record.ClientCode, s.Record.Amount)))
	}
	for _, s := range r.AlreadyPaid {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  was paid  #%-5d %s %s", s.ChargeID, s.Record.ClientCode, s.Record.Amount)))
	}
	for _, s := range r.Rejected {
		fmt.Println(errStyle.Render(fmt.Sprintf("  rejected  #%-5d %s %s  %s %s",
			s.ChargeID, s.Record.ClientCode, s.Record.Amount, s.Record.OutcomeCode, s.Description)))
	}
	for _, rec := range r.Unmatched {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  unmatched line %d: %s %s %s",
			rec.Line, rec.ClientCode, rec.DueDate.Format(time.DateOnly), rec.Amount)))
	}
	if r.Echoed > 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %d remittance record(s) echoed without outcome", r.Echoed)))
	}
	fmt.Printf("debited: %s\n", r.PaidTotal())
	if !r.Applied {
		fmt.Println(dimStyle.Render("dry run; use --apply to mark charges paid"))
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List generated remittance files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		logs, err := a.repo.ListRemittances(cmd.Context())
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println(dimStyle.Render("no remittances yet"))
			return nil
		}
		for _, l := range logs {
			fmt.Printf("%6d  %-24s %4d  %14s  %s\n",
				l.NSA, l.FileName, l.DetailCount, l.Total, l.CreatedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

var nsaCmd = &cobra.Command{
	Use:   "nsa",
	Short: "Inspect or repair the file sequence counter",
}

var nsaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the last committed NSA",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := sequence.New(a.repo).State(cmd.Context())
		if err != nil {
			return err
		}
		next := domain.FileSequence{Number: st.Last + 1, Suffix: st.Suffix}
		fmt.Printf("last: %d\nnext: %s (%s)\n", st.Last, next.FileID(), next.FileName())
		if _, err := a.repo.FindRemittance(cmd.Context(), next.Number); err == nil {
			fmt.Println(errStyle.Render(fmt.Sprintf("NSA %d was already delivered; run: remessa nsa resolve %d", next.Number, next.Number)))
		}
		return nil
	},
}

var nsaResolveCmd = &cobra.Command{
	Use:   "resolve <last-nsa>",
	Short: "Record the last NSA the bank accepted after a failed commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		last, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid NSA %q", args[0])
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := sequence.New(a.repo).Resolve(cmd.Context(), last); err != nil {
			return err
		}
		a.logger.Info("sequence resolved", "last", last)
		fmt.Println(okStyle.Render(fmt.Sprintf("✓ next file will be NSA %d", last+1)))
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move remitted charges to the monthly JSON archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		period, _ := cmd.Flags().GetString("period")
		if period == "" {
			period = service.PreviousPeriod(time.Now())
		}
		store, err := jsonarchive.New(a.cfg.ArchiveDir)
		if err != nil {
			return err
		}
		path, n, err := service.NewArchiver(a.repo, store, a.logger).ArchiveRemitted(cmd.Context(), period)
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Println(dimStyle.Render("no remitted charges to archive"))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render(fmt.Sprintf("✓ archived %d charge(s) to %s", n, path)))
		return nil
	},
}

func init() {
	generateCmd.Flags().Bool("strict", false, "fail instead of skipping charges without an active client")
	retornoCmd.Flags().Bool("apply", false, "mark debited charges as paid")
	archiveCmd.Flags().String("period", "", "archive period YYYY_MM (default previous month)")
	nsaCmd.AddCommand(nsaShowCmd, nsaResolveCmd)
}
