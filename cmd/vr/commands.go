package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/pipeline"
	"github.com/warp/benefit-engine/report"
	"github.com/warp/benefit-engine/vr"
)

// errInputsNotReady is returned by integrity when a mandatory file fails.
var errInputsNotReady = errors.New("mandatory inputs missing or unreadable")

func newRunCmd(a *app) *cobra.Command {
	var competency string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the month, write the reports and store the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := a.pipeline(pipeline.WithStore(store))
			if err != nil {
				return err
			}
			if competency != "" {
				c, err := generic.ParseCompetency(competency)
				if err != nil {
					return err
				}
				if p, err = p.ForCompetency(c); err != nil {
					return err
				}
			}

			out, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			st := out.Result.Stats
			fmt.Fprintf(w, "Competency:  %s\n", out.Competency)
			fmt.Fprintf(w, "Run:         %s\n", out.RunID)
			fmt.Fprintf(w, "Employees:   %d (eligible %d, excluded %d)\n", st.Total, st.Eligible, st.Ineligible)
			fmt.Fprintf(w, "Total:       %s\n", report.FormatBRL(st.TotalValue))
			fmt.Fprintf(w, "Employer:    %s\n", report.FormatBRL(st.TotalEmployerCost))
			fmt.Fprintf(w, "Employee:    %s\n", report.FormatBRL(st.TotalEmployeeDeduction))
			fmt.Fprintf(w, "Duration:    %s\n", out.Duration().Round(time.Millisecond))
			for _, path := range out.Outputs {
				fmt.Fprintf(w, "Output:      %s\n", path)
			}
			fmt.Fprintf(w, "Audit:       %s\n", out.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&competency, "competency", "", "Competency YYYY-MM (defaults to the rules file)")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Read and cross-check the inputs without writing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			rep, err := p.Validate(cmd.Context())
			if rep != nil {
				if werr := writeJSON(cmd.OutOrStdout(), rep); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func newIntegrityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Report the state of every configured input file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			files := p.Integrity()
			if err := writeJSON(cmd.OutOrStdout(), files); err != nil {
				return err
			}
			for _, f := range files {
				if f.Mandatory && !f.OK() {
					return fmt.Errorf("%w: %s", errInputsNotReady, f.Category)
				}
			}
			return nil
		},
	}
}

type showOutput struct {
	Run       vr.RunSummary `json:"run"`
	Checks    []vr.Check    `json:"checks"`
	Outputs   []string      `json:"outputs"`
	Employees []vr.Record   `json:"employees,omitempty"`
}

func newShowCmd(a *app) *cobra.Command {
	var (
		employees bool
		eligible  string
	)

	cmd := &cobra.Command{
		Use:   "show <competency>",
		Short: "Print a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := generic.ParseCompetency(args[0])
			if err != nil {
				return err
			}
			var filter *bool
			if eligible != "" {
				b, err := strconv.ParseBool(eligible)
				if err != nil {
					return fmt.Errorf("invalid --eligible: %w", err)
				}
				filter = &b
				employees = true
			}

			store, err := a.store()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.LoadRun(cmd.Context(), c)
			if err != nil {
				return err
			}
			out := showOutput{Run: run.Summary(), Checks: run.Checks, Outputs: run.Outputs}
			if employees {
				out.Employees = run.FilterRecords(filter)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&employees, "employees", false, "Include every employee record")
	cmd.Flags().StringVar(&eligible, "eligible", "", "Only records with this eligibility (true|false)")
	return cmd
}
