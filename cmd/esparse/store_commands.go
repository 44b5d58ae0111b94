package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"esparse/internal/formid"
	"esparse/internal/store"
)

func openStore(ctx *commandContext) (*store.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newWinnersCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "winners <type>",
		Short: "List the winning records of a type from the latest run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordType := strings.ToUpper(strings.TrimSpace(args[0]))
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.LatestRun(cmd.Context())
			if err != nil {
				return err
			}
			winners, err := st.Winners(cmd.Context(), recordType)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, winners)
			}

			w := cmd.OutOrStdout()
			renderRunLine(w, run)
			if len(winners) == 0 {
				fmt.Fprintf(w, "No %s records in run %s\n", recordType, run.ID)
				return nil
			}
			rows := make([][]string, 0, len(winners))
			for _, r := range winners {
				rows = append(rows, []string{formid.Format(r.GlobalFormID), r.EditorID, r.Plugin, strconv.Itoa(r.LoadOrder)})
			}
			fmt.Fprintln(w, renderTable([]string{"FormID", "Editor ID", "Plugin", "Load order"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	return cmd
}

func newOverridesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "overrides <global-formid>",
		Short: "Show every plugin that touches a record, winner first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := formid.Parse(args[0])
			if err != nil {
				return err
			}
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.LatestRun(cmd.Context())
			if err != nil {
				return err
			}
			chain, err := st.Overrides(cmd.Context(), global)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, chain)
			}

			w := cmd.OutOrStdout()
			renderRunLine(w, run)
			if len(chain) == 0 {
				fmt.Fprintf(w, "No records with FormID %s in run %s\n", formid.Format(global), run.ID)
				return nil
			}
			rows := make([][]string, 0, len(chain))
			for _, r := range chain {
				rows = append(rows, []string{
					r.Type, r.Plugin, strconv.Itoa(r.LoadOrder), strconv.Itoa(r.StackOrder), yesNo(r.IsWinner), r.EditorID,
				})
			}
			fmt.Fprintln(w, renderTable([]string{"Type", "Plugin", "Load order", "Stack", "Winner", "Editor ID"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	return cmd
}

func renderRunLine(w io.Writer, run *store.Run) {
	fmt.Fprintf(w, "Run %s (%s, %d records)\n", run.ID, run.FinishedAt.Local().Format(time.DateTime), run.Records)
}
