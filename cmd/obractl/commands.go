package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/spf13/cobra"
)

const cliOperator = "obractl"

func newRootCmd(load appLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "obractl",
		Short:         "Operator tasks for the ObraFin finance database",
		Long:          "obractl reads the same environment as the API (DATABASE_DRIVER, DATABASE_URL, STORAGE_PATH, ...).",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(load), newReconcileCmd(load), newSupplierCmd(load))
	return root
}

func newMigrateCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newReconcileCmd(load appLoader) *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare budget usage with live cost entries",
		Example: `  # Report drift only
  obractl reconcile

  # Realign drifted budgets
  obractl reconcile --fix`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			drifts, err := a.svcs.Balance.ReconcileBudgets(cmd.Context(), fix, cliOperator)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(drifts) == 0 {
				fmt.Fprintln(out, "no drift")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BUDGET\tUSED\tLIVE\tDIFFERENCE\tFIXED")
			for _, d := range drifts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
					d.Code, d.UsedAmount.StringFixed(2), d.LiveSum.StringFixed(2), d.Difference.StringFixed(2), d.Fixed)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Realign used amounts with the live cost entries")
	return cmd
}

func newSupplierCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supplier",
		Short: "Manage the supplier directory",
	}

	var taxID string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a supplier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("supplier name is required")
			}
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			supplier := &models.Supplier{Name: name, TaxID: taxID}
			if err := a.repos.Supplier.Create(cmd.Context(), supplier); err != nil {
				return fmt.Errorf("failed to create supplier: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "supplier %d created\n", supplier.ID)
			return nil
		},
	}
	add.Flags().StringVar(&taxID, "tax-id", "", "Supplier tax identifier")

	var reason string
	var lift bool
	blacklist := &cobra.Command{
		Use:   "blacklist ID",
		Short: "Block a supplier from being invoiced, or lift the block with --lift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid supplier id %q", args[0])
			}
			if !lift && strings.TrimSpace(reason) == "" {
				return fmt.Errorf("--reason is required")
			}
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if lift {
				reason = ""
			}
			if err := a.repos.Supplier.SetBlacklisted(cmd.Context(), uint(id), !lift, reason); err != nil {
				return err
			}
			state := "blacklisted"
			if lift {
				state = "cleared"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "supplier %d %s\n", id, state)
			return nil
		},
	}
	blacklist.Flags().StringVar(&reason, "reason", "", "Why the supplier is blocked")
	blacklist.Flags().BoolVar(&lift, "lift", false, "Remove the block")

	cmd.AddCommand(add, blacklist)
	return cmd
}
