package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/app"
	"github.com/arnavshah/ionm-board/pkg/auth"
	"github.com/arnavshah/ionm-board/pkg/board"
	"github.com/arnavshah/ionm-board/pkg/config"
	"github.com/arnavshah/ionm-board/pkg/logger"
	"github.com/arnavshah/ionm-board/pkg/models"
	"github.com/arnavshah/ionm-board/pkg/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "boardctl",
		Short:        "Operate the IONM assignment board from the command line",
		SilenceUsage: true,
	}
	root.AddCommand(boardCmd(), resetCmd(), staffCmd())
	return root
}

func openStore(ctx context.Context) (store.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	zl, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		return nil, nil, err
	}
	broker, err := app.NewBroker(cfg, zl)
	if err != nil {
		return nil, nil, err
	}
	st, err := app.NewStore(cfg, broker, zl)
	if err != nil {
		_ = broker.Close()
		return nil, nil, err
	}
	return st, func() { _ = broker.Close(); _ = zl.Sync() }, nil
}

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print the slots and the roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			staff, err := st.FetchAll(ctx)
			if err != nil {
				return err
			}
			p := board.Derive(staff)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLOT\tSTAFF\tDUTY")
			for _, s := range p.Slots {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Label, s.AssignedName, s.Duty)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nRoster (%d)\n", len(p.Roster))
			for _, r := range p.Roster {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", r.Name)
			}
			for _, c := range p.Conflicts {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: staff %s displaced from slot %s by a duplicate late number\n", c.StaffID, c.Label)
			}
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Move everyone back to the roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := board.NewEngine(st, zap.NewNop()).Reset(ctx, yes)
			if err != nil {
				if yes {
					return fmt.Errorf("failed to reset the board: %w", err)
				}
				return fmt.Errorf("%w: pass --yes to clear all assignments", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d assignments\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing all assignments")
	return cmd
}

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff records",
	}

	var (
		name  string
		pin   string
		admin bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a staff member to the roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			hash, err := auth.HashPin(pin)
			if err != nil {
				return err
			}
			role := models.RoleUser
			if admin {
				role = models.RoleAdmin
			}
			rec, err := st.Insert(ctx, models.StaffRecord{
				Name:       name,
				PinHash:    hash,
				Role:       role,
				LateNumber: models.UnassignedLateNumber,
				Status:     "prep",
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", rec.Name, rec.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&pin, "pin", "1234", "four digit PIN")
	add.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	_ = add.MarkFlagRequired("name")

	cmd.AddCommand(add)
	return cmd
}
