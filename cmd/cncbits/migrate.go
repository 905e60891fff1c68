package main

import (
	"fmt"
	"strings"

	"github.com/japaniel/cncbits/pkg/migrate"
	"github.com/japaniel/cncbits/pkg/store"
	"github.com/spf13/cobra"
)

func migrateCommand(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy bits and coordinates from one store backend to another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to = strings.ToLower(from), strings.ToLower(to)
			if from == to {
				return fmt.Errorf("--from and --to must differ, both are %q", from)
			}
			src, err := a.openBackend(from)
			if err != nil {
				return fmt.Errorf("open %s store: %w", from, err)
			}
			defer src.Close()
			dst, err := a.openBackend(to)
			if err != nil {
				return fmt.Errorf("open %s store: %w", to, err)
			}
			defer dst.Close()

			m := migrate.NewMigrator(src, dst)
			m.Logger = a.logger
			summary, err := m.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d bits and %d coordinates from %s to %s\n",
				summary.Bits, summary.Coordinates, from, to)
			if n := len(summary.Skipped); n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d coordinates without a router bit\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", store.BackendCSV, "Source backend")
	cmd.Flags().StringVar(&to, "to", store.BackendSQLite, "Destination backend")
	return cmd
}
