package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/gcode"
	"github.com/spf13/cobra"
)

func coordsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coords",
		Short: "Show or edit per-bit machine coordinates",
	}
	cmd.AddCommand(coordsListCommand(a), coordsSetCommand(a))
	return cmd
}

func coordsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List machine coordinates for every bit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			coords, err := st.ListCoordinates(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BIT ID\tNAME\tX\tY\tZ")
			for _, c := range coords {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.BitID, c.Name,
					gcode.FormatCoord(c.X), gcode.FormatCoord(c.Y), gcode.FormatCoord(c.Z))
			}
			return w.Flush()
		},
	}
}

func coordsSetCommand(a *app) *cobra.Command {
	var x, y, z float64
	cmd := &cobra.Command{
		Use:   "set <bit-id>",
		Short: "Overwrite the machine coordinates of a bit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid bit id %q: %w", args[0], err)
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.PutCoordinate(cmd.Context(), id, x, y, z); err != nil {
				return err
			}
			a.logger.Info("updated bit coordinate", "bit_id", id.String(), "x", x, "y", y, "z", z)
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", id)
			return nil
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "Machine X in inches")
	cmd.Flags().Float64Var(&y, "y", 0, "Machine Y in inches")
	cmd.Flags().Float64Var(&z, "z", 0, "Machine Z in inches")
	for _, name := range []string{"x", "y", "z"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
