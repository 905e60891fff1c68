package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/japaniel/cncbits/pkg/db"
	"github.com/japaniel/cncbits/pkg/gcode"
	"github.com/spf13/cobra"
)

func bitsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bits",
		Short: "List or add router bits",
	}
	cmd.AddCommand(bitsListCommand(a), bitsCreateCommand(a))
	return cmd
}

func bitsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the router bit catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			bits, err := st.ListBits(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tDIAMETER")
			for _, b := range bits {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Type, gcode.FormatCoord(b.Diameter))
			}
			return w.Flush()
		},
	}
}

func bitsCreateCommand(a *app) *cobra.Command {
	var b db.RouterBit
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a router bit with a zeroed coordinate record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			created, err := st.CreateBit(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&b.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&b.Type, "type", "", "Bit type, e.g. Straight or V-Groove")
	cmd.Flags().Float64Var(&b.Diameter, "diameter", 0, "Cutting diameter in inches")
	cmd.Flags().StringVar(&b.Description, "description", "", "Free-form description")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("diameter")
	return cmd
}
