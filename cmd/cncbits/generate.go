package main

import (
	"fmt"
	"strings"

	"github.com/japaniel/cncbits/pkg/gcode"
	"github.com/japaniel/cncbits/pkg/generate"
	"github.com/japaniel/cncbits/pkg/sink"
	"github.com/spf13/cobra"
)

func generateCommand(a *app) *cobra.Command {
	var (
		req          generate.Request
		printProgram bool
	)
	names := make([]string, 0, len(gcode.Operations))
	for _, op := range gcode.Operations {
		names = append(names, op.String())
	}

	cmd := &cobra.Command{
		Use:       fmt.Sprintf("generate <%s>", strings.Join(names, "|")),
		Short:     "Write a G-code program for a bit",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			gen := generate.NewGenerator(st, sink.NewFileSink(a.settings.Paths()), a.settings.Profile())
			gen.Logger = a.logger

			req.Operation = args[0]
			res, err := gen.GenerateRequest(cmd.Context(), req)
			if err != nil {
				return err
			}
			if printProgram {
				fmt.Fprint(cmd.OutOrStdout(), res.Program)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", res.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.BitID, "bit", "", "Router bit id")
	cmd.Flags().Float64Var(&req.PlywoodThickness, "thickness", 0, "Workpiece thickness in inches")
	cmd.Flags().BoolVar(&req.ComputeWorkpieceZero, "workpiece-zero", false, "Subtract the thickness from the stored Z")
	cmd.Flags().BoolVar(&req.ComputeWorkpieceHeight, "workpiece-height", false, "Add thickness and clearance to the stored Z (set-z only)")
	cmd.Flags().BoolVar(&printProgram, "print", false, "Also print the program to stdout")
	_ = cmd.MarkFlagRequired("bit")
	return cmd
}
