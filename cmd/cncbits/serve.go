package main

import (
	"github.com/japaniel/cncbits/pkg/api"
	"github.com/japaniel/cncbits/pkg/generate"
	"github.com/japaniel/cncbits/pkg/sink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func serveCommand(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.settings.Server.Listen
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := st.Seed(cmd.Context()); err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics, err := generate.NewMetrics(reg)
			if err != nil {
				return err
			}

			gen := generate.NewGenerator(st, sink.NewFileSink(a.settings.Paths()), a.settings.Profile())
			gen.Logger = a.logger
			gen.Metrics = metrics

			return api.New(st, gen, reg, a.logger).Start(cmd.Context(), listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from server.listen)")
	return cmd
}
