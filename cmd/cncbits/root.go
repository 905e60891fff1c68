package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/japaniel/cncbits/pkg/config"
	"github.com/japaniel/cncbits/pkg/logging"
	"github.com/japaniel/cncbits/pkg/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	v          *viper.Viper
	configPath string

	settings *config.Settings
	logger   *slog.Logger
}

func rootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "cncbits",
		Short:         "Router bit coordinates and G-code for a CNC router",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to config.yaml (default: search user config dir and .)")
	flags.String("data-dir", "", "Directory holding the bit store")
	flags.String("output-dir", "", "Directory G-code files are written to")
	flags.String("backend", "", "Store backend: sqlite or csv")
	flags.String("log-level", "", "Log level: trace, debug, info, warn, error")

	for key, flag := range map[string]string{
		"data_dir":      "data-dir",
		"output_dir":    "output-dir",
		"store.backend": "backend",
		"log.level":     "log-level",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	root.AddCommand(
		initCommand(a),
		bitsCommand(a),
		coordsCommand(a),
		generateCommand(a),
		migrateCommand(a),
		serveCommand(a),
	)
	return root
}

func (a *app) load() error {
	settings, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(settings.Log.Level)
	if err != nil {
		return err
	}
	a.settings = settings
	a.logger = logging.New(os.Stderr, level, settings.Log.Format)
	if settings.ConfigFile != "" {
		a.logger.Debug("loaded config", "file", settings.ConfigFile)
	}
	return nil
}

// openStore opens the configured backend.
func (a *app) openStore() (store.Store, error) {
	return a.openBackend(a.settings.Store.Backend)
}

func (a *app) openBackend(backend string) (store.Store, error) {
	opts := a.settings.StoreOptions()
	opts.Backend = backend
	opts.Logger = a.logger
	return store.Open(a.settings.Paths(), opts)
}

func initCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the bit store and install the default bits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			seeded, err := st.Seed(cmd.Context())
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "Installed default router bits")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Store already initialized")
			}
			return nil
		},
	}
}
