// Package config loads cncbits settings from config.yaml, CNCBITS_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/japaniel/cncbits/pkg/gcode"
	"github.com/japaniel/cncbits/pkg/logging"
	"github.com/japaniel/cncbits/pkg/paths"
	"github.com/japaniel/cncbits/pkg/store"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CNCBITS_STORE_BACKEND.
const EnvPrefix = "CNCBITS"

// Settings is the complete runtime configuration.
type Settings struct {
	DataDir   string `mapstructure:"data_dir"`
	OutputDir string `mapstructure:"output_dir"`

	Store struct {
		Backend  string        `mapstructure:"backend"`
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"store"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Server struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"server"`

	Machine struct {
		SpoilboardX float64 `mapstructure:"spoilboard_x"`
		SpoilboardY float64 `mapstructure:"spoilboard_y"`
		Clearance   float64 `mapstructure:"clearance"`
		ReferenceX  float64 `mapstructure:"reference_x"`
		ReferenceY  float64 `mapstructure:"reference_y"`
	} `mapstructure:"machine"`

	// ConfigFile is the file that was read, empty when running on defaults.
	ConfigFile string `mapstructure:"-"`
}

// New returns a viper instance with defaults and environment overrides
// installed. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("output_dir", "")

	v.SetDefault("store.backend", store.BackendSQLite)
	v.SetDefault("store.cache_ttl", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)

	v.SetDefault("server.listen", "127.0.0.1:8765")

	v.SetDefault("machine.spoilboard_x", gcode.DefaultSpoilboardX)
	v.SetDefault("machine.spoilboard_y", gcode.DefaultSpoilboardY)
	v.SetDefault("machine.clearance", gcode.DefaultClearance)
	v.SetDefault("machine.reference_x", gcode.DefaultReferenceX)
	v.SetDefault("machine.reference_y", gcode.DefaultReferenceY)
}

// DefaultConfigPaths lists the directories searched for config.yaml when no
// explicit file is given.
func DefaultConfigPaths() []string {
	var dirs []string
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "cncbits"))
	}
	return append(dirs, ".")
}

// Load reads configuration into Settings. With an empty path the default
// paths are searched and a missing file is not an error; an explicit path
// must exist.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range DefaultConfigPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	settings.ConfigFile = v.ConfigFileUsed()

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// Validate checks enumerated values and the machine profile.
func (s *Settings) Validate() error {
	var errs []error

	switch strings.ToLower(s.Store.Backend) {
	case store.BackendSQLite, store.BackendCSV:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", store.BackendSQLite, store.BackendCSV, s.Store.Backend))
	}
	if s.Store.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("store.cache_ttl must not be negative"))
	}

	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(s.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, s.Log.Format))
	}

	if err := s.Profile().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Profile returns the machine constants used for resolving and rendering.
func (s *Settings) Profile() gcode.MachineProfile {
	return gcode.MachineProfile{
		SpoilboardX: s.Machine.SpoilboardX,
		SpoilboardY: s.Machine.SpoilboardY,
		Clearance:   s.Machine.Clearance,
		ReferenceX:  s.Machine.ReferenceX,
		ReferenceY:  s.Machine.ReferenceY,
	}
}

// Paths returns the directory provider, honouring data_dir and output_dir.
func (s *Settings) Paths() paths.OS {
	return paths.OS{DataOverride: s.DataDir, OutputOverride: s.OutputDir}
}

// StoreOptions returns the options for store.Open.
func (s *Settings) StoreOptions() store.Options {
	return store.Options{Backend: strings.ToLower(s.Store.Backend), CacheTTL: s.Store.CacheTTL}
}
