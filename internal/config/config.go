// Package config loads tunable model constants and CLI defaults with Viper.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// settings file (YAML, TOML or JSON) and GELSIM_* environment variables, e.g.
// GELSIM_MIGRATION_FREE_MOBILITY or GELSIM_RUN_EXPOSURE.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/gelsim/internal/band"
	"github.com/roach88/gelsim/internal/migration"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "GELSIM"

// RunDefaults are used when a gel definition and the command line leave a
// run parameter unset.
type RunDefaults struct {
	TillLen  float64 `mapstructure:"till_len"`
	Exposure float64 `mapstructure:"exposure"`
	Steps    int     `mapstructure:"steps"`
}

// Settings is the root settings struct.
type Settings struct {
	Migration migration.Params `mapstructure:"migration"`
	Band      band.Params      `mapstructure:"band"`
	Run       RunDefaults      `mapstructure:"run"`

	// DB is the default run archive path. Empty disables archiving.
	DB string `mapstructure:"db"`

	// Export is the default export target, e.g. "fs:./out" or "s3:bucket".
	Export string `mapstructure:"export"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Migration: migration.DefaultParams(),
		Band:      band.DefaultParams(),
		Run: RunDefaults{
			TillLen:  0.75,
			Exposure: 0.5,
			Steps:    100,
		},
	}
}

// Load reads settings. path may be empty, in which case only defaults and
// the environment apply.
func Load(path string) (Settings, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}
	return s, nil
}

// Validate checks model constants.
func (s Settings) Validate() error {
	if err := s.Migration.Validate(); err != nil {
		return err
	}
	return s.Band.Validate()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so that AutomaticEnv can see it on Unmarshal.
	d := Defaults()
	v.SetDefault("migration.free_mobility", d.Migration.FreeMobility)
	v.SetDefault("migration.retardation_coefficient", d.Migration.RetardationCoefficient)
	v.SetDefault("migration.retardation_exponent", d.Migration.RetardationExponent)
	v.SetDefault("migration.saturation_field", d.Migration.SaturationField)
	v.SetDefault("migration.saturation_length", d.Migration.SaturationLength)
	v.SetDefault("migration.saturation_exponent", d.Migration.SaturationExponent)
	v.SetDefault("migration.circular_factor", d.Migration.CircularFactor)
	v.SetDefault("band.base_width", d.Band.BaseWidth)
	v.SetDefault("band.width_per_decade", d.Band.WidthPerDecade)
	v.SetDefault("run.till_len", d.Run.TillLen)
	v.SetDefault("run.exposure", d.Run.Exposure)
	v.SetDefault("run.steps", d.Run.Steps)
	v.SetDefault("db", d.DB)
	v.SetDefault("export", d.Export)
	return v
}
