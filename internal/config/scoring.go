package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ScoringConfig holds runtime-tunable analytics settings. The statistical
// thresholds inside the engines are fixed; these knobs only cover the
// operational defaults around them.
type ScoringConfig struct {
	DefaultLicensedSeats int `mapstructure:"defaultLicensedSeats"`
	LookbackDays         int `mapstructure:"lookbackDays"`
	PowerUserEvents30d   int `mapstructure:"powerUserEvents30d"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		DefaultLicensedSeats: 10,
		LookbackDays:         90,
		PowerUserEvents30d:   40,
	}
}

// ScoringConfigHolder exposes the current scoring config with hot reload.
type ScoringConfigHolder struct {
	current atomic.Value // holds ScoringConfig
}

func NewScoringConfigHolder() (*ScoringConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pulselens")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/pulselens/config")
	v.AddConfigPath("/etc/pulselens")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PULSELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultScoringConfig()
	v.SetDefault("scoring.defaultLicensedSeats", defaults.DefaultLicensedSeats)
	v.SetDefault("scoring.lookbackDays", defaults.LookbackDays)
	v.SetDefault("scoring.powerUserEvents30d", defaults.PowerUserEvents30d)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg ScoringConfig
	if err := v.UnmarshalKey("scoring", &cfg); err != nil {
		return nil, err
	}
	if err := validateScoringConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ScoringConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ScoringConfig
		if err := v.UnmarshalKey("scoring", &updated); err != nil {
			log.Printf("[scoring-config] reload failed: %v", err)
			return
		}
		if err := validateScoringConfig(updated); err != nil {
			log.Printf("[scoring-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

// NewStaticScoringConfigHolder returns a holder pinned to cfg. Test helper.
func NewStaticScoringConfigHolder(cfg ScoringConfig) *ScoringConfigHolder {
	holder := &ScoringConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ScoringConfigHolder) Current() ScoringConfig {
	return h.current.Load().(ScoringConfig)
}

func validateScoringConfig(cfg ScoringConfig) error {
	if cfg.DefaultLicensedSeats <= 0 {
		return errors.New("defaultLicensedSeats must be positive")
	}
	if cfg.LookbackDays <= 0 {
		return errors.New("lookbackDays must be positive")
	}
	if cfg.PowerUserEvents30d <= 0 {
		return errors.New("powerUserEvents30d must be positive")
	}
	return nil
}
