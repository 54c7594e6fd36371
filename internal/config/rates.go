package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RatesConfig carries the explicit rate table used when no live rates are cached.
type RatesConfig struct {
	DefaultCurrency string             `mapstructure:"defaultCurrency"`
	Fallback        map[string]float64 `mapstructure:"fallback"`
	CacheTTLSeconds int                `mapstructure:"cacheTTLSeconds"`
}

func DefaultRatesConfig() RatesConfig {
	return RatesConfig{
		DefaultCurrency: "JPY",
		Fallback: map[string]float64{
			"JPY": 2.05,
			"USD": 300.5,
			"GBP": 380.2,
			"AUD": 195.4,
			"THB": 8.3,
		},
		CacheTTLSeconds: 3600,
	}
}

// Rate returns the fallback rate for currency.
func (c RatesConfig) Rate(currency string) (float64, bool) {
	rate, ok := c.Fallback[strings.ToUpper(strings.TrimSpace(currency))]
	return rate, ok
}

type RatesConfigHolder struct {
	current atomic.Value // holds RatesConfig
}

func NewRatesConfigHolder() (*RatesConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("rates")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/importduty")
	v.AddConfigPath(".")

	v.SetEnvPrefix("IMPORTDUTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		defaults := DefaultRatesConfig()
		v.SetDefault("rates.defaultCurrency", defaults.DefaultCurrency)
		v.SetDefault("rates.fallback", defaults.Fallback)
		v.SetDefault("rates.cacheTTLSeconds", defaults.CacheTTLSeconds)
	}

	cfg, err := decodeRatesConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRatesConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRatesConfig(v)
		if err != nil {
			log.Printf("[rates-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[rates-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticRatesConfigHolder wraps a fixed config without file watching.
func NewStaticRatesConfigHolder(cfg RatesConfig) *RatesConfigHolder {
	holder := &RatesConfigHolder{}
	holder.current.Store(normalizeRatesConfig(cfg))
	return holder
}

func (h *RatesConfigHolder) Get() RatesConfig {
	return h.current.Load().(RatesConfig)
}

func decodeRatesConfig(v *viper.Viper) (RatesConfig, error) {
	var cfg RatesConfig
	if err := v.UnmarshalKey("rates", &cfg); err != nil {
		return RatesConfig{}, err
	}
	cfg = normalizeRatesConfig(cfg)
	if err := validateRatesConfig(cfg); err != nil {
		return RatesConfig{}, err
	}
	return cfg, nil
}

func normalizeRatesConfig(cfg RatesConfig) RatesConfig {
	out := RatesConfig{
		DefaultCurrency: strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency)),
		Fallback:        make(map[string]float64, len(cfg.Fallback)),
		CacheTTLSeconds: cfg.CacheTTLSeconds,
	}
	for currency, rate := range cfg.Fallback {
		out.Fallback[strings.ToUpper(strings.TrimSpace(currency))] = rate
	}
	return out
}

func validateRatesConfig(cfg RatesConfig) error {
	if cfg.DefaultCurrency == "" {
		return errors.New("rates.defaultCurrency cannot be empty")
	}
	if len(cfg.Fallback) == 0 {
		return errors.New("rates.fallback cannot be empty")
	}
	if _, ok := cfg.Fallback[cfg.DefaultCurrency]; !ok {
		return fmt.Errorf("rates.fallback has no entry for %s", cfg.DefaultCurrency)
	}
	for currency, rate := range cfg.Fallback {
		if rate <= 0 {
			return fmt.Errorf("rates.fallback.%s must be positive", currency)
		}
	}
	return nil
}
