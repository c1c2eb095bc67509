package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LedgerURL         string
	SourceAccount     string
	PageSize          int
	PollInterval      time.Duration
	Cursor            string
	CursorFile        string
	PGDSN             string
	ArchivePath       string
	MinDeliveryGap    time.Duration
	MaxRetries        int
	InitialRetryDelay time.Duration
	DeliveryTimeout   time.Duration
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BONDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("page-size", 100)
	v.SetDefault("poll-interval", 30*time.Second)
	v.SetDefault("cursor-file", "./data/cursor.json")
	v.SetDefault("archive", "")
	v.SetDefault("min-delivery-gap", 100*time.Millisecond)
	v.SetDefault("max-retries", 3)
	v.SetDefault("initial-retry-delay", time.Second)
	v.SetDefault("delivery-timeout", 5*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		LedgerURL:         v.GetString("ledger-url"),
		SourceAccount:     v.GetString("source-account"),
		PageSize:          v.GetInt("page-size"),
		PollInterval:      v.GetDuration("poll-interval"),
		Cursor:            v.GetString("cursor"),
		CursorFile:        v.GetString("cursor-file"),
		PGDSN:             v.GetString("pg-dsn"),
		ArchivePath:       v.GetString("archive"),
		MinDeliveryGap:    v.GetDuration("min-delivery-gap"),
		MaxRetries:        v.GetInt("max-retries"),
		InitialRetryDelay: v.GetDuration("initial-retry-delay"),
		DeliveryTimeout:   v.GetDuration("delivery-timeout"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
