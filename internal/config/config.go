// Package config loads settings from .env, remessa.yaml and REMESSA_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/csg33k/remessa-generator/internal/domain"
)

const (
	PolicySkip = "skip"
	PolicyFail = "fail"
)

type Config struct {
	DBPath     string `validate:"required"`
	OutputDir  string `validate:"required"`
	ArchiveDir string `validate:"required"`
	// LayoutFile replaces the built-in 150-column layout when set.
	LayoutFile        string
	UnresolvedClients string `validate:"oneof=skip fail"`
	NSASuffix         string `validate:"len=2,numeric"`
	LogLevel          string `validate:"oneof=debug info warn error"`

	// Company is checked by ValidateCompany, only where a header is written.
	Company domain.Company `validate:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration. path selects a config file explicitly; when empty
// remessa.yaml is looked up in the working directory and is optional.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("error loading .env file", "err", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("remessa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("REMESSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		DBPath:            v.GetString("db_path"),
		OutputDir:         v.GetString("output_dir"),
		ArchiveDir:        v.GetString("archive_dir"),
		LayoutFile:        v.GetString("layout_file"),
		UnresolvedClients: strings.ToLower(v.GetString("unresolved_clients")),
		NSASuffix:         v.GetString("nsa_suffix"),
		LogLevel:          strings.ToLower(v.GetString("log.level")),
		Company: domain.Company{
			Convenio:      v.GetString("company.convenio"),
			Name:          v.GetString("company.name"),
			BankCode:      v.GetString("company.bank_code"),
			BankName:      v.GetString("company.bank_name"),
			SystemID:      v.GetString("company.system_id"),
			LayoutVersion: v.GetString("company.layout_version"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "remessa.db"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "remessas"
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = "data"
	}
	if cfg.UnresolvedClients == "" {
		cfg.UnresolvedClients = PolicySkip
	}
	if cfg.NSASuffix == "" {
		cfg.NSASuffix = domain.DefaultNSASuffix
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateCompany checks the header identification needed to write a file.
func (c *Config) ValidateCompany() error {
	if err := validate.Struct(c.Company); err != nil {
		return fmt.Errorf("invalid company config: %w", err)
	}
	return nil
}

func (c *Config) Policy() domain.UnresolvedPolicy {
	if c.UnresolvedClients == PolicyFail {
		return domain.FailUnresolved
	}
	return domain.SkipUnresolved
}

func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
