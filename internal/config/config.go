package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/AlleexMartinsT/Botana/internal/logger"
)

var nonDigits = regexp.MustCompile(`\D`)

type Config struct {
	// Google credentials (service account JSON paths)
	GmailCredentials  string
	SheetsCredentials string

	// Company tax ids. Invoices addressed to one of SelfTaxIDs are never
	// billable; PrimaryIssuerTaxID selects the DEP BR description branch.
	SelfTaxIDs         []string
	PrimaryIssuerTaxID string

	// Spreadsheets keyed by issuer CNPJ (digits only), then by due year.
	Spreadsheets map[string]map[string]string

	// Polling
	Interval    time.Duration
	MaxMessages int

	// Local state
	DownloadDir string
	ReportsDir  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	cnpjMVA := NormalizeTaxID(getEnv("CNPJ_MVA", ""))
	cnpjEH := NormalizeTaxID(getEnv("CNPJ_EH", ""))

	intervalSec, err := strconv.Atoi(getEnv("INTERVALO", "600"))
	if err != nil {
		return nil, fmt.Errorf("invalid INTERVALO: %w", err)
	}

	maxMessages, err := strconv.Atoi(getEnv("MAX_MESSAGES", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_MESSAGES: %w", err)
	}

	config := &Config{
		GmailCredentials:   getEnv("GOOGLE_CREDENTIALS_GMAIL", ""),
		SheetsCredentials:  getEnv("GOOGLE_CREDENTIALS_SHEETS", ""),
		SelfTaxIDs:         []string{cnpjMVA, cnpjEH},
		PrimaryIssuerTaxID: NormalizeTaxID(getEnv("CNPJ_PRINCIPAL", "")),
		Spreadsheets: map[string]map[string]string{
			cnpjMVA: {
				"2025": getEnv("SHEET_MVA_2025", ""),
				"2026": getEnv("SHEET_MVA_2026", ""),
			},
			cnpjEH: {
				"2025": getEnv("SHEET_EH_2025", ""),
				"2026": getEnv("SHEET_EH_2026", ""),
			},
		},
		Interval:      time.Duration(intervalSec) * time.Second,
		MaxMessages:   maxMessages,
		DownloadDir:   getEnv("DOWNLOAD_DIR", "xmls_baixados"),
		ReportsDir:    getEnv("RELATORIO_DIR", "relatorios"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.GmailCredentials == "" {
		return fmt.Errorf("GOOGLE_CREDENTIALS_GMAIL is required")
	}
	if c.SheetsCredentials == "" {
		return fmt.Errorf("GOOGLE_CREDENTIALS_SHEETS is required")
	}
	for _, id := range c.SelfTaxIDs {
		if id == "" {
			return fmt.Errorf("CNPJ_MVA and CNPJ_EH are required")
		}
	}
	return nil
}

// SpreadsheetFor maps an issuer CNPJ and a due year to the configured
// spreadsheet id. A missing issuer or year is a configuration gap, not an
// error; callers are expected to skip with a warning.
func (c *Config) SpreadsheetFor(issuerTaxID, year string) (string, bool) {
	byYear, ok := c.Spreadsheets[NormalizeTaxID(issuerTaxID)]
	if !ok {
		return "", false
	}
	id, ok := byYear[year]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// IsSelf reports whether the given tax id belongs to one of our own
// companies.
func (c *Config) IsSelf(taxID string) bool {
	normalized := NormalizeTaxID(taxID)
	if normalized == "" {
		return false
	}
	for _, id := range c.SelfTaxIDs {
		if normalized == id {
			return true
		}
	}
	return false
}

// NormalizeTaxID strips everything but digits from a CNPJ/CPF.
func NormalizeTaxID(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// EnsureDirs creates the download and reports directories if missing.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("creating download dir: %w", err)
	}
	if err := os.MkdirAll(c.ReportsDir, 0o755); err != nil {
		return fmt.Errorf("creating reports dir: %w", err)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
