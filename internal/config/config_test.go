package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTaxID(t *testing.T) {
	assert.Equal(t, "11222333000144", NormalizeTaxID("11.222.333/0001-44"))
	assert.Equal(t, "11222333000144", NormalizeTaxID("11222333000144"))
	assert.Equal(t, "", NormalizeTaxID(""))
}

func TestLoadAndResolve(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS_GMAIL", "secrets/gmail.json")
	t.Setenv("GOOGLE_CREDENTIALS_SHEETS", "secrets/sheets.json")
	t.Setenv("CNPJ_MVA", "11.222.333/0001-44")
	t.Setenv("CNPJ_EH", "55.666.777/0001-88")
	t.Setenv("SHEET_MVA_2025", "sheet-mva-25")
	t.Setenv("SHEET_EH_2026", "sheet-eh-26")
	t.Setenv("INTERVALO", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, float64(120), cfg.Interval.Seconds())
	assert.True(t, cfg.IsSelf("11222333000144"))
	assert.True(t, cfg.IsSelf("55.666.777/0001-88"))
	assert.False(t, cfg.IsSelf("99888777000166"))

	id, ok := cfg.SpreadsheetFor("11222333000144", "2025")
	require.True(t, ok)
	assert.Equal(t, "sheet-mva-25", id)

	id, ok = cfg.SpreadsheetFor("55666777000188", "2026")
	require.True(t, ok)
	assert.Equal(t, "sheet-eh-26", id)

	// Configuration gaps: unknown issuer, unconfigured year.
	_, ok = cfg.SpreadsheetFor("99888777000166", "2025")
	assert.False(t, ok)
	_, ok = cfg.SpreadsheetFor("11222333000144", "2030")
	assert.False(t, ok)
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS_GMAIL", "")
	t.Setenv("GOOGLE_CREDENTIALS_SHEETS", "")

	_, err := Load()
	assert.Error(t, err)
}
