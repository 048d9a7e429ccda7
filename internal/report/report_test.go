package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReporter(t *testing.T) *Reporter {
	t.Helper()
	r, err := New(t.TempDir())
	require.NoError(t, err)
	return r
}

func TestAppendAndReadBack(t *testing.T) {
	r := newTestReporter(t)

	r.Append("Processado NF 1234 1ª Parcela venc 05/11/2025")
	r.Append("Processado NF 5678 1ª Parcela venc 10/11/2025")
	r.Append("Ignorado (cash-sale): arquivo.xml")

	seen := r.ReportedInvoices()
	assert.True(t, seen["1234"])
	assert.True(t, seen["5678"])
	assert.Len(t, seen, 2)
}

func TestReadBackSkipsExclusionLines(t *testing.T) {
	r := newTestReporter(t)

	r.Append("Ignorado (no-target): nota 1234 CNPJ 11222333000144 ano 2025")
	r.Append("Ignorado (cash-sale): msg1_0_NF 5678.xml")

	assert.Empty(t, r.ReportedInvoices())
}

func TestReportedInvoicesNoFile(t *testing.T) {
	r := newTestReporter(t)
	assert.Empty(t, r.ReportedInvoices())
}

func TestAppendTimestampsLines(t *testing.T) {
	r := newTestReporter(t)
	r.now = func() time.Time { return time.Date(2025, 11, 5, 14, 30, 0, 0, time.UTC) }

	r.Append("Processado NF 42")

	content, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Equal(t, "2025-11-05 14:30:00 Processado NF 42\n", string(content))
	assert.Contains(t, r.Path(), "relatorio_2025-11-05.txt")
}

func TestPurgeOld(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)

	oldFile := filepath.Join(dir, "relatorio_2025-01-01.txt")
	recentFile := filepath.Join(dir, "relatorio_recent.txt")
	require.NoError(t, os.WriteFile(oldFile, []byte("x\n"), 0o644))
	require.NoError(t, os.WriteFile(recentFile, []byte("x\n"), 0o644))

	stale := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, stale, stale))

	r.PurgeOld()

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recentFile)
	assert.NoError(t, err)
}
