package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/AlleexMartinsT/Botana/internal/config"
	"github.com/AlleexMartinsT/Botana/internal/ledger"
	"github.com/AlleexMartinsT/Botana/internal/report"
	"github.com/AlleexMartinsT/Botana/internal/retry"
	"github.com/AlleexMartinsT/Botana/internal/sheets"
)

const issuerCNPJ = "11222333000144"

func sampleXML(natOp string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe352511">
      <ide>
        <nNF>1234</nNF>
        <natOp>%s</natOp>
        <dhEmi>2025-10-06T09:15:00-03:00</dhEmi>
      </ide>
      <emit><CNPJ>11.222.333/0001-44</CNPJ><xNome>Fornecedor LTDA</xNome></emit>
      <dest><CNPJ>55.666.777/0001-88</CNPJ><xNome>Cliente Exemplo ME</xNome></dest>
      <total><ICMSTot><vNF>150.00</vNF></ICMSTot></total>
      <cobr>
        <dup><nDup>001</nDup><dVenc>2025-11-05</dVenc><vDup>150.00</vDup></dup>
      </cobr>
    </infNFe>
  </NFe>
</nfeProc>`, natOp))
}

type attachment struct {
	name string
	data []byte
}

type fakeMail struct {
	messages  map[string][]attachment
	order     []string
	marked    []string
	searchErr error
}

func (m *fakeMail) SearchSent(_ context.Context, max int64) ([]string, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if int64(len(m.order)) > max {
		return m.order[:max], nil
	}
	return m.order, nil
}

func (m *fakeMail) DownloadAttachments(_ context.Context, msgID, dir string) ([]string, error) {
	var paths []string
	for i, att := range m.messages[msgID] {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d_%s", msgID, i+1, att.name))
		if err := os.WriteFile(path, att.data, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (m *fakeMail) MarkProcessed(_ context.Context, msgID string) error {
	m.marked = append(m.marked, msgID)
	return nil
}

type fakeBook struct {
	title   string
	tabs    map[string][][]string
	appends int

	failAppends int // fail this many appends with 429 before succeeding
}

func newFakeBook(title string) *fakeBook {
	return &fakeBook{title: title, tabs: make(map[string][][]string)}
}

func (b *fakeBook) Title() string { return b.title }

func (b *fakeBook) EnsureWorksheet(_ context.Context, title string, header []interface{}) (bool, error) {
	if _, ok := b.tabs[title]; ok {
		return false, nil
	}
	row := make([]string, len(header))
	for i, h := range header {
		row[i] = fmt.Sprint(h)
	}
	b.tabs[title] = [][]string{row}
	return true, nil
}

func (b *fakeBook) ReadAll(_ context.Context, title string) ([][]string, error) {
	return b.tabs[title], nil
}

func (b *fakeBook) AppendRow(_ context.Context, title string, values []interface{}) error {
	if b.failAppends > 0 {
		b.failAppends--
		return &googleapi.Error{Code: 429, Message: "rate limit exceeded"}
	}
	b.appends++
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	b.tabs[title] = append(b.tabs[title], row)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SelfTaxIDs: []string{"99888777000166"},
		Spreadsheets: map[string]map[string]string{
			issuerCNPJ: {"2025": "sheet-mva-25"},
		},
		MaxMessages: 100,
		DownloadDir: t.TempDir(),
		ReportsDir:  t.TempDir(),
	}
}

func testOrchestrator(t *testing.T, cfg *config.Config, mail Mailbox, book *fakeBook) *Orchestrator {
	t.Helper()
	reporter, err := report.New(cfg.ReportsDir)
	require.NoError(t, err)

	openBook := func(_ context.Context, id string) (ledger.Book, error) {
		if id != "sheet-mva-25" {
			return nil, fmt.Errorf("unknown spreadsheet %s", id)
		}
		return book, nil
	}

	orch := NewOrchestrator(cfg, mail, openBook, reporter)
	orch.policy = retry.Policy{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		Retryable:   sheets.IsRateLimited,
	}
	return orch
}

func TestRunCycleEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	mail := &fakeMail{
		order: []string{"msg-1"},
		messages: map[string][]attachment{
			"msg-1": {
				{name: "nota.xml", data: sampleXML("VENDA DE MERCADORIA")},
				{name: "BOLETO_998877.pdf", data: []byte("%PDF-1.4")},
			},
		},
	}
	book := newFakeBook("Contas MVA 2025")
	orch := testOrchestrator(t, cfg, mail, book)

	processed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	rows := book.tabs["Nov/2025"]
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"05/11/2025",
		"Cliente Exemplo ME BLT 998877 (Bot)",
		"1234",
		"R$ 150.00",
		"1",
		"1ª Parcela",
		"R$ 150.00",
		"",
		"",
	}, rows[1])

	assert.Equal(t, []string{"msg-1"}, mail.marked)

	// Temp attachments are swept even on success.
	entries, err := os.ReadDir(cfg.DownloadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunCycleSameDayIdempotence(t *testing.T) {
	cfg := testConfig(t)
	mail := &fakeMail{
		order: []string{"msg-1"},
		messages: map[string][]attachment{
			"msg-1": {{name: "nota.xml", data: sampleXML("VENDA DE MERCADORIA")}},
		},
	}
	book := newFakeBook("Contas MVA 2025")
	orch := testOrchestrator(t, cfg, mail, book)

	processed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	// Same message again in the same session: the session log suppresses it
	// before the spreadsheet is even consulted.
	processed, err = orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, book.appends)
}

func TestRunCycleRateLimitRetry(t *testing.T) {
	cfg := testConfig(t)
	mail := &fakeMail{
		order: []string{"msg-1"},
		messages: map[string][]attachment{
			"msg-1": {{name: "nota.xml", data: sampleXML("VENDA DE MERCADORIA")}},
		},
	}
	book := newFakeBook("Contas MVA 2025")
	book.failAppends = 1
	orch := testOrchestrator(t, cfg, mail, book)

	processed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, book.appends)
	assert.Len(t, book.tabs["Nov/2025"], 2)
}

func TestRunCycleRateLimitOnOpen(t *testing.T) {
	cfg := testConfig(t)
	mail := &fakeMail{
		order: []string{"msg-1"},
		messages: map[string][]attachment{
			"msg-1": {{name: "nota.xml", data: sampleXML("VENDA DE MERCADORIA")}},
		},
	}
	book := newFakeBook("Contas MVA 2025")
	orch := testOrchestrator(t, cfg, mail, book)

	opens := 0
	orch.openBook = func(_ context.Context, id string) (ledger.Book, error) {
		opens++
		if opens == 1 {
			return nil, &googleapi.Error{Code: 429, Message: "rate limit exceeded"}
		}
		return book, nil
	}

	processed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 2, opens)
	assert.Len(t, book.tabs["Nov/2025"], 2)
}

func TestRunCycleCashSaleExcluded(t *testing.T) {
	cfg := testConfig(t)
	mail := &fakeMail{
		order: []string{"msg-1"},
		messages: map[string][]attachment{
			"msg-1": {{name: "nota.xml", data: sampleXML("VENDA A VISTA")}},
		},
	}
	book := newFakeBook("Contas MVA 2025")
	orch := testOrchestrator(t, cfg, mail, book)

	processed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Zero(t, book.appends)
	// Excluded messages are still marked so they are not revisited.
	assert.Equal(t, []string{"msg-1"}, mail.marked)

	content, err := os.ReadFile(orch.reporter.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "cash-sale")
}

func TestRunCycleNoTargetConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Spreadsheets = map[string]map[string]string{}
	mail := &fakeMail{
		order: []string{"msg-1"},
		messages: map[string][]attachment{
			"msg-1": {{name: "nota.xml", data: sampleXML("VENDA DE MERCADORIA")}},
		},
	}
	book := newFakeBook("Contas MVA 2025")
	orch := testOrchestrator(t, cfg, mail, book)

	processed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Zero(t, book.appends)

	content, err := os.ReadFile(orch.reporter.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "no-target")

	// The exclusion line must not register the invoice as processed, or a
	// later cycle with the spreadsheet configured would silently skip it.
	assert.Empty(t, orch.reporter.ReportedInvoices())
}

func TestRunCycleEmptyMailbox(t *testing.T) {
	cfg := testConfig(t)
	orch := testOrchestrator(t, cfg, &fakeMail{}, newFakeBook("Contas MVA 2025"))

	processed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}
