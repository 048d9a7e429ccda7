// Package ledger writes installment rows into the target spreadsheet,
// exactly once per unique key. A row is identified by its due date, invoice
// number, installment label and description; when a matching row already
// exists the write is suppressed and reported as success, so reprocessing
// the same message across polling cycles never duplicates rows.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/AlleexMartinsT/Botana/internal/logger"
	"github.com/AlleexMartinsT/Botana/internal/nfe"
	"github.com/AlleexMartinsT/Botana/pkg/models"
)

// ErrNoDueDate is returned when an installment has no parseable due date and
// therefore no worksheet to land in.
var ErrNoDueDate = errors.New("installment has no parseable due date")

// Header is the fixed first row of every ledger worksheet.
var Header = []interface{}{
	"Vencimento", "Descrição", "NF", "Valor Total", "Qtd Parcelas",
	"Parcela", "Valor Parcela", "Valor Pago", "Status",
}

// trackedMarkers identify spreadsheets whose rows must carry the (Bot)
// suffix in the description.
var trackedMarkers = []string{"MVA", "EH"}

// Book is the spreadsheet surface the writer needs; satisfied by
// *sheets.Spreadsheet and by fakes in tests.
type Book interface {
	Title() string
	EnsureWorksheet(ctx context.Context, title string, header []interface{}) (bool, error)
	ReadAll(ctx context.Context, title string) ([][]string, error)
	AppendRow(ctx context.Context, title string, values []interface{}) error
}

type Writer struct {
	log zerolog.Logger
}

func NewWriter() *Writer {
	return &Writer{log: logger.WithComponent("ledger")}
}

// Upsert writes one installment row into the worksheet named after its due
// month, creating the worksheet lazily. Returns written=false when an equal
// row already exists; that is success, not an error.
func (w *Writer) Upsert(ctx context.Context, book Book, inv *models.Invoice, inst models.Installment, description string) (written bool, err error) {
	const op = "Upsert"

	due, ok := nfe.ParseCanonicalDate(inst.DueDate)
	if !ok {
		return false, fmt.Errorf("%s: %w", op, ErrNoDueDate)
	}
	dueStr := due.Format(nfe.CanonicalDateLayout)
	tab := TabName(due)

	description = FinalizeDescription(book.Title(), description)

	if _, err := book.EnsureWorksheet(ctx, tab, Header); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := book.ReadAll(ctx, tab)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, row := range rows {
		if len(row) >= 6 &&
			row[0] == dueStr &&
			row[2] == inv.Number &&
			row[5] == inst.OrdinalLabel &&
			row[1] == description {
			w.log.Warn().
				Str("nf", inv.Number).
				Str("due", dueStr).
				Str("tab", tab).
				Msg("Row already exists, skipping")
			return false, nil
		}
	}

	row := models.LedgerRow{
		DueDate:           dueStr,
		Description:       description,
		InvoiceNumber:     inv.Number,
		TotalValue:        inv.TotalValue,
		InstallmentCount:  inv.InstallmentCount,
		InstallmentLabel:  inst.OrdinalLabel,
		InstallmentAmount: inst.Amount,
	}
	if err := book.AppendRow(ctx, tab, rowToValues(row)); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	w.log.Info().
		Str("nf", inv.Number).
		Str("spreadsheet", book.Title()).
		Str("tab", tab).
		Str("parcela", inst.OrdinalLabel).
		Msg("Row registered")
	return true, nil
}

// FinalizeDescription guarantees the (Bot) marker on rows headed for a
// tracked spreadsheet. The check is case-insensitive so an existing "(BOT)"
// is left alone.
func FinalizeDescription(bookTitle, description string) string {
	titleUpper := strings.ToUpper(bookTitle)
	for _, marker := range trackedMarkers {
		if strings.Contains(titleUpper, marker) {
			if !strings.Contains(strings.ToUpper(description), "(BOT)") {
				return description + " (Bot)"
			}
			return description
		}
	}
	return description
}

// rowToValues lays a LedgerRow out in the worksheet column order.
func rowToValues(row models.LedgerRow) []interface{} {
	return []interface{}{
		row.DueDate,                     // A: Vencimento
		row.Description,                 // B: Descrição
		row.InvoiceNumber,               // C: NF
		currency(row.TotalValue),        // D: Valor Total
		row.InstallmentCount,            // E: Qtd Parcelas
		row.InstallmentLabel,            // F: Parcela
		currency(row.InstallmentAmount), // G: Valor Parcela
		row.AmountPaid,                  // H: Valor Pago
		row.Status,                      // I: Status
	}
}

func currency(v decimal.Decimal) string {
	return "R$ " + v.StringFixed(2)
}
