// Package pipeline drives one polling cycle end to end: fetch candidate
// sent messages, download their attachments, parse NFe XMLs, correlate
// boleto PDFs, and upsert one spreadsheet row per installment. Every failure
// is fenced at the message or installment level; a cycle always runs to
// completion and the interval loop survives indefinitely.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlleexMartinsT/Botana/internal/boleto"
	"github.com/AlleexMartinsT/Botana/internal/config"
	"github.com/AlleexMartinsT/Botana/internal/ledger"
	"github.com/AlleexMartinsT/Botana/internal/logger"
	"github.com/AlleexMartinsT/Botana/internal/nfe"
	"github.com/AlleexMartinsT/Botana/internal/report"
	"github.com/AlleexMartinsT/Botana/internal/retry"
	"github.com/AlleexMartinsT/Botana/internal/sheets"
	"github.com/AlleexMartinsT/Botana/pkg/models"
)

// Mailbox is the mail collaborator surface the orchestrator needs.
type Mailbox interface {
	SearchSent(ctx context.Context, max int64) ([]string, error)
	DownloadAttachments(ctx context.Context, msgID, dir string) ([]string, error)
	MarkProcessed(ctx context.Context, msgID string) error
}

// BookOpener resolves a spreadsheet id to an open ledger book. Handles are
// cached by the underlying sheets service for the process lifetime.
type BookOpener func(ctx context.Context, spreadsheetID string) (ledger.Book, error)

// DefaultWritePolicy is the retry policy for one read+append write cycle:
// rate-limit responses wait out a fixed cooldown, anything else aborts the
// installment.
var DefaultWritePolicy = retry.Policy{
	MaxAttempts: 5,
	Delay:       30 * time.Second,
	Retryable:   sheets.IsRateLimited,
}

type Orchestrator struct {
	cfg      *config.Config
	mail     Mailbox
	openBook BookOpener
	writer   *ledger.Writer
	reporter *report.Reporter
	policy   retry.Policy
	log      zerolog.Logger
}

func NewOrchestrator(cfg *config.Config, mail Mailbox, openBook BookOpener, reporter *report.Reporter) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		mail:     mail,
		openBook: openBook,
		writer:   ledger.NewWriter(),
		reporter: reporter,
		policy:   DefaultWritePolicy,
		log:      logger.WithComponent("pipeline"),
	}
}

// RunCycle executes one polling cycle and returns the number of rows
// written. Per-message and per-installment failures are logged and skipped;
// only a failure to reach the mailbox at all is returned as an error.
func (o *Orchestrator) RunCycle(ctx context.Context) (int, error) {
	msgIDs, err := o.mail.SearchSent(ctx, int64(o.cfg.MaxMessages))
	if err != nil {
		return 0, fmt.Errorf("searching sent messages: %w", err)
	}
	if len(msgIDs) == 0 {
		o.log.Info().Msg("No sent messages with XML attachments found")
		return 0, nil
	}

	processed := 0
	for _, msgID := range msgIDs {
		processed += o.processMessage(ctx, msgID)
	}

	o.log.Info().Int("processed", processed).Msg("Cycle finished")
	return processed, nil
}

// processMessage handles one message: download, partition, parse, correlate,
// write. Temp attachment files are removed no matter how processing went.
func (o *Orchestrator) processMessage(ctx context.Context, msgID string) int {
	log := o.log.With().Str("message_id", msgID).Logger()
	log.Info().Msg("Opening message")

	files, err := o.mail.DownloadAttachments(ctx, msgID, o.cfg.DownloadDir)
	if err != nil {
		log.Error().Err(err).Msg("Failed to download attachments")
		return 0
	}
	if len(files) == 0 {
		log.Info().Msg("No attachments saved for message")
		return 0
	}
	defer removeAll(files, log)

	var invoices []*models.Invoice
	var refs []boleto.Reference

	for _, file := range files {
		switch {
		case strings.HasSuffix(strings.ToLower(file), ".xml"):
			if inv, ok := o.parseInvoice(file, log); ok {
				invoices = append(invoices, inv)
			}
		case strings.HasSuffix(strings.ToLower(file), ".pdf"):
			name := filepath.Base(file)
			ref, ok := boleto.ExtractReference(name)
			if !ok {
				log.Info().Str("filename", name).Msg("File not identified as a boleto")
				continue
			}
			if ref.Ambiguous {
				log.Warn().Str("filename", name).Str("ref", ref.Value).Msg("Multiple numeric tokens in boleto name, using the last")
			} else {
				log.Info().Str("filename", name).Str("ref", ref.Value).Msg("Boleto reference identified")
			}
			refs = append(refs, ref)
		}
	}

	// The message is marked even when parsing produced nothing billable, so
	// a bad document is not revisited forever.
	if err := o.mail.MarkProcessed(ctx, msgID); err != nil {
		log.Error().Err(err).Msg("Failed to mark message processed")
	}

	if len(invoices) == 0 {
		log.Info().Msg("No valid XML found in this message")
		return 0
	}

	written := 0
	for _, inv := range invoices {
		written += o.processInvoice(ctx, inv, refs)
	}
	return written
}

// parseInvoice runs the NFe parser on one downloaded file. Exclusions are
// recorded in the session log; parse failures are logged and the document is
// discarded.
func (o *Orchestrator) parseInvoice(path string, log zerolog.Logger) (*models.Invoice, bool) {
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to open XML")
		return nil, false
	}
	defer f.Close()

	result, err := nfe.Parse(f, nfe.Options{SelfTaxIDs: o.cfg.SelfTaxIDs})
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to extract XML data")
		return nil, false
	}
	if result.Excluded {
		log.Info().Str("reason", string(result.Reason)).Str("file", path).Msg("Invoice excluded")
		o.reporter.Append(fmt.Sprintf("Ignorado (%s): %s", result.Reason, filepath.Base(path)))
		return nil, false
	}
	return result.Invoice, true
}

// processInvoice runs the eligibility chain and writes one row per
// installment.
func (o *Orchestrator) processInvoice(ctx context.Context, inv *models.Invoice, refs []boleto.Reference) int {
	log := o.log.With().Str("nf", inv.Number).Logger()

	if o.reporter.ReportedInvoices()[inv.Number] {
		log.Info().Msg("Invoice already handled in today's session, skipping")
		// Exclusion lines must not carry the "NF <n>" token or the
		// next read-back would count this invoice as processed.
		o.reporter.Append(fmt.Sprintf("Ignorado (%s): nota %s", models.ExcludedAlreadyReported, inv.Number))
		return 0
	}

	sheetID, ok := o.cfg.SpreadsheetFor(inv.IssuerTaxID, inv.DueYear)
	if !ok {
		log.Warn().
			Str("cnpj", inv.IssuerTaxID).
			Str("year", inv.DueYear).
			Msg("No spreadsheet configured for issuer/year")
		o.reporter.Append(fmt.Sprintf("Ignorado (%s): nota %s CNPJ %s ano %s", models.ExcludedNoTarget, inv.Number, inv.IssuerTaxID, inv.DueYear))
		return 0
	}

	var book ledger.Book
	err := o.policy.Do(ctx, func() error {
		var err error
		book, err = o.openBook(ctx, sheetID)
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("spreadsheet_id", sheetID).Msg("Failed to open spreadsheet")
		return 0
	}

	match := boleto.Match(refs, inv.Installments)
	for _, surplus := range match.Unmatched {
		log.Warn().Str("ref", surplus.Value).Msg("Boleto reference without a matching installment")
	}

	written := 0
	for i, inst := range inv.Installments {
		desc := ComposeDescription(inv.RecipientName, inv.IssuerTaxID, o.cfg.PrimaryIssuerTaxID, match.ByInstallment[i])

		err := o.policy.Do(ctx, func() error {
			ok, err := o.writer.Upsert(ctx, book, inv, inst, desc)
			if err == nil && ok {
				written++
				o.reporter.Append(fmt.Sprintf("Processado NF %s %s venc %s", inv.Number, inst.OrdinalLabel, inst.DueDate))
			}
			return err
		})
		if err != nil {
			if errors.Is(err, ledger.ErrNoDueDate) {
				log.Warn().Str("parcela", inst.OrdinalLabel).Msg("Installment without due date, skipping")
			} else if sheets.IsRateLimited(err) {
				log.Error().Err(err).Str("parcela", inst.OrdinalLabel).Msg("Rate limit retries exhausted, skipping installment")
			} else {
				log.Error().Err(err).Str("parcela", inst.OrdinalLabel).Msg("Failed to update spreadsheet, skipping installment")
			}
		}
	}
	return written
}

func removeAll(files []string, log zerolog.Logger) {
	for _, file := range files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", file).Msg("Could not remove temp attachment")
		}
	}
}
