// Package nfe extracts billing data from Brazilian NFe tax documents.
//
// A document is decoded into a normalized Invoice with one installment per
// dup node. Documents with no dup nodes fall back to the fat aggregate: a
// single installment worth vLiq, due 30 days after emission. Cash/at-sight
// sales and invoices addressed to one of our own CNPJs are business
// exclusions, not errors; Parse reports them through Result.Excluded so the
// caller can log and move on.
package nfe

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlleexMartinsT/Botana/internal/config"
	"github.com/AlleexMartinsT/Botana/pkg/models"
)

// excludedPaymentCodes are the tPag codes that denote cash or card sales
// (01 dinheiro, 03 credito, 04 debito).
var excludedPaymentCodes = map[string]bool{"01": true, "03": true, "04": true}

const fallbackDueDays = 30

// Options carries the business context the parser needs.
type Options struct {
	// SelfTaxIDs are our own CNPJs (digits only). Invoices addressed to one
	// of them are excluded.
	SelfTaxIDs []string

	// Now lets tests pin the clock used for the current-year fallback.
	// Defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of parsing one well-formed document: either a
// billable invoice, or an exclusion with its reason.
type Result struct {
	Invoice  *models.Invoice
	Excluded bool
	Reason   models.ExclusionReason
}

type nfeProc struct {
	XMLName xml.Name `xml:"nfeProc"`
	NFe     nfeDoc   `xml:"NFe"`
}

type nfeDoc struct {
	XMLName xml.Name `xml:"NFe"`
	InfNFe  infNFe   `xml:"infNFe"`
}

type infNFe struct {
	Ide   ideNode   `xml:"ide"`
	Emit  partyNode `xml:"emit"`
	Dest  partyNode `xml:"dest"`
	Total totalNode `xml:"total"`
	Cobr  cobrNode  `xml:"cobr"`
	Pag   pagNode   `xml:"pag"`
}

type ideNode struct {
	NNF   string `xml:"nNF"`
	NatOp string `xml:"natOp"`
	DhEmi string `xml:"dhEmi"`
}

type partyNode struct {
	CNPJ  string `xml:"CNPJ"`
	XNome string `xml:"xNome"`
}

type totalNode struct {
	ICMSTot struct {
		VNF string `xml:"vNF"`
	} `xml:"ICMSTot"`
}

type cobrNode struct {
	Fat struct {
		VLiq string `xml:"vLiq"`
	} `xml:"fat"`
	Dup []dupNode `xml:"dup"`
}

type dupNode struct {
	DVenc string `xml:"dVenc"`
	VDup  string `xml:"vDup"`
}

type pagNode struct {
	DetPag []struct {
		TPag string `xml:"tPag"`
	} `xml:"detPag"`
}

// Parse decodes one NFe document, unwrapping an nfeProc envelope when
// present, and returns the normalized result.
func Parse(r io.Reader, opts Options) (*Result, error) {
	const op = "Parse"

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: reading document: %w", op, err)
	}

	doc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inf := doc.InfNFe
	if inf.Ide.NNF == "" {
		return nil, fmt.Errorf("%s: %w: ide/nNF", op, ErrMissingNode)
	}
	if inf.Emit.XNome == "" && inf.Emit.CNPJ == "" {
		return nil, fmt.Errorf("%s: %w: emit", op, ErrMissingNode)
	}
	if inf.Dest.XNome == "" && inf.Dest.CNPJ == "" {
		return nil, fmt.Errorf("%s: %w: dest", op, ErrMissingNode)
	}
	if inf.Total.ICMSTot.VNF == "" {
		return nil, fmt.Errorf("%s: %w: total/ICMSTot", op, ErrMissingNode)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	natOp := strings.ToUpper(strings.TrimSpace(inf.Ide.NatOp))
	payCode := ""
	if len(inf.Pag.DetPag) > 0 {
		payCode = strings.TrimSpace(inf.Pag.DetPag[0].TPag)
	}

	inv := &models.Invoice{
		Number:            inf.Ide.NNF,
		IssuerTaxID:       config.NormalizeTaxID(inf.Emit.CNPJ),
		IssuerName:        inf.Emit.XNome,
		RecipientName:     inf.Dest.XNome,
		TotalValue:        parseAmount(inf.Total.ICMSTot.VNF),
		OperationNature:   natOp,
		PaymentMethodCode: payCode,
	}

	// Cheap business exclusions come before installment extraction.
	if strings.Contains(natOp, "VISTA") || excludedPaymentCodes[payCode] {
		return &Result{Excluded: true, Reason: models.ExcludedCashSale}, nil
	}
	for _, self := range opts.SelfTaxIDs {
		if self != "" && config.NormalizeTaxID(inf.Dest.CNPJ) == self {
			return &Result{Excluded: true, Reason: models.ExcludedSelfAddressed}, nil
		}
	}

	inv.Installments = extractInstallments(inf)
	finalize(inv, now)

	return &Result{Invoice: inv}, nil
}

// decode unmarshals the document, accepting both a bare NFe root and the
// nfeProc process envelope around it.
func decode(data []byte) (*nfeDoc, error) {
	var proc nfeProc
	if err := xml.Unmarshal(data, &proc); err == nil {
		return &proc.NFe, nil
	}
	var doc nfeDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &doc, nil
}

func extractInstallments(inf infNFe) []models.Installment {
	if len(inf.Cobr.Dup) > 0 {
		installments := make([]models.Installment, 0, len(inf.Cobr.Dup))
		for i, dup := range inf.Cobr.Dup {
			installments = append(installments, models.Installment{
				SequenceNumber: i + 1,
				OrdinalLabel:   OrdinalLabel(i + 1),
				DueDate:        NormalizeDate(dup.DVenc),
				Amount:         parseAmount(dup.VDup),
			})
		}
		return installments
	}

	if inf.Cobr.Fat.VLiq == "" {
		return nil
	}

	// No dup nodes: synthesize one installment from the fat aggregate, due
	// 30 days after emission.
	due := ""
	if emitted, ok := parseIssueTimestamp(inf.Ide.DhEmi); ok {
		due = emitted.AddDate(0, 0, fallbackDueDays).Format(CanonicalDateLayout)
	} else {
		due = NormalizeDate(inf.Ide.DhEmi)
	}
	return []models.Installment{{
		SequenceNumber: 1,
		OrdinalLabel:   OrdinalLabel(1),
		DueDate:        due,
		Amount:         parseAmount(inf.Cobr.Fat.VLiq),
	}}
}

func finalize(inv *models.Invoice, now func() time.Time) {
	inv.InstallmentCount = len(inv.Installments)
	if inv.InstallmentCount < 1 {
		inv.InstallmentCount = 1
	}

	inv.DueYear = fmt.Sprintf("%d", now().Year())
	if len(inv.Installments) > 0 {
		if t, ok := ParseCanonicalDate(inv.Installments[0].DueDate); ok {
			inv.DueYear = fmt.Sprintf("%d", t.Year())
		}
	}

	inv.Description = fmt.Sprintf("%s BLT %s", inv.RecipientName, inv.Number)
}

// OrdinalLabel renders the installment label used in sheet rows, e.g.
// "2ª Parcela".
func OrdinalLabel(n int) string {
	return fmt.Sprintf("%dª Parcela", n)
}

func parseAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}
