package models

import "github.com/shopspring/decimal"

// Invoice is one NFe tax document after extraction. It is built once by the
// parser and treated as read-only afterwards; the spreadsheet row is the
// durable record, not this struct.
type Invoice struct {
	// Identification
	Number        string // nNF, issuer-assigned; not globally unique
	IssuerTaxID   string // emit CNPJ, digits only
	IssuerName    string // emit xNome
	RecipientName string // dest xNome

	// Totals and classification
	TotalValue        decimal.Decimal // ICMSTot vNF
	OperationNature   string          // natOp, uppercased
	PaymentMethodCode string          // pag/detPag tPag, may be empty

	// Installments in document order. One entry per dup node; when the
	// document has no dup nodes a single installment is synthesized from
	// the fat aggregate. Empty when the cobr section carries neither.
	Installments []Installment

	// Derived fields used for sheet routing and row filling.
	InstallmentCount int    // min 1
	DueYear          string // year of first installment due date
	Description      string // default description, overridden by the composer
}

// Installment is one payable unit of an invoice.
type Installment struct {
	SequenceNumber int             // 1-indexed document order
	OrdinalLabel   string          // "2ª Parcela"
	DueDate        string          // canonical DD/MM/YYYY, "" when unknown
	Amount         decimal.Decimal // vDup, or vLiq for a synthesized installment
}

// LedgerRow is the nine-column spreadsheet row produced per installment.
type LedgerRow struct {
	DueDate           string
	Description       string
	InvoiceNumber     string
	TotalValue        decimal.Decimal
	InstallmentCount  int
	InstallmentLabel  string
	InstallmentAmount decimal.Decimal
	AmountPaid        string
	Status            string
}

// ExclusionReason classifies why an invoice or installment was skipped
// without being an error.
type ExclusionReason string

const (
	// ExcludedCashSale marks at-sight sales (natOp contains a VISTA marker,
	// or the payment method code is cash/card).
	ExcludedCashSale ExclusionReason = "cash-sale"

	// ExcludedSelfAddressed marks invoices billed to one of our own CNPJs.
	ExcludedSelfAddressed ExclusionReason = "self-addressed"

	// ExcludedAlreadyReported marks installments already present in today's
	// session log.
	ExcludedAlreadyReported ExclusionReason = "already-reported"

	// ExcludedNoTarget marks installments with no spreadsheet configured for
	// their issuer/year.
	ExcludedNoTarget ExclusionReason = "no-target"
)
