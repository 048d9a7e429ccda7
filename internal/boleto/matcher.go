// Package boleto extracts payment-slip reference numbers from attachment
// filenames and pairs them with invoice installments.
//
// Both halves are best-effort heuristics. Filenames are freeform, so the
// extractor looks for boleto spelling variants and takes the last numeric
// token; the matcher pairs references and installments purely by position.
// Nothing cross-checks a reference against the installment amount, because
// the filename carries no amount to check.
package boleto

import (
	"regexp"

	"github.com/AlleexMartinsT/Botana/pkg/models"
)

var (
	slipMarker = regexp.MustCompile(`(?i)[_\s-]?(BLT|BOLETO)`)
	numToken   = regexp.MustCompile(`[0-9]{2,}-?[0-9]+`)
)

// Reference is one candidate boleto number pulled out of a filename.
type Reference struct {
	// Value is the bare numeric token.
	Value string

	// Ambiguous is set when the filename held more than one candidate token
	// and the last one was picked.
	Ambiguous bool
}

// ExtractReference pulls a boleto number from a payment-slip filename.
// Returns ok=false when the filename does not look like a boleto or carries
// no usable numeric token.
func ExtractReference(filename string) (Reference, bool) {
	if !slipMarker.MatchString(filename) {
		return Reference{}, false
	}
	tokens := numToken.FindAllString(filename, -1)
	if len(tokens) == 0 {
		return Reference{}, false
	}
	// The boleto number is usually the last numeric run in the name.
	return Reference{
		Value:     tokens[len(tokens)-1],
		Ambiguous: len(tokens) > 1,
	}, true
}

// MatchResult associates installments with references by position.
type MatchResult struct {
	// ByInstallment has one entry per installment, in installment order.
	// A nil entry means no reference was available for that position.
	ByInstallment []*Reference

	// Unmatched holds surplus references that had no installment left.
	Unmatched []Reference
}

// Match pairs references with installments positionally: reference i goes to
// installment i. Surplus references are reported, not dropped silently.
func Match(refs []Reference, installments []models.Installment) MatchResult {
	result := MatchResult{
		ByInstallment: make([]*Reference, len(installments)),
	}
	for i := range refs {
		if i < len(installments) {
			ref := refs[i]
			result.ByInstallment[i] = &ref
			continue
		}
		result.Unmatched = append(result.Unmatched, refs[i])
	}
	return result
}
