package pipeline

import (
	"fmt"

	"github.com/AlleexMartinsT/Botana/internal/boleto"
)

// ComposeDescription builds the row description for one installment. A
// matched boleto reference wins; otherwise the branch depends on whether the
// issuer is the primary company (bank deposit) or not (cashier deposit).
func ComposeDescription(recipient, issuerTaxID, primaryIssuerTaxID string, ref *boleto.Reference) string {
	if ref != nil {
		return fmt.Sprintf("%s BLT %s (Bot)", recipient, ref.Value)
	}
	if primaryIssuerTaxID != "" && issuerTaxID == primaryIssuerTaxID {
		return fmt.Sprintf("%s DEP BR (Bot)", recipient)
	}
	return fmt.Sprintf("%s DEP CX (Bot)", recipient)
}
