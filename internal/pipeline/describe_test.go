package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AlleexMartinsT/Botana/internal/boleto"
)

func TestComposeDescription(t *testing.T) {
	const primary = "18471209000107"

	ref := &boleto.Reference{Value: "998877"}
	assert.Equal(t, "Cliente ME BLT 998877 (Bot)",
		ComposeDescription("Cliente ME", "11222333000144", primary, ref))

	// Reference wins over the primary-issuer branch.
	assert.Equal(t, "Cliente ME BLT 998877 (Bot)",
		ComposeDescription("Cliente ME", primary, primary, ref))

	assert.Equal(t, "Cliente ME DEP BR (Bot)",
		ComposeDescription("Cliente ME", primary, primary, nil))

	assert.Equal(t, "Cliente ME DEP CX (Bot)",
		ComposeDescription("Cliente ME", "11222333000144", primary, nil))

	// Unconfigured primary issuer never matches.
	assert.Equal(t, "Cliente ME DEP CX (Bot)",
		ComposeDescription("Cliente ME", "", "", nil))
}
