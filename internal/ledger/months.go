package ledger

import (
	"fmt"
	"time"
)

// Worksheet tabs are named after the due date's month and year in Brazilian
// Portuguese, e.g. "Nov/2025". The table is explicit so tab names never
// depend on the process locale.
var monthAbbr = [13]string{
	"",
	"Jan", "Fev", "Mar", "Abr", "Mai", "Jun",
	"Jul", "Ago", "Set", "Out", "Nov", "Dez",
}

// TabName returns the worksheet title for a due date.
func TabName(due time.Time) string {
	return fmt.Sprintf("%s/%d", monthAbbr[due.Month()], due.Year())
}
