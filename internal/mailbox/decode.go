package mailbox

import (
	"encoding/base64"
	"strings"
)

// DecodeBase64 decodes an attachment payload. Gmail serves URL-safe base64,
// sometimes with the padding stripped; both are corrected before decoding.
func DecodeBase64(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	data = strings.ReplaceAll(data, "-", "+")
	data = strings.ReplaceAll(data, "_", "/")
	if missing := len(data) % 4; missing != 0 {
		data += strings.Repeat("=", 4-missing)
	}
	return base64.StdEncoding.DecodeString(data)
}
