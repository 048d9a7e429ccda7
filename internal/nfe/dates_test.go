package nfe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "05/11/2025", "05/11/2025"},
		{"iso date", "2025-11-05", "05/11/2025"},
		{"iso datetime", "2025-11-05T10:30:00", "05/11/2025"},
		{"iso datetime with offset", "2025-11-05T10:30:00-03:00", "05/11/2025"},
		{"iso datetime zulu", "2025-11-05T10:30:00Z", "05/11/2025"},
		{"dash separated", "05-11-2025", "05/11/2025"},
		{"dot separated", "05.11.2025", "05/11/2025"},
		{"whitespace", "  05/11/2025  ", "05/11/2025"},
		{"empty", "", ""},
		{"garbage", "not a date", ""},
		{"partial", "11/2025", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}

func TestNormalizeDateIdempotent(t *testing.T) {
	once := NormalizeDate("2025-11-05")
	assert.Equal(t, once, NormalizeDate(once))
}

func TestParseCanonicalDate(t *testing.T) {
	got, ok := ParseCanonicalDate("05/11/2025")
	assert.True(t, ok)
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, "Nov", got.Format("Jan"))

	_, ok = ParseCanonicalDate("2025-11-05")
	assert.False(t, ok)
}
