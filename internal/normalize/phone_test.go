package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhone_CountryCode(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", Phone("1-555-123-4567"))
}

func TestPhone_TenDigits(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", Phone("555-123-4567"))
	assert.Equal(t, "(555) 123-4567", Phone("5551234567"))
	assert.Equal(t, "(555) 123-4567", Phone("(555) 123.4567"))
}

func TestPhone_MalformedReturnsOriginal(t *testing.T) {
	assert.Equal(t, "abc", Phone("abc"))
	assert.Equal(t, "12345", Phone("12345"))
	assert.Equal(t, "+44 20 7946 0958", Phone("+44 20 7946 0958"))
}

func TestPhone_ElevenDigitsNotLeadingOne(t *testing.T) {
	// 11 digits without a leading 1 cannot be reduced; pass through.
	assert.Equal(t, "25551234567", Phone("25551234567"))
}

func TestPhone_Empty(t *testing.T) {
	assert.Equal(t, "", Phone(""))
}

func TestEmail_LowercaseTrim(t *testing.T) {
	assert.Equal(t, "kuva.caid@yahoo.com", Email("  Kuva.Caid@Yahoo.COM "))
	assert.Equal(t, "", Email(""))
}
