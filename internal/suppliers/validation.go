package suppliers

import (
	"strings"
	"unicode"
)

// normalize trims the input and strips punctuation from the tax id so
// "12.345.678/0001-90" and "12345678000190" collide on the unique index.
func normalize(in Input) Supplier {
	return Supplier{
		TaxID:     normalizeTaxID(in.TaxID),
		LegalName: strings.TrimSpace(in.LegalName),
		TradeName: strings.TrimSpace(in.TradeName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
	}
}

func normalizeTaxID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
