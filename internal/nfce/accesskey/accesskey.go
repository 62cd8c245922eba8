// Package accesskey normalizes, extracts, and validates NFC-e access keys.
//
// An access key is the 44-digit identifier printed on Brazilian consumer
// receipts. Its last digit is a mod-11 check digit over the first 43, with
// weights cycling 2 through 9 from right to left.
package accesskey

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// KeyLength is the number of digits in an NFC-e access key.
const KeyLength = 44

var (
	ErrKeyLength  = errors.New("access key must have 44 digits")
	ErrKeyDigits  = errors.New("access key must contain only digits")
	ErrCheckDigit = errors.New("access key check digit mismatch")
)

var scanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)chNFe=([0-9]{44})`),
	regexp.MustCompile(`[?&]p=([0-9]{44})`),
	regexp.MustCompile(`(?i)ChaveAcesso=([0-9]{44})`),
	regexp.MustCompile(`([0-9]{44})`),
}

// Normalize strips whitespace and hyphens as typed by the user. It performs no
// validation; the result is whatever digits (or not) remain.
func Normalize(input string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			return -1
		}
		return r
	}, input)
}

// ExtractFromScannedText pulls an access key out of decoded QR text. SEFAZ
// portals embed the key as chNFe=, p= or ChaveAcesso= URL parameters; a bare
// 44-digit run is the last resort. Returns "" when nothing matches.
func ExtractFromScannedText(text string) string {
	decoded := text
	if unescaped, err := url.QueryUnescape(text); err == nil {
		decoded = unescaped
	}
	for _, re := range scanPatterns {
		if m := re.FindStringSubmatch(decoded); m != nil {
			return m[1]
		}
	}
	return ""
}

// Validate checks length, digit content, and the mod-11 check digit.
func Validate(key string) error {
	if len(key) != KeyLength {
		return fmt.Errorf("%w: got %d characters", ErrKeyLength, len(key))
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return ErrKeyDigits
		}
	}
	expected := checkDigit(key[:KeyLength-1])
	if int(key[KeyLength-1]-'0') != expected {
		return fmt.Errorf("%w: expected %d", ErrCheckDigit, expected)
	}
	return nil
}

// checkDigit computes the mod-11 check digit over digits, traversing right to
// left with weights 2..9 cycling.
func checkDigit(digits string) int {
	weight := 2
	sum := 0
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	remainder := sum % 11
	if remainder == 0 || remainder == 1 {
		return 0
	}
	return 11 - remainder
}

// Format regroups a key into 4-digit blocks for display. Storage and
// comparison always use the raw 44-digit form. Inputs that are not 44 digits
// long come back unchanged.
func Format(key string) string {
	clean := Normalize(key)
	if len(clean) != KeyLength {
		return key
	}
	var b strings.Builder
	for i := 0; i < KeyLength; i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(clean[i : i+4])
	}
	return b.String()
}

// Key exposes the positional fields of a validated access key.
type Key struct {
	UF         string // IBGE state code, positions 1-2
	IssuedYYMM string // issuance year and month, positions 3-6
	IssuerCNPJ string // issuer CNPJ, positions 7-20
	Model      string // fiscal document model, positions 21-22
	Series     string // series, positions 23-25
	Number     string // document number, positions 26-34
	CheckDigit int    // position 44
}

// Parse validates key and splits it into its positional fields.
func Parse(key string) (Key, error) {
	if err := Validate(key); err != nil {
		return Key{}, err
	}
	return Key{
		UF:         key[0:2],
		IssuedYYMM: key[2:6],
		IssuerCNPJ: key[6:20],
		Model:      key[20:22],
		Series:     key[22:25],
		Number:     key[25:34],
		CheckDigit: int(key[43] - '0'),
	}, nil
}
