package accesskey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validKey = "35230812345678000123550010000000011000000011"

func TestNormalize(t *testing.T) {
	assert.Equal(t, validKey, Normalize("3523 0812 3456 7800 0123 5500 1000 0000 0110 0000 0011"))
	assert.Equal(t, validKey, Normalize("3523-0812-3456-7800-0123-5500-1000-0000-0110-0000-0011"))
	assert.Equal(t, "12a4", Normalize(" 12a4 "), "normalize strips, never validates")
	assert.Equal(t, "", Normalize("  \t\n"))
}

func TestValidate(t *testing.T) {
	t.Run("accepts a key with a correct check digit", func(t *testing.T) {
		require.NoError(t, Validate(validKey))
	})

	t.Run("rejects wrong lengths", func(t *testing.T) {
		for _, key := range []string{"", "123", validKey[:43], validKey + "1"} {
			err := Validate(key)
			assert.ErrorIs(t, err, ErrKeyLength, "key %q", key)
		}
	})

	t.Run("rejects non-digit characters", func(t *testing.T) {
		mutated := "a" + validKey[1:]
		assert.ErrorIs(t, Validate(mutated), ErrKeyDigits)

		mutated = validKey[:20] + "x" + validKey[21:]
		assert.ErrorIs(t, Validate(mutated), ErrKeyDigits)
	})

	t.Run("rejects a wrong check digit", func(t *testing.T) {
		// Flip the final digit away from its computed value.
		wrong := validKey[:43] + "2"
		assert.ErrorIs(t, Validate(wrong), ErrCheckDigit)
	})

	t.Run("any single-digit mutation breaks the checksum", func(t *testing.T) {
		for i := 0; i < KeyLength-1; i++ {
			replacement := byte('0')
			if validKey[i] == '0' {
				replacement = '9'
			}
			mutated := validKey[:i] + string(replacement) + validKey[i+1:]
			assert.ErrorIs(t, Validate(mutated), ErrCheckDigit, "mutation at position %d", i)
		}
	})
}

func TestExtractFromScannedText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "chNFe URL parameter",
			text: "https://www.sefaz.rs.gov.br/NFCE/NFCE-COM.aspx?chNFe=" + validKey + "&nVersao=100",
			want: validKey,
		},
		{
			name: "generic p parameter",
			text: "https://sat.sef.sc.gov.br/nfce/consulta?p=" + validKey + "|2|1|1|ABC",
			want: validKey,
		},
		{
			name: "ChaveAcesso parameter",
			text: "consulta.aspx?ChaveAcesso=" + validKey,
			want: validKey,
		},
		{
			name: "bare digit run",
			text: "NFC-e " + validKey + " emitida",
			want: validKey,
		},
		{
			name: "percent-encoded payload",
			text: "https%3A%2F%2Fportal%2Fconsulta%3FchNFe%3D" + validKey,
			want: validKey,
		},
		{
			name: "no key present",
			text: "https://example.com/?foo=bar",
			want: "",
		},
		{
			name: "digit run too short",
			text: strings.Repeat("1", 43),
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractFromScannedText(tc.text))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t,
		"3523 0812 3456 7800 0123 5500 1000 0000 0110 0000 0011",
		Format(validKey))
	assert.Equal(t, "not-a-key", Format("not-a-key"), "non-44-digit input comes back unchanged")
}

func TestParse(t *testing.T) {
	key, err := Parse(validKey)
	require.NoError(t, err)
	assert.Equal(t, "35", key.UF)
	assert.Equal(t, "2308", key.IssuedYYMM)
	assert.Equal(t, "12345678000123", key.IssuerCNPJ)
	assert.Equal(t, "55", key.Model)
	assert.Equal(t, "001", key.Series)
	assert.Equal(t, "000000001", key.Number)
	assert.Equal(t, 1, key.CheckDigit)

	_, err = Parse("123")
	assert.Error(t, err)
}

func TestValidCNPJ(t *testing.T) {
	assert.True(t, ValidCNPJ("12345678000195"))
	assert.True(t, ValidCNPJ("12.345.678/0001-95"), "punctuation is stripped")

	assert.False(t, ValidCNPJ("12345678000194"), "wrong second check digit")
	assert.False(t, ValidCNPJ("12345678000185"), "wrong first check digit")
	assert.False(t, ValidCNPJ("11111111111111"), "repeated digits")
	assert.False(t, ValidCNPJ("1234567800019"), "too short")
	assert.False(t, ValidCNPJ(""))
}
