package accesskey

// NormalizeCNPJ strips everything but digits from a CNPJ string.
func NormalizeCNPJ(cnpj string) string {
	out := make([]byte, 0, len(cnpj))
	for i := 0; i < len(cnpj); i++ {
		if cnpj[i] >= '0' && cnpj[i] <= '9' {
			out = append(out, cnpj[i])
		}
	}
	return string(out)
}

// ValidCNPJ reports whether cnpj carries 14 digits with both mod-11 check
// digits correct. Repeated-digit sequences (00000000000000 etc.) are rejected.
func ValidCNPJ(cnpj string) bool {
	clean := NormalizeCNPJ(cnpj)
	if len(clean) != 14 {
		return false
	}
	same := true
	for i := 1; i < 14; i++ {
		if clean[i] != clean[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}
	if cnpjDigit(clean[:12]) != int(clean[12]-'0') {
		return false
	}
	return cnpjDigit(clean[:13]) == int(clean[13]-'0')
}

// cnpjDigit computes one CNPJ check digit over digits, right to left, weights
// 2..9 cycling. Remainders 0 and 1 map to digit 0.
func cnpjDigit(digits string) int {
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
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}
