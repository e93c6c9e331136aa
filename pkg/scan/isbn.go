package scan

import "strings"

// NormalizeCode strips hyphens and spaces from a candidate code.
func NormalizeCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsValidISBN reports whether a decoded candidate matches a recognized
// book identifier: an ISBN-13 with the 978/979 bookland prefix, or an
// ISBN-10. Both forms are checksum-verified; anything else is noise
// from the barcode decoder and is ignored.
func IsValidISBN(code string) bool {
	code = NormalizeCode(code)
	switch len(code) {
	case 13:
		return isValidISBN13(code)
	case 10:
		return isValidISBN10(code)
	default:
		return false
	}
}

func isValidISBN13(code string) bool {
	if !strings.HasPrefix(code, "978") && !strings.HasPrefix(code, "979") {
		return false
	}

	sum := 0
	for i, r := range code {
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return sum%10 == 0
}

func isValidISBN10(code string) bool {
	sum := 0
	for i, r := range code {
		var d int
		switch {
		case r >= '0' && r <= '9':
			d = int(r - '0')
		case (r == 'X' || r == 'x') && i == 9:
			d = 10
		default:
			return false
		}
		sum += d * (10 - i)
	}
	return sum%11 == 0
}
