package utils

import "strings"

func IsValidLuhn(number string) bool {
	var sum int

	if len(number) == 0 {
		return false
	}
	alt := false
	for i := len(number) - 1; i >= 0; i-- {
		n := int(number[i] - '0')
		if n < 0 || n > 9 {
			return false
		}
		if alt {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alt = !alt
	}
	return sum%10 == 0
}

// Digits drops everything except ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CardLast4 keeps only the last four digits of a card number.
func CardLast4(number string) string {
	d := Digits(number)
	if len(d) <= 4 {
		return d
	}
	return d[len(d)-4:]
}

// MaskPhone hides every digit except the first and the last four,
// keeping the original punctuation: "+7 916 123-45-67" -> "+7 *** ***-45-67".
func MaskPhone(phone string) string {
	total := len(Digits(phone))
	if total <= 5 {
		return phone
	}

	var b strings.Builder
	seen := 0
	for _, r := range phone {
		if r < '0' || r > '9' {
			b.WriteRune(r)
			continue
		}
		seen++
		if seen == 1 || seen > total-4 {
			b.WriteRune(r)
		} else {
			b.WriteRune('*')
		}
	}
	return b.String()
}
