package pagelabels

import (
	"regexp"
	"strings"
)

var romanPattern = regexp.MustCompile(`(?i)^[ivxlcdm]+$`)

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

var romanValues = map[byte]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// IntToRoman renders n in canonical subtractive notation. Values below 1 render as "".
func IntToRoman(n int, lower bool) string {
	var b strings.Builder
	for _, r := range romanTable {
		for n >= r.value {
			b.WriteString(r.symbol)
			n -= r.value
		}
	}
	if lower {
		return strings.ToLower(b.String())
	}
	return b.String()
}

// RomanToInt scans right to left, subtracting a symbol smaller than the one to its right.
// Unknown characters count as zero.
func RomanToInt(roman string) int {
	roman = strings.ToUpper(roman)
	total, prev := 0, 0
	for i := len(roman) - 1; i >= 0; i-- {
		curr := romanValues[roman[i]]
		if curr < prev {
			total -= curr
		} else {
			total += curr
		}
		prev = curr
	}
	return total
}

// IsRoman reports whether s consists only of roman numeral letters
func IsRoman(s string) bool {
	return romanPattern.MatchString(s)
}
