package collector

import (
	"strconv"
	"strings"
)

var countMultipliers = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

// ParseCount reads a display counter such as "1,234", "1.2K" or "3M".
// With a K/M/B suffix a "," or "." is a decimal mark; without one both are
// thousands separators. Unparseable input yields 0.
func ParseCount(s string) int {
	s = strings.ToUpper(strings.Join(strings.Fields(s), ""))
	if s == "" {
		return 0
	}

	if mult, ok := countMultipliers[s[len(s)-1]]; ok {
		num := strings.ReplaceAll(s[:len(s)-1], ",", ".")
		f, err := strconv.ParseFloat(num, 64)
		if err != nil || f < 0 {
			return 0
		}
		return int(f*mult + 0.5)
	}

	s = strings.NewReplacer(",", "", ".", "").Replace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func intPtr(v int) *int { return &v }
