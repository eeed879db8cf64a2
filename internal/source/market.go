package source

import (
	"regexp"
	"strconv"
	"strings"
)

var amountPattern = regexp.MustCompile(`\d[\d,.]*`)

// ParseMarketValue converts a Transfermarkt market value label to euros.
//
//	"25,00 M €" -> 25000000
//	"500 K €"   -> 500000
//	"1,2 Mrd. €" -> 1200000000
//
// ok is false when the label carries no usable amount ("-", "", "?").
func ParseMarketValue(label string) (float64, bool) {
	v := strings.ToLower(strings.TrimSpace(label))
	for _, sym := range []string{"€", "$", "£"} {
		v = strings.ReplaceAll(v, sym, "")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}

	num := amountPattern.FindString(v)
	if num == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimRight(num, ",."), ",", "."), 64)
	if err != nil {
		return 0, false
	}

	unit := strings.TrimSpace(v[strings.Index(v, num)+len(num):])
	switch {
	case strings.HasPrefix(unit, "mrd"), strings.HasPrefix(unit, "md"), strings.HasPrefix(unit, "bn"):
		return amount * 1_000_000_000, true
	case strings.HasPrefix(unit, "mio"), strings.HasPrefix(unit, "m"):
		return amount * 1_000_000, true
	case strings.HasPrefix(unit, "k"), strings.HasPrefix(unit, "tsd"), strings.HasPrefix(unit, "th"):
		return amount * 1_000, true
	default:
		return amount, true
	}
}
