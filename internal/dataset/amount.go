package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// currencyReplacer strips symbols and grouping characters from exported price
// columns such as "€1,250,000" or "$ 95.50".
var currencyReplacer = strings.NewReplacer(
	"€", "",
	"$", "",
	"£", "",
	",", "",
	" ", "",
	"\u00a0", "",
)

// ParseAmount parses a currency string into a number. Blank input reports
// ok=false with a nil error.
func ParseAmount(s string) (v float64, ok bool, err error) {
	s = currencyReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, true, nil
}
