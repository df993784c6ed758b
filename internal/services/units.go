package services

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ronDecimals is the number of decimals of RON (and WRON) on chain
const ronDecimals = 18

// weiToRON converts an integer wei string to RON. Invalid input yields 0.
func weiToRON(wei string) float64 {
	wei = strings.TrimSpace(wei)
	if wei == "" {
		return 0
	}
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return 0
	}
	return d.Shift(-ronDecimals).InexactFloat64()
}

// parseDecimal parses a display-unit amount such as "12.5"
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// jsonAmount reads a number that upstreams send either as a JSON number or a string
func jsonAmount(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		return parseDecimal(r.Str)
	default:
		return 0, false
	}
}

// jsonWei reads a wei amount sent as a JSON number or string
func jsonWei(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		// Raw keeps full precision for values beyond float64 integers
		return weiToRON(r.Raw)
	case gjson.String:
		return weiToRON(r.Str)
	default:
		return 0
	}
}
