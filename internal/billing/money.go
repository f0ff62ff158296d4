package billing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseAmount coerces free-form input into a dollar amount. Numeric values
// pass through unchanged; strings are stripped down to digits and the decimal
// point before parsing. Anything unparseable yields 0 rather than an error,
// since these values originate in free-text form fields.
func ParseAmount(input any) float64 {
	switch v := input.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		return parseAmountString(v.String())
	case string:
		return parseAmountString(v)
	default:
		return 0
	}
}

func parseAmountString(value string) float64 {
	var b strings.Builder
	for _, r := range value {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	parsed, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return parsed
}

// Round2 rounds to two decimal places, half away from zero. Matches the
// reference behavior of formatting with toFixed(2) and reparsing.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
