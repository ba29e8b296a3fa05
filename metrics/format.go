package metrics

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders v with the shortest representation that round-trips,
// always keeping a decimal point for finite integral values (1 -> "1.0").
// Exponent notation is used below 1e-4 and from 1e16 on.
// NaN and infinities print as nan, inf and -inf.
// Reports use it so that scores read the same as in Python tooling.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}
