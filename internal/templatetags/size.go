package templatetags

import (
	"math"
	"strconv"
	"strings"
)

const (
	gbInMB = 1000.0
	tbInMB = gbInMB * 1000
	pbInMB = tbInMB * 1000
)

// DiskSize renders a size given in megabytes using decimal units: GB up to
// and including 1,000,000 MB, TB up to and including 1,000,000,000 MB, PB
// beyond. The value is rounded to two decimals.
//
// Negative and non-finite inputs render as "0.0 GB".
func DiskSize(megabytes float64) string {
	if math.IsNaN(megabytes) || math.IsInf(megabytes, 0) || megabytes < 0 {
		megabytes = 0
	}

	switch {
	case megabytes <= tbInMB:
		return formatUnit(megabytes/gbInMB, "GB")
	case megabytes <= pbInMB:
		return formatUnit(megabytes/tbInMB, "TB")
	default:
		return formatUnit(megabytes/pbInMB, "PB")
	}
}

func formatUnit(v float64, unit string) string {
	// FormatFloat rounds the exact binary value, ties to even.
	v, _ = strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + " " + unit
}
