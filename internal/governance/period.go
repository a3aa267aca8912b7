package governance

import (
	"unicode"
	"unicode/utf8"

	logx "govreminder/pkg/logx"
)

// CurrentPeriod extracts the period index encoded in the final character of
// a slug ("governance-period-3" -> 3). Any Unicode decimal digit is accepted,
// so "governance-period-٣" is 3 as well. ok is false, and the failure logged,
// when that character is not a digit.
func CurrentPeriod(log logx.Logger, slug string) (int, bool) {
	last, size := utf8.DecodeLastRuneInString(slug)
	if size == 0 {
		log.Warn("empty slug cannot be converted to a period index")
		return 0, false
	}
	n, ok := digitValue(last)
	if !ok {
		log.Warn("slug cannot be converted to a period index", logx.String("slug", slug))
		return 0, false
	}
	return n, true
}

// digitValue returns the decimal value of r. Unicode encodes every Nd digit
// set as ten consecutive code points starting at zero, and adjacent sets are
// contiguous, so the offset into the run modulo 10 is the value.
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	if !unicode.IsDigit(r) {
		return 0, false
	}
	start := r
	for unicode.IsDigit(start - 1) {
		start--
	}
	return int(r-start) % 10, true
}
