package credit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TermPattern is the shape of a term key, {year}-{1|2}.
const TermPattern = `^\d+-[12]$`

var termPattern = regexp.MustCompile(TermPattern)

// CanonicalTerms are the eight seed terms: years 1-4, halves 1-2.
var CanonicalTerms = []string{"1-1", "1-2", "2-1", "2-2", "3-1", "3-2", "4-1", "4-2"}

// IsCanonicalTerm reports whether term is one of CanonicalTerms.
func IsCanonicalTerm(term string) bool {
	for _, t := range CanonicalTerms {
		if t == term {
			return true
		}
	}
	return false
}

// ValidTermFormat reports whether term has the shape {year}-{1|2}.
func ValidTermFormat(term string) bool {
	return termPattern.MatchString(term)
}

// ParseTerm splits a term key into year and half.
func ParseTerm(term string) (year, half int, err error) {
	if !ValidTermFormat(term) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTerm, term)
	}
	parts := strings.SplitN(term, "-", 2)
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTerm, term)
	}
	half, _ = strconv.Atoi(parts[1])
	return year, half, nil
}

// CompareTerms orders terms by (year, half). Malformed keys sort after
// well-formed ones and among themselves lexically.
func CompareTerms(a, b string) int {
	ay, ah, aerr := ParseTerm(a)
	by, bh, berr := ParseTerm(b)
	switch {
	case aerr != nil && berr != nil:
		return strings.Compare(a, b)
	case aerr != nil:
		return 1
	case berr != nil:
		return -1
	}
	if ay != by {
		return ay - by
	}
	return ah - bh
}

// TermLabel renders a term key for display, e.g. "3-2" as "Year 3, Half 2".
func TermLabel(term string) string {
	year, half, err := ParseTerm(term)
	if err != nil {
		return term
	}
	return fmt.Sprintf("Year %d, Half %d", year, half)
}
