// Package vin implements structural checks on Vehicle Identification Numbers:
// syntax, check digit, WMI region and model-year decoding.
package vin

import (
	"strings"
	"time"
)

// Length is the number of characters in a modern (post-1981) VIN.
const Length = 17

// Region is the broad manufacturing region encoded in VIN position 1.
type Region string

const (
	RegionNorthAmerica Region = "north_america"
	RegionSouthAmerica Region = "south_america"
	RegionEurope       Region = "europe"
	RegionAsia         Region = "asia"
	RegionAfrica       Region = "africa"
	RegionOceania      Region = "oceania"
	RegionUnknown      Region = "unknown"
)

// transliteration maps VIN characters to their ISO 3779 check-digit values.
var transliteration = map[byte]int{
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
	'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
	'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4, '5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
}

var weights = [Length]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

// Normalize upper-cases v. It does not trim; callers own whitespace handling.
func Normalize(v string) string {
	return strings.ToUpper(v)
}

// Valid reports whether v is 17 characters drawn from the VIN alphabet
// (digits and letters other than I, O and Q). Case is ignored.
func Valid(v string) bool {
	if len(v) != Length {
		return false
	}
	up := Normalize(v)
	for i := 0; i < Length; i++ {
		if _, ok := transliteration[up[i]]; !ok {
			return false
		}
	}
	return true
}

// CheckDigit computes the expected position-9 character for v, or 0 when v is
// not syntactically valid.
func CheckDigit(v string) byte {
	if !Valid(v) {
		return 0
	}
	up := Normalize(v)
	sum := 0
	for i := 0; i < Length; i++ {
		sum += transliteration[up[i]] * weights[i]
	}
	rem := sum % 11
	if rem == 10 {
		return 'X'
	}
	return byte('0' + rem)
}

// CheckDigitValid reports whether position 9 of v matches its computed check
// digit. Only North American VINs are required to carry a valid one.
func CheckDigitValid(v string) bool {
	if !Valid(v) {
		return false
	}
	return Normalize(v)[8] == CheckDigit(v)
}

// WMI returns the world manufacturer identifier (positions 1-3), or "".
func WMI(v string) string {
	if !Valid(v) {
		return ""
	}
	return Normalize(v)[:3]
}

// RegionOf returns the manufacturing region encoded in position 1.
func RegionOf(v string) Region {
	if !Valid(v) {
		return RegionUnknown
	}
	c := Normalize(v)[0]
	switch {
	case c >= '1' && c <= '5':
		return RegionNorthAmerica
	case c >= '6' && c <= '7':
		return RegionOceania
	case c >= '8' && c <= '9', c == '0':
		return RegionSouthAmerica
	case c >= 'A' && c <= 'H':
		return RegionAfrica
	case c >= 'J' && c <= 'R':
		return RegionAsia
	case c >= 'S' && c <= 'Z':
		return RegionEurope
	default:
		return RegionUnknown
	}
}

// yearCodes maps position-10 codes to their first-cycle model year. Each code
// repeats every 30 years.
var yearCodes = map[byte]int{
	'A': 1980, 'B': 1981, 'C': 1982, 'D': 1983, 'E': 1984, 'F': 1985,
	'G': 1986, 'H': 1987, 'J': 1988, 'K': 1989, 'L': 1990, 'M': 1991,
	'N': 1992, 'P': 1993, 'R': 1994, 'S': 1995, 'T': 1996, 'V': 1997,
	'W': 1998, 'X': 1999, 'Y': 2000,
	'1': 2001, '2': 2002, '3': 2003, '4': 2004, '5': 2005,
	'6': 2006, '7': 2007, '8': 2008, '9': 2009,
}

const yearCycle = 30

// YearCandidates returns every model year position 10 of v can stand for, up
// to one year past now, oldest first.
func YearCandidates(v string, now time.Time) []int {
	if !Valid(v) {
		return nil
	}
	base, ok := yearCodes[Normalize(v)[9]]
	if !ok {
		return nil
	}
	limit := now.Year() + 1
	var out []int
	for y := base; y <= limit; y += yearCycle {
		out = append(out, y)
	}
	return out
}

// ModelYear decodes the model year from position 10. It returns 0 when the code
// is unknown or the cycle cannot be determined. Two live candidates are split
// with the North American position-7 rule (digit: earlier cycle, letter: later
// cycle); other regions do not follow it, so they stay ambiguous.
func ModelYear(v string, now time.Time) int {
	candidates := YearCandidates(v, now)
	switch len(candidates) {
	case 0:
		return 0
	case 1:
		return candidates[0]
	}
	if RegionOf(v) != RegionNorthAmerica {
		return 0
	}
	latest := candidates[len(candidates)-1]
	previous := candidates[len(candidates)-2]
	c := Normalize(v)[6]
	if c >= '0' && c <= '9' {
		return previous
	}
	return latest
}
