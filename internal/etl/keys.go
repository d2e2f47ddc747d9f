package etl

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/BartekS5/donorsync/pkg/models"
)

// NormalizeKey concatenates the segments in order, lower-cases the result
// and drops all whitespace.
func NormalizeKey(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		for _, r := range s {
			if unicode.IsSpace(r) {
				continue
			}
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// AddressKey derives the natural key of an address from street number,
// street name and postal code. A missing street number is an empty segment.
// It is applied to transformed records on both sides, so a postal code the
// source left empty contributes models.Unknown ("unknown"), the same value
// the stored row carries.
func AddressKey(a models.Address) string {
	num := ""
	if a.StreetNumber != nil {
		num = strconv.FormatInt(*a.StreetNumber, 10)
	}
	return NormalizeKey(num, a.StreetName, a.PostalCode)
}
