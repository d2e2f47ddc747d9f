package models

import "time"

// Donation is a parsed donation row. Every field is nullable so that the
// validation stage can tell a missing value from a zero one.
type Donation struct {
	ID          *int64
	FirstName   *string
	LastName    *string
	AddressID   *int64
	Date        *time.Time
	Amount      *float64
	VolunteerID *int64
}

// RawRecord is a row exactly as it was read from a delimited file, with
// values kept in their original column order.
type RawRecord struct {
	Header []string
	Values []string
	Source string
	Line   int
}

// Get returns the value of the named column, or "" when the column is
// missing from the row.
func (r RawRecord) Get(column string) string {
	for i, h := range r.Header {
		if h == column && i < len(r.Values) {
			return r.Values[i]
		}
	}
	return ""
}
