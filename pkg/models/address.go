package models

// Unknown is substituted for optional address text the source left empty.
const Unknown = "UNKNOWN"

// SourceAddress is one row of the source-of-record address table.
// Every attribute is kept as the raw text the source returned; an empty
// string means the column was NULL or blank.
type SourceAddress struct {
	StreetNumber    string
	UnitNumber      string
	StreetName      string
	StreetType      string
	StreetDirection string
	PostalCode      string
	City            string
	Province        string
}

// Address is the canonical form stored in the target database.
type Address struct {
	ID              int64
	UnitNum         *string
	StreetNumber    *int64
	StreetName      string
	StreetType      string
	StreetDirection *string
	PostalCode      string
	City            string
	Province        string
}

// Diff returns the names of the fields whose values differ between a and
// other. The surrogate ID is never compared.
func (a Address) Diff(other Address) []string {
	var changed []string
	if !equalPtr(a.UnitNum, other.UnitNum) {
		changed = append(changed, "unitNum")
	}
	if !equalPtr(a.StreetNumber, other.StreetNumber) {
		changed = append(changed, "streetNumber")
	}
	if a.StreetName != other.StreetName {
		changed = append(changed, "streetName")
	}
	if a.StreetType != other.StreetType {
		changed = append(changed, "streetType")
	}
	if !equalPtr(a.StreetDirection, other.StreetDirection) {
		changed = append(changed, "streetDirection")
	}
	if a.PostalCode != other.PostalCode {
		changed = append(changed, "postalCode")
	}
	if a.City != other.City {
		changed = append(changed, "city")
	}
	if a.Province != other.Province {
		changed = append(changed, "province")
	}
	return changed
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
