package models

import (
	"encoding/json"
	"fmt"
)

// Entity names a logical table known to the target store.
type Entity string

const (
	EntityAddress   Entity = "address"
	EntityDonation  Entity = "donation"
	EntityVolunteer Entity = "volunteer"
)

// Schema maps the logical entities onto physical table and column names.
// It is the root of the optional JSON mapping file.
type Schema struct {
	Source    SourceSchema    `json:"source"`
	Address   AddressSchema   `json:"address"`
	Donation  DonationSchema  `json:"donation"`
	Volunteer VolunteerSchema `json:"volunteer"`
}

type SourceSchema struct {
	Table           string `json:"table"`
	StreetNumber    string `json:"streetNumber"`
	UnitNumber      string `json:"unitNumber"`
	StreetName      string `json:"streetName"`
	StreetType      string `json:"streetType"`
	StreetDirection string `json:"streetDirection"`
	PostalCode      string `json:"postalCode"`
	City            string `json:"city"`
	Province        string `json:"province"`
}

type AddressSchema struct {
	Table           string `json:"table"`
	ID              string `json:"id"`
	UnitNum         string `json:"unitNum"`
	StreetNumber    string `json:"streetNumber"`
	StreetName      string `json:"streetName"`
	StreetType      string `json:"streetType"`
	StreetDirection string `json:"streetDirection"`
	PostalCode      string `json:"postalCode"`
	City            string `json:"city"`
	Province        string `json:"province"`
}

type DonationSchema struct {
	Table       string `json:"table"`
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	AddressID   string `json:"addressId"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	VolunteerID string `json:"volunteerId"`
}

type VolunteerSchema struct {
	Table       string `json:"table"`
	ID          string `json:"id"`
	GroupLeader string `json:"groupLeader"`
}

// DefaultSchema returns the table layout of the donor database.
func DefaultSchema() *Schema {
	return &Schema{
		Source: SourceSchema{
			Table:           "dbo.Address",
			StreetNumber:    "STREET_NUM",
			UnitNumber:      "UNIT",
			StreetName:      "STREET_NAME",
			StreetType:      "STREET_TYPE",
			StreetDirection: "STREET_DIR",
			PostalCode:      "POSTAL_CODE",
			City:            "CITY",
			Province:        "PROVINCE",
		},
		Address: AddressSchema{
			Table:           "Address",
			ID:              "ADDRESS_ID",
			UnitNum:         "UNIT_NUM",
			StreetNumber:    "STREET_NUMBER",
			StreetName:      "STREET_NAME",
			StreetType:      "STREET_TYPE",
			StreetDirection: "STREET_DIRECTION",
			PostalCode:      "POSTAL_CODE",
			City:            "CITY",
			Province:        "PROVINCE",
		},
		Donation: DonationSchema{
			Table:       "Donation",
			ID:          "DONATION_ID",
			FirstName:   "DONOR_FIRST_NAME",
			LastName:    "DONOR_LAST_NAME",
			AddressID:   "ADDRESS_ID",
			Date:        "DONATION_DATE",
			Amount:      "DONATION_AMOUNT",
			VolunteerID: "VOLUNTEER_ID",
		},
		Volunteer: VolunteerSchema{
			Table:       "Volunteer",
			ID:          "VOLUNTEER_ID",
			GroupLeader: "GROUP_LEADER",
		},
	}
}

// LoadSchema parses a JSON mapping on top of the defaults, so a mapping
// file only needs to name the tables and columns that differ.
func LoadSchema(data []byte) (*Schema, error) {
	s := DefaultSchema()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that no table or key column was blanked out.
func (s *Schema) Validate() error {
	required := map[string]string{
		"source.table":    s.Source.Table,
		"address.table":   s.Address.Table,
		"address.id":      s.Address.ID,
		"donation.table":  s.Donation.Table,
		"donation.id":     s.Donation.ID,
		"volunteer.table": s.Volunteer.Table,
		"volunteer.id":    s.Volunteer.ID,
	}
	for name, v := range required {
		if v == "" {
			return fmt.Errorf("mapping field %s must not be empty", name)
		}
	}
	return nil
}

// Table returns the physical table and key column for an entity.
func (s *Schema) Table(e Entity) (table, idColumn string, err error) {
	switch e {
	case EntityAddress:
		return s.Address.Table, s.Address.ID, nil
	case EntityDonation:
		return s.Donation.Table, s.Donation.ID, nil
	case EntityVolunteer:
		return s.Volunteer.Table, s.Volunteer.ID, nil
	default:
		return "", "", fmt.Errorf("unknown entity %q", e)
	}
}
