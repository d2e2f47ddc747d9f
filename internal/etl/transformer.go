package etl

import (
	"strings"

	"github.com/BartekS5/donorsync/pkg/models"
	"github.com/BartekS5/donorsync/pkg/utils"
)

// TransformAddress maps a source row onto the target schema. Unparseable
// street numbers become nil; street type and postal code fall back to
// models.Unknown.
func TransformAddress(src models.SourceAddress) models.Address {
	return models.Address{
		StreetNumber:    utils.ParseOptionalRef(src.StreetNumber),
		UnitNum:         utils.OptionalString(src.UnitNumber),
		StreetName:      src.StreetName,
		StreetType:      utils.StringOr(src.StreetType, models.Unknown),
		StreetDirection: utils.OptionalString(src.StreetDirection),
		PostalCode:      utils.StringOr(src.PostalCode, models.Unknown),
		City:            src.City,
		Province:        src.Province,
	}
}

// TransformAddresses applies TransformAddress to every row, keeping order.
func TransformAddresses(rows []models.SourceAddress) []models.Address {
	out := make([]models.Address, len(rows))
	for i, r := range rows {
		out[i] = TransformAddress(r)
	}
	return out
}

// Donation file columns.
const (
	ColDonationID     = "donation_id"
	ColDonorName      = "donor_name"
	ColAddressID      = "address_id"
	ColDonationDate   = "donation_date"
	ColDonationAmount = "donation_amount"
	ColVolunteerID    = "volunteer_id"
)

// ParseDonation reads a donation from a raw file row. Values that are
// missing or do not parse are left nil, as are zero references. The donor name is split on its
// first space into first and last name.
func ParseDonation(raw models.RawRecord) models.Donation {
	d := models.Donation{
		ID:          utils.ParseOptionalInt(raw.Get(ColDonationID)),
		AddressID:   utils.ParseOptionalRef(raw.Get(ColAddressID)),
		Date:        utils.ParseOptionalDate(raw.Get(ColDonationDate)),
		Amount:      utils.ParseOptionalFloat(raw.Get(ColDonationAmount)),
		VolunteerID: utils.ParseOptionalRef(raw.Get(ColVolunteerID)),
	}
	first, last, _ := strings.Cut(strings.TrimSpace(raw.Get(ColDonorName)), " ")
	d.FirstName = utils.OptionalString(first)
	d.LastName = utils.OptionalString(strings.TrimSpace(last))
	return d
}
