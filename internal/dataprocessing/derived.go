package dataprocessing

import (
	"strings"

	"stockpipe/pkg/contracts/domain"
)

// UnknownCountry is the country of any exchange outside the lookup table
const UnknownCountry = "Unknown"

var exchangeCountries = map[string]string{
	"nasdaq": "USA",
	"nyse":   "USA",
	"lse":    "UK",
	"tse":    "Japan",
	"hkex":   "Hong Kong",
	"tsx":    "Canada",
}

// CountryOf maps an exchange to its country
func CountryOf(exchange *string) string {
	if exchange == nil {
		return UnknownCountry
	}
	if c, ok := exchangeCountries[strings.ToLower(strings.TrimSpace(*exchange))]; ok {
		return c
	}
	return UnknownCountry
}

// DeriveRecord fills the flag, country and price change fields of r
func DeriveRecord(r domain.CleanRecord) domain.CleanRecord {
	r.GapUpFlag, r.GapDownFlag = false, false
	if r.Notes != nil {
		notes := strings.ToLower(*r.Notes)
		r.GapUpFlag = strings.Contains(notes, "gap up")
		r.GapDownFlag = strings.Contains(notes, "gap down")
	}

	r.ValidatedFlag = false
	if r.Validated != nil {
		v := strings.ToLower(*r.Validated)
		r.ValidatedFlag = v == "yes" || v == "y"
	}

	r.Country = CountryOf(r.Exchange)

	r.PriceChange = nil
	if r.OpenPrice != nil && r.ClosePrice != nil {
		pc := *r.ClosePrice - *r.OpenPrice
		r.PriceChange = &pc
	}
	return r
}

// Derive returns a copy of t with every derived field computed
func Derive(t *domain.CleanTable) *domain.CleanTable {
	out := &domain.CleanTable{
		Records: make([]domain.CleanRecord, len(t.Records)),
		Present: t.Present,
	}
	for i, r := range t.Records {
		out.Records[i] = DeriveRecord(r)
	}
	return out
}
