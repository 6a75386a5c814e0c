package aggregation

import (
	"strings"

	"stockpipe/pkg/contracts/domain"
)

// Filter is a ticker selection resolved against the clean table. The
// sector, exchange and notes views are filtered by the values that
// co-occur with the selected tickers rather than by ticker directly.
// A nil Filter keeps everything.
type Filter struct {
	Tickers   []string
	tickers   map[nullKey]bool
	sectors   map[nullKey]bool
	exchanges map[nullKey]bool
	notes     map[nullKey]bool
}

// ResolveFilter resolves a ticker selection. An empty selection resolves to
// a nil Filter.
func ResolveFilter(records []domain.CleanRecord, tickers []string) *Filter {
	if len(tickers) == 0 {
		return nil
	}

	f := &Filter{
		tickers:   make(map[nullKey]bool, len(tickers)),
		sectors:   map[nullKey]bool{},
		exchanges: map[nullKey]bool{},
		notes:     map[nullKey]bool{},
	}
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if k := (nullKey{v: t, ok: true}); !f.tickers[k] {
			f.tickers[k] = true
			f.Tickers = append(f.Tickers, t)
		}
	}

	for i := range records {
		r := &records[i]
		if !f.tickers[keyOf(r.Ticker)] {
			continue
		}
		f.sectors[keyOf(r.Sector)] = true
		f.exchanges[keyOf(r.Exchange)] = true
		f.notes[keyOf(r.Notes)] = true
	}
	return f
}

// KeepTicker reports whether a ticker passes the filter
func (f *Filter) KeepTicker(t *string) bool { return f == nil || f.tickers[keyOf(t)] }

// KeepSector reports whether a sector co-occurs with a selected ticker
func (f *Filter) KeepSector(s *string) bool { return f == nil || f.sectors[keyOf(s)] }

// KeepExchange reports whether an exchange co-occurs with a selected ticker
func (f *Filter) KeepExchange(e *string) bool { return f == nil || f.exchanges[keyOf(e)] }

// KeepNotes reports whether a notes value co-occurs with a selected ticker
func (f *Filter) KeepNotes(n *string) bool { return f == nil || f.notes[keyOf(n)] }

// FilterViews applies f to every present view and returns new tables
func FilterViews(v *Views, f *Filter) *Views {
	if f == nil {
		return v
	}

	out := &Views{}
	if v.Daily != nil {
		out.Daily = v.Daily.Filter(func(r domain.DailyRow) bool { return f.KeepTicker(r.Ticker) })
	}
	if v.Weekly != nil {
		out.Weekly = v.Weekly.Filter(func(r domain.WeeklyRow) bool { return f.KeepTicker(r.Ticker) })
	}
	if v.Ticker != nil {
		out.Ticker = v.Ticker.Filter(func(r domain.TickerRow) bool { return f.KeepTicker(r.Ticker) })
	}
	if v.Sector != nil {
		out.Sector = v.Sector.Filter(func(r domain.SectorRow) bool { return f.KeepSector(r.Sector) })
	}
	if v.Exchange != nil {
		out.Exchange = v.Exchange.Filter(func(r domain.ExchangeRow) bool { return f.KeepExchange(r.Exchange) })
	}
	if v.Notes != nil {
		out.Notes = v.Notes.Filter(func(r domain.NotesRow) bool { return f.KeepNotes(r.Notes) })
	}
	return out
}

// FilterDataset applies f to a single view. The clean table and unknown
// datasets pass through unchanged.
func FilterDataset(ds domain.Dataset, f *Filter) domain.Dataset {
	if f == nil {
		return ds
	}

	switch t := ds.(type) {
	case *domain.Table[domain.DailyRow]:
		return FilterViews(&Views{Daily: t}, f).Daily
	case *domain.Table[domain.WeeklyRow]:
		return FilterViews(&Views{Weekly: t}, f).Weekly
	case *domain.Table[domain.TickerRow]:
		return FilterViews(&Views{Ticker: t}, f).Ticker
	case *domain.Table[domain.SectorRow]:
		return FilterViews(&Views{Sector: t}, f).Sector
	case *domain.Table[domain.ExchangeRow]:
		return FilterViews(&Views{Exchange: t}, f).Exchange
	case *domain.Table[domain.NotesRow]:
		return FilterViews(&Views{Notes: t}, f).Notes
	}
	return ds
}
