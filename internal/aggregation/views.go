package aggregation

import (
	"time"

	"stockpipe/pkg/contracts/domain"
)

type dailyAcc struct {
	open, close                               mean
	volume                                    float64
	gapUp, gapDown, missingOpen, missingClose int64
}

// Daily groups by (trade_date, ticker)
func Daily(records []domain.CleanRecord) []domain.DailyRow {
	keys, accs := groupBy(records,
		func(r *domain.CleanRecord) pairKey { return pairKey{keyOf(r.TradeDate), keyOf(r.Ticker)} },
		func(a *dailyAcc, r *domain.CleanRecord) {
			a.open.add(r.OpenPrice)
			a.close.add(r.ClosePrice)
			sum(&a.volume, r.Volume)
			count(&a.gapUp, r.GapUpFlag)
			count(&a.gapDown, r.GapDownFlag)
			count(&a.missingOpen, r.OpenPrice == nil)
			count(&a.missingClose, r.ClosePrice == nil)
		},
		pairKey.less,
	)

	rows := make([]domain.DailyRow, len(keys))
	for i, k := range keys {
		a := accs[k]
		rows[i] = domain.DailyRow{
			TradeDate:     ptr[domain.Date](k.a),
			Ticker:        ptr[string](k.b),
			AvgOpenPrice:  a.open.value(),
			AvgClosePrice: a.close.value(),
			TotalVolume:   a.volume,
			GapUpCount:    a.gapUp,
			GapDownCount:  a.gapDown,
			MissingOpen:   a.missingOpen,
			MissingClose:  a.missingClose,
		}
	}
	return rows
}

type weeklyAcc struct {
	close, volume, volatility mean
}

// Weekly groups by (week_start, ticker); weeks begin on firstDay
func Weekly(records []domain.CleanRecord, firstDay time.Weekday) []domain.WeeklyRow {
	keys, accs := groupBy(records,
		func(r *domain.CleanRecord) pairKey {
			var week *domain.Date
			if r.TradeDate != nil {
				w := r.TradeDate.WeekStart(firstDay)
				week = &w
			}
			return pairKey{keyOf(week), keyOf(r.Ticker)}
		},
		func(a *weeklyAcc, r *domain.CleanRecord) {
			a.close.add(r.ClosePrice)
			a.volume.add(r.Volume)
			a.volatility.add(diff(r))
		},
		pairKey.less,
	)

	rows := make([]domain.WeeklyRow, len(keys))
	for i, k := range keys {
		a := accs[k]
		rows[i] = domain.WeeklyRow{
			WeekStart:     ptr[domain.Date](k.a),
			Ticker:        ptr[string](k.b),
			AvgClosePrice: a.close.value(),
			AvgVolume:     a.volume.value(),
			AvgVolatility: a.volatility.value(),
		}
	}
	return rows
}

type tickerAcc struct {
	open, close, volume, change mean
	validated, gapUp, gapDown   int64
}

// Ticker groups by ticker
func Ticker(records []domain.CleanRecord) []domain.TickerRow {
	keys, accs := groupBy(records,
		func(r *domain.CleanRecord) nullKey { return keyOf(r.Ticker) },
		func(a *tickerAcc, r *domain.CleanRecord) {
			a.open.add(r.OpenPrice)
			a.close.add(r.ClosePrice)
			a.volume.add(r.Volume)
			a.change.add(r.PriceChange)
			count(&a.validated, r.ValidatedFlag)
			count(&a.gapUp, r.GapUpFlag)
			count(&a.gapDown, r.GapDownFlag)
		},
		nullKey.less,
	)

	rows := make([]domain.TickerRow, len(keys))
	for i, k := range keys {
		a := accs[k]
		rows[i] = domain.TickerRow{
			Ticker:         ptr[string](k),
			AvgOpen:        a.open.value(),
			AvgClose:       a.close.value(),
			AvgVolume:      a.volume.value(),
			PriceChangeAvg: a.change.value(),
			ValidatedCount: a.validated,
			GapUpCount:     a.gapUp,
			GapDownCount:   a.gapDown,
		}
	}
	return rows
}

type sectorAcc struct {
	open, close    mean
	gapUp, gapDown int64
}

// Sector groups by sector
func Sector(records []domain.CleanRecord) []domain.SectorRow {
	keys, accs := groupBy(records,
		func(r *domain.CleanRecord) nullKey { return keyOf(r.Sector) },
		func(a *sectorAcc, r *domain.CleanRecord) {
			a.open.add(r.OpenPrice)
			a.close.add(r.ClosePrice)
			count(&a.gapUp, r.GapUpFlag)
			count(&a.gapDown, r.GapDownFlag)
		},
		nullKey.less,
	)

	rows := make([]domain.SectorRow, len(keys))
	for i, k := range keys {
		a := accs[k]
		rows[i] = domain.SectorRow{
			Sector:       ptr[string](k),
			AvgOpen:      a.open.value(),
			AvgClose:     a.close.value(),
			TotalGapUp:   a.gapUp,
			TotalGapDown: a.gapDown,
		}
	}
	return rows
}

type exchangeAcc struct {
	open, close mean
	volume      float64
}

// Exchange groups by exchange
func Exchange(records []domain.CleanRecord) []domain.ExchangeRow {
	keys, accs := groupBy(records,
		func(r *domain.CleanRecord) nullKey { return keyOf(r.Exchange) },
		func(a *exchangeAcc, r *domain.CleanRecord) {
			a.open.add(r.OpenPrice)
			a.close.add(r.ClosePrice)
			sum(&a.volume, r.Volume)
		},
		nullKey.less,
	)

	rows := make([]domain.ExchangeRow, len(keys))
	for i, k := range keys {
		a := accs[k]
		rows[i] = domain.ExchangeRow{
			Exchange:    ptr[string](k),
			AvgOpen:     a.open.value(),
			AvgClose:    a.close.value(),
			TotalVolume: a.volume,
		}
	}
	return rows
}

type notesAcc struct {
	n              int64
	change, volume mean
}

// Notes groups by the verbatim notes value. count is the number of rows in
// the group and avg_price_change is recomputed from close - open.
func Notes(records []domain.CleanRecord) []domain.NotesRow {
	keys, accs := groupBy(records,
		func(r *domain.CleanRecord) nullKey { return keyOf(r.Notes) },
		func(a *notesAcc, r *domain.CleanRecord) {
			a.n++
			a.change.add(diff(r))
			a.volume.add(r.Volume)
		},
		nullKey.less,
	)

	rows := make([]domain.NotesRow, len(keys))
	for i, k := range keys {
		a := accs[k]
		rows[i] = domain.NotesRow{
			Notes:          ptr[string](k),
			Count:          a.n,
			AvgPriceChange: a.change.value(),
			AvgVolume:      a.volume.value(),
		}
	}
	return rows
}
