package usage

import "time"

// MonthIndex returns the number of whole calendar months between the month
// containing origin and the month containing t (both in UTC).
func MonthIndex(origin, t time.Time) int {
	o := origin.UTC()
	u := t.UTC()
	return (u.Year()-o.Year())*12 + int(u.Month()) - int(o.Month())
}

// MonthCount returns the number of calendar months touched by the window.
func MonthCount(w Window) int {
	if !w.Valid() {
		return 0
	}
	return MonthIndex(w.Start, w.End) + 1
}

// MonthlyTotals buckets a measure by the calendar month of each record's
// period start, relative to the window start month. The result has one entry
// per month of the window; months without data are 0. Records for which value
// reports false are skipped.
func MonthlyTotals(records []Record, w Window, value func(Record) (float64, bool)) []float64 {
	totals := make([]float64, MonthCount(w))
	for _, r := range records {
		v, ok := value(r)
		if !ok {
			continue
		}
		i := MonthIndex(w.Start, r.PeriodStart)
		if i < 0 || i >= len(totals) {
			continue
		}
		totals[i] += v
	}
	return totals
}

// Energy returns the record's energy in kWh when reported.
func Energy(r Record) (float64, bool) {
	if r.EnergyKWh == nil {
		return 0, false
	}
	return *r.EnergyKWh, true
}

// Emissions returns the record's emissions in metric tons CO2e when reported.
func Emissions(r Record) (float64, bool) {
	if r.CO2eTons == nil {
		return 0, false
	}
	return *r.CO2eTons, true
}
