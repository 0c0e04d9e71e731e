package aemet

import (
	"math"
	"time"

	"github.com/windforecast/windforecast/internal/forecast"
)

// RepresentativePeriods is the preference order used to pick the single
// period that summarizes a day's wind and sky. The first element is also the
// only preferred period for precipitation.
var RepresentativePeriods = []string{"00-24", "12-24"}

type dailyDay struct {
	Fecha             flexValue               `json:"fecha"`
	Temperatura       lenient[dailyTemp]      `json:"temperatura"`
	Viento            lenientList[windEntry]  `json:"viento"`
	RachaMax          lenientList[valueEntry] `json:"rachaMax"`
	EstadoCielo       lenientList[skyEntry]   `json:"estadoCielo"`
	ProbPrecipitacion lenientList[valueEntry] `json:"probPrecipitacion"`
}

type dailyTemp struct {
	Maxima flexValue `json:"maxima"`
	Minima flexValue `json:"minima"`
}

// NormalizeDaily turns a raw daily data payload into one summary per day
// block, in upstream order. Blocks without a usable fecha are skipped.
// Malformed input yields an empty, non-nil slice.
func NormalizeDaily(raw []byte) []forecast.DailySummary {
	days := decodeDays[dailyDay](raw)
	out := make([]forecast.DailySummary, 0, len(days))

	for _, day := range days {
		date := datePart(day.Fecha.String())
		if _, err := time.Parse("2006-01-02", date); err != nil {
			continue
		}
		summary := forecast.DailySummary{Date: date}

		if day.Temperatura.present {
			summary.TempMax = floatPtr(day.Temperatura.value.Maxima)
			summary.TempMin = floatPtr(day.Temperatura.value.Minima)
		}

		if w, ok := pickByPeriod(day.Viento.items, RepresentativePeriods, func(e windEntry) flexValue { return e.Periodo }); ok {
			if kmh, ok := w.Velocidad.Float(); ok {
				summary.WindKts = forecast.KmhToKnots(kmh)
			}
			if w.Direccion.Present() {
				summary.DirectionDeg = DirectionDegrees(w.Direccion.String())
			}
		}

		if g, ok := pickGust(day.RachaMax.items); ok {
			if kmh, ok := g.Value.Float(); ok {
				summary.GustKts = forecast.KmhToKnots(kmh)
			}
		}

		if s, ok := pickByPeriod(day.EstadoCielo.items, RepresentativePeriods, func(e skyEntry) flexValue { return e.Periodo }); ok {
			summary.SkyState = &forecast.SkyState{
				Code:        stringPtr(s.Value),
				Description: stringPtr(s.Descripcion),
			}
		}

		if p, ok := pickByPeriod(day.ProbPrecipitacion.items, RepresentativePeriods[:1], func(e valueEntry) flexValue { return e.Periodo }); ok {
			if pct, ok := p.Value.Float(); ok {
				summary.PrecipProb = int(math.Round(pct))
			}
		}

		out = append(out, summary)
	}
	return out
}

// pickByPeriod returns the first entry whose period matches the earliest
// preference, falling back to the first entry.
func pickByPeriod[T any](entries []T, preferred []string, period func(T) flexValue) (T, bool) {
	for _, want := range preferred {
		for _, e := range entries {
			if period(e).String() == want {
				return e, true
			}
		}
	}
	if len(entries) > 0 {
		return entries[0], true
	}
	var zero T
	return zero, false
}

// pickGust returns the first gust entry with a non-empty value, else the first.
func pickGust(entries []valueEntry) (valueEntry, bool) {
	for _, e := range entries {
		if e.Value.String() != "" {
			return e, true
		}
	}
	if len(entries) > 0 {
		return entries[0], true
	}
	return valueEntry{}, false
}

func floatPtr(v flexValue) *float64 {
	f, ok := v.Float()
	if !ok {
		return nil
	}
	return &f
}

func stringPtr(v flexValue) *string {
	s := v.String()
	if s == "" {
		return nil
	}
	return &s
}
