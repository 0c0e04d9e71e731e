package aemet

import (
	"sort"
	"strconv"
	"time"

	"github.com/windforecast/windforecast/internal/forecast"
)

// DefaultLocation is the zone AEMET hour labels are expressed in.
const DefaultLocation = "Europe/Madrid"

// NormalizeOptions controls the hourly window.
type NormalizeOptions struct {
	// Now is the window start. Points before it are dropped.
	Now time.Time

	// Location interprets fecha and hour labels. Default: Europe/Madrid,
	// falling back to UTC if the zone database is unavailable.
	Location *time.Location

	// Limit caps the number of points. Default: 72.
	Limit int
}

func (o NormalizeOptions) withDefaults() NormalizeOptions {
	if o.Location == nil {
		o.Location = defaultLocation()
	}
	if o.Limit <= 0 {
		o.Limit = forecast.DefaultHourlyLimit
	}
	return o
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultLocation)
	if err != nil {
		return time.UTC
	}
	return loc
}

type hourlyDay struct {
	Fecha             flexValue               `json:"fecha"`
	VientoAndRachaMax lenientList[windEntry]  `json:"vientoAndRachaMax"`
	Viento            lenientList[windEntry]  `json:"viento"`
	Temperatura       lenientList[valueEntry] `json:"temperatura"`
}

// windEntries prefers vientoAndRachaMax and falls back to viento.
func (d hourlyDay) windEntries() []windEntry {
	if d.VientoAndRachaMax.present {
		return d.VientoAndRachaMax.items
	}
	return d.Viento.items
}

// NormalizeHourly turns a raw hourly data payload into points sorted by time,
// starting at opts.Now and capped at opts.Limit. Wind entries define which
// hours exist; temperature only fills hours already seen. Malformed input
// yields an empty, non-nil slice.
func NormalizeHourly(raw []byte, opts NormalizeOptions) []forecast.HourlyPoint {
	opts = opts.withDefaults()

	byInstant := make(map[int64]*forecast.HourlyPoint)
	for _, day := range decodeDays[hourlyDay](raw) {
		date, err := time.ParseInLocation("2006-01-02", datePart(day.Fecha.String()), opts.Location)
		if err != nil {
			continue
		}

		for _, w := range day.windEntries() {
			ts, ok := hourOf(date, w.Periodo)
			if !ok {
				continue
			}
			point, seen := byInstant[ts.Unix()]
			if !seen {
				point = &forecast.HourlyPoint{Timestamp: forecast.LocalTime(ts)}
				byInstant[ts.Unix()] = point
			}
			if kmh, ok := w.Velocidad.Float(); ok {
				point.WindKts = forecast.KmhToKnots(kmh)
			}
			if kmh, ok := w.Racha.Float(); ok {
				point.GustKts = forecast.KmhToKnots(kmh)
			}
			if w.Direccion.Present() {
				point.DirectionDeg = DirectionDegrees(w.Direccion.String())
			}
		}

		for _, t := range day.Temperatura.items {
			ts, ok := hourOf(date, t.Periodo)
			if !ok {
				continue
			}
			point, seen := byInstant[ts.Unix()]
			if !seen {
				continue
			}
			if c, ok := t.Value.Float(); ok {
				point.TempC = &c
			}
		}
	}

	points := make([]forecast.HourlyPoint, 0, len(byInstant))
	for _, p := range byInstant {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Time().Before(points[j].Timestamp.Time())
	})

	start := sort.Search(len(points), func(i int) bool {
		return !points[i].Timestamp.Time().Before(opts.Now)
	})
	points = points[start:]
	if len(points) > opts.Limit {
		points = points[:opts.Limit]
	}
	return points
}

// hourOf combines a calendar date with a two-digit hour label.
func hourOf(date time.Time, periodo flexValue) (time.Time, bool) {
	label := periodo.String()
	if label == "" {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(label)
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location()), true
}
