// Package forecast holds the normalized forecast schema that the dashboard reads.
package forecast

import (
	"fmt"
	"math"
	"time"
)

// SourceAEMET is the source tag written on every record.
const SourceAEMET = "AEMET"

// DefaultHourlyLimit caps the hourly series.
const DefaultHourlyLimit = 72

// KnotsPerKmh is the km/h to knots conversion factor used by the dashboard.
const KnotsPerKmh = 0.539957

// Kind is a forecast granularity served by the upstream.
type Kind string

const (
	KindHourly Kind = "hourly"
	KindDaily  Kind = "daily"
)

// HourlyPoint is one hour of forecast for a municipality.
type HourlyPoint struct {
	Timestamp    LocalTime `json:"timestamp"`
	WindKts      int       `json:"windKts"`
	GustKts      int       `json:"gustKts"`
	// DirectionDeg is a float because compass points sit on 22.5° steps;
	// 0 when unknown or calm.
	DirectionDeg float64   `json:"directionDeg"`
	TempC        *float64  `json:"tempC"`
}

// DailySummary is the representative forecast for one calendar date.
type DailySummary struct {
	Date         string    `json:"date"` // YYYY-MM-DD
	TempMax      *float64  `json:"tempMax"`
	TempMin      *float64  `json:"tempMin"`
	WindKts      int       `json:"windKts"`
	GustKts      int       `json:"gustKts"`
	// DirectionDeg is fractional for the same 22.5° steps as HourlyPoint.
	DirectionDeg float64   `json:"directionDeg"`
	SkyState     *SkyState `json:"skyState"`
	PrecipProb   int       `json:"precipProb"` // percent
}

// SkyState carries the upstream sky code and description verbatim.
type SkyState struct {
	Code        *string `json:"code"`
	Description *string `json:"description"`
}

// Record is the persisted unit per station. It is overwritten on every
// successful ingestion.
type Record struct {
	LastUpdate int64      `json:"lastUpdate"` // unix milliseconds
	Source     string     `json:"source"`
	Data       RecordData `json:"data"`
}

// RecordData holds whichever series were fetched successfully.
type RecordData struct {
	Hourly []HourlyPoint  `json:"hourly,omitempty"`
	Weekly []DailySummary `json:"weekly,omitempty"`
}

// NewRecord builds a record stamped at updatedAt.
func NewRecord(updatedAt time.Time, hourly []HourlyPoint, weekly []DailySummary) Record {
	return Record{
		LastUpdate: updatedAt.UnixMilli(),
		Source:     SourceAEMET,
		Data: RecordData{
			Hourly: hourly,
			Weekly: weekly,
		},
	}
}

// UpdatedAt returns LastUpdate as a time.
func (r Record) UpdatedAt() time.Time {
	return time.UnixMilli(r.LastUpdate)
}

// IsEmpty reports whether neither series is present.
func (r Record) IsEmpty() bool {
	return len(r.Data.Hourly) == 0 && len(r.Data.Weekly) == 0
}

// KmhToKnots converts a wind speed and rounds to the nearest knot.
// Negative input is treated as calm.
func KmhToKnots(kmh float64) int {
	if kmh <= 0 || math.IsNaN(kmh) {
		return 0
	}
	return int(math.Round(kmh * KnotsPerKmh))
}

// localTimeLayout is the wall-clock format the dashboard expects for hourly points.
const localTimeLayout = "2006-01-02T15:04:05"

// LocalTime is a wall-clock instant serialized without a zone offset.
type LocalTime time.Time

// Time returns the underlying time.Time.
func (t LocalTime) Time() time.Time {
	return time.Time(t)
}

func (t LocalTime) String() string {
	return time.Time(t).Format(localTimeLayout)
}

// MarshalJSON implements json.Marshaler for LocalTime.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for LocalTime. The wall clock is
// kept; the zone is UTC.
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid local time %s", s)
	}
	parsed, err := time.ParseInLocation(localTimeLayout, s[1:len(s)-1], time.UTC)
	if err != nil {
		return err
	}
	*t = LocalTime(parsed)
	return nil
}
