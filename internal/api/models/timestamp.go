// Package models holds the JSON bodies of the windforecast API.
package models

import (
	"errors"
	"time"
)

var errTimestampNotString = errors.New("timestamp: expected a JSON string")

// Timestamp renders as an RFC 3339 string in UTC regardless of the zone it
// was created in. Forecast times are Europe/Madrid internally.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(time.RFC3339)+2)
	buf = append(buf, '"')
	buf = time.Time(t).UTC().AppendFormat(buf, time.RFC3339)
	return append(buf, '"'), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	n := len(data)
	if n < 2 || data[0] != '"' || data[n-1] != '"' {
		return errTimestampNotString
	}
	parsed, err := time.Parse(time.RFC3339, string(data[1:n-1]))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns t as a time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }
