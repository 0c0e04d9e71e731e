// Package station provides weather station credentials and forecast storage.
package station

import (
	"errors"
	"strings"
)

// Repository errors.
var (
	ErrStationNotFound  = errors.New("station not found")
	ErrForecastNotFound = errors.New("forecast not found")
)

// Station is a registered weather station.
type Station struct {
	ID         string
	Name       string
	Credential Credential
}

// Credential identifies a station's municipality upstream and carries the
// per-station API key.
type Credential struct {
	// MunicipalityCode is the INE municipality code.
	MunicipalityCode string
	APIKey           string
}

// Complete reports whether both fields are set.
func (c Credential) Complete() bool {
	return strings.TrimSpace(c.MunicipalityCode) != "" && strings.TrimSpace(c.APIKey) != ""
}

// String omits the API key so credentials can be logged.
func (c Credential) String() string {
	key := "unset"
	if strings.TrimSpace(c.APIKey) != "" {
		key = "****"
	}
	return "ine_code=" + c.MunicipalityCode + " api_key=" + key
}
