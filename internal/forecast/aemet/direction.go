package aemet

import "strings"

// compassDegrees maps AEMET compass abbreviations to degrees. Spanish uses O
// for west; some feeds use the English spelling, so both are accepted.
var compassDegrees = map[string]float64{
	"N":   0,
	"NNE": 22.5,
	"NE":  45,
	"ENE": 67.5,
	"E":   90,
	"ESE": 112.5,
	"SE":  135,
	"SSE": 157.5,
	"S":   180,
	"SSO": 202.5,
	"SSW": 202.5,
	"SO":  225,
	"SW":  225,
	"OSO": 247.5,
	"WSW": 247.5,
	"O":   270,
	"W":   270,
	"ONO": 292.5,
	"WNW": 292.5,
	"NO":  315,
	"NW":  315,
	"NNO": 337.5,
	"NNW": 337.5,
	"C":   0, // calm
}

// DirectionDegrees converts a compass abbreviation to degrees in [0, 360).
// Matching ignores case and surrounding whitespace; unknown input is 0.
func DirectionDegrees(abbrev string) float64 {
	return compassDegrees[strings.ToUpper(strings.TrimSpace(abbrev))]
}

// CompassAbbreviations lists every abbreviation DirectionDegrees recognises.
func CompassAbbreviations() []string {
	out := make([]string, 0, len(compassDegrees))
	for k := range compassDegrees {
		out = append(out, k)
	}
	return out
}
