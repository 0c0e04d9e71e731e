package aemet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windforecast/windforecast/internal/forecast/aemet"
)

const dailyPayload = `[{
	"nombre": "Tarifa",
	"prediccion": { "dia": [
		{
			"fecha": "2025-11-20T00:00:00",
			"temperatura": {"maxima": 19, "minima": "12"},
			"viento": [
				{"periodo":"00-12", "direccion":"N", "velocidad":5},
				{"periodo":"12-24", "direccion":"E", "velocidad":30},
				{"periodo":"00-24", "direccion":"SE", "velocidad":20}
			],
			"rachaMax": [{"periodo":"00-24", "value":""}, {"periodo":"12-24", "value":"50"}],
			"estadoCielo": [
				{"periodo":"12-24", "value":"12", "descripcion":"Poco nuboso"},
				{"periodo":"00-24", "value":"11", "descripcion":"Despejado"}
			],
			"probPrecipitacion": [{"periodo":"12-24", "value":80}, {"periodo":"00-24", "value":35}]
		},
		{
			"fecha": "2025-11-21T00:00:00",
			"temperatura": {"maxima": 0, "minima": -2},
			"viento": [{"periodo":"06-12", "direccion":"W", "velocidad":"8"}, {"periodo":"12-24", "direccion":"O", "velocidad":"12"}],
			"estadoCielo": [{"periodo":"06-12", "value":"", "descripcion":""}],
			"probPrecipitacion": [{"periodo":"12-24", "value":"40.6"}]
		},
		{
			"fecha": "2025-11-22T00:00:00",
			"viento": [{"velocidad":"10", "direccion":"C"}],
			"rachaMax": [{"value":""}]
		}
	] }
}]`

func TestNormalizeDaily(t *testing.T) {
	days := aemet.NormalizeDaily([]byte(dailyPayload))
	require.Len(t, days, 3)

	t.Run("representative 00-24 period", func(t *testing.T) {
		d := days[0]
		assert.Equal(t, "2025-11-20", d.Date)
		require.NotNil(t, d.TempMax)
		require.NotNil(t, d.TempMin)
		assert.Equal(t, 19.0, *d.TempMax)
		assert.Equal(t, 12.0, *d.TempMin)
		assert.Equal(t, 11, d.WindKts)
		assert.Equal(t, 135.0, d.DirectionDeg)
		assert.Equal(t, 27, d.GustKts)
		require.NotNil(t, d.SkyState)
		assert.Equal(t, "11", *d.SkyState.Code)
		assert.Equal(t, "Despejado", *d.SkyState.Description)
		assert.Equal(t, 35, d.PrecipProb)
	})

	t.Run("12-24 fallback and first-element fallback", func(t *testing.T) {
		d := days[1]
		assert.Equal(t, "2025-11-21", d.Date)
		require.NotNil(t, d.TempMax)
		assert.Equal(t, 0.0, *d.TempMax)
		assert.Equal(t, -2.0, *d.TempMin)
		assert.Equal(t, 6, d.WindKts)
		assert.Equal(t, 270.0, d.DirectionDeg)
		assert.Equal(t, 0, d.GustKts)
		require.NotNil(t, d.SkyState)
		assert.Nil(t, d.SkyState.Code)
		assert.Nil(t, d.SkyState.Description)
		assert.Equal(t, 41, d.PrecipProb)
	})

	t.Run("missing arrays use defaults", func(t *testing.T) {
		d := days[2]
		assert.Equal(t, "2025-11-22", d.Date)
		assert.Nil(t, d.TempMax)
		assert.Nil(t, d.TempMin)
		assert.Equal(t, 5, d.WindKts)
		assert.Equal(t, 0.0, d.DirectionDeg)
		assert.Equal(t, 0, d.GustKts)
		assert.Nil(t, d.SkyState)
		assert.Equal(t, 0, d.PrecipProb)
	})
}

func TestNormalizeDaily_PrecipitationIgnores1224Preference(t *testing.T) {
	raw := []byte(`[{"prediccion":{"dia":[{"fecha":"2025-11-20T00:00:00",
		"probPrecipitacion":[{"periodo":"00-12","value":10},{"periodo":"12-24","value":90}]}]}}]`)

	days := aemet.NormalizeDaily(raw)
	require.Len(t, days, 1)
	assert.Equal(t, 10, days[0].PrecipProb)
}

func TestNormalizeDaily_KeepsUpstreamOrderAndSkipsUndated(t *testing.T) {
	raw := []byte(`[{"prediccion":{"dia":[
		{"fecha":"2025-11-22T00:00:00"},
		{"fecha":"2025-11-20T00:00:00"},
		{"fecha":""},
		{"fecha":"mañana"},
		{}
	]}}]`)

	days := aemet.NormalizeDaily(raw)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-11-22", days[0].Date)
	assert.Equal(t, "2025-11-20", days[1].Date)
}

func TestNormalizeDaily_MalformedPayloads(t *testing.T) {
	for _, payload := range []string{``, `{}`, `[]`, `[{}]`, `[{"prediccion":{"dia":null}}]`, `"text"`} {
		days := aemet.NormalizeDaily([]byte(payload))
		assert.NotNil(t, days, "payload %q", payload)
		assert.Empty(t, days, "payload %q", payload)
	}
}
