package aemet

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexValue holds an upstream field that may arrive as a string, a number,
// null, or a single-element array wrapping either.
type flexValue struct {
	raw json.RawMessage
}

func (v *flexValue) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}

// scalar unwraps a leading array and returns the remaining JSON scalar, or nil
// when the field is absent, null, or an empty array.
func (v flexValue) scalar() json.RawMessage {
	raw := bytes.TrimSpace(v.raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return nil
		}
		raw = bytes.TrimSpace(items[0])
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}

// Present reports whether the field carries a non-null value.
func (v flexValue) Present() bool {
	return v.scalar() != nil
}

// Float parses the value as a number. Strings are trimmed; anything
// unparseable reports false.
func (v flexValue) Float() (float64, bool) {
	raw := v.scalar()
	if raw == nil {
		return 0, false
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
	} else {
		s = string(raw)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String returns the value as text. Numbers are returned in their JSON form;
// objects, booleans and missing values yield "".
func (v flexValue) String() string {
	raw := v.scalar()
	if raw == nil {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', 't', 'f':
		return ""
	default:
		return string(raw)
	}
}

// lenientList decodes an array element by element, dropping elements that do
// not fit T. A non-array value decodes to an empty, absent list.
type lenientList[T any] struct {
	items   []T
	present bool
}

func (l *lenientList[T]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}
	l.present = true
	l.items = make([]T, 0, len(raw))
	for _, elem := range raw {
		var item T
		if err := json.Unmarshal(elem, &item); err != nil {
			continue
		}
		l.items = append(l.items, item)
	}
	return nil
}

// lenient decodes T when the JSON fits and leaves it absent otherwise.
type lenient[T any] struct {
	value   T
	present bool
}

func (l *lenient[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	l.value = v
	l.present = true
	return nil
}

// Shared upstream entry shapes.

type windEntry struct {
	Periodo   flexValue `json:"periodo"`
	Velocidad flexValue `json:"velocidad"`
	Racha     flexValue `json:"racha"`
	Direccion flexValue `json:"direccion"`
}

type valueEntry struct {
	Periodo flexValue `json:"periodo"`
	Value   flexValue `json:"value"`
}

type skyEntry struct {
	Periodo     flexValue `json:"periodo"`
	Value       flexValue `json:"value"`
	Descripcion flexValue `json:"descripcion"`
}

// municipio is element 0 of every data payload.
type municipio[D any] struct {
	Prediccion lenient[prediccion[D]] `json:"prediccion"`
}

type prediccion[D any] struct {
	Dia lenientList[D] `json:"dia"`
}

// decodeDays extracts prediccion.dia from a raw data payload. Any shape that
// does not match yields nil.
func decodeDays[D any](raw []byte) []D {
	var payload []json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload) == 0 {
		return nil
	}
	var m municipio[D]
	if err := json.Unmarshal(payload[0], &m); err != nil {
		return nil
	}
	if !m.Prediccion.present || !m.Prediccion.value.Dia.present {
		return nil
	}
	return m.Prediccion.value.Dia.items
}

// datePart returns the YYYY-MM-DD prefix of an upstream fecha.
func datePart(fecha string) string {
	date, _, _ := strings.Cut(strings.TrimSpace(fecha), "T")
	return date
}
