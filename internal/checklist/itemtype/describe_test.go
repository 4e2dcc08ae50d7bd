package itemtype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

func TestDescribe(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	coord := entity.Coordinate{Lat: -33.45, Lng: -70.66}
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"text", TextValue{Text: "  ok "}, "ok"},
		{"unanswered boolean", BooleanValue{}, ""},
		{"boolean false", BooleanValue{V: Bool(false)}, "No"},
		{"multi", MultiValue{Options: []string{"A", "B"}}, "A, B"},
		{"photos", PhotoValue{Photos: make([]entity.PhotoEvidence, 2)}, "2 foto(s)"},
		{"signed without gps", SignatureValue{Tecnico: "t", Cliente: "c", Ubicacion: &entity.SentinelCoordinate}, "Firmado (sin GPS)"},
		{"signed", SignatureValue{Tecnico: "t", Cliente: "c", Ubicacion: &coord}, "Firmado (-33.450000, -70.660000)"},
		{"half signed", SignatureValue{Tecnico: "t"}, "Firma incompleta"},
		{"datetime", DateTimeValue{At: &at}, "2026-03-01T10:00:00Z"},
		{"fuel", FuelValue{Level: "F"}, "Lleno"},
		{"unknown", UnknownValue{Tag: "X"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.v))
		})
	}
}
