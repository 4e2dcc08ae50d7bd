package handler

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
)

const coordinateSchema = `{
	"type": "object",
	"required": ["lat", "lng"],
	"properties": {
		"lat": {"type": "number", "minimum": -90, "maximum": 90},
		"lng": {"type": "number", "minimum": -180, "maximum": 180}
	}
}`

// responseSchema is the wire shape of one item answer. Per-type rules are
// checked later against the template.
var responseSchema = mustSchema(`{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"respuesta_texto":     {"type": ["string", "null"]},
		"respuesta_numero":    {"type": ["number", "null"]},
		"respuesta_booleana":  {"type": ["boolean", "null"]},
		"respuesta_seleccion": {},
		"respuesta_fecha":     {"anyOf": [{"type": "null"}, {"type": "string", "format": "date-time"}]},
		"respuesta_ubicacion": {"anyOf": [{"type": "null"}, ` + coordinateSchema + `]},
		"completado":          {"type": "boolean"}
	}
}`)

var finalizeSchema = mustSchema(`{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"firma": {"anyOf": [{"type": "null"}, {
			"type": "object",
			"required": ["firma_tecnico", "firma_cliente"],
			"properties": {
				"firma_tecnico":     {"type": "string"},
				"firma_cliente":     {"type": "string"},
				"ubicacion_captura": ` + coordinateSchema + `,
				"fecha_captura":     {"type": "string", "format": "date-time"}
			}
		}]}
	}
}`)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// validateBody checks a raw JSON body against a schema. Failures wrap
// itemtype.ErrValidation so they map to the validation code.
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", itemtype.ErrValidation, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", itemtype.ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}
