package itemtype

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

// ---------- text ----------

type textBehavior struct{}

func (textBehavior) Family() Family                             { return FamilyText }
func (textBehavior) Slots() Slot                                { return SlotTexto }
func (textBehavior) Default(entity.ChecklistItemTemplate) Value { return TextValue{} }

func (textBehavior) Complete(_ entity.ChecklistItemTemplate, v Value) bool {
	tv, ok := v.(TextValue)
	return ok && strings.TrimSpace(tv.Text) != ""
}

func (textBehavior) Validate(_ entity.ChecklistItemTemplate, v Value) error {
	if _, ok := v.(TextValue); !ok {
		return ErrSlotMismatch
	}
	return nil
}

func (b textBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	tv := v.(TextValue)
	p := entity.Payload{Completado: b.Complete(tpl, v)}
	if tv.Text != "" {
		text := tv.Text
		p.RespuestaTexto = &text
	}
	return p, nil
}

func (textBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil || resp.RespuestaTexto == nil {
		return TextValue{}
	}
	return TextValue{Text: *resp.RespuestaTexto}
}

func (textBehavior) Parse(_ entity.ChecklistItemTemplate, input string) (Value, error) {
	return TextValue{Text: input}, nil
}

// ---------- number ----------

type numberBehavior struct{}

func (numberBehavior) Family() Family                             { return FamilyNumber }
func (numberBehavior) Slots() Slot                                { return SlotNumero }
func (numberBehavior) Default(entity.ChecklistItemTemplate) Value { return NumberValue{} }

func parseNumber(raw string) (float64, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, ErrNotNumeric
	}
	return f, true, nil
}

func inRange(tpl entity.ChecklistItemTemplate, f float64) bool {
	if tpl.ValorMinimo != nil && f < *tpl.ValorMinimo {
		return false
	}
	if tpl.ValorMaximo != nil && f > *tpl.ValorMaximo {
		return false
	}
	return true
}

func (numberBehavior) Complete(tpl entity.ChecklistItemTemplate, v Value) bool {
	nv, ok := v.(NumberValue)
	if !ok {
		return false
	}
	f, present, err := parseNumber(nv.Raw)
	return err == nil && present && inRange(tpl, f)
}

// Validate accepts an empty value, which clears the answer.
func (numberBehavior) Validate(tpl entity.ChecklistItemTemplate, v Value) error {
	nv, ok := v.(NumberValue)
	if !ok {
		return ErrSlotMismatch
	}
	f, present, err := parseNumber(nv.Raw)
	if err != nil {
		return err
	}
	if present && !inRange(tpl, f) {
		return ErrOutOfRange
	}
	return nil
}

func (b numberBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	f, present, _ := parseNumber(v.(NumberValue).Raw)
	p := entity.Payload{Completado: b.Complete(tpl, v)}
	if present {
		p.RespuestaNumero = &f
	}
	return p, nil
}

func (numberBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil || resp.RespuestaNumero == nil {
		return NumberValue{}
	}
	return NumberValue{Raw: formatNumber(*resp.RespuestaNumero)}
}

// Parse keeps unparsable input as typed so Validate can report it. A valid
// number is stored in the same form Decode produces.
func (numberBehavior) Parse(_ entity.ChecklistItemTemplate, input string) (Value, error) {
	raw := strings.TrimSpace(input)
	if f, present, err := parseNumber(raw); err == nil && present {
		raw = formatNumber(f)
	}
	return NumberValue{Raw: raw}, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ---------- boolean ----------

type booleanBehavior struct{}

func (booleanBehavior) Family() Family                             { return FamilyBoolean }
func (booleanBehavior) Slots() Slot                                { return SlotBooleana }
func (booleanBehavior) Default(entity.ChecklistItemTemplate) Value { return BooleanValue{} }

func (booleanBehavior) Complete(_ entity.ChecklistItemTemplate, v Value) bool {
	bv, ok := v.(BooleanValue)
	return ok && bv.V != nil
}

func (booleanBehavior) Validate(_ entity.ChecklistItemTemplate, v Value) error {
	if _, ok := v.(BooleanValue); !ok {
		return ErrSlotMismatch
	}
	return nil
}

func (b booleanBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	bv := v.(BooleanValue)
	p := entity.Payload{Completado: b.Complete(tpl, v)}
	if bv.V != nil {
		p.RespuestaBooleana = Bool(*bv.V)
	}
	return p, nil
}

func (booleanBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil || resp.RespuestaBooleana == nil {
		return BooleanValue{}
	}
	return BooleanValue{V: Bool(*resp.RespuestaBooleana)}
}

func (booleanBehavior) Parse(_ entity.ChecklistItemTemplate, input string) (Value, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return BooleanValue{}, nil
	case "true", "si", "sí", "yes", "1":
		return BooleanValue{V: Bool(true)}, nil
	case "false", "no", "0":
		return BooleanValue{V: Bool(false)}, nil
	}
	return nil, ErrNotBoolean
}

// ---------- select ----------

type selectBehavior struct{}

func (selectBehavior) Family() Family                             { return FamilySelect }
func (selectBehavior) Slots() Slot                                { return SlotSeleccion }
func (selectBehavior) Default(entity.ChecklistItemTemplate) Value { return SelectValue{} }

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

func (selectBehavior) Complete(tpl entity.ChecklistItemTemplate, v Value) bool {
	sv, ok := v.(SelectValue)
	return ok && sv.Option != "" && contains(tpl.OpcionesSeleccion, sv.Option)
}

func (selectBehavior) Validate(tpl entity.ChecklistItemTemplate, v Value) error {
	sv, ok := v.(SelectValue)
	if !ok {
		return ErrSlotMismatch
	}
	if sv.Option != "" && !contains(tpl.OpcionesSeleccion, sv.Option) {
		return ErrInvalidOption
	}
	return nil
}

func (b selectBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	sv := v.(SelectValue)
	p := entity.Payload{Completado: b.Complete(tpl, v)}
	if sv.Option != "" {
		raw, err := json.Marshal(sv.Option)
		if err != nil {
			return entity.Payload{}, err
		}
		p.RespuestaSeleccion = datatypes.JSON(raw)
	}
	return p, nil
}

func (selectBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil {
		return SelectValue{}
	}
	if s, ok := decodeString(resp.RespuestaSeleccion); ok {
		return SelectValue{Option: s}
	}
	if list, ok := decodeList(resp.RespuestaSeleccion); ok && len(list) > 0 {
		return SelectValue{Option: list[0]}
	}
	return SelectValue{}
}

func (selectBehavior) Parse(_ entity.ChecklistItemTemplate, input string) (Value, error) {
	return SelectValue{Option: strings.TrimSpace(input)}, nil
}

// ---------- multi ----------

type multiBehavior struct{}

func (multiBehavior) Family() Family { return FamilyMulti }
func (multiBehavior) Slots() Slot    { return SlotSeleccion }

func (multiBehavior) Default(entity.ChecklistItemTemplate) Value {
	return MultiValue{Options: []string{}}
}

func (multiBehavior) Complete(_ entity.ChecklistItemTemplate, v Value) bool {
	mv, ok := v.(MultiValue)
	return ok && len(mv.Options) > 0
}

func (multiBehavior) Validate(tpl entity.ChecklistItemTemplate, v Value) error {
	mv, ok := v.(MultiValue)
	if !ok {
		return ErrSlotMismatch
	}
	if len(tpl.OpcionesSeleccion) == 0 {
		return nil
	}
	for _, o := range mv.Options {
		if !contains(tpl.OpcionesSeleccion, o) {
			return ErrInvalidOption
		}
	}
	return nil
}

func (b multiBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	opts := v.(MultiValue).Options
	if opts == nil {
		opts = []string{}
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return entity.Payload{}, err
	}
	return entity.Payload{
		RespuestaSeleccion: datatypes.JSON(raw),
		Completado:         b.Complete(tpl, v),
	}, nil
}

func (multiBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil {
		return MultiValue{Options: []string{}}
	}
	if list, ok := decodeList(resp.RespuestaSeleccion); ok {
		return MultiValue{Options: list}
	}
	if s, ok := decodeString(resp.RespuestaSeleccion); ok && s != "" {
		return MultiValue{Options: []string{s}}
	}
	return MultiValue{Options: []string{}}
}

func (multiBehavior) Parse(_ entity.ChecklistItemTemplate, input string) (Value, error) {
	return MultiValue{Options: splitList(input)}, nil
}

// ---------- photo ----------

type photoBehavior struct{}

func (photoBehavior) Family() Family { return FamilyPhoto }

// Slots is empty: photos travel through the upload endpoint, not the payload.
func (photoBehavior) Slots() Slot { return 0 }

func (photoBehavior) Default(entity.ChecklistItemTemplate) Value {
	return PhotoValue{Photos: []entity.PhotoEvidence{}}
}

// MinFotos 最少照片数，默认 1
func MinFotos(tpl entity.ChecklistItemTemplate) int {
	if tpl.MinFotos == nil || *tpl.MinFotos < 1 {
		return 1
	}
	return *tpl.MinFotos
}

func (photoBehavior) Complete(tpl entity.ChecklistItemTemplate, v Value) bool {
	pv, ok := v.(PhotoValue)
	return ok && len(pv.Photos) >= MinFotos(tpl)
}

func (photoBehavior) Validate(_ entity.ChecklistItemTemplate, v Value) error {
	if _, ok := v.(PhotoValue); !ok {
		return ErrSlotMismatch
	}
	return nil
}

func (b photoBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	return entity.Payload{Completado: b.Complete(tpl, v)}, nil
}

func (photoBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil || len(resp.Fotos) == 0 {
		return PhotoValue{Photos: []entity.PhotoEvidence{}}
	}
	photos := make([]entity.PhotoEvidence, len(resp.Fotos))
	copy(photos, resp.Fotos)
	return PhotoValue{Photos: photos}
}

func (photoBehavior) Parse(entity.ChecklistItemTemplate, string) (Value, error) {
	return nil, ErrNotTextual
}

// ---------- signature ----------

type signatureBehavior struct{}

type signatureDoc struct {
	FirmaTecnico string `json:"firma_tecnico"`
	FirmaCliente string `json:"firma_cliente"`
}

func (signatureBehavior) Family() Family                             { return FamilySignature }
func (signatureBehavior) Slots() Slot                                { return SlotSeleccion | SlotUbicacion | SlotFecha }
func (signatureBehavior) Default(entity.ChecklistItemTemplate) Value { return SignatureValue{} }

func (signatureBehavior) Complete(_ entity.ChecklistItemTemplate, v Value) bool {
	sv, ok := v.(SignatureValue)
	return ok && sv.Tecnico != "" && sv.Cliente != ""
}

// Validate rejects a half-signed bundle. An untouched value is valid.
func (signatureBehavior) Validate(_ entity.ChecklistItemTemplate, v Value) error {
	sv, ok := v.(SignatureValue)
	if !ok {
		return ErrSlotMismatch
	}
	if (sv.Tecnico == "") != (sv.Cliente == "") {
		return ErrIncompleteSignature
	}
	return nil
}

func (b signatureBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	sv := v.(SignatureValue)
	if sv.Tecnico == "" {
		return entity.Payload{}, nil
	}
	raw, err := json.Marshal(signatureDoc{FirmaTecnico: sv.Tecnico, FirmaCliente: sv.Cliente})
	if err != nil {
		return entity.Payload{}, err
	}
	p := entity.Payload{
		RespuestaSeleccion: datatypes.JSON(raw),
		Completado:         true,
	}
	if sv.Ubicacion != nil {
		c := *sv.Ubicacion
		p.RespuestaUbicacion = &c
	}
	if sv.Fecha != nil {
		t := *sv.Fecha
		p.RespuestaFecha = &t
	}
	return p, nil
}

func (signatureBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil || entity.IsNullJSON(resp.RespuestaSeleccion) {
		return SignatureValue{}
	}
	var doc signatureDoc
	if err := json.Unmarshal(resp.RespuestaSeleccion, &doc); err != nil {
		return SignatureValue{}
	}
	sv := SignatureValue{Tecnico: doc.FirmaTecnico, Cliente: doc.FirmaCliente}
	if resp.RespuestaUbicacion != nil {
		c := *resp.RespuestaUbicacion
		sv.Ubicacion = &c
	}
	if resp.RespuestaFecha != nil {
		t := *resp.RespuestaFecha
		sv.Fecha = &t
	}
	return sv
}

func (signatureBehavior) Parse(entity.ChecklistItemTemplate, string) (Value, error) {
	return nil, ErrNotTextual
}

// ---------- datetime ----------

type dateTimeBehavior struct{}

func (dateTimeBehavior) Family() Family                             { return FamilyDateTime }
func (dateTimeBehavior) Slots() Slot                                { return SlotFecha }
func (dateTimeBehavior) Default(entity.ChecklistItemTemplate) Value { return DateTimeValue{} }

func (dateTimeBehavior) Complete(_ entity.ChecklistItemTemplate, v Value) bool {
	dv, ok := v.(DateTimeValue)
	return ok && dv.At != nil
}

func (dateTimeBehavior) Validate(_ entity.ChecklistItemTemplate, v Value) error {
	if _, ok := v.(DateTimeValue); !ok {
		return ErrSlotMismatch
	}
	return nil
}

func (b dateTimeBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	dv := v.(DateTimeValue)
	p := entity.Payload{Completado: b.Complete(tpl, v)}
	if dv.At != nil {
		t := *dv.At
		p.RespuestaFecha = &t
	}
	return p, nil
}

func (dateTimeBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil || resp.RespuestaFecha == nil {
		return DateTimeValue{}
	}
	t := *resp.RespuestaFecha
	return DateTimeValue{At: &t}
}

func (dateTimeBehavior) Parse(_ entity.ChecklistItemTemplate, input string) (Value, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		return DateTimeValue{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, in); err == nil {
			return DateTimeValue{At: &t}, nil
		}
	}
	return nil, ErrInvalidDate
}

// ---------- location ----------

type locationBehavior struct{}

func (locationBehavior) Family() Family                             { return FamilyLocation }
func (locationBehavior) Slots() Slot                                { return SlotUbicacion }
func (locationBehavior) Default(entity.ChecklistItemTemplate) Value { return LocationValue{} }

func (locationBehavior) Complete(_ entity.ChecklistItemTemplate, v Value) bool {
	lv, ok := v.(LocationValue)
	return ok && lv.Coord != nil
}

func (locationBehavior) Validate(_ entity.ChecklistItemTemplate, v Value) error {
	lv, ok := v.(LocationValue)
	if !ok {
		return ErrSlotMismatch
	}
	if lv.Coord != nil && !(lv.Coord.Lat >= -90 && lv.Coord.Lat <= 90 && lv.Coord.Lng >= -180 && lv.Coord.Lng <= 180) {
		return ErrInvalidLocation
	}
	return nil
}

func (b locationBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	lv := v.(LocationValue)
	p := entity.Payload{Completado: b.Complete(tpl, v)}
	if lv.Coord != nil {
		c := *lv.Coord
		p.RespuestaUbicacion = &c
	}
	return p, nil
}

func (locationBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil || resp.RespuestaUbicacion == nil {
		return LocationValue{}
	}
	c := *resp.RespuestaUbicacion
	return LocationValue{Coord: &c}
}

func (b locationBehavior) Parse(tpl entity.ChecklistItemTemplate, input string) (Value, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		return LocationValue{}, nil
	}
	parts := strings.Split(in, ",")
	if len(parts) != 2 {
		return nil, ErrInvalidLocation
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil, ErrInvalidLocation
	}
	v := LocationValue{Coord: &entity.Coordinate{Lat: lat, Lng: lng}}
	if err := b.Validate(tpl, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ---------- unknown ----------

// unknownBehavior renders as an inert placeholder and never completes.
type unknownBehavior struct{}

func (unknownBehavior) Family() Family { return FamilyUnknown }
func (unknownBehavior) Slots() Slot    { return 0 }

func (unknownBehavior) Default(tpl entity.ChecklistItemTemplate) Value {
	return UnknownValue{Tag: tpl.TipoPregunta}
}

func (unknownBehavior) Complete(entity.ChecklistItemTemplate, Value) bool { return false }

func (unknownBehavior) Validate(entity.ChecklistItemTemplate, Value) error { return ErrUnknownType }

func (unknownBehavior) Encode(entity.ChecklistItemTemplate, Value) (entity.Payload, error) {
	return entity.Payload{}, ErrUnknownType
}

func (unknownBehavior) Decode(tpl entity.ChecklistItemTemplate, _ *entity.ChecklistItemResponse) Value {
	return UnknownValue{Tag: tpl.TipoPregunta}
}

func (unknownBehavior) Parse(entity.ChecklistItemTemplate, string) (Value, error) {
	return nil, ErrUnknownType
}

// ---------- helpers ----------

func decodeString(raw datatypes.JSON) (string, bool) {
	if entity.IsNullJSON(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeList(raw datatypes.JSON) ([]string, bool) {
	if entity.IsNullJSON(raw) {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	if list == nil {
		list = []string{}
	}
	return list, true
}

func splitList(input string) []string {
	out := []string{}
	for _, part := range strings.Split(input, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
