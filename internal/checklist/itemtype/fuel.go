package itemtype

import (
	"encoding/json"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

// FuelLevel 油量档位
type FuelLevel struct {
	Key   string
	Label string
	Value float64
	Color string
	Icon  string
}

// FuelLevels 固定五档，顺序即显示顺序
var FuelLevels = []FuelLevel{
	{Key: "E", Label: "Vacío", Value: 0, Color: "#E53935", Icon: "gas-station-off"},
	{Key: "1/4", Label: "1/4 de tanque", Value: 25, Color: "#FB8C00", Icon: "gauge-low"},
	{Key: "1/2", Label: "Medio tanque", Value: 50, Color: "#FDD835", Icon: "gauge"},
	{Key: "3/4", Label: "3/4 de tanque", Value: 75, Color: "#7CB342", Icon: "gauge"},
	{Key: "F", Label: "Lleno", Value: 100, Color: "#43A047", Icon: "gauge-full"},
}

// FuelLevelByKey 按键取档位
func FuelLevelByKey(key string) (FuelLevel, bool) {
	k := strings.ToUpper(strings.TrimSpace(key))
	for _, l := range FuelLevels {
		if l.Key == k {
			return l, true
		}
	}
	return FuelLevel{}, false
}

// FuelLevelByValue 按数值取档位
func FuelLevelByValue(v float64) (FuelLevel, bool) {
	for _, l := range FuelLevels {
		if l.Value == v {
			return l, true
		}
	}
	return FuelLevel{}, false
}

type fuelBehavior struct{}

func (fuelBehavior) Family() Family { return FamilyFuel }
func (fuelBehavior) Slots() Slot    { return SlotSeleccion | SlotTexto | SlotNumero }

func (fuelBehavior) Default(entity.ChecklistItemTemplate) Value { return FuelValue{} }

func (fuelBehavior) Complete(_ entity.ChecklistItemTemplate, v Value) bool {
	fv, ok := v.(FuelValue)
	if !ok {
		return false
	}
	_, known := FuelLevelByKey(fv.Level)
	return known
}

func (fuelBehavior) Validate(_ entity.ChecklistItemTemplate, v Value) error {
	fv, ok := v.(FuelValue)
	if !ok {
		return ErrSlotMismatch
	}
	if fv.Level == "" {
		return nil
	}
	if _, known := FuelLevelByKey(fv.Level); !known {
		return ErrInvalidFuelLevel
	}
	return nil
}

// Encode writes key, label and numeric value together or nothing at all.
func (b fuelBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	fv := v.(FuelValue)
	level, ok := FuelLevelByKey(fv.Level)
	if !ok {
		return entity.Payload{}, nil
	}
	raw, err := json.Marshal(level.Key)
	if err != nil {
		return entity.Payload{}, err
	}
	label := level.Label
	value := level.Value
	return entity.Payload{
		RespuestaSeleccion: datatypes.JSON(raw),
		RespuestaTexto:     &label,
		RespuestaNumero:    &value,
		Completado:         true,
	}, nil
}

func (fuelBehavior) Decode(_ entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil {
		return FuelValue{}
	}
	if s, ok := decodeString(resp.RespuestaSeleccion); ok {
		if l, known := FuelLevelByKey(s); known {
			return FuelValue{Level: l.Key}
		}
		return FuelValue{Level: s}
	}
	if resp.RespuestaNumero != nil {
		if l, ok := FuelLevelByValue(*resp.RespuestaNumero); ok {
			return FuelValue{Level: l.Key}
		}
	}
	return FuelValue{}
}

func (fuelBehavior) Parse(_ entity.ChecklistItemTemplate, input string) (Value, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		return FuelValue{}, nil
	}
	if l, ok := FuelLevelByKey(in); ok {
		return FuelValue{Level: l.Key}, nil
	}
	if f, err := strconv.ParseFloat(in, 64); err == nil {
		if l, ok := FuelLevelByValue(f); ok {
			return FuelValue{Level: l.Key}, nil
		}
	}
	return nil, ErrInvalidFuelLevel
}
