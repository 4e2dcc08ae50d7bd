// Package itemtype maps question-type tags to a closed set of families and
// holds the one behavior table (default, predicate, validation, codec) that
// the editor, the codec and the completion check all share.
package itemtype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

// Family 题型族
type Family int

const (
	FamilyUnknown Family = iota
	FamilyText
	FamilyNumber
	FamilyBoolean
	FamilySelect
	FamilyMulti
	FamilyInventory
	FamilyPhoto
	FamilySignature
	FamilyDateTime
	FamilyLocation
	FamilyFuel

	familyCount
)

var familyNames = [familyCount]string{
	FamilyUnknown:   "UNKNOWN",
	FamilyText:      "TEXT",
	FamilyNumber:    "NUMBER",
	FamilyBoolean:   "BOOLEAN",
	FamilySelect:    "SELECT",
	FamilyMulti:     "MULTI",
	FamilyInventory: "INVENTORY",
	FamilyPhoto:     "PHOTO",
	FamilySignature: "SIGNATURE",
	FamilyDateTime:  "DATETIME",
	FamilyLocation:  "LOCATION",
	FamilyFuel:      "FUEL",
}

func (f Family) String() string {
	if f < 0 || f >= familyCount {
		return fmt.Sprintf("Family(%d)", int(f))
	}
	return familyNames[f]
}

// 题型标签
const (
	TagText               = "TEXT"
	TagFinalNotes         = "FINAL_NOTES"
	TagWorkSummary        = "WORK_SUMMARY"
	TagDamageReport       = "DAMAGE_REPORT"
	TagNumber             = "NUMBER"
	TagKilometerInput     = "KILOMETER_INPUT"
	TagRating             = "RATING"
	TagBoolean            = "BOOLEAN"
	TagClientConfirmation = "CLIENT_CONFIRMATION"
	TagSelect             = "SELECT"
	TagMultiselect        = "MULTISELECT"
	TagServiceSelection   = "SERVICE_SELECTION"
	TagVehicleCondition   = "VEHICLE_CONDITION"
	TagFluidLevel         = "FLUID_LEVEL"
	TagInventoryChecklist = "INVENTORY_CHECKLIST"
	TagPhoto              = "PHOTO"
	TagSignature          = "SIGNATURE"
	TagDateTime           = "DATETIME"
	TagLocation           = "LOCATION"
	TagFuelGauge          = "FUEL_GAUGE"
)

var tagFamilies = map[string]Family{
	TagText:               FamilyText,
	TagFinalNotes:         FamilyText,
	TagWorkSummary:        FamilyText,
	TagDamageReport:       FamilyText,
	TagNumber:             FamilyNumber,
	TagKilometerInput:     FamilyNumber,
	TagRating:             FamilyNumber,
	TagBoolean:            FamilyBoolean,
	TagClientConfirmation: FamilyBoolean,
	TagSelect:             FamilySelect,
	TagMultiselect:        FamilyMulti,
	TagServiceSelection:   FamilyMulti,
	TagVehicleCondition:   FamilyMulti,
	TagFluidLevel:         FamilyMulti,
	TagInventoryChecklist: FamilyInventory,
	TagPhoto:              FamilyPhoto,
	TagSignature:          FamilySignature,
	TagDateTime:           FamilyDateTime,
	TagLocation:           FamilyLocation,
	TagFuelGauge:          FamilyFuel,
}

// FamilyOf 根据标签解析题型族，未知标签返回 FamilyUnknown
func FamilyOf(tag string) Family {
	t := strings.ToUpper(strings.TrimSpace(tag))
	if f, ok := tagFamilies[t]; ok {
		return f
	}
	if strings.HasSuffix(t, "_CHECK") || strings.HasSuffix(t, "_INSPECTION") {
		return FamilyMulti
	}
	return FamilyUnknown
}

// Slot 回答槽位
type Slot uint8

const (
	SlotTexto Slot = 1 << iota
	SlotNumero
	SlotBooleana
	SlotSeleccion
	SlotFecha
	SlotUbicacion
)

var slotNames = []struct {
	slot Slot
	name string
}{
	{SlotTexto, "respuesta_texto"},
	{SlotNumero, "respuesta_numero"},
	{SlotBooleana, "respuesta_booleana"},
	{SlotSeleccion, "respuesta_seleccion"},
	{SlotFecha, "respuesta_fecha"},
	{SlotUbicacion, "respuesta_ubicacion"},
}

// Has 是否包含槽位
func (s Slot) Has(o Slot) bool { return s&o == o }

func (s Slot) String() string {
	var parts []string
	for _, n := range slotNames {
		if s.Has(n.slot) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Validation errors. All of them wrap ErrValidation so callers can reject a
// save before touching the network with a single errors.Is check.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotNumeric          = fmt.Errorf("%w: value is not numeric", ErrValidation)
	ErrOutOfRange          = fmt.Errorf("%w: value out of range", ErrValidation)
	ErrNotBoolean          = fmt.Errorf("%w: value is not a boolean", ErrValidation)
	ErrInvalidOption       = fmt.Errorf("%w: option not allowed", ErrValidation)
	ErrIncompleteSignature = fmt.Errorf("%w: both signatures are required", ErrValidation)
	ErrInvalidFuelLevel    = fmt.Errorf("%w: invalid fuel level", ErrValidation)
	ErrInvalidDate         = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidLocation     = fmt.Errorf("%w: invalid location", ErrValidation)
	ErrNotTextual          = fmt.Errorf("%w: item is captured, not typed", ErrValidation)
	ErrSlotMismatch        = fmt.Errorf("%w: payload slot does not match item type", ErrValidation)
	ErrUnknownType         = fmt.Errorf("%w: unknown item type", ErrValidation)
)

// Behavior 单个题型族的全部规则
type Behavior interface {
	Family() Family
	// Default 未作答时的编辑值
	Default(tpl entity.ChecklistItemTemplate) Value
	// Complete 完成判定
	Complete(tpl entity.ChecklistItemTemplate, v Value) bool
	// Validate 一级校验（保存前，不访问网络）
	Validate(tpl entity.ChecklistItemTemplate, v Value) error
	Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error)
	Decode(tpl entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value
	// Slots 允许写入的槽位
	Slots() Slot
	// Parse 文本输入转编辑值
	Parse(tpl entity.ChecklistItemTemplate, input string) (Value, error)
}

var behaviors = [familyCount]Behavior{
	FamilyUnknown:   unknownBehavior{},
	FamilyText:      textBehavior{},
	FamilyNumber:    numberBehavior{},
	FamilyBoolean:   booleanBehavior{},
	FamilySelect:    selectBehavior{},
	FamilyMulti:     multiBehavior{},
	FamilyInventory: inventoryBehavior{},
	FamilyPhoto:     photoBehavior{},
	FamilySignature: signatureBehavior{},
	FamilyDateTime:  dateTimeBehavior{},
	FamilyLocation:  locationBehavior{},
	FamilyFuel:      fuelBehavior{},
}

// Lookup 按标签取题型规则，未知标签得到惰性占位规则
func Lookup(tag string) Behavior {
	return ForFamily(FamilyOf(tag))
}

// ForFamily 按题型族取规则
func ForFamily(f Family) Behavior {
	if f < 0 || f >= familyCount || behaviors[f] == nil {
		return unknownBehavior{}
	}
	return behaviors[f]
}

