package editor

import (
	"strings"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
)

// Strategy 输入方式
type Strategy int

const (
	StrategyPlaceholder Strategy = iota
	StrategyTextInput
	StrategyMultilineInput
	StrategyNumericInput
	StrategyToggle
	StrategySingleChoice
	StrategyMultiChoice
	StrategyInventoryList
	StrategyFuelGauge
	StrategyPhotoCapture
	StrategySignaturePad
	StrategyDateTimePicker
	StrategyLocationPicker
)

var strategyNames = map[Strategy]string{
	StrategyPlaceholder:    "placeholder",
	StrategyTextInput:      "text_input",
	StrategyMultilineInput: "multiline_input",
	StrategyNumericInput:   "numeric_input",
	StrategyToggle:         "toggle",
	StrategySingleChoice:   "single_choice",
	StrategyMultiChoice:    "multi_choice",
	StrategyInventoryList:  "inventory_list",
	StrategyFuelGauge:      "fuel_gauge",
	StrategyPhotoCapture:   "photo_capture",
	StrategySignaturePad:   "signature_pad",
	StrategyDateTimePicker: "datetime_picker",
	StrategyLocationPicker: "location_picker",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return "placeholder"
}

// SelfSaving reports whether each discrete action persists immediately
// instead of waiting for an explicit save.
func (s Strategy) SelfSaving() bool {
	switch s {
	case StrategyInventoryList, StrategyFuelGauge, StrategyPhotoCapture, StrategySignaturePad:
		return true
	}
	return false
}

// SelectStrategy 根据模板选择输入方式
func SelectStrategy(tpl entity.ChecklistItemTemplate) Strategy {
	switch itemtype.FamilyOf(tpl.TipoPregunta) {
	case itemtype.FamilyText:
		if strings.EqualFold(strings.TrimSpace(tpl.TipoPregunta), itemtype.TagText) {
			return StrategyTextInput
		}
		return StrategyMultilineInput
	case itemtype.FamilyNumber:
		return StrategyNumericInput
	case itemtype.FamilyBoolean:
		return StrategyToggle
	case itemtype.FamilySelect:
		return StrategySingleChoice
	case itemtype.FamilyMulti:
		return StrategyMultiChoice
	case itemtype.FamilyInventory:
		return StrategyInventoryList
	case itemtype.FamilyFuel:
		return StrategyFuelGauge
	case itemtype.FamilyPhoto:
		return StrategyPhotoCapture
	case itemtype.FamilySignature:
		return StrategySignaturePad
	case itemtype.FamilyDateTime:
		return StrategyDateTimePicker
	case itemtype.FamilyLocation:
		return StrategyLocationPicker
	}
	return StrategyPlaceholder
}
