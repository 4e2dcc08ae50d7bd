package itemtype

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

// Condition 清单项状况
type Condition string

const (
	CondicionBueno    Condition = "BUENO"
	CondicionRegular  Condition = "REGULAR"
	CondicionMalo     Condition = "MALO"
	CondicionFaltante Condition = "FALTANTE"
)

var conditionCycle = []Condition{CondicionBueno, CondicionRegular, CondicionMalo, CondicionFaltante}

// Next 循环到下一个状况
func (c Condition) Next() Condition {
	for i, cc := range conditionCycle {
		if cc == c {
			return conditionCycle[(i+1)%len(conditionCycle)]
		}
	}
	return CondicionBueno
}

// InventoryItem 清单中的一项
type InventoryItem struct {
	Name      string    `json:"name"`
	Checked   bool      `json:"checked"`
	Condition Condition `json:"condition"`
	Notes     string    `json:"notes"`
}

type inventoryDoc struct {
	Items []InventoryItem `json:"items"`
}

// SeedInventory 由选项生成初始清单，全部未勾选
func SeedInventory(options []string) InventoryValue {
	items := make([]InventoryItem, 0, len(options))
	for _, name := range options {
		items = append(items, InventoryItem{Name: name, Condition: CondicionBueno})
	}
	return InventoryValue{Items: items}
}

// MergeInventory overlays saved per-name state onto the seeded list. Saved
// entries whose name is no longer an option are kept at the end.
func MergeInventory(options []string, saved []InventoryItem) InventoryValue {
	v := SeedInventory(options)
	index := make(map[string]int, len(v.Items))
	for i, it := range v.Items {
		index[it.Name] = i
	}
	for _, s := range saved {
		if s.Condition == "" {
			s.Condition = CondicionBueno
		}
		if i, ok := index[s.Name]; ok {
			v.Items[i] = s
			continue
		}
		index[s.Name] = len(v.Items)
		v.Items = append(v.Items, s)
	}
	return v
}

func (v InventoryValue) clone() InventoryValue {
	items := make([]InventoryItem, len(v.Items))
	copy(items, v.Items)
	return InventoryValue{Items: items}
}

func (v InventoryValue) update(name string, fn func(*InventoryItem)) (InventoryValue, bool) {
	out := v.clone()
	for i := range out.Items {
		if out.Items[i].Name == name {
			fn(&out.Items[i])
			return out, true
		}
	}
	return v, false
}

// Toggle 切换勾选
func (v InventoryValue) Toggle(name string) (InventoryValue, bool) {
	return v.update(name, func(it *InventoryItem) { it.Checked = !it.Checked })
}

// CycleCondition 循环状况 BUENO→REGULAR→MALO→FALTANTE→BUENO
func (v InventoryValue) CycleCondition(name string) (InventoryValue, bool) {
	return v.update(name, func(it *InventoryItem) { it.Condition = it.Condition.Next() })
}

// SetNotes 设置备注
func (v InventoryValue) SetNotes(name, notes string) (InventoryValue, bool) {
	return v.update(name, func(it *InventoryItem) { it.Notes = notes })
}

// Checked 已勾选数量
func (v InventoryValue) Checked() int {
	n := 0
	for _, it := range v.Items {
		if it.Checked {
			n++
		}
	}
	return n
}

// Summary renders "Presentes: A, B (REGULAR) | Faltantes: C". Only non-BUENO
// conditions are shown; empty sections are omitted.
func (v InventoryValue) Summary() string {
	var present, missing []string
	for _, it := range v.Items {
		if !it.Checked {
			missing = append(missing, it.Name)
			continue
		}
		label := it.Name
		if it.Condition != "" && it.Condition != CondicionBueno {
			label += " (" + string(it.Condition) + ")"
		}
		present = append(present, label)
	}
	var parts []string
	if len(present) > 0 {
		parts = append(parts, "Presentes: "+strings.Join(present, ", "))
	}
	if len(missing) > 0 {
		parts = append(parts, "Faltantes: "+strings.Join(missing, ", "))
	}
	return strings.Join(parts, " | ")
}

type inventoryBehavior struct{}

func (inventoryBehavior) Family() Family { return FamilyInventory }
func (inventoryBehavior) Slots() Slot    { return SlotSeleccion | SlotTexto }

func (inventoryBehavior) Default(tpl entity.ChecklistItemTemplate) Value {
	return SeedInventory(tpl.OpcionesSeleccion)
}

func (inventoryBehavior) Complete(_ entity.ChecklistItemTemplate, v Value) bool {
	iv, ok := v.(InventoryValue)
	return ok && iv.Checked() > 0
}

func (inventoryBehavior) Validate(_ entity.ChecklistItemTemplate, v Value) error {
	iv, ok := v.(InventoryValue)
	if !ok {
		return ErrSlotMismatch
	}
	for _, it := range iv.Items {
		switch it.Condition {
		case CondicionBueno, CondicionRegular, CondicionMalo, CondicionFaltante:
		default:
			return ErrInvalidOption
		}
	}
	return nil
}

func (b inventoryBehavior) Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	if err := b.Validate(tpl, v); err != nil {
		return entity.Payload{}, err
	}
	iv := v.(InventoryValue)
	raw, err := json.Marshal(inventoryDoc{Items: iv.Items})
	if err != nil {
		return entity.Payload{}, err
	}
	// 摘要与结构化数据在同一次写入中派生
	summary := iv.Summary()
	return entity.Payload{
		RespuestaSeleccion: datatypes.JSON(raw),
		RespuestaTexto:     &summary,
		Completado:         b.Complete(tpl, v),
	}, nil
}

func (inventoryBehavior) Decode(tpl entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	if resp == nil || entity.IsNullJSON(resp.RespuestaSeleccion) {
		return SeedInventory(tpl.OpcionesSeleccion)
	}
	var doc inventoryDoc
	if err := json.Unmarshal(resp.RespuestaSeleccion, &doc); err != nil {
		// 兼容旧数据：直接存的名称数组
		var names []string
		if json.Unmarshal(resp.RespuestaSeleccion, &names) != nil {
			return SeedInventory(tpl.OpcionesSeleccion)
		}
		for _, n := range names {
			doc.Items = append(doc.Items, InventoryItem{Name: n, Checked: true, Condition: CondicionBueno})
		}
	}
	return MergeInventory(tpl.OpcionesSeleccion, doc.Items)
}

func (inventoryBehavior) Parse(tpl entity.ChecklistItemTemplate, input string) (Value, error) {
	v := SeedInventory(tpl.OpcionesSeleccion)
	for _, name := range splitList(input) {
		next, ok := v.Toggle(name)
		if !ok {
			return nil, ErrInvalidOption
		}
		v = next
	}
	return v, nil
}
