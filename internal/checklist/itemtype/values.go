package itemtype

import (
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

// Value is the editable, in-memory form of one answer. Every family has
// exactly one concrete Value type.
type Value interface {
	Family() Family
}

// TextValue 文本
type TextValue struct {
	Text string
}

// NumberValue keeps the raw input so partially typed numbers survive edits.
type NumberValue struct {
	Raw string
}

// BooleanValue nil 表示未作答
type BooleanValue struct {
	V *bool
}

// SelectValue 单选
type SelectValue struct {
	Option string
}

// MultiValue 多选
type MultiValue struct {
	Options []string
}

// InventoryValue 清单
type InventoryValue struct {
	Items []InventoryItem
}

// PhotoValue 照片列表，仅在设备端维护
type PhotoValue struct {
	Photos []entity.PhotoEvidence
}

// SignatureValue 双签名
type SignatureValue struct {
	Tecnico   string
	Cliente   string
	Ubicacion *entity.Coordinate
	Fecha     *time.Time
}

// DateTimeValue 日期时间
type DateTimeValue struct {
	At *time.Time
}

// LocationValue 位置
type LocationValue struct {
	Coord *entity.Coordinate
}

// FuelValue 油量档位键
type FuelValue struct {
	Level string
}

// UnknownValue 未知题型占位
type UnknownValue struct {
	Tag string
}

func (TextValue) Family() Family      { return FamilyText }
func (NumberValue) Family() Family    { return FamilyNumber }
func (BooleanValue) Family() Family   { return FamilyBoolean }
func (SelectValue) Family() Family    { return FamilySelect }
func (MultiValue) Family() Family     { return FamilyMulti }
func (InventoryValue) Family() Family { return FamilyInventory }
func (PhotoValue) Family() Family     { return FamilyPhoto }
func (SignatureValue) Family() Family { return FamilySignature }
func (DateTimeValue) Family() Family  { return FamilyDateTime }
func (LocationValue) Family() Family  { return FamilyLocation }
func (FuelValue) Family() Family      { return FamilyFuel }
func (UnknownValue) Family() Family   { return FamilyUnknown }

// Bool 便捷构造
func Bool(b bool) *bool { return &b }
