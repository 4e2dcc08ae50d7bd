package itemtype

import (
	"fmt"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

// Decode 将已保存的回答转为编辑值，缺失回答得到题型默认值
func Decode(tpl entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) Value {
	return Lookup(tpl.TipoPregunta).Decode(tpl, resp)
}

// Encode 将编辑值转为保存载荷，completado 由题型判定重新计算
func Encode(tpl entity.ChecklistItemTemplate, v Value) (entity.Payload, error) {
	b := Lookup(tpl.TipoPregunta)
	if v == nil {
		v = b.Default(tpl)
	}
	if v.Family() != b.Family() {
		return entity.Payload{}, fmt.Errorf("%w: %s value for %s item", ErrSlotMismatch, v.Family(), b.Family())
	}
	return b.Encode(tpl, v)
}

// Validate 一级校验
func Validate(tpl entity.ChecklistItemTemplate, v Value) error {
	b := Lookup(tpl.TipoPregunta)
	if v == nil || v.Family() != b.Family() {
		return ErrSlotMismatch
	}
	return b.Validate(tpl, v)
}

// Complete 完成判定
func Complete(tpl entity.ChecklistItemTemplate, v Value) bool {
	b := Lookup(tpl.TipoPregunta)
	if v == nil || v.Family() != b.Family() {
		return false
	}
	return b.Complete(tpl, v)
}

// DecodeAll decodes every template independently.
func DecodeAll(templates []entity.ChecklistItemTemplate, responses map[string]*entity.ChecklistItemResponse) map[string]Value {
	out := make(map[string]Value, len(templates))
	for _, tpl := range templates {
		out[tpl.ID] = Decode(tpl, responses[tpl.ID])
	}
	return out
}

// PopulatedSlots 载荷中已填写的槽位
func PopulatedSlots(p entity.Payload) Slot {
	var s Slot
	if p.RespuestaTexto != nil {
		s |= SlotTexto
	}
	if p.RespuestaNumero != nil {
		s |= SlotNumero
	}
	if p.RespuestaBooleana != nil {
		s |= SlotBooleana
	}
	if !entity.IsNullJSON(p.RespuestaSeleccion) {
		s |= SlotSeleccion
	}
	if p.RespuestaFecha != nil {
		s |= SlotFecha
	}
	if p.RespuestaUbicacion != nil {
		s |= SlotUbicacion
	}
	return s
}

// CheckSlots rejects a payload that fills a slot the item type does not own.
func CheckSlots(tpl entity.ChecklistItemTemplate, p entity.Payload) error {
	b := Lookup(tpl.TipoPregunta)
	if b.Family() == FamilyUnknown {
		return ErrUnknownType
	}
	extra := PopulatedSlots(p) &^ b.Slots()
	if extra != 0 {
		return fmt.Errorf("%w: %s not allowed for %s", ErrSlotMismatch, extra, tpl.TipoPregunta)
	}
	return nil
}

// PayloadValue decodes an incoming payload as if it had been persisted.
func PayloadValue(tpl entity.ChecklistItemTemplate, p entity.Payload) Value {
	resp := &entity.ChecklistItemResponse{}
	resp.Apply(p)
	return Decode(tpl, resp)
}

// Completion re-derives completado for an incoming payload. Photo items keep
// the client's flag since the photo count lives on the device.
func Completion(tpl entity.ChecklistItemTemplate, p entity.Payload) bool {
	b := Lookup(tpl.TipoPregunta)
	if b.Family() == FamilyPhoto {
		return p.Completado
	}
	return b.Complete(tpl, PayloadValue(tpl, p))
}

// ResponseComplete 判定已保存回答是否满足题型要求
func ResponseComplete(tpl entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) bool {
	if resp == nil {
		return false
	}
	if FamilyOf(tpl.TipoPregunta) == FamilyPhoto {
		return resp.Completado
	}
	return Complete(tpl, Decode(tpl, resp))
}
