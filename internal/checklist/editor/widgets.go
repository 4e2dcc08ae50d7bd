package editor

import (
	"context"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
)

// Inventory 结构化清单组件，每次操作都自动保存
type Inventory struct {
	e *Editor
}

// Inventory 返回清单组件，题型不符时报错
func (e *Editor) Inventory() (*Inventory, error) {
	if e.strategy != StrategyInventoryList {
		return nil, ErrWrongWidget
	}
	return &Inventory{e: e}, nil
}

func (w *Inventory) current() itemtype.InventoryValue {
	if iv, ok := w.e.Value().(itemtype.InventoryValue); ok {
		return iv
	}
	return itemtype.SeedInventory(w.e.tpl.OpcionesSeleccion)
}

// Items 当前清单（副本）
func (w *Inventory) Items() []itemtype.InventoryItem {
	items := w.current().Items
	out := make([]itemtype.InventoryItem, len(items))
	copy(out, items)
	return out
}

// Summary 当前摘要
func (w *Inventory) Summary() string {
	return w.current().Summary()
}

// Toggle 勾选/取消
func (w *Inventory) Toggle(ctx context.Context, name string) error {
	return w.apply(ctx, name, itemtype.InventoryValue.Toggle)
}

// CycleCondition 切换状况
func (w *Inventory) CycleCondition(ctx context.Context, name string) error {
	return w.apply(ctx, name, itemtype.InventoryValue.CycleCondition)
}

// SetNotes 设置备注
func (w *Inventory) SetNotes(ctx context.Context, name, notes string) error {
	return w.apply(ctx, name, func(v itemtype.InventoryValue, n string) (itemtype.InventoryValue, bool) {
		return v.SetNotes(n, notes)
	})
}

// apply derives the next state from the live buffer under the editor lock so
// two quick actions never start from the same stale list.
func (w *Inventory) apply(ctx context.Context, name string, fn func(itemtype.InventoryValue, string) (itemtype.InventoryValue, bool)) error {
	e := w.e
	e.mu.Lock()
	cur, ok := e.value.(itemtype.InventoryValue)
	if !ok {
		cur = itemtype.SeedInventory(e.tpl.OpcionesSeleccion)
	}
	next, found := fn(cur, name)
	if !found {
		e.mu.Unlock()
		return itemtype.ErrInvalidOption
	}
	e.value = next
	e.modified = true
	e.gen++
	e.mu.Unlock()

	_, err := e.save(ctx, true)
	return err
}

// FuelGauge 油量组件
type FuelGauge struct {
	e *Editor
}

// FuelGauge 返回油量组件，题型不符时报错
func (e *Editor) FuelGauge() (*FuelGauge, error) {
	if e.strategy != StrategyFuelGauge {
		return nil, ErrWrongWidget
	}
	return &FuelGauge{e: e}, nil
}

// Levels 可选档位
func (w *FuelGauge) Levels() []itemtype.FuelLevel {
	return itemtype.FuelLevels
}

// Current 当前档位
func (w *FuelGauge) Current() (itemtype.FuelLevel, bool) {
	fv, ok := w.e.Value().(itemtype.FuelValue)
	if !ok {
		return itemtype.FuelLevel{}, false
	}
	return itemtype.FuelLevelByKey(fv.Level)
}

// Select writes key, label and value in one save.
func (w *FuelGauge) Select(ctx context.Context, key string) error {
	level, ok := itemtype.FuelLevelByKey(key)
	if !ok {
		return itemtype.ErrInvalidFuelLevel
	}
	return w.e.SetAndSave(ctx, itemtype.FuelValue{Level: level.Key})
}
