package itemtype

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

func TestInventorySummary(t *testing.T) {
	v := SeedInventory([]string{"A", "B", "C", "D", "E"})
	for _, name := range []string{"A", "B", "C"} {
		var ok bool
		v, ok = v.Toggle(name)
		require.True(t, ok)
	}
	v, _ = v.CycleCondition("B")

	assert.Equal(t, "Presentes: A, B (REGULAR), C | Faltantes: D, E", v.Summary())

	tpl := entity.ChecklistItemTemplate{TipoPregunta: TagInventoryChecklist, OpcionesSeleccion: entity.StringList{"A", "B", "C", "D", "E"}}
	p, err := Encode(tpl, v)
	require.NoError(t, err)
	require.NotNil(t, p.RespuestaTexto)
	assert.Equal(t, v.Summary(), *p.RespuestaTexto)
	assert.True(t, p.Completado)
}

func TestInventorySummaryOmitsEmptySections(t *testing.T) {
	v := SeedInventory([]string{"A", "B"})
	assert.Equal(t, "Faltantes: A, B", v.Summary())

	v, _ = v.Toggle("A")
	v, _ = v.Toggle("B")
	assert.Equal(t, "Presentes: A, B", v.Summary())

	assert.Equal(t, "", InventoryValue{}.Summary())
}

func TestConditionCycle(t *testing.T) {
	c := CondicionBueno
	seen := []Condition{c}
	for i := 0; i < 4; i++ {
		c = c.Next()
		seen = append(seen, c)
	}
	assert.Equal(t, []Condition{CondicionBueno, CondicionRegular, CondicionMalo, CondicionFaltante, CondicionBueno}, seen)
}

func TestInventoryMutationsDoNotAlias(t *testing.T) {
	v := SeedInventory([]string{"A"})
	next, ok := v.Toggle("A")
	require.True(t, ok)
	assert.False(t, v.Items[0].Checked)
	assert.True(t, next.Items[0].Checked)

	_, ok = v.Toggle("Z")
	assert.False(t, ok)
}

func TestInventoryDecodeMergesByName(t *testing.T) {
	saved, err := json.Marshal(inventoryDoc{Items: []InventoryItem{
		{Name: "B", Checked: true, Condition: CondicionMalo, Notes: "rota"},
		{Name: "Viejo", Checked: true},
	}})
	require.NoError(t, err)

	tpl := entity.ChecklistItemTemplate{TipoPregunta: TagInventoryChecklist, OpcionesSeleccion: entity.StringList{"A", "B"}}
	v := Decode(tpl, &entity.ChecklistItemResponse{RespuestaSeleccion: saved}).(InventoryValue)

	require.Len(t, v.Items, 3)
	assert.Equal(t, InventoryItem{Name: "A", Condition: CondicionBueno}, v.Items[0])
	assert.Equal(t, InventoryItem{Name: "B", Checked: true, Condition: CondicionMalo, Notes: "rota"}, v.Items[1])
	assert.Equal(t, InventoryItem{Name: "Viejo", Checked: true, Condition: CondicionBueno}, v.Items[2])
}

func TestInventoryCompletion(t *testing.T) {
	tpl := entity.ChecklistItemTemplate{TipoPregunta: TagInventoryChecklist, OpcionesSeleccion: entity.StringList{"A"}}
	assert.False(t, Complete(tpl, SeedInventory([]string{"A"})))

	v, err := Lookup(TagInventoryChecklist).Parse(tpl, "A")
	require.NoError(t, err)
	assert.True(t, Complete(tpl, v))

	_, err = Lookup(TagInventoryChecklist).Parse(tpl, "Z")
	assert.ErrorIs(t, err, ErrInvalidOption)
}
