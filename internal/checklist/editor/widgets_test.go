package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
)

func TestInventoryWidgetSelfSaves(t *testing.T) {
	saver := &fakeSaver{}
	tpl := entity.ChecklistItemTemplate{
		ID:                "inv",
		TipoPregunta:      itemtype.TagInventoryChecklist,
		OpcionesSeleccion: entity.StringList{"A", "B", "C", "D", "E"},
	}
	e := New("inst", tpl, nil, saver)
	w, err := e.Inventory()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Toggle(ctx, "A"))
	require.NoError(t, w.Toggle(ctx, "B"))
	require.NoError(t, w.Toggle(ctx, "C"))
	require.NoError(t, w.CycleCondition(ctx, "B"))

	calls := saver.Calls()
	require.Len(t, calls, 4)
	last := calls[3]
	require.NotNil(t, last.RespuestaTexto)
	assert.Equal(t, "Presentes: A, B (REGULAR), C | Faltantes: D, E", *last.RespuestaTexto)
	assert.True(t, last.Completado)
	assert.False(t, e.Modified())

	// 摘要与结构化数据一致
	decoded := itemtype.Decode(tpl, e.Persisted()).(itemtype.InventoryValue)
	assert.Equal(t, *last.RespuestaTexto, decoded.Summary())

	require.NoError(t, w.SetNotes(ctx, "B", "tapiz rasgado"))
	assert.Equal(t, "tapiz rasgado", w.Items()[1].Notes)
	assert.ErrorIs(t, w.Toggle(ctx, "Z"), itemtype.ErrInvalidOption)
}

func TestFuelGaugeWritesAllSlotsTogether(t *testing.T) {
	saver := &fakeSaver{}
	e := New("inst", entity.ChecklistItemTemplate{ID: "fuel", TipoPregunta: itemtype.TagFuelGauge}, nil, saver)
	w, err := e.FuelGauge()
	require.NoError(t, err)
	assert.Len(t, w.Levels(), 5)

	require.NoError(t, w.Select(context.Background(), "3/4"))
	calls := saver.Calls()
	require.Len(t, calls, 1)
	p := calls[0]
	require.NotNil(t, p.RespuestaNumero)
	require.NotNil(t, p.RespuestaTexto)
	assert.Equal(t, 75.0, *p.RespuestaNumero)
	assert.JSONEq(t, `"3/4"`, string(p.RespuestaSeleccion))

	lvl, ok := w.Current()
	require.True(t, ok)
	assert.Equal(t, "3/4", lvl.Key)

	assert.ErrorIs(t, w.Select(context.Background(), "2/3"), itemtype.ErrInvalidFuelLevel)
	assert.Len(t, saver.Calls(), 1)
}

func TestWidgetOnWrongItem(t *testing.T) {
	e := New("inst", entity.ChecklistItemTemplate{ID: "t", TipoPregunta: itemtype.TagText}, nil, &fakeSaver{})
	_, err := e.Inventory()
	assert.ErrorIs(t, err, ErrWrongWidget)
	_, err = e.FuelGauge()
	assert.ErrorIs(t, err, ErrWrongWidget)
}

func TestQueuedSelfSaveFlushesLatestState(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{}), entered: make(chan struct{}, 4)}
	tpl := entity.ChecklistItemTemplate{ID: "inv", TipoPregunta: itemtype.TagInventoryChecklist, OpcionesSeleccion: entity.StringList{"A", "B"}}
	e := New("inst", tpl, nil, saver)
	w, err := e.Inventory()
	require.NoError(t, err)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- w.Toggle(ctx, "A") }()
	<-saver.entered

	// 保存进行中再次操作：排队，不报错
	require.NoError(t, w.Toggle(ctx, "B"))
	close(saver.block)
	require.NoError(t, <-done)

	calls := saver.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Presentes: A, B", *calls[1].RespuestaTexto)
	assert.False(t, e.Modified())
}
