package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/engine"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/photo"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/signature"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/testutil"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/config"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/shared/cache"
)

type fixture struct {
	svc     *Services
	db      *testutil.MemDB
	mr      *miniredis.Miniredis
	cache   *cache.Cache
	objects *fakeObjects
	pub     *recPublisher
}

func checklistItems() []entity.ChecklistItemTemplate {
	lo, hi := 0.0, 300000.0
	one := 1
	return []entity.ChecklistItemTemplate{
		{ID: "firma", ChecklistID: "cl-1", OrdenVisual: 4, TipoPregunta: itemtype.TagSignature, PreguntaTexto: "Firmas", EsObligatorio: true},
		{ID: "km", ChecklistID: "cl-1", OrdenVisual: 1, TipoPregunta: itemtype.TagKilometerInput, PreguntaTexto: "Kilometraje", EsObligatorio: true, ValorMinimo: &lo, ValorMaximo: &hi},
		{ID: "nota", ChecklistID: "cl-1", OrdenVisual: 2, TipoPregunta: itemtype.TagFinalNotes, PreguntaTexto: "Notas"},
		{ID: "fotos", ChecklistID: "cl-1", OrdenVisual: 3, TipoPregunta: itemtype.TagPhoto, PreguntaTexto: "Fotos", EsObligatorio: true, MinFotos: &one},
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewMemDB()
	db.Defs["cl-1"] = &entity.ChecklistDefinition{ID: "cl-1", Nombre: "Revisión general"}
	db.Items["cl-1"] = checklistItems()
	db.Orders["order-1"] = &entity.ServiceOrder{ID: "order-1", Codigo: "OS-0001", ChecklistID: "cl-1", Estado: entity.OrdenEstadoEnCurso}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	c := cache.New(rdb, "checklist")

	objects := &fakeObjects{}
	pub := &recPublisher{}
	svc := NewServices(memStores(db), c, objects, pub, config.ChecklistConfig{
		PhotoPrefix:  "fotos",
		MaxPhotoSize: 1 << 20,
	}, zaptest.NewLogger(t))
	return &fixture{svc: svc, db: db, mr: mr, cache: c, objects: objects, pub: pub}
}

func num(v float64) entity.Payload { return entity.Payload{RespuestaNumero: &v} }

func text(s string) entity.Payload { return entity.Payload{RespuestaTexto: &s, Completado: true} }

func signed(t *testing.T, tech, client string) entity.Payload {
	t.Helper()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	coord := entity.Coordinate{Lat: -33.4, Lng: -70.6}
	p, err := itemtype.Encode(checklistItems()[0], itemtype.SignatureValue{Tecnico: tech, Cliente: client, Ubicacion: &coord, Fecha: &at})
	require.NoError(t, err)
	return p
}

func open(t *testing.T, f *fixture) *entity.ChecklistInstance {
	t.Helper()
	inst, err := f.svc.Checklist.GetInstanceByOrder(context.Background(), "order-1")
	require.NoError(t, err)
	return inst
}

func TestGetInstanceByOrderCreatesOnce(t *testing.T) {
	f := setup(t)
	a := open(t, f)
	b := open(t, f)

	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, f.db.Instances, 1)
	assert.Equal(t, entity.EstadoPendiente, b.Estado)
	assert.Equal(t, []string{entity.ActionStatusChange}, f.db.Actions())

	ids := []string{}
	for _, it := range b.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"km", "nota", "fotos", "firma"}, ids)
}

func TestGetInstanceByOrderErrors(t *testing.T) {
	f := setup(t)
	f.db.Orders["order-2"] = &entity.ServiceOrder{ID: "order-2", Estado: entity.OrdenEstadoAsignada}

	_, err := f.svc.Checklist.GetInstanceByOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.svc.Checklist.GetInstanceByOrder(context.Background(), "order-2")
	assert.ErrorIs(t, err, ErrNoChecklist)
	_, err = f.svc.Checklist.GetInstance(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestObligationsComeFromTheOrder(t *testing.T) {
	f := setup(t)
	f.db.Orders["order-1"].ObligacionesEfectivas = entity.BoolMap{"nota": true, "km": false}

	inst := open(t, f)
	flags := map[string]bool{}
	for _, it := range inst.Items {
		flags[it.ID] = it.EsObligatorioEfectivo
	}
	assert.Equal(t, map[string]bool{"km": false, "nota": true, "fotos": true, "firma": true}, flags)
}

func TestTemplatesAreCached(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)

	_, err := f.svc.Checklist.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	_, err = f.svc.Checklist.SaveResponse(ctx, inst.ID, "km", num(10))
	require.NoError(t, err)

	assert.Equal(t, 1, f.db.ItemReads)
	assert.True(t, f.mr.Exists("checklist:templates:cl-1"))
}

func TestSaveResponseRejectsInvalidPayloads(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)

	_, err := f.svc.Checklist.SaveResponse(ctx, inst.ID, "km", num(-5))
	assert.ErrorIs(t, err, itemtype.ErrOutOfRange)
	assert.ErrorIs(t, err, itemtype.ErrValidation)

	_, err = f.svc.Checklist.SaveResponse(ctx, inst.ID, "km", text("1200"))
	assert.ErrorIs(t, err, itemtype.ErrSlotMismatch)

	half := entity.Payload{RespuestaSeleccion: datatypes.JSON(`{"firma_tecnico":"tech","firma_cliente":""}`)}
	_, err = f.svc.Checklist.SaveResponse(ctx, inst.ID, "firma", half)
	assert.ErrorIs(t, err, itemtype.ErrIncompleteSignature)

	_, err = f.svc.Checklist.SaveResponse(ctx, inst.ID, "nope", num(1))
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.svc.Checklist.SaveResponse(ctx, "missing", "km", num(1))
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	assert.Zero(t, f.db.Upserts)
	assert.Equal(t, entity.EstadoPendiente, f.db.Instances[inst.ID].Estado)
}

func TestSaveResponseRecomputesCompletado(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)

	blank, err := f.svc.Checklist.SaveResponse(ctx, inst.ID, "nota", text("   "))
	require.NoError(t, err)
	assert.False(t, blank.Completado, "client flag is ignored for text items")

	first, err := f.svc.Checklist.SaveResponse(ctx, inst.ID, "km", num(1200))
	require.NoError(t, err)
	assert.True(t, first.Completado)

	second, err := f.svc.Checklist.SaveResponse(ctx, inst.ID, "km", num(1300))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one response per item")
	assert.Equal(t, 1300.0, *second.RespuestaNumero)

	row := f.db.Instances[inst.ID]
	assert.Equal(t, entity.EstadoEnProgreso, row.Estado)
	assert.NotNil(t, row.FechaInicio)
	assert.Equal(t, []string{entity.ActionSave, entity.ActionSave, entity.ActionSave}, f.pub.actions())

	transitions := 0
	for _, a := range f.db.Actions() {
		if a == entity.ActionStatusChange {
			transitions++
		}
	}
	assert.Equal(t, 2, transitions, "created + started")
}

func TestAddPhoto(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)

	resp, err := f.svc.Checklist.SaveResponse(ctx, inst.ID, "fotos", entity.Payload{Completado: true})
	require.NoError(t, err)
	assert.True(t, resp.Completado, "photo items keep the client flag")

	for i := 0; i < 2; i++ {
		p, err := f.svc.Checklist.AddPhoto(ctx, resp.ID, PhotoUpload{
			URI:         fmt.Sprintf("file:///IMG_%d.jpg", i),
			FileName:    "IMG.jpg",
			ContentType: "image/jpeg",
			Size:        4,
			Body:        strings.NewReader("jpeg"),
		})
		require.NoError(t, err)
		assert.True(t, p.Sincronizada)
		assert.Equal(t, i+1, p.OrdenEnRespuesta)
		assert.True(t, strings.HasPrefix(p.URL, "https://cdn.example.com/fotos/"+inst.ID+"/"+resp.ID+"/"))
		assert.True(t, strings.HasSuffix(p.URL, ".jpg"))
	}
	assert.Len(t, f.objects.names, 2)

	loaded, err := f.svc.Checklist.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Response("fotos").Fotos, 2)
	assert.Contains(t, f.pub.actions(), entity.ActionPhotoUpload)
}

func TestAddPhotoFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)

	km, err := f.svc.Checklist.SaveResponse(ctx, inst.ID, "km", num(5))
	require.NoError(t, err)
	_, err = f.svc.Checklist.AddPhoto(ctx, km.ID, PhotoUpload{Body: strings.NewReader("x"), Size: 1})
	assert.ErrorIs(t, err, ErrNotPhotoItem)

	fotos, err := f.svc.Checklist.SaveResponse(ctx, inst.ID, "fotos", entity.Payload{})
	require.NoError(t, err)
	_, err = f.svc.Checklist.AddPhoto(ctx, fotos.ID, PhotoUpload{Body: strings.NewReader("x"), Size: 2 << 20})
	assert.ErrorIs(t, err, ErrPhotoTooLarge)

	f.objects.fail = errors.New("minio down")
	_, err = f.svc.Checklist.AddPhoto(ctx, fotos.ID, PhotoUpload{Body: strings.NewReader("x"), Size: 1})
	assert.Error(t, err)
	assert.Empty(t, f.db.Photos)

	_, err = f.svc.Checklist.AddPhoto(ctx, "missing", PhotoUpload{})
	assert.ErrorIs(t, err, ErrResponseNotFound)
}

func answerAll(t *testing.T, f *fixture, instanceID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Checklist.SaveResponse(ctx, instanceID, "km", num(1200))
	require.NoError(t, err)
	_, err = f.svc.Checklist.SaveResponse(ctx, instanceID, "fotos", entity.Payload{Completado: true})
	require.NoError(t, err)
	_, err = f.svc.Checklist.SaveResponse(ctx, instanceID, "firma", signed(t, "tech-stroke", "client-stroke"))
	require.NoError(t, err)
}

func TestFinalize(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)

	_, err := f.svc.Checklist.Finalize(ctx, inst.ID, nil)
	assert.ErrorIs(t, err, lifecycle.ErrChecklistIncomplete)

	answerAll(t, f, inst.ID)

	_, err = f.svc.Checklist.Finalize(ctx, inst.ID, &entity.SignatureCapture{FirmaTecnico: "only-tech"})
	assert.ErrorIs(t, err, itemtype.ErrIncompleteSignature)
	assert.Equal(t, entity.EstadoEnProgreso, f.db.Instances[inst.ID].Estado)

	done, err := f.svc.Checklist.Finalize(ctx, inst.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoCompletado, done.Estado)
	assert.NotNil(t, done.FechaFinalizacion)
	require.NotNil(t, f.db.Firmas[inst.ID], "bundle taken from the signature item")
	assert.Equal(t, "tech-stroke", f.db.Firmas[inst.ID].FirmaTecnico)
	assert.Equal(t, entity.Coordinate{Lat: -33.4, Lng: -70.6}, f.db.Firmas[inst.ID].UbicacionCaptura)

	again, err := f.svc.Checklist.Finalize(ctx, inst.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoCompletado, again.Estado)

	finalizes := 0
	for _, a := range f.db.Actions() {
		if a == entity.ActionFinalize {
			finalizes++
		}
	}
	assert.Equal(t, 1, finalizes)

	_, err = f.svc.Checklist.SaveResponse(ctx, inst.ID, "nota", text("late"))
	assert.ErrorIs(t, err, ErrInstanceCompleted)
	assert.False(t, f.mr.Exists("checklist:lock:finalize:"+inst.ID), "lock released")
}

func TestFinalizeIsSerialized(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)
	answerAll(t, f, inst.ID)

	held, err := f.cache.Acquire(ctx, "finalize:"+inst.ID, time.Minute)
	require.NoError(t, err)
	_, err = f.svc.Checklist.Finalize(ctx, inst.ID, nil)
	assert.ErrorIs(t, err, ErrFinalizeInProgress)
	assert.Equal(t, entity.EstadoEnProgreso, f.db.Instances[inst.ID].Estado)

	require.NoError(t, held.Release(ctx))
	_, err = f.svc.Checklist.Finalize(ctx, inst.ID, nil)
	require.NoError(t, err)
}

func TestGateAndFinishService(t *testing.T) {
	f := setup(t)
	ctx := WithOperator(context.Background(), "tech-7")

	_, err := f.svc.Order.FinishService(ctx, "order-1")
	assert.ErrorIs(t, err, lifecycle.ErrChecklistIncomplete, "no instance yet")

	gate, err := f.svc.Checklist.Gate(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, gate.CanFinish)
	assert.Equal(t, []string{"km", "fotos", "firma"}, gate.Missing)

	_, err = f.svc.Order.FinishService(ctx, "order-1")
	assert.ErrorIs(t, err, lifecycle.ErrChecklistIncomplete)
	assert.Equal(t, entity.OrdenEstadoEnCurso, f.db.Orders["order-1"].Estado)

	inst := open(t, f)
	answerAll(t, f, inst.ID)
	_, err = f.svc.Checklist.Finalize(ctx, inst.ID, nil)
	require.NoError(t, err)

	gate, err = f.svc.Checklist.Gate(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, gate.CanFinish)

	order, err := f.svc.Order.FinishService(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, entity.OrdenEstadoFinalizada, order.Estado)
	assert.NotNil(t, f.db.Orders["order-1"].FinalizadaAt)
	assert.Contains(t, f.db.Actions(), entity.ActionOrderFinish)
	assert.Equal(t, "tech-7", f.db.Logs[len(f.db.Logs)-1].OperatorID)

	f.db.Orders["order-3"] = &entity.ServiceOrder{ID: "order-3", ChecklistID: "cl-1", Estado: entity.OrdenEstadoCancelada}
	_, err = f.svc.Order.FinishService(ctx, "order-3")
	assert.ErrorIs(t, err, ErrOrderState)
}

func TestActivities(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)
	_, err := f.svc.Checklist.SaveResponse(ctx, inst.ID, "km", num(1))
	require.NoError(t, err)

	logs, total, err := f.svc.Checklist.Activities(ctx, inst.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, entity.ActionStatusChange, logs[0].Action)
}

func TestExport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inst := open(t, f)
	answerAll(t, f, inst.ID)
	_, err := f.svc.Checklist.Finalize(ctx, inst.ID, nil)
	require.NoError(t, err)

	x, filename, err := f.svc.Export.Export(ctx, inst.ID)
	require.NoError(t, err)
	defer x.Close()
	assert.Equal(t, "Checklist_OS-0001.xlsx", filename)

	cell := func(axis string) string {
		v, err := x.GetCellValue("Checklist", axis)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "N°", cell("A1"))
	assert.Equal(t, "Kilometraje", cell("C2"))
	assert.Equal(t, "Sí", cell("D2"))
	assert.Equal(t, "No", cell("D3"))
	assert.Equal(t, "Sí", cell("F5"))
	assert.Equal(t, entity.EstadoCompletado, cell("B6"))
	assert.Equal(t, "Obligatorias: 3/3", cell("C6"))
	assert.Contains(t, cell("E6"), "Firmado")
}

type filePicker struct {
	dir string
	n   int
}

func (p *filePicker) Pick(ctx context.Context, source photo.Source) photo.Result {
	p.n++
	name := filepath.Join(p.dir, fmt.Sprintf("IMG_%d.jpg", p.n))
	if err := os.WriteFile(name, []byte("jpeg-bytes"), 0o600); err != nil {
		return photo.Result{Error: err}
	}
	return photo.Result{Success: true, Data: photo.Asset{URI: "file://" + name}}
}

type noGPS struct{}

func (noGPS) ServicesEnabled(context.Context) bool   { return false }
func (noGPS) RequestPermission(context.Context) bool { return false }
func (noGPS) CurrentPosition(context.Context) signature.LocationResult {
	return signature.LocationResult{Error: signature.ErrServicesDisabled}
}

func TestSessionOverLocalAPI(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s, err := engine.Open(ctx, NewLocalAPI(f.svc.Checklist), "order-1", engine.Config{
		Picker:   &filePicker{dir: t.TempDir()},
		Locator:  noGPS{},
		Prompter: signature.PromptFunc(func(context.Context, error) signature.Choice { return signature.ChoiceContinueWithoutGPS }),
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	_, err = s.Answer(ctx, "km", "98000")
	require.NoError(t, err)
	p, err := s.CapturePhoto(ctx, "fotos", photo.SourceCamera)
	require.NoError(t, err)
	assert.True(t, p.Sincronizada)

	flow, err := s.SignatureFlow("firma")
	require.NoError(t, err)
	require.NoError(t, flow.Capture("tech"))
	require.NoError(t, flow.Capture("client"))
	coord, err := flow.Locate(ctx)
	require.NoError(t, err)
	assert.True(t, coord.IsSentinel())

	inst, err := s.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoCompletado, inst.Estado)
	assert.Equal(t, entity.EstadoCompletado, f.db.Instances[inst.ID].Estado)
	assert.True(t, f.db.Firmas[inst.ID].UbicacionCaptura.IsSentinel())
	assert.Len(t, f.objects.names, 1)
}
