package repository_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/repository"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/testutil"
)

func TestPostgresFindOrCreateIsUniquePerOrder(t *testing.T) {
	repos := repository.NewRepositories(testutil.SetupTestDB(t))
	ctx := context.Background()

	var created int32
	ids := make([]string, 8)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			inst, ok, err := repos.Instance.FindOrCreate(ctx, "order-1", "cl-1")
			if err != nil {
				return err
			}
			if ok {
				atomic.AddInt32(&created, 1)
			}
			ids[i] = inst.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, created)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestPostgresResponseUpsertAndConditionalComplete(t *testing.T) {
	repos := repository.NewRepositories(testutil.SetupTestDB(t))
	ctx := context.Background()

	inst, _, err := repos.Instance.FindOrCreate(ctx, "order-2", "cl-1")
	require.NoError(t, err)

	km := 1200.0
	first, err := repos.Response.Upsert(ctx, &entity.ChecklistItemResponse{InstanciaID: inst.ID, ItemTemplateID: "km", RespuestaNumero: &km, Completado: true})
	require.NoError(t, err)
	km2 := 1300.0
	second, err := repos.Response.Upsert(ctx, &entity.ChecklistItemResponse{InstanciaID: inst.ID, ItemTemplateID: "km", RespuestaNumero: &km2, Completado: true})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one row per instance and item")
	require.NotNil(t, second.RespuestaNumero)
	assert.Equal(t, 1300.0, *second.RespuestaNumero)

	now := time.Now()
	inst.FechaInicio = &now
	inst.FechaFinalizacion = &now
	firma := &entity.SignatureCapture{ID: "firma-1", InstanciaID: inst.ID, FirmaTecnico: "t", FirmaCliente: "c", FechaCaptura: now}

	moved, err := repos.Instance.Complete(ctx, inst, entity.EstadoEnProgreso, firma)
	require.NoError(t, err)
	assert.False(t, moved, "row is still PENDIENTE")
	stored, err := repos.Signature.FindByInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Nil(t, stored, "signature rolled back with the estado check")

	moved, err = repos.Instance.Complete(ctx, inst, entity.EstadoPendiente, firma)
	require.NoError(t, err)
	assert.True(t, moved)

	got, err := repos.Instance.FindByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoCompletado, got.Estado)
	stored, err = repos.Signature.FindByInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, entity.SentinelCoordinate, stored.UbicacionCaptura)
}

func TestPostgresPhotosAreNumberedPerResponse(t *testing.T) {
	repos := repository.NewRepositories(testutil.SetupTestDB(t))
	ctx := context.Background()

	inst, _, err := repos.Instance.FindOrCreate(ctx, "order-3", "cl-1")
	require.NoError(t, err)
	resp, err := repos.Response.Upsert(ctx, &entity.ChecklistItemResponse{InstanciaID: inst.ID, ItemTemplateID: "fotos", Completado: true})
	require.NoError(t, err)

	for _, uri := range []string{"file:///b.jpg", "file:///a.jpg", "file:///c.jpg"} {
		p := &entity.PhotoEvidence{RespuestaID: resp.ID, URI: uri, Sincronizada: true, FechaCaptura: time.Now()}
		require.NoError(t, repos.Photo.Create(ctx, p))
	}

	got, err := repos.Response.FindByID(ctx, resp.ID)
	require.NoError(t, err)
	require.Len(t, got.Fotos, 3)
	for i, uri := range []string{"file:///b.jpg", "file:///a.jpg", "file:///c.jpg"} {
		assert.Equal(t, uri, got.Fotos[i].URI)
		assert.Equal(t, i+1, got.Fotos[i].OrdenEnRespuesta)
	}
}
