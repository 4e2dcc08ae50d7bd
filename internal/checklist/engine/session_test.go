package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/photo"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/signature"
)

// memAPI is an in-memory stand-in for the checklist server.
type memAPI struct {
	mu        sync.Mutex
	inst      *entity.ChecklistInstance
	saves     []string
	uploads   []string
	finalized []*entity.SignatureCapture
	staleLoad bool
	uploadErr error
	seq       int
}

func newMemAPI(items ...entity.ChecklistItemTemplate) *memAPI {
	return &memAPI{inst: &entity.ChecklistInstance{
		ID:         "inst-1",
		OrdenID:    "order-1",
		Estado:     entity.EstadoPendiente,
		Items:      items,
		Respuestas: map[string]*entity.ChecklistItemResponse{},
	}}
}

func (m *memAPI) GetInstanceByOrder(ctx context.Context, orderID string) (*entity.ChecklistInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.inst
	cp.Respuestas = make(map[string]*entity.ChecklistItemResponse, len(m.inst.Respuestas))
	for k, v := range m.inst.Respuestas {
		r := *v
		r.Fotos = append([]entity.PhotoEvidence(nil), v.Fotos...)
		cp.Respuestas[k] = &r
	}
	if m.staleLoad {
		cp.Estado = entity.EstadoPendiente
	}
	return &cp, nil
}

func (m *memAPI) SaveResponse(ctx context.Context, instanceID, itemID string, p entity.Payload) (*entity.ChecklistItemResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, itemID)
	resp, ok := m.inst.Respuestas[itemID]
	if !ok {
		m.seq++
		resp = &entity.ChecklistItemResponse{ID: fmt.Sprintf("resp-%d", m.seq), InstanciaID: instanceID, ItemTemplateID: itemID}
		m.inst.Respuestas[itemID] = resp
	}
	resp.Apply(p)
	if m.inst.Estado == entity.EstadoPendiente {
		m.inst.Estado = entity.EstadoEnProgreso
	}
	out := *resp
	return &out, nil
}

func (m *memAPI) UploadPhoto(ctx context.Context, uri, responseID, descripcion string) (*entity.PhotoEvidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploads = append(m.uploads, responseID+":"+uri)
	p := entity.PhotoEvidence{ID: fmt.Sprintf("foto-%d", len(m.uploads)), RespuestaID: responseID, URI: uri, URL: "https://cdn/" + uri, Sincronizada: true}
	for _, resp := range m.inst.Respuestas {
		if resp.ID == responseID {
			p.OrdenEnRespuesta = len(resp.Fotos) + 1
			resp.Fotos = append(resp.Fotos, p)
		}
	}
	return &p, nil
}

func (m *memAPI) Finalize(ctx context.Context, instanceID string, bundle *entity.SignatureCapture) (*entity.ChecklistInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = append(m.finalized, bundle)
	m.inst.Estado = entity.EstadoCompletado
	m.inst.Firma = bundle
	cp := *m.inst
	return &cp, nil
}

type seqPicker struct{ n int }

func (p *seqPicker) Pick(ctx context.Context, source photo.Source) photo.Result {
	p.n++
	return photo.Result{Success: true, Data: photo.Asset{URI: fmt.Sprintf("file:///IMG_%d.jpg", p.n)}}
}

type hangingLocator struct{}

func (hangingLocator) ServicesEnabled(context.Context) bool   { return true }
func (hangingLocator) RequestPermission(context.Context) bool { return true }
func (hangingLocator) CurrentPosition(ctx context.Context) signature.LocationResult {
	<-ctx.Done()
	return signature.LocationResult{Error: ctx.Err()}
}

func km() entity.ChecklistItemTemplate {
	lo, hi := 0.0, 300000.0
	return entity.ChecklistItemTemplate{ID: "km", OrdenVisual: 1, TipoPregunta: itemtype.TagKilometerInput,
		ValorMinimo: &lo, ValorMaximo: &hi, EsObligatorioEfectivo: true}
}

func fotos(n int) entity.ChecklistItemTemplate {
	return entity.ChecklistItemTemplate{ID: "fotos", OrdenVisual: 2, TipoPregunta: itemtype.TagPhoto, MinFotos: &n, EsObligatorioEfectivo: true}
}

func firma(obligatorio bool) entity.ChecklistItemTemplate {
	return entity.ChecklistItemTemplate{ID: "firma", OrdenVisual: 3, TipoPregunta: itemtype.TagSignature, EsObligatorioEfectivo: obligatorio}
}

func open(t *testing.T, api *memAPI) *Session {
	t.Helper()
	s, err := Open(context.Background(), api, "order-1", Config{
		Picker:          &seqPicker{},
		Locator:         hangingLocator{},
		Prompter:        signature.PromptFunc(func(context.Context, error) signature.Choice { return signature.ChoiceContinueWithoutGPS }),
		LocationTimeout: 20 * time.Millisecond,
		Logger:          zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return s
}

func TestItemsAreOrderedAndNavigable(t *testing.T) {
	s := open(t, newMemAPI(firma(true), km(), fotos(1)))

	ids := []string{}
	for _, it := range s.Items() {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"km", "fotos", "firma"}, ids)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "km", cur.ID)
	assert.False(t, s.Prev())
	assert.True(t, s.Next())
	assert.True(t, s.Next())
	assert.False(t, s.Next())
	require.NoError(t, s.Goto("fotos"))
	cur, _ = s.Current()
	assert.Equal(t, "fotos", cur.ID)
	assert.ErrorIs(t, s.Goto("nope"), ErrItemNotFound)
}

func TestNumberBoundsAndFirstSave(t *testing.T) {
	api := newMemAPI(km())
	s := open(t, api)
	ctx := context.Background()

	_, err := s.Answer(ctx, "km", "-5")
	assert.ErrorIs(t, err, itemtype.ErrOutOfRange)
	assert.Empty(t, api.saves)
	assert.Equal(t, entity.EstadoPendiente, s.Estado())

	resp, err := s.Answer(ctx, "km", "250000")
	require.NoError(t, err)
	assert.True(t, resp.Completado)
	assert.Equal(t, entity.EstadoEnProgreso, s.Estado())
	assert.NotNil(t, s.Instance().FechaInicio)
	assert.True(t, s.Progress().Complete)
}

func TestReloadNeverRegresses(t *testing.T) {
	api := newMemAPI(km())
	s := open(t, api)
	_, err := s.Answer(context.Background(), "km", "1000")
	require.NoError(t, err)

	api.staleLoad = true
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, entity.EstadoEnProgreso, s.Estado())
}

func TestPhotoCompletionFollowsCount(t *testing.T) {
	api := newMemAPI(fotos(2))
	s := open(t, api)
	ctx := context.Background()

	p1, err := s.CapturePhoto(ctx, "fotos", photo.SourceCamera)
	require.NoError(t, err)
	assert.True(t, p1.Sincronizada, "response is saved before the first upload")
	assert.False(t, s.Progress().Complete)
	assert.False(t, api.inst.Respuestas["fotos"].Completado)

	_, err = s.CapturePhoto(ctx, "fotos", photo.SourceLibrary)
	require.NoError(t, err)
	assert.True(t, s.Progress().Complete)
	assert.True(t, api.inst.Respuestas["fotos"].Completado)

	require.NoError(t, s.RemovePhoto(ctx, "fotos", p1.URI))
	assert.False(t, s.Progress().Complete)
	assert.False(t, api.inst.Respuestas["fotos"].Completado)
	assert.Len(t, api.uploads, 2, "removal never reaches the server")
}

func TestReloadKeepsPhotosThatFailedToUpload(t *testing.T) {
	api := newMemAPI(fotos(2))
	s := open(t, api)
	ctx := context.Background()

	first, err := s.CapturePhoto(ctx, "fotos", photo.SourceCamera)
	require.NoError(t, err)
	require.True(t, first.Sincronizada)

	api.uploadErr = errors.New("network down")
	second, err := s.CapturePhoto(ctx, "fotos", photo.SourceCamera)
	require.NoError(t, err, "upload failures stay local")
	assert.False(t, second.Sincronizada)
	assert.True(t, s.Progress().Complete)
	assert.True(t, api.inst.Respuestas["fotos"].Completado)

	require.NoError(t, s.Reload(ctx))

	album, err := s.Album("fotos")
	require.NoError(t, err)
	got := album.Photos()
	require.Len(t, got, 2)
	assert.Equal(t, first.URI, got[0].URI)
	assert.True(t, got[0].Sincronizada)
	assert.Equal(t, second.URI, got[1].URI)
	assert.False(t, got[1].Sincronizada)
	assert.Equal(t, 2, got[1].OrdenEnRespuesta)
	assert.Equal(t, 1, album.Pending())

	ed, err := s.Editor("fotos")
	require.NoError(t, err)
	assert.Len(t, ed.Value().(itemtype.PhotoValue).Photos, 2)
	assert.True(t, s.Progress().Complete, "local completion matches the server flag")

	api.uploadErr = nil
	n, err := s.RetryPhotos(ctx, "fotos")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, album.Pending())
	assert.Len(t, api.inst.Respuestas["fotos"].Fotos, 2)
}

func TestSignatureWithoutGPSAndFinalize(t *testing.T) {
	api := newMemAPI(km(), firma(true))
	s := open(t, api)
	ctx := context.Background()

	_, err := s.Answer(ctx, "km", "1200")
	require.NoError(t, err)

	_, err = s.Finalize(ctx)
	assert.ErrorIs(t, err, lifecycle.ErrChecklistIncomplete)
	assert.Empty(t, api.finalized)

	flow, err := s.SignatureFlow("firma")
	require.NoError(t, err)
	require.NoError(t, flow.Capture("tech"))
	require.NoError(t, flow.Capture("client"))
	coord, err := flow.Locate(ctx)
	require.NoError(t, err)
	assert.True(t, coord.IsSentinel())
	assert.Equal(t, signature.StateDone, flow.State())

	saved := api.inst.Respuestas["firma"]
	require.NotNil(t, saved)
	require.NotNil(t, saved.RespuestaUbicacion)
	assert.True(t, saved.RespuestaUbicacion.IsSentinel())
	assert.True(t, saved.Completado)

	inst, err := s.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoCompletado, inst.Estado)
	require.Len(t, api.finalized, 1)
	assert.Equal(t, "tech", api.finalized[0].FirmaTecnico)
	assert.Equal(t, "client", api.finalized[0].FirmaCliente)
	assert.Equal(t, entity.Coordinate{Lat: 0, Lng: 0}, api.finalized[0].UbicacionCaptura)
	assert.NoError(t, lifecycle.Gate(inst))
}

func TestFinalizeRejectsHalfSignedBundle(t *testing.T) {
	api := newMemAPI(firma(false))
	s := open(t, api)

	ed, err := s.Editor("firma")
	require.NoError(t, err)
	require.NoError(t, ed.Set(itemtype.SignatureValue{Tecnico: "only-tech"}))

	_, err = s.Finalize(context.Background())
	assert.ErrorIs(t, err, itemtype.ErrIncompleteSignature)
	assert.Empty(t, api.finalized)
}

func TestCaptureOnWrongItem(t *testing.T) {
	s := open(t, newMemAPI(km()))
	_, err := s.CapturePhoto(context.Background(), "km", photo.SourceCamera)
	assert.True(t, errors.Is(err, ErrNotPhotoItem))
	_, err = s.SignatureFlow("km")
	assert.ErrorIs(t, err, ErrNotSignatureItem)
}
