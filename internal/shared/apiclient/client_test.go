package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
)

func reply(w http.ResponseWriter, status, code int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "message": msg, "data": data})
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", "tok", 0)
	c.SetLogger(zaptest.NewLogger(t))
	return c
}

func TestGetInstanceByOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/orders/order-1/checklist", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		reply(w, 200, 0, "success", map[string]interface{}{"id": "inst-1", "orden": "order-1", "estado": "PENDIENTE"})
	})

	inst, err := c.GetInstanceByOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", inst.ID)
	assert.Equal(t, entity.EstadoPendiente, inst.Estado)
}

func TestSaveResponseSendsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/checklists/inst-1/items/km/response", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 1200, body["respuesta_numero"])
		reply(w, 200, 0, "success", map[string]interface{}{"id": "resp-1", "respuesta_numero": 1200, "completado": true})
	})

	v := 1200.0
	resp, err := c.SaveResponse(context.Background(), "inst-1", "km", entity.Payload{RespuestaNumero: &v})
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	assert.True(t, resp.Completado)
}

func TestErrorsUnwrapToDomainErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/checklists/inst-1/items/km/response":
			reply(w, 400, 40001, "validation failed: value out of range", nil)
		case "/api/v1/checklists/inst-1/finalize":
			reply(w, 409, 40902, "checklist not completed", nil)
		default:
			http.Error(w, "gateway down", http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	_, err := c.SaveResponse(ctx, "inst-1", "km", entity.Payload{})
	assert.ErrorIs(t, err, itemtype.ErrValidation)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)

	_, err = c.Finalize(ctx, "inst-1", nil)
	assert.ErrorIs(t, err, lifecycle.ErrChecklistIncomplete)

	_, err = c.GetInstanceByOrder(ctx, "x")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestUploadPhoto(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "IMG_1.jpg")
	require.NoError(t, os.WriteFile(name, []byte("jpeg-bytes"), 0o600))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/responses/resp-9/photos", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "file://"+name, r.FormValue("uri"))
		assert.Equal(t, "Motor", r.FormValue("descripcion"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "jpeg-bytes", string(b))
		assert.Equal(t, "IMG_1.jpg", hdr.Filename)
		assert.Equal(t, "image/jpeg", hdr.Header.Get("Content-Type"))
		reply(w, 201, 0, "success", map[string]interface{}{"id": "foto-1", "sincronizada": true, "url": "https://cdn/x.jpg"})
	})

	p, err := c.UploadPhoto(context.Background(), "file://"+name, "resp-9", "Motor")
	require.NoError(t, err)
	assert.True(t, p.Sincronizada)
	assert.Equal(t, "https://cdn/x.jpg", p.URL)

	_, err = c.UploadPhoto(context.Background(), "file:///missing.jpg", "resp-9", "")
	assert.Error(t, err)
}

func TestFinalizeSendsBundle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Firma *entity.SignatureCapture `json:"firma"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotNil(t, body.Firma)
		assert.Equal(t, "t", body.Firma.FirmaTecnico)
		assert.True(t, body.Firma.UbicacionCaptura.IsSentinel())
		reply(w, 200, 0, "success", map[string]interface{}{"id": "inst-1", "estado": "COMPLETADO"})
	})

	inst, err := c.Finalize(context.Background(), "inst-1", &entity.SignatureCapture{FirmaTecnico: "t", FirmaCliente: "c"})
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoCompletado, inst.Estado)
}
