package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/handler"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/photo"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/service"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/signature"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/sse"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/testutil"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/config"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/shared/cache"
)

type discardObjects struct {
	mu    sync.Mutex
	names []string
}

func (d *discardObjects) Put(ctx context.Context, name string, r io.Reader, size int64, ctype string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = append(d.names, name)
	return "https://cdn.example.com/" + name, nil
}

func startServer(t *testing.T) (*httptest.Server, *testutil.MemDB) {
	t.Helper()
	db := testutil.NewMemDB()
	testutil.SeedChecklist(db)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := zaptest.NewLogger(t)
	hub := sse.NewHub(logger)
	stores := service.Stores{
		Templates:  db.Templates(),
		Instances:  db.InstanceStore(),
		Responses:  db.ResponseStore(),
		Photos:     db.PhotoStore(),
		Signatures: db.SignatureStore(),
		Orders:     db.OrderStore(),
		Activity:   db.ActivityStore(),
	}
	svc := service.NewServices(stores, cache.New(rdb, "checklist"), &discardObjects{}, hub,
		config.ChecklistConfig{PhotoPrefix: "fotos", MaxPhotoSize: 1 << 20}, logger)

	router := testutil.SetupRouter()
	handler.RegisterRoutes(router, handler.NewHandlers(svc, hub), testutil.JWTSecret)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, db
}

func run(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--server", srv.URL, "--token", testutil.DefaultTestToken()}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestChecklistctlEndToEnd(t *testing.T) {
	srv, db := startServer(t)

	out, err := run(t, srv, "", "show", "order-1")
	require.NoError(t, err)
	assert.Contains(t, out, "estado=PENDIENTE")
	assert.Contains(t, out, "Kilometraje")
	assert.Contains(t, out, "pendientes: km, fotos, firma")

	_, err = run(t, srv, "", "answer", "order-1", "km", "-3")
	assert.Error(t, err)

	out, err = run(t, srv, "", "answer", "order-1", "km", "12500")
	require.NoError(t, err)
	assert.Contains(t, out, "completado=true")

	_, err = run(t, srv, "", "finalize", "order-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fotos")

	img := filepath.Join(t.TempDir(), "motor.jpg")
	require.NoError(t, os.WriteFile(img, []byte("\xff\xd8\xff\xe0fake-jpeg"), 0o644))
	out, err = run(t, srv, "", "photo", "order-1", "fotos", img)
	require.NoError(t, err)
	assert.Contains(t, out, "sincronizada")

	out, err = run(t, srv, "c\n", "sign", "order-1", "firma", "--tech", "M0,0L10,10", "--client", "M5,5L1,1", "--no-gps")
	require.NoError(t, err)
	assert.Contains(t, out, "firmado sin GPS")

	out, err = run(t, srv, "", "finalize", "order-1")
	require.NoError(t, err)
	assert.Contains(t, out, entity.EstadoCompletado)

	out, err = run(t, srv, "", "finish", "order-1")
	require.NoError(t, err)
	assert.Contains(t, out, "OS-0001")
	assert.Equal(t, entity.OrdenEstadoFinalizada, db.Orders["order-1"].Estado)
}

func TestFilePicker(t *testing.T) {
	p := &filePicker{files: []string{"a.jpg"}}
	res := p.Pick(context.Background(), photo.SourceCamera)
	require.True(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Data.URI, "file:///"))
	assert.Equal(t, "a.jpg", res.Data.Descripcion)

	res = p.Pick(context.Background(), photo.SourceCamera)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, photo.ErrCaptureCancelled)
}

func TestFixedLocator(t *testing.T) {
	ctx := context.Background()
	res := fixedLocator{lat: -33.45, lng: -70.66, set: true}.CurrentPosition(ctx)
	require.True(t, res.Success)
	assert.Equal(t, entity.Coordinate{Lat: -33.45, Lng: -70.66}, res.Data)

	res = fixedLocator{}.CurrentPosition(ctx)
	assert.ErrorIs(t, res.Error, signature.ErrLocationTimeout)
	assert.False(t, fixedLocator{disabled: true}.ServicesEnabled(ctx))
}

func TestTerminalPrompt(t *testing.T) {
	var out bytes.Buffer
	tests := []struct {
		in   string
		want signature.Choice
	}{
		{"r\n", signature.ChoiceRetry},
		{"Reintentar\n", signature.ChoiceRetry},
		{"c\n", signature.ChoiceContinueWithoutGPS},
		{"", signature.ChoiceContinueWithoutGPS},
	}
	for _, tt := range tests {
		term := terminal{in: strings.NewReader(tt.in), out: &out}
		assert.Equal(t, tt.want, term.Prompt(context.Background(), signature.ErrServicesDisabled), "input %q", tt.in)
	}
	assert.Contains(t, out.String(), "continuar sin GPS")
}

func TestReadStroke(t *testing.T) {
	s, err := readStroke("M0,0")
	require.NoError(t, err)
	assert.Equal(t, "M0,0", s)

	f := filepath.Join(t.TempDir(), "firma.svg")
	require.NoError(t, os.WriteFile(f, []byte("M1,1L2,2\n"), 0o644))
	s, err = readStroke("@" + f)
	require.NoError(t, err)
	assert.Equal(t, "M1,1L2,2", s)

	_, err = readStroke("@/no/such/file")
	assert.Error(t, err)
}
