package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/photo"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/signature"
)

// filePicker hands out local files in argument order, one per capture.
type filePicker struct {
	files []string
	next  int
}

func (p *filePicker) Pick(ctx context.Context, source photo.Source) photo.Result {
	if p.next >= len(p.files) {
		return photo.Result{Error: photo.ErrCaptureCancelled}
	}
	name := p.files[p.next]
	p.next++
	abs, err := filepath.Abs(name)
	if err != nil {
		return photo.Result{Error: err}
	}
	return photo.Result{Success: true, Data: photo.Asset{URI: "file://" + abs, Descripcion: filepath.Base(name)}}
}

// fixedLocator reports the coordinate given on the command line.
type fixedLocator struct {
	lat, lng float64
	set      bool
	disabled bool
}

func (l fixedLocator) ServicesEnabled(context.Context) bool   { return !l.disabled }
func (l fixedLocator) RequestPermission(context.Context) bool { return true }

func (l fixedLocator) CurrentPosition(ctx context.Context) signature.LocationResult {
	if !l.set {
		return signature.LocationResult{Error: signature.ErrLocationTimeout}
	}
	return signature.LocationResult{Success: true, Data: entity.Coordinate{Lat: l.lat, Lng: l.lng}}
}

// terminal asks on stdin whether to retry a failed fix.
type terminal struct {
	in  io.Reader
	out io.Writer
}

func (t terminal) Prompt(ctx context.Context, reason error) signature.Choice {
	fmt.Fprintf(t.out, "No se pudo obtener la ubicación (%v).\n[r] reintentar  [c] continuar sin GPS: ", reason)
	line, err := bufio.NewReader(t.in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(t.out)
		return signature.ChoiceContinueWithoutGPS
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "r") {
		return signature.ChoiceRetry
	}
	return signature.ChoiceContinueWithoutGPS
}
