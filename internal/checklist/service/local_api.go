package service

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/engine"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
)

var _ engine.API = (*LocalAPI)(nil)

// LocalAPI runs the client engine in-process against the service. Photo
// URIs are read from the local filesystem.
type LocalAPI struct {
	svc *ChecklistService
}

func NewLocalAPI(svc *ChecklistService) *LocalAPI {
	return &LocalAPI{svc: svc}
}

func (a *LocalAPI) GetInstanceByOrder(ctx context.Context, orderID string) (*entity.ChecklistInstance, error) {
	return a.svc.GetInstanceByOrder(ctx, orderID)
}

func (a *LocalAPI) SaveResponse(ctx context.Context, instanceID, itemID string, p entity.Payload) (*entity.ChecklistItemResponse, error) {
	return a.svc.SaveResponse(ctx, instanceID, itemID, p)
}

func (a *LocalAPI) UploadPhoto(ctx context.Context, uri, responseID, descripcion string) (*entity.PhotoEvidence, error) {
	name := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open photo %s: %w", uri, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	return a.svc.AddPhoto(ctx, responseID, PhotoUpload{
		URI:         uri,
		Descripcion: descripcion,
		FileName:    filepath.Base(name),
		ContentType: ctype,
		Size:        info.Size(),
		Body:        f,
	})
}

func (a *LocalAPI) Finalize(ctx context.Context, instanceID string, bundle *entity.SignatureCapture) (*entity.ChecklistInstance, error) {
	return a.svc.Finalize(ctx, instanceID, bundle)
}
