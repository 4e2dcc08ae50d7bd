package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/photo"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/signature"
)

// Album returns the photo list of a PHOTO item.
func (s *Session) Album(itemID string) (*photo.Album, error) {
	ed, err := s.Editor(itemID)
	if err != nil {
		return nil, err
	}
	tpl := ed.Template()
	if itemtype.FamilyOf(tpl.TipoPregunta) != itemtype.FamilyPhoto {
		return nil, fmt.Errorf("%w: %s", ErrNotPhotoItem, itemID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.albums[itemID]; ok {
		return a, nil
	}
	a := photo.NewAlbum(tpl, ed.Persisted(), s.cfg.Picker, s.api)
	a.SetLogger(s.logger)
	s.albums[itemID] = a
	return a, nil
}

// CapturePhoto appends a photo to a PHOTO item. The response is saved first
// when it does not exist yet so the upload has an owner; a failing upload
// only leaves the photo unsynchronized. The returned error reports the
// completion re-save, never the upload.
func (s *Session) CapturePhoto(ctx context.Context, itemID string, source photo.Source) (entity.PhotoEvidence, error) {
	if s.cfg.Picker == nil {
		return entity.PhotoEvidence{}, ErrNoCapability
	}
	album, err := s.Album(itemID)
	if err != nil {
		return entity.PhotoEvidence{}, err
	}
	ed, _ := s.Editor(itemID)

	if album.ResponseID() == "" {
		if ed.ResponseID() == "" {
			if err := ed.SetAndSave(ctx, album.Value()); err != nil {
				s.logger.Warn("photo item not saved, capture stays local", zap.String("item_id", itemID), zap.Error(err))
			}
		}
		album.SetResponseID(ed.ResponseID())
	}

	p, err := album.Capture(ctx, source)
	if err != nil {
		return entity.PhotoEvidence{}, err
	}
	return p, ed.SetAndSave(ctx, album.Value())
}

// RemovePhoto drops a photo locally and re-saves the item's completion.
// Nothing is deleted on the server.
func (s *Session) RemovePhoto(ctx context.Context, itemID, uri string) error {
	album, err := s.Album(itemID)
	if err != nil {
		return err
	}
	if !album.Remove(uri) {
		return nil
	}
	ed, _ := s.Editor(itemID)
	return ed.SetAndSave(ctx, album.Value())
}

// RetryPhotos 用户主动重试未同步的照片
func (s *Session) RetryPhotos(ctx context.Context, itemID string) (int, error) {
	album, err := s.Album(itemID)
	if err != nil {
		return 0, err
	}
	n, err := album.RetryPending(ctx)
	if err != nil {
		return n, err
	}
	ed, _ := s.Editor(itemID)
	return n, ed.SetAndSave(ctx, album.Value())
}

// SignatureFlow starts the two-party capture for a SIGNATURE item. Its
// finalize step saves the item with both strokes, the coordinate and the
// capture time, and keeps the bundle for the checklist finalize call.
func (s *Session) SignatureFlow(itemID string) (*signature.Flow, error) {
	ed, err := s.Editor(itemID)
	if err != nil {
		return nil, err
	}
	if itemtype.FamilyOf(ed.Template().TipoPregunta) != itemtype.FamilySignature {
		return nil, fmt.Errorf("%w: %s", ErrNotSignatureItem, itemID)
	}
	if s.cfg.Locator == nil || s.cfg.Prompter == nil {
		return nil, ErrNoCapability
	}

	finalize := func(ctx context.Context, tech, client string, coord entity.Coordinate) error {
		at := s.now()
		bundle, err := signature.Bundle(tech, client, coord, at)
		if err != nil {
			return err
		}
		c := coord
		v := itemtype.SignatureValue{Tecnico: tech, Cliente: client, Ubicacion: &c, Fecha: &at}
		if err := ed.SetAndSave(ctx, v); err != nil {
			return err
		}
		s.mu.Lock()
		s.bundle = bundle
		s.mu.Unlock()
		if coord.IsSentinel() {
			s.logger.Warn("signature captured without GPS", zap.String("item_id", itemID))
		}
		return nil
	}

	flow := signature.NewFlow(s.cfg.Locator, s.cfg.Prompter, finalize)
	flow.SetTimeout(s.cfg.LocationTimeout)
	flow.SetLogger(s.logger)
	return flow, nil
}

// signatureBundle returns the bundle to send with finalize, or nil when the
// checklist has no signature item.
func (s *Session) signatureBundle() (*entity.SignatureCapture, error) {
	var sigItem *entity.ChecklistItemTemplate
	for i := range s.items {
		if itemtype.FamilyOf(s.items[i].TipoPregunta) == itemtype.FamilySignature {
			sigItem = &s.items[i]
			break
		}
	}

	s.mu.Lock()
	bundle := s.bundle
	s.mu.Unlock()
	if bundle != nil {
		return signature.Bundle(bundle.FirmaTecnico, bundle.FirmaCliente, bundle.UbicacionCaptura, bundle.FechaCaptura)
	}
	if sigItem == nil {
		return nil, nil
	}

	ed, _ := s.Editor(sigItem.ID)
	sv, _ := ed.Value().(itemtype.SignatureValue)
	if sv.Tecnico == "" && sv.Cliente == "" && !sigItem.EsObligatorioEfectivo {
		return nil, nil
	}
	coord := entity.SentinelCoordinate
	if sv.Ubicacion != nil {
		coord = *sv.Ubicacion
	}
	at := s.now()
	if sv.Fecha != nil {
		at = *sv.Fecha
	}
	return signature.Bundle(sv.Tecnico, sv.Cliente, coord, at)
}

// Finalize checks the gate and the signature bundle locally, then asks the
// server to complete the instance.
func (s *Session) Finalize(ctx context.Context) (*entity.ChecklistInstance, error) {
	if s.Estado() == entity.EstadoCompletado {
		inst := s.Instance()
		return &inst, nil
	}
	if p := s.Progress(); !p.Complete {
		return nil, fmt.Errorf("%w: pending %v", lifecycle.ErrChecklistIncomplete, p.Missing)
	}
	bundle, err := s.signatureBundle()
	if err != nil {
		return nil, err
	}

	remote, err := s.api.Finalize(ctx, s.Instance().ID, bundle)
	if err != nil {
		s.logger.Warn("finalize failed", zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if remote.Items == nil {
		remote.Items = s.inst.Items
	}
	if remote.Respuestas == nil {
		remote.Respuestas = s.inst.Respuestas
	}
	s.inst = lifecycle.Merge(s.inst, remote)
	out := *s.inst
	return &out, nil
}
