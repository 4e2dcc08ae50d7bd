// Package photo keeps the device-side list of photo evidence for one
// checklist answer and pushes captures to the server on a best-effort basis.
package photo

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
)

var (
	ErrCaptureCancelled = errors.New("photo capture cancelled")
	ErrNoResponse       = errors.New("response not saved yet")
)

// Source 照片来源
type Source int

const (
	SourceCamera Source = iota
	SourceLibrary
)

func (s Source) String() string {
	if s == SourceLibrary {
		return "library"
	}
	return "camera"
}

// Asset 选取的图片
type Asset struct {
	URI         string
	Descripcion string
}

// Result is what a capture capability hands back.
type Result struct {
	Success bool
	Data    Asset
	Error   error
}

// Picker 相机/相册能力
type Picker interface {
	Pick(ctx context.Context, source Source) Result
}

// Uploader 照片上传
type Uploader interface {
	UploadPhoto(ctx context.Context, uri, responseID, descripcion string) (*entity.PhotoEvidence, error)
}

// Album 单个回答的照片列表
type Album struct {
	mu         sync.Mutex
	tpl        entity.ChecklistItemTemplate
	responseID string
	photos     []entity.PhotoEvidence

	picker   Picker
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time
}

// NewAlbum 由已保存的回答初始化（可为 nil）
func NewAlbum(tpl entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse, picker Picker, uploader Uploader) *Album {
	a := &Album{
		tpl:      tpl,
		picker:   picker,
		uploader: uploader,
		logger:   zap.NewNop(),
		now:      time.Now,
		photos:   []entity.PhotoEvidence{},
	}
	if resp != nil {
		a.responseID = resp.ID
		if len(resp.Fotos) > 0 {
			a.photos = make([]entity.PhotoEvidence, len(resp.Fotos))
			copy(a.photos, resp.Fotos)
		}
	}
	return a
}

// SetLogger 设置日志
func (a *Album) SetLogger(l *zap.Logger) {
	if l != nil {
		a.logger = l
	}
}

// SetResponseID 回答保存后绑定ID
func (a *Album) SetResponseID(id string) {
	a.mu.Lock()
	a.responseID = id
	a.mu.Unlock()
}

// ResponseID 返回绑定的回答ID
func (a *Album) ResponseID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.responseID
}

// Photos 当前照片（副本）
func (a *Album) Photos() []entity.PhotoEvidence {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]entity.PhotoEvidence, len(a.photos))
	copy(out, a.photos)
	return out
}

// Merge replaces the list with the server copy of the response and keeps
// the local photos that never reached the server, matched by URI. The
// merged list is renumbered and returned.
func (a *Album) Merge(resp *entity.ChecklistItemResponse) []entity.PhotoEvidence {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := []entity.PhotoEvidence{}
	remote := make(map[string]bool)
	if resp != nil {
		if resp.ID != "" {
			a.responseID = resp.ID
		}
		for _, p := range resp.Fotos {
			p.Sincronizada = true
			remote[p.URI] = true
			next = append(next, p)
		}
	}
	for _, p := range a.photos {
		if p.Sincronizada || remote[p.URI] {
			continue
		}
		next = append(next, p)
	}
	for i := range next {
		next[i].OrdenEnRespuesta = i + 1
	}
	a.photos = next

	out := make([]entity.PhotoEvidence, len(next))
	copy(out, next)
	return out
}

// Pending 未同步数量
func (a *Album) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, p := range a.photos {
		if !p.Sincronizada {
			n++
		}
	}
	return n
}

// Complete depends on photo count only, never on sync status.
func (a *Album) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.photos) >= itemtype.MinFotos(a.tpl)
}

// Value 供编辑器使用的编辑值
func (a *Album) Value() itemtype.PhotoValue {
	return itemtype.PhotoValue{Photos: a.Photos()}
}

// Capture picks an asset, appends it locally and, when the response already
// exists on the server, uploads it right away. Upload failures only leave
// the photo unsynchronized.
func (a *Album) Capture(ctx context.Context, source Source) (entity.PhotoEvidence, error) {
	res := a.picker.Pick(ctx, source)
	if !res.Success {
		if res.Error != nil {
			return entity.PhotoEvidence{}, res.Error
		}
		return entity.PhotoEvidence{}, ErrCaptureCancelled
	}

	a.mu.Lock()
	p := entity.PhotoEvidence{
		URI:              res.Data.URI,
		Descripcion:      res.Data.Descripcion,
		OrdenEnRespuesta: len(a.photos) + 1,
		FechaCaptura:     a.now(),
	}
	next := make([]entity.PhotoEvidence, len(a.photos), len(a.photos)+1)
	copy(next, a.photos)
	a.photos = append(next, p)
	responseID := a.responseID
	a.mu.Unlock()

	if responseID == "" {
		return p, nil
	}
	if synced, ok := a.upload(ctx, responseID, p); ok {
		return synced, nil
	}
	return p, nil
}

// Remove drops a photo from the local list only.
func (a *Album) Remove(uri string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := make([]entity.PhotoEvidence, 0, len(a.photos))
	removed := false
	for _, p := range a.photos {
		if p.URI == uri && !removed {
			removed = true
			continue
		}
		p.OrdenEnRespuesta = len(next) + 1
		next = append(next, p)
	}
	if removed {
		a.photos = next
	}
	return removed
}

// RetryPending uploads every unsynchronized photo again. It is only called
// on an explicit user action.
func (a *Album) RetryPending(ctx context.Context) (int, error) {
	responseID := a.ResponseID()
	if responseID == "" {
		return 0, ErrNoResponse
	}
	synced := 0
	for _, p := range a.Photos() {
		if p.Sincronizada {
			continue
		}
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if _, ok := a.upload(ctx, responseID, p); ok {
			synced++
		}
	}
	return synced, nil
}

func (a *Album) upload(ctx context.Context, responseID string, p entity.PhotoEvidence) (entity.PhotoEvidence, bool) {
	remote, err := a.uploader.UploadPhoto(ctx, p.URI, responseID, p.Descripcion)
	if err != nil {
		a.logger.Warn("photo upload failed, kept local",
			zap.String("response_id", responseID),
			zap.String("uri", p.URI),
			zap.Error(err))
		return p, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	next := make([]entity.PhotoEvidence, len(a.photos))
	copy(next, a.photos)
	for i := range next {
		if next[i].URI != p.URI {
			continue
		}
		next[i].Sincronizada = true
		if remote != nil {
			next[i].ID = remote.ID
			next[i].URL = remote.URL
			next[i].RespuestaID = responseID
		}
		a.photos = next
		return next[i], true
	}
	// 上传期间已被本地删除
	return p, false
}
