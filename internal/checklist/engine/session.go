// Package engine ties the checklist pieces together on the client: it loads
// the instance for an order, hands out one editor per item, routes photo and
// signature capture, and exposes finalize once the gate is open.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/editor"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/photo"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/signature"
)

var (
	ErrItemNotFound     = errors.New("checklist item not found")
	ErrNotPhotoItem     = errors.New("item is not a photo item")
	ErrNotSignatureItem = errors.New("item is not a signature item")
	ErrNoCapability     = errors.New("capture capability not configured")
)

// API is the persistence layer as seen from the device.
type API interface {
	GetInstanceByOrder(ctx context.Context, orderID string) (*entity.ChecklistInstance, error)
	SaveResponse(ctx context.Context, instanceID, itemID string, p entity.Payload) (*entity.ChecklistItemResponse, error)
	UploadPhoto(ctx context.Context, uri, responseID, descripcion string) (*entity.PhotoEvidence, error)
	Finalize(ctx context.Context, instanceID string, bundle *entity.SignatureCapture) (*entity.ChecklistInstance, error)
}

// Config 会话依赖
type Config struct {
	Picker          photo.Picker
	Locator         signature.Locator
	Prompter        signature.Prompter
	LocationTimeout time.Duration
	Logger          *zap.Logger
}

// Session 一个订单的检查单会话
type Session struct {
	mu sync.Mutex

	api    API
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	inst    *entity.ChecklistInstance
	items   []entity.ChecklistItemTemplate
	editors map[string]*editor.Editor
	albums  map[string]*photo.Album
	bundle  *entity.SignatureCapture
	cursor  int
}

// Open loads (lazily creating server side) the instance of an order.
func Open(ctx context.Context, api API, orderID string, cfg Config) (*Session, error) {
	inst, err := api.GetInstanceByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load checklist for order %s: %w", orderID, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		api:     api,
		cfg:     cfg,
		logger:  logger.With(zap.String("instance_id", inst.ID), zap.String("order_id", orderID)),
		now:     time.Now,
		editors: make(map[string]*editor.Editor),
		albums:  make(map[string]*photo.Album),
	}
	s.load(inst)
	return s, nil
}

func (s *Session) load(inst *entity.ChecklistInstance) {
	if inst.Respuestas == nil {
		inst.Respuestas = make(map[string]*entity.ChecklistItemResponse)
	}
	items := make([]entity.ChecklistItemTemplate, len(inst.Items))
	copy(items, inst.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].OrdenVisual < items[j].OrdenVisual })

	s.inst = inst
	s.items = items
	if inst.Firma.Complete() {
		s.bundle = inst.Firma
	}
	for _, tpl := range items {
		s.editors[tpl.ID] = s.newEditor(tpl, inst.Respuestas[tpl.ID])
	}
}

func (s *Session) newEditor(tpl entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse) *editor.Editor {
	ed := editor.New(s.inst.ID, tpl, resp, s.api)
	ed.SetLogger(s.logger)
	itemID := tpl.ID
	ed.SetOnSaved(func(r *entity.ChecklistItemResponse) { s.onSaved(itemID, r) })
	return ed
}

// onSaved records the response locally and moves PENDIENTE → EN_PROGRESO.
func (s *Session) onSaved(itemID string, resp *entity.ChecklistItemResponse) {
	s.mu.Lock()
	if resp != nil {
		s.inst.Respuestas[itemID] = resp
	}
	changed, err := lifecycle.Advance(s.inst, entity.EstadoEnProgreso, s.now())
	album := s.albums[itemID]
	s.mu.Unlock()

	if err != nil && !errors.Is(err, lifecycle.ErrInvalidTransition) {
		s.logger.Warn("advance estado failed", zap.Error(err))
	}
	if changed {
		s.logger.Info("checklist started", zap.String("item_id", itemID))
	}
	if album != nil && resp != nil && resp.ID != "" {
		album.SetResponseID(resp.ID)
	}
}

// Instance 当前实例（副本）
func (s *Session) Instance() entity.ChecklistInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.inst
}

// Estado 当前状态
func (s *Session) Estado() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inst.Estado
}

// Items 按 orden_visual 排序的模板
func (s *Session) Items() []entity.ChecklistItemTemplate {
	out := make([]entity.ChecklistItemTemplate, len(s.items))
	copy(out, s.items)
	return out
}

// Current 当前题目
func (s *Session) Current() (entity.ChecklistItemTemplate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return entity.ChecklistItemTemplate{}, false
	}
	return s.items[s.cursor], true
}

// Next 下一题，已是最后一题时返回 false
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor+1 >= len(s.items) {
		return false
	}
	s.cursor++
	return true
}

// Prev 上一题
func (s *Session) Prev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == 0 {
		return false
	}
	s.cursor--
	return true
}

// Goto 跳到指定题目
func (s *Session) Goto(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tpl := range s.items {
		if tpl.ID == itemID {
			s.cursor = i
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// Editor 取题目的编辑器
func (s *Session) Editor(itemID string) (*editor.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ed, ok := s.editors[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return ed, nil
}

// Save 显式保存一题
func (s *Session) Save(ctx context.Context, itemID string) (*entity.ChecklistItemResponse, error) {
	ed, err := s.Editor(itemID)
	if err != nil {
		return nil, err
	}
	return ed.Save(ctx)
}

// Answer parses text input for an item and saves it.
func (s *Session) Answer(ctx context.Context, itemID, input string) (*entity.ChecklistItemResponse, error) {
	ed, err := s.Editor(itemID)
	if err != nil {
		return nil, err
	}
	if err := ed.SetInput(input); err != nil {
		return nil, err
	}
	return ed.Save(ctx)
}

// Values 所有题目的当前编辑值
func (s *Session) Values() map[string]itemtype.Value {
	s.mu.Lock()
	editors := make(map[string]*editor.Editor, len(s.editors))
	for id, ed := range s.editors {
		editors[id] = ed
	}
	s.mu.Unlock()

	out := make(map[string]itemtype.Value, len(editors))
	for id, ed := range editors {
		out[id] = ed.Value()
	}
	return out
}

// Progress 当前完成度
func (s *Session) Progress() lifecycle.Progress {
	return lifecycle.Evaluate(s.items, s.Values())
}

// CanFinalize 是否可以结束检查单
func (s *Session) CanFinalize() bool {
	return s.Estado() != entity.EstadoCompletado && s.Progress().Complete
}

// Reload merges a fresh server copy. Items with unsaved local edits keep
// their editor; estado never moves backwards. Photo items keep their album
// so captures that failed to upload survive the reload.
func (s *Session) Reload(ctx context.Context) error {
	remote, err := s.api.GetInstanceByOrder(ctx, s.Instance().OrdenID)
	if err != nil {
		return err
	}
	if remote.Respuestas == nil {
		remote.Respuestas = make(map[string]*entity.ChecklistItemResponse)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := lifecycle.Merge(s.inst, remote)
	s.inst = merged
	for _, tpl := range s.items {
		ed := s.editors[tpl.ID]
		if ed != nil && (ed.Modified() || ed.Saving()) {
			if local := ed.Persisted(); local != nil {
				merged.Respuestas[tpl.ID] = local
			}
			continue
		}
		resp := merged.Respuestas[tpl.ID]
		if album, ok := s.albums[tpl.ID]; ok {
			photos := album.Merge(resp)
			if resp != nil || len(photos) > 0 {
				local := entity.ChecklistItemResponse{}
				if resp != nil {
					local = *resp
				}
				local.Fotos = photos
				resp = &local
			}
		}
		s.editors[tpl.ID] = s.newEditor(tpl, resp)
	}
	if merged.Firma.Complete() {
		s.bundle = merged.Firma
	}
	return nil
}
