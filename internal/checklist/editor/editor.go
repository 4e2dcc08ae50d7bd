// Package editor drives the capture of one checklist answer: it owns the
// single edit buffer for an item, the modified flag and the save handshake
// with the persistence layer.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
)

var (
	ErrSaveInFlight = errors.New("a save for this item is already in flight")
	ErrWrongWidget  = errors.New("widget does not match item type")
)

// Saver persists one encoded answer.
type Saver interface {
	SaveResponse(ctx context.Context, instanceID, itemID string, p entity.Payload) (*entity.ChecklistItemResponse, error)
}

// Editor 单个检查项的编辑状态
type Editor struct {
	mu sync.Mutex

	instanceID string
	tpl        entity.ChecklistItemTemplate
	strategy   Strategy
	saver      Saver
	logger     *zap.Logger
	onSaved    func(*entity.ChecklistItemResponse)

	value     itemtype.Value
	modified  bool
	gen       uint64
	saving    bool
	followUp  bool
	persisted *entity.ChecklistItemResponse
}

// New 用模板和已保存的回答（可为 nil）创建编辑器
func New(instanceID string, tpl entity.ChecklistItemTemplate, resp *entity.ChecklistItemResponse, saver Saver) *Editor {
	return &Editor{
		instanceID: instanceID,
		tpl:        tpl,
		strategy:   SelectStrategy(tpl),
		saver:      saver,
		logger:     zap.NewNop(),
		value:      itemtype.Decode(tpl, resp),
		persisted:  resp,
	}
}

// SetLogger 设置日志
func (e *Editor) SetLogger(l *zap.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetOnSaved registers a callback run after each successful save, outside the lock.
func (e *Editor) SetOnSaved(fn func(*entity.ChecklistItemResponse)) {
	e.mu.Lock()
	e.onSaved = fn
	e.mu.Unlock()
}

func (e *Editor) Template() entity.ChecklistItemTemplate { return e.tpl }
func (e *Editor) Strategy() Strategy                     { return e.strategy }

// Value 当前编辑值
func (e *Editor) Value() itemtype.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Modified 是否有未保存修改
func (e *Editor) Modified() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modified
}

// Saving 是否正在保存
func (e *Editor) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Persisted 最近一次保存成功的回答
func (e *Editor) Persisted() *entity.ChecklistItemResponse {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persisted
}

// ResponseID 已保存回答的ID，未保存时为空
func (e *Editor) ResponseID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.persisted == nil {
		return ""
	}
	return e.persisted.ID
}

// Complete 当前编辑值是否满足完成判定
func (e *Editor) Complete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return itemtype.Complete(e.tpl, e.value)
}

// Set replaces the buffer. Validation happens on Save.
func (e *Editor) Set(v itemtype.Value) error {
	if v == nil || v.Family() != itemtype.FamilyOf(e.tpl.TipoPregunta) {
		return fmt.Errorf("%w: cannot set %v on %s", itemtype.ErrSlotMismatch, v, e.tpl.TipoPregunta)
	}
	e.mu.Lock()
	e.value = v
	e.modified = true
	e.gen++
	e.mu.Unlock()
	return nil
}

// SetInput 解析文本输入并写入缓冲
func (e *Editor) SetInput(input string) error {
	v, err := itemtype.Lookup(e.tpl.TipoPregunta).Parse(e.tpl, input)
	if err != nil {
		return err
	}
	return e.Set(v)
}

// Revert 放弃本地修改，回到已保存的值
func (e *Editor) Revert() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return
	}
	e.value = itemtype.Decode(e.tpl, e.persisted)
	e.modified = false
	e.gen++
}

// Save validates and persists the buffer. While a save is in flight another
// Save returns ErrSaveInFlight; edits made during the flight stay modified.
// On failure the buffer and the modified flag are left as they were.
func (e *Editor) Save(ctx context.Context) (*entity.ChecklistItemResponse, error) {
	return e.save(ctx, false)
}

// SetAndSave is the self-saving path used by widgets and capture flows.
// If a save is already running the edit is queued behind it.
func (e *Editor) SetAndSave(ctx context.Context, v itemtype.Value) error {
	if err := e.Set(v); err != nil {
		return err
	}
	_, err := e.save(ctx, true)
	return err
}

func (e *Editor) save(ctx context.Context, queue bool) (*entity.ChecklistItemResponse, error) {
	e.mu.Lock()
	if e.saving {
		if queue {
			e.followUp = true
			persisted := e.persisted
			e.mu.Unlock()
			return persisted, nil
		}
		e.mu.Unlock()
		return nil, ErrSaveInFlight
	}

	for {
		value, gen := e.value, e.gen
		if err := itemtype.Validate(e.tpl, value); err != nil {
			e.followUp = false
			e.mu.Unlock()
			return nil, err
		}
		payload, err := itemtype.Encode(e.tpl, value)
		if err != nil {
			e.followUp = false
			e.mu.Unlock()
			return nil, err
		}
		e.saving = true
		e.mu.Unlock()

		resp, err := e.saver.SaveResponse(ctx, e.instanceID, e.tpl.ID, payload)

		e.mu.Lock()
		e.saving = false
		if err != nil {
			e.followUp = false
			e.mu.Unlock()
			e.logger.Warn("save response failed",
				zap.String("instance_id", e.instanceID),
				zap.String("item_id", e.tpl.ID),
				zap.Error(err))
			return nil, err
		}
		if resp != nil {
			// 照片随上传单独同步，服务端返回的回答不覆盖本地列表
			if e.persisted != nil && len(resp.Fotos) == 0 {
				resp.Fotos = e.persisted.Fotos
			}
			e.persisted = resp
		}
		if e.gen == gen {
			e.modified = false
		}
		onSaved := e.onSaved
		again := e.followUp && e.modified
		e.followUp = false
		if !again {
			persisted := e.persisted
			e.mu.Unlock()
			if onSaved != nil {
				onSaved(persisted)
			}
			return persisted, nil
		}
	}
}
