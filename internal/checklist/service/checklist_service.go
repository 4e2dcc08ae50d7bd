package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/sse"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/config"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/metrics"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/shared/cache"
)

const (
	defaultTemplateTTL = 10 * time.Minute
	defaultLockTTL     = 30 * time.Second
	entityInstancia    = "instancia"
)

// ChecklistService 检查单服务端：实例懒创建、回答保存、照片上传、结束检查单
type ChecklistService struct {
	templates  TemplateStore
	instances  InstanceStore
	responses  ResponseStore
	photos     PhotoStore
	signatures SignatureStore
	activity   ActivityStore
	orders     *OrderService

	cache     *cache.Cache
	objects   ObjectStore
	publisher Publisher
	logger    *zap.Logger
	cfg       config.ChecklistConfig
	now       func() time.Time
}

func NewChecklistService(stores Stores, orders *OrderService, cfg config.ChecklistConfig) *ChecklistService {
	return &ChecklistService{
		templates:  stores.Templates,
		instances:  stores.Instances,
		responses:  stores.Responses,
		photos:     stores.Photos,
		signatures: stores.Signatures,
		activity:   stores.Activity,
		orders:     orders,
		logger:     zap.NewNop(),
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetCache 注入 Redis 缓存（模板缓存 + 结束锁）
func (s *ChecklistService) SetCache(c *cache.Cache) {
	s.cache = c
}

// SetObjectStore 注入照片对象存储
func (s *ChecklistService) SetObjectStore(o ObjectStore) {
	s.objects = o
}

// SetPublisher 注入 SSE 推送
func (s *ChecklistService) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetLogger 注入日志
func (s *ChecklistService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// GetInstanceByOrder returns the order's instance, creating it PENDIENTE on
// first access.
func (s *ChecklistService) GetInstanceByOrder(ctx context.Context, orderID string) (*entity.ChecklistInstance, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ChecklistID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoChecklist, orderID)
	}

	inst, created, err := s.instances.FindOrCreate(ctx, orderID, order.ChecklistID)
	if err != nil {
		return nil, fmt.Errorf("create checklist instance: %w", err)
	}
	if created {
		s.logger.Info("checklist instance created", zap.String("order_id", orderID), zap.String("instance_id", inst.ID))
		s.logActivity(ctx, inst.ID, entity.ActionStatusChange, "", entity.EstadoPendiente, "Checklist creado", nil)
	}
	return s.load(ctx, inst, order)
}

// GetInstance 根据ID获取完整实例
func (s *ChecklistService) GetInstance(ctx context.Context, instanceID string) (*entity.ChecklistInstance, error) {
	inst, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, notFound(err, ErrInstanceNotFound)
	}
	order, err := s.orders.Get(ctx, inst.OrdenID)
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, err
	}
	return s.load(ctx, inst, order)
}

// load fills templates, responses and the signature in parallel.
func (s *ChecklistService) load(ctx context.Context, inst *entity.ChecklistInstance, order *entity.ServiceOrder) (*entity.ChecklistInstance, error) {
	var (
		items     []entity.ChecklistItemTemplate
		responses []entity.ChecklistItemResponse
		firma     *entity.SignatureCapture
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.items(gctx, inst.ChecklistID)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = s.responses.FindByInstance(gctx, inst.ID)
		return err
	})
	g.Go(func() error {
		var err error
		firma, err = s.signatures.FindByInstance(gctx, inst.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load checklist %s: %w", inst.ID, err)
	}

	inst.Items = s.orders.ResolveObligations(order, items)
	inst.Respuestas = make(map[string]*entity.ChecklistItemResponse, len(responses))
	for i := range responses {
		inst.Respuestas[responses[i].ItemTemplateID] = &responses[i]
	}
	inst.Firma = firma
	return inst, nil
}

// items 读取模板，命中缓存时不查库
func (s *ChecklistService) items(ctx context.Context, checklistID string) ([]entity.ChecklistItemTemplate, error) {
	key := "templates:" + checklistID
	if s.cache != nil {
		var cached []entity.ChecklistItemTemplate
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("template cache read failed", zap.String("checklist_id", checklistID), zap.Error(err))
		}
		if hit {
			return cached, nil
		}
	}

	items, err := s.templates.FindItems(ctx, checklistID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].OrdenVisual < items[j].OrdenVisual })

	if s.cache != nil {
		ttl := s.cfg.TemplateCacheTTL
		if ttl <= 0 {
			ttl = defaultTemplateTTL
		}
		if err := s.cache.SetJSON(ctx, key, items, ttl); err != nil {
			s.logger.Warn("template cache write failed", zap.String("checklist_id", checklistID), zap.Error(err))
		}
	}
	return items, nil
}

func (s *ChecklistService) item(ctx context.Context, checklistID, itemID string) (entity.ChecklistItemTemplate, error) {
	items, err := s.items(ctx, checklistID)
	if err != nil {
		return entity.ChecklistItemTemplate{}, err
	}
	for _, it := range items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return entity.ChecklistItemTemplate{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// SaveResponse validates and upserts one item's answer. completado is
// re-derived here; only photo items keep the client's flag. The first save
// moves the instance to EN_PROGRESO.
func (s *ChecklistService) SaveResponse(ctx context.Context, instanceID, itemID string, p entity.Payload) (*entity.ChecklistItemResponse, error) {
	inst, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, notFound(err, ErrInstanceNotFound)
	}
	if inst.Estado == entity.EstadoCompletado {
		return nil, ErrInstanceCompleted
	}
	tpl, err := s.item(ctx, inst.ChecklistID, itemID)
	if err != nil {
		return nil, err
	}
	family := itemtype.FamilyOf(tpl.TipoPregunta).String()

	if err := itemtype.CheckSlots(tpl, p); err != nil {
		metrics.ResponsesSaved.WithLabelValues(family, metrics.ResultInvalid).Inc()
		return nil, err
	}
	if err := itemtype.Validate(tpl, itemtype.PayloadValue(tpl, p)); err != nil {
		metrics.ResponsesSaved.WithLabelValues(family, metrics.ResultInvalid).Inc()
		return nil, err
	}
	p.Completado = itemtype.Completion(tpl, p)

	resp := &entity.ChecklistItemResponse{InstanciaID: inst.ID, ItemTemplateID: tpl.ID}
	resp.Apply(p)
	saved, err := s.responses.Upsert(ctx, resp)
	if err != nil {
		metrics.ResponsesSaved.WithLabelValues(family, metrics.ResultError).Inc()
		return nil, fmt.Errorf("save response: %w", err)
	}
	metrics.ResponsesSaved.WithLabelValues(family, metrics.ResultOK).Inc()

	s.logActivity(ctx, inst.ID, entity.ActionSave, "", "", fmt.Sprintf("Respuesta guardada: %s", tpl.PreguntaTexto), entity.JSONB{
		"item_id":     tpl.ID,
		"response_id": saved.ID,
		"completado":  saved.Completado,
	})
	if inst.Estado == entity.EstadoPendiente {
		if err := s.advance(ctx, inst, entity.EstadoEnProgreso); err != nil {
			s.logger.Warn("advance estado failed", zap.String("instance_id", inst.ID), zap.Error(err))
		}
	}
	s.publish(inst, tpl.ID, entity.ActionSave)
	return saved, nil
}

// advance persists a forward estado move. Losing the race to another
// request is not an error.
func (s *ChecklistService) advance(ctx context.Context, inst *entity.ChecklistInstance, to string) error {
	from := inst.Estado
	changed, err := lifecycle.Advance(inst, to, s.now())
	if err != nil || !changed {
		return err
	}
	moved, err := s.instances.UpdateEstado(ctx, inst, from)
	if err != nil {
		return err
	}
	if moved {
		metrics.EstadoTransitions.WithLabelValues(to).Inc()
		s.logActivity(ctx, inst.ID, entity.ActionStatusChange, from, to, "Checklist iniciado", nil)
	}
	return nil
}

// PhotoUpload 上传的照片文件
type PhotoUpload struct {
	URI         string
	Descripcion string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AddPhoto stores the file and appends a synchronized PhotoEvidence to the
// response. Photos are never deleted server side.
func (s *ChecklistService) AddPhoto(ctx context.Context, responseID string, up PhotoUpload) (*entity.PhotoEvidence, error) {
	resp, err := s.responses.FindByID(ctx, responseID)
	if err != nil {
		return nil, notFound(err, ErrResponseNotFound)
	}
	inst, err := s.instances.FindByID(ctx, resp.InstanciaID)
	if err != nil {
		return nil, notFound(err, ErrInstanceNotFound)
	}
	if inst.Estado == entity.EstadoCompletado {
		return nil, ErrInstanceCompleted
	}
	tpl, err := s.item(ctx, inst.ChecklistID, resp.ItemTemplateID)
	if err != nil {
		return nil, err
	}
	if itemtype.FamilyOf(tpl.TipoPregunta) != itemtype.FamilyPhoto {
		return nil, fmt.Errorf("%w: %s", ErrNotPhotoItem, tpl.ID)
	}
	if s.cfg.MaxPhotoSize > 0 && up.Size > s.cfg.MaxPhotoSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPhotoTooLarge, up.Size)
	}

	ext := path.Ext(up.FileName)
	if ext == "" {
		ext = ".jpg"
	}
	prefix := s.cfg.PhotoPrefix
	if prefix == "" {
		prefix = "checklist-fotos"
	}
	objectName := fmt.Sprintf("%s/%s/%s/%s%s", prefix, inst.ID, resp.ID, uuid.New().String()[:8], ext)

	var url string
	if s.objects != nil {
		url, err = s.objects.Put(ctx, objectName, up.Body, up.Size, up.ContentType)
		if err != nil {
			metrics.PhotoUploads.WithLabelValues(metrics.ResultError).Inc()
			s.logger.Warn("photo upload failed", zap.String("response_id", resp.ID), zap.Error(err))
			return nil, err
		}
	}

	photo := &entity.PhotoEvidence{
		RespuestaID:  resp.ID,
		URI:          up.URI,
		URL:          url,
		Descripcion:  up.Descripcion,
		Sincronizada: true,
		FechaCaptura: s.now(),
	}
	if err := s.photos.Create(ctx, photo); err != nil {
		metrics.PhotoUploads.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("save photo: %w", err)
	}
	metrics.PhotoUploads.WithLabelValues(metrics.ResultOK).Inc()

	s.logActivity(ctx, inst.ID, entity.ActionPhotoUpload, "", "", "Foto subida", entity.JSONB{
		"item_id":     tpl.ID,
		"response_id": resp.ID,
		"photo_id":    photo.ID,
	})
	s.publish(inst, tpl.ID, entity.ActionPhotoUpload)
	return photo, nil
}

// Finalize completes the instance. Calls are serialized per instance; a
// COMPLETADO instance is returned unchanged.
func (s *ChecklistService) Finalize(ctx context.Context, instanceID string, firma *entity.SignatureCapture) (*entity.ChecklistInstance, error) {
	if s.cache != nil {
		ttl := s.cfg.FinalizeLockTTL
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		lock, err := s.cache.Acquire(ctx, "finalize:"+instanceID, ttl)
		if errors.Is(err, cache.ErrLocked) {
			metrics.Finalizations.WithLabelValues(metrics.ResultConflict).Inc()
			return nil, ErrFinalizeInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("acquire finalize lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release finalize lock", zap.String("instance_id", instanceID), zap.Error(err))
			}
		}()
	}

	inst, err := s.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.Estado == entity.EstadoCompletado {
		return inst, nil
	}

	if p := lifecycle.EvaluateResponses(inst.Items, inst.Respuestas); !p.Complete {
		metrics.Finalizations.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, fmt.Errorf("%w: pending %v", lifecycle.ErrChecklistIncomplete, p.Missing)
	}
	bundle, err := s.resolveFirma(inst, firma)
	if err != nil {
		metrics.Finalizations.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}
	from := inst.Estado
	if _, err := lifecycle.Advance(inst, entity.EstadoCompletado, s.now()); err != nil {
		metrics.Finalizations.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}

	moved, err := s.instances.Complete(ctx, inst, from, bundle)
	if err != nil {
		metrics.Finalizations.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("complete checklist: %w", err)
	}
	if !moved {
		fresh, err := s.GetInstance(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		if fresh.Estado == entity.EstadoCompletado {
			return fresh, nil
		}
		metrics.Finalizations.WithLabelValues(metrics.ResultConflict).Inc()
		return nil, ErrConcurrentUpdate
	}
	if bundle != nil {
		inst.Firma = bundle
	}

	metrics.Finalizations.WithLabelValues(metrics.ResultOK).Inc()
	metrics.EstadoTransitions.WithLabelValues(entity.EstadoCompletado).Inc()
	meta := entity.JSONB{}
	if bundle != nil {
		meta["sin_gps"] = bundle.UbicacionCaptura.IsSentinel()
	}
	s.logActivity(ctx, inst.ID, entity.ActionFinalize, from, entity.EstadoCompletado, "Checklist finalizado", meta)
	s.logger.Info("checklist finalized", zap.String("instance_id", inst.ID), zap.String("order_id", inst.OrdenID))
	s.publish(inst, "", entity.ActionFinalize)
	return inst, nil
}

// resolveFirma picks the bundle to store: the one sent with finalize, or the
// one saved on the signature item. A bundle with a single firma is refused.
func (s *ChecklistService) resolveFirma(inst *entity.ChecklistInstance, firma *entity.SignatureCapture) (*entity.SignatureCapture, error) {
	required := false
	if firma == nil {
		for _, tpl := range inst.Items {
			if itemtype.FamilyOf(tpl.TipoPregunta) != itemtype.FamilySignature {
				continue
			}
			required = required || tpl.EsObligatorioEfectivo
			sv, _ := itemtype.Decode(tpl, inst.Response(tpl.ID)).(itemtype.SignatureValue)
			if sv.Tecnico == "" && sv.Cliente == "" {
				continue
			}
			firma = &entity.SignatureCapture{
				FirmaTecnico:     sv.Tecnico,
				FirmaCliente:     sv.Cliente,
				UbicacionCaptura: entity.SentinelCoordinate,
			}
			if sv.Ubicacion != nil {
				firma.UbicacionCaptura = *sv.Ubicacion
			}
			if sv.Fecha != nil {
				firma.FechaCaptura = *sv.Fecha
			}
			break
		}
	}
	if firma == nil {
		if required {
			return nil, fmt.Errorf("%w: signature required", itemtype.ErrIncompleteSignature)
		}
		return nil, nil
	}
	if !firma.Complete() {
		return nil, itemtype.ErrIncompleteSignature
	}
	out := *firma
	out.InstanciaID = inst.ID
	if out.FechaCaptura.IsZero() {
		out.FechaCaptura = s.now()
	}
	return &out, nil
}

// GateStatus 订单结束前的检查单门禁
type GateStatus struct {
	OrderID   string             `json:"order_id"`
	CanFinish bool               `json:"can_finish"`
	Estado    string             `json:"estado"`
	Missing   []string           `json:"missing"`
	Progress  lifecycle.Progress `json:"progress"`
}

// Gate 订单能否结束服务
func (s *ChecklistService) Gate(ctx context.Context, orderID string) (*GateStatus, error) {
	inst, err := s.GetInstanceByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	p := lifecycle.EvaluateResponses(inst.Items, inst.Respuestas)
	return &GateStatus{
		OrderID:   orderID,
		CanFinish: lifecycle.Gate(inst) == nil,
		Estado:    inst.Estado,
		Missing:   p.Missing,
		Progress:  p,
	}, nil
}

// Progress 检查单完成度
func (s *ChecklistService) Progress(ctx context.Context, instanceID string) (lifecycle.Progress, error) {
	inst, err := s.GetInstance(ctx, instanceID)
	if err != nil {
		return lifecycle.Progress{}, err
	}
	return lifecycle.EvaluateResponses(inst.Items, inst.Respuestas), nil
}

// Activities 检查单操作日志
func (s *ChecklistService) Activities(ctx context.Context, instanceID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	if s.activity == nil {
		return []entity.ActivityLog{}, 0, nil
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.activity.FindByEntity(ctx, entityInstancia, instanceID, page, pageSize)
}

func (s *ChecklistService) logActivity(ctx context.Context, instanceID, action, from, to, content string, meta entity.JSONB) {
	if s.activity == nil {
		return
	}
	s.activity.LogActivity(ctx, entity.ActivityLog{
		EntityType: entityInstancia,
		EntityID:   instanceID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Content:    content,
		Metadata:   meta,
		OperatorID: OperatorFrom(ctx),
	})
}

func (s *ChecklistService) publish(inst *entity.ChecklistInstance, itemID, action string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishChecklistUpdate("", sse.ChecklistUpdate{
		InstanceID: inst.ID,
		Orden:      inst.OrdenID,
		ItemID:     itemID,
		Action:     action,
		Estado:     inst.Estado,
	})
}
