package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/repository"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/sse"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/config"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/shared/cache"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInstanceNotFound   = errors.New("checklist instance not found")
	ErrResponseNotFound   = errors.New("checklist response not found")
	ErrItemNotFound       = errors.New("checklist item not found")
	ErrNotPhotoItem       = errors.New("item is not a photo item")
	ErrNoChecklist        = errors.New("order has no checklist assigned")
	ErrInstanceCompleted  = errors.New("checklist already completed")
	ErrFinalizeInProgress = errors.New("checklist finalize already in progress")
	ErrConcurrentUpdate   = errors.New("checklist estado changed concurrently")
	ErrOrderState         = errors.New("order cannot be finished in its current estado")
	ErrPhotoTooLarge      = errors.New("photo exceeds the size limit")
)

// TemplateStore 模板读取
type TemplateStore interface {
	FindByID(ctx context.Context, id string) (*entity.ChecklistDefinition, error)
	FindItems(ctx context.Context, checklistID string) ([]entity.ChecklistItemTemplate, error)
}

// InstanceStore 实例读写
type InstanceStore interface {
	FindByID(ctx context.Context, id string) (*entity.ChecklistInstance, error)
	FindByOrderID(ctx context.Context, orderID string) (*entity.ChecklistInstance, error)
	FindOrCreate(ctx context.Context, orderID, checklistID string) (*entity.ChecklistInstance, bool, error)
	UpdateEstado(ctx context.Context, inst *entity.ChecklistInstance, from string) (bool, error)
	Complete(ctx context.Context, inst *entity.ChecklistInstance, from string, firma *entity.SignatureCapture) (bool, error)
}

// ResponseStore 回答读写
type ResponseStore interface {
	FindByID(ctx context.Context, id string) (*entity.ChecklistItemResponse, error)
	FindByInstance(ctx context.Context, instanceID string) ([]entity.ChecklistItemResponse, error)
	Upsert(ctx context.Context, resp *entity.ChecklistItemResponse) (*entity.ChecklistItemResponse, error)
}

// PhotoStore 照片写入
type PhotoStore interface {
	Create(ctx context.Context, photo *entity.PhotoEvidence) error
}

// SignatureStore 签名读取
type SignatureStore interface {
	FindByInstance(ctx context.Context, instanceID string) (*entity.SignatureCapture, error)
}

// OrderStore 订单读写
type OrderStore interface {
	FindByID(ctx context.Context, id string) (*entity.ServiceOrder, error)
	MarkFinished(ctx context.Context, id string, at time.Time) error
}

// ActivityStore 操作日志
type ActivityStore interface {
	LogActivity(ctx context.Context, log entity.ActivityLog)
	FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error)
}

// ObjectStore 照片对象存储
type ObjectStore interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

// Publisher 实时进度推送
type Publisher interface {
	PublishChecklistUpdate(userID string, u sse.ChecklistUpdate)
}

// Stores 服务依赖的存储
type Stores struct {
	Templates  TemplateStore
	Instances  InstanceStore
	Responses  ResponseStore
	Photos     PhotoStore
	Signatures SignatureStore
	Orders     OrderStore
	Activity   ActivityStore
}

// StoresFrom 用 gorm 仓库组装存储
func StoresFrom(repos *repository.Repositories) Stores {
	return Stores{
		Templates:  repos.Checklist,
		Instances:  repos.Instance,
		Responses:  repos.Response,
		Photos:     repos.Photo,
		Signatures: repos.Signature,
		Orders:     repos.Order,
		Activity:   repos.ActivityLog,
	}
}

// Services 服务集合
type Services struct {
	Checklist *ChecklistService
	Order     *OrderService
	Export    *ExportService
}

// NewServices 创建服务集合。cache、objects、publisher 可以为 nil
func NewServices(stores Stores, c *cache.Cache, objects ObjectStore, publisher Publisher, cfg config.ChecklistConfig, logger *zap.Logger) *Services {
	orderSvc := NewOrderService(stores.Orders, stores.Instances)
	orderSvc.SetActivityStore(stores.Activity)
	orderSvc.SetLogger(logger)

	checklistSvc := NewChecklistService(stores, orderSvc, cfg)
	checklistSvc.SetLogger(logger)
	if c != nil {
		checklistSvc.SetCache(c)
	}
	if objects != nil {
		checklistSvc.SetObjectStore(objects)
	}
	if publisher != nil {
		checklistSvc.SetPublisher(publisher)
	}

	return &Services{
		Checklist: checklistSvc,
		Order:     orderSvc,
		Export:    NewExportService(checklistSvc),
	}
}

type operatorKey struct{}

// WithOperator 在 context 中记录操作人
func WithOperator(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, operatorKey{}, userID)
}

// OperatorFrom 取操作人
func OperatorFrom(ctx context.Context) string {
	id, _ := ctx.Value(operatorKey{}).(string)
	return id
}

func notFound(err, sentinel error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return sentinel
	}
	return err
}
