package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/repository"
	"go.uber.org/zap"
)

// OrderService 服务订单协作方：查询订单、解析有效必填项、结束服务
type OrderService struct {
	orders    OrderStore
	instances InstanceStore
	activity  ActivityStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrderService(orders OrderStore, instances InstanceStore) *OrderService {
	return &OrderService{
		orders:    orders,
		instances: instances,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

// SetActivityStore 注入操作日志
func (s *OrderService) SetActivityStore(a ActivityStore) {
	s.activity = a
}

// SetLogger 注入日志
func (s *OrderService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Get 获取订单
func (s *OrderService) Get(ctx context.Context, orderID string) (*entity.ServiceOrder, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return order, nil
}

// ResolveObligations returns a copy of the templates with the effective
// obligatory flag set. The order's overrides win; templates it does not
// mention keep their base flag.
func (s *OrderService) ResolveObligations(order *entity.ServiceOrder, items []entity.ChecklistItemTemplate) []entity.ChecklistItemTemplate {
	out := make([]entity.ChecklistItemTemplate, len(items))
	copy(out, items)
	for i := range out {
		out[i].EsObligatorioEfectivo = out[i].EsObligatorio
		if order == nil {
			continue
		}
		if v, ok := order.ObligacionesEfectivas[out[i].ID]; ok {
			out[i].EsObligatorioEfectivo = v
		}
	}
	return out
}

// FinishService moves the order to SERVICIO_FINALIZADO. It is refused until
// the order's checklist is COMPLETADO.
func (s *OrderService) FinishService(ctx context.Context, orderID string) (*entity.ServiceOrder, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Estado {
	case entity.OrdenEstadoFinalizada:
		return order, nil
	case entity.OrdenEstadoCancelada:
		return nil, fmt.Errorf("%w: %s", ErrOrderState, order.Estado)
	}

	inst, err := s.instances.FindByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err := lifecycle.Gate(inst); err != nil {
		s.logger.Info("order finish blocked by checklist", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	now := s.now()
	if err := s.orders.MarkFinished(ctx, orderID, now); err != nil {
		return nil, fmt.Errorf("finish order: %w", err)
	}
	from := order.Estado
	order.Estado = entity.OrdenEstadoFinalizada
	order.FinalizadaAt = &now

	if s.activity != nil {
		s.activity.LogActivity(ctx, entity.ActivityLog{
			EntityType: "orden",
			EntityID:   order.ID,
			Action:     entity.ActionOrderFinish,
			FromStatus: from,
			ToStatus:   order.Estado,
			Content:    fmt.Sprintf("Servicio finalizado: %s", order.Codigo),
			OperatorID: OperatorFrom(ctx),
		})
	}
	return order, nil
}
