package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"gorm.io/gorm"
)

// OrderRepository 服务订单仓库
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByID 根据ID查找订单
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.ServiceOrder, error) {
	var order entity.ServiceOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// MarkFinished 订单置为服务完成
func (r *OrderRepository) MarkFinished(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.ServiceOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"estado":        entity.OrdenEstadoFinalizada,
			"finalizada_at": at,
			"updated_at":    time.Now(),
		}).Error
}
