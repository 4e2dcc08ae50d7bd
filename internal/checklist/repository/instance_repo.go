package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstanceRepository 检查单实例仓库
type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// FindByID 根据ID查找实例
func (r *InstanceRepository) FindByID(ctx context.Context, id string) (*entity.ChecklistInstance, error) {
	var inst entity.ChecklistInstance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// FindByOrderID 根据订单查找实例
func (r *InstanceRepository) FindByOrderID(ctx context.Context, orderID string) (*entity.ChecklistInstance, error) {
	var inst entity.ChecklistInstance
	err := r.db.WithContext(ctx).Where("orden_id = ?", orderID).First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// FindOrCreate inserts a PENDIENTE instance for the order unless one exists
// and returns the stored row. created is false when another request won.
func (r *InstanceRepository) FindOrCreate(ctx context.Context, orderID, checklistID string) (*entity.ChecklistInstance, bool, error) {
	inst := &entity.ChecklistInstance{
		ID:          uuid.New().String()[:32],
		OrdenID:     orderID,
		ChecklistID: checklistID,
		Estado:      entity.EstadoPendiente,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "orden_id"}}, DoNothing: true}).
		Create(inst)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return inst, true, nil
	}
	existing, err := r.FindByOrderID(ctx, orderID)
	return existing, false, err
}

// UpdateEstado moves the instance from one estado to another. The update
// only applies while the row is still in from; false means it was not.
func (r *InstanceRepository) UpdateEstado(ctx context.Context, inst *entity.ChecklistInstance, from string) (bool, error) {
	updates := map[string]interface{}{
		"estado":     inst.Estado,
		"updated_at": time.Now(),
	}
	if inst.FechaInicio != nil {
		updates["fecha_inicio"] = inst.FechaInicio
	}
	if inst.FechaFinalizacion != nil {
		updates["fecha_finalizacion"] = inst.FechaFinalizacion
	}
	result := r.db.WithContext(ctx).Model(&entity.ChecklistInstance{}).
		Where("id = ? AND estado = ?", inst.ID, from).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// Complete stores the signature bundle and moves the instance to
// COMPLETADO in one transaction.
func (r *InstanceRepository) Complete(ctx context.Context, inst *entity.ChecklistInstance, from string, firma *entity.SignatureCapture) (bool, error) {
	var moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if firma != nil {
			if err := upsertSignature(tx, firma); err != nil {
				return err
			}
		}
		result := tx.Model(&entity.ChecklistInstance{}).
			Where("id = ? AND estado = ?", inst.ID, from).
			Updates(map[string]interface{}{
				"estado":             entity.EstadoCompletado,
				"fecha_inicio":       inst.FechaInicio,
				"fecha_finalizacion": inst.FechaFinalizacion,
				"updated_at":         time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 并发下状态已变化，回滚签名
			return errEstadoChanged
		}
		moved = true
		return nil
	})
	if errors.Is(err, errEstadoChanged) {
		return false, nil
	}
	return moved, err
}

var errEstadoChanged = errors.New("estado changed concurrently")
