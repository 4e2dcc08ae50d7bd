package repository

import (
	"context"
	"errors"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResponseRepository 检查项回答仓库
type ResponseRepository struct {
	db *gorm.DB
}

func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

func preloadFotos(db *gorm.DB) *gorm.DB {
	return db.Order("orden_en_respuesta ASC")
}

// FindByID 根据ID查找回答（含照片）
func (r *ResponseRepository) FindByID(ctx context.Context, id string) (*entity.ChecklistItemResponse, error) {
	var resp entity.ChecklistItemResponse
	err := r.db.WithContext(ctx).
		Preload("Fotos", preloadFotos).
		Where("id = ?", id).
		First(&resp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &resp, nil
}

// FindByInstanceItem 查找某实例某模板的回答
func (r *ResponseRepository) FindByInstanceItem(ctx context.Context, instanceID, itemID string) (*entity.ChecklistItemResponse, error) {
	var resp entity.ChecklistItemResponse
	err := r.db.WithContext(ctx).
		Preload("Fotos", preloadFotos).
		Where("instancia_id = ? AND item_template_id = ?", instanceID, itemID).
		First(&resp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &resp, nil
}

// FindByInstance 查找实例的全部回答
func (r *ResponseRepository) FindByInstance(ctx context.Context, instanceID string) ([]entity.ChecklistItemResponse, error) {
	var items []entity.ChecklistItemResponse
	err := r.db.WithContext(ctx).
		Preload("Fotos", preloadFotos).
		Where("instancia_id = ?", instanceID).
		Find(&items).Error
	return items, err
}

// Upsert writes every slot of the response. The row for (instancia,
// item_template) is created on first save and overwritten afterwards; the
// last write wins.
func (r *ResponseRepository) Upsert(ctx context.Context, resp *entity.ChecklistItemResponse) (*entity.ChecklistItemResponse, error) {
	if resp.ID == "" {
		resp.ID = uuid.New().String()[:32]
	}
	err := r.db.WithContext(ctx).
		Omit("Fotos").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "instancia_id"}, {Name: "item_template_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"respuesta_texto", "respuesta_numero", "respuesta_booleana",
				"respuesta_seleccion", "respuesta_fecha", "respuesta_ubicacion",
				"completado", "updated_at",
			}),
		}).
		Create(resp).Error
	if err != nil {
		return nil, err
	}
	return r.FindByInstanceItem(ctx, resp.InstanciaID, resp.ItemTemplateID)
}
