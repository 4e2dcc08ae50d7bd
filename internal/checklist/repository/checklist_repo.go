package repository

import (
	"context"
	"errors"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"gorm.io/gorm"
)

// ChecklistRepository 检查单定义与模板仓库（只读）
type ChecklistRepository struct {
	db *gorm.DB
}

func NewChecklistRepository(db *gorm.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// FindByID 根据ID查找检查单定义
func (r *ChecklistRepository) FindByID(ctx context.Context, id string) (*entity.ChecklistDefinition, error) {
	var def entity.ChecklistDefinition
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&def).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &def, nil
}

// FindItems 按 orden_visual 取模板
func (r *ChecklistRepository) FindItems(ctx context.Context, checklistID string) ([]entity.ChecklistItemTemplate, error) {
	var items []entity.ChecklistItemTemplate
	err := r.db.WithContext(ctx).
		Where("checklist_id = ?", checklistID).
		Order("orden_visual ASC, id ASC").
		Find(&items).Error
	return items, err
}
