package repository

import (
	"context"
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogRepository 检查单操作日志
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if pageSize < 1 {
			pageSize = 20
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// FindByEntity returns one page of an entity's log, newest first.
func (r *ActivityLogRepository) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	base := r.db.WithContext(ctx).Model(&entity.ActivityLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	logs := []entity.ActivityLog{}
	if total == 0 {
		return logs, 0, nil
	}
	err := base.Scopes(paginate(page, pageSize)).
		Order("created_at DESC, id DESC").
		Find(&logs).Error
	return logs, total, err
}

// LogActivity 记录一条日志，失败不影响主流程
func (r *ActivityLogRepository) LogActivity(ctx context.Context, log entity.ActivityLog) {
	if log.ID == "" {
		log.ID = uuid.New().String()[:32]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.db.WithContext(ctx).Create(&log)
}
