package repository

import (
	"context"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhotoRepository 照片证据仓库
type PhotoRepository struct {
	db *gorm.DB
}

func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create appends a photo to its response, numbering it after the ones
// already stored.
func (r *PhotoRepository) Create(ctx context.Context, photo *entity.PhotoEvidence) error {
	if photo.ID == "" {
		photo.ID = uuid.New().String()[:32]
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entity.PhotoEvidence{}).
			Where("respuesta_id = ?", photo.RespuestaID).
			Count(&count).Error; err != nil {
			return err
		}
		photo.OrdenEnRespuesta = int(count) + 1
		return tx.Create(photo).Error
	})
}

// CountByResponse 回答下的照片数量
func (r *PhotoRepository) CountByResponse(ctx context.Context, responseID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.PhotoEvidence{}).
		Where("respuesta_id = ?", responseID).
		Count(&count).Error
	return count, err
}
