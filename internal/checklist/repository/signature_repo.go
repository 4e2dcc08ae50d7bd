package repository

import (
	"context"
	"errors"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SignatureRepository 签名仓库
type SignatureRepository struct {
	db *gorm.DB
}

func NewSignatureRepository(db *gorm.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

// FindByInstance 查找实例签名，没有签名不算错误
func (r *SignatureRepository) FindByInstance(ctx context.Context, instanceID string) (*entity.SignatureCapture, error) {
	var firma entity.SignatureCapture
	err := r.db.WithContext(ctx).Where("instancia_id = ?", instanceID).First(&firma).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &firma, nil
}

// Upsert 保存签名（每个实例一份）
func (r *SignatureRepository) Upsert(ctx context.Context, firma *entity.SignatureCapture) error {
	return upsertSignature(r.db.WithContext(ctx), firma)
}

func upsertSignature(db *gorm.DB, firma *entity.SignatureCapture) error {
	if firma.ID == "" {
		firma.ID = uuid.New().String()[:32]
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instancia_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"firma_tecnico", "firma_cliente", "ubicacion_captura", "fecha_captura"}),
	}).Create(firma).Error
}
