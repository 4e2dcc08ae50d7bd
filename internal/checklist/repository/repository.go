package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 检查单仓库集合
type Repositories struct {
	Checklist   *ChecklistRepository
	Instance    *InstanceRepository
	Response    *ResponseRepository
	Photo       *PhotoRepository
	Signature   *SignatureRepository
	Order       *OrderRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建检查单仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Checklist:   NewChecklistRepository(db),
		Instance:    NewInstanceRepository(db),
		Response:    NewResponseRepository(db),
		Photo:       NewPhotoRepository(db),
		Signature:   NewSignatureRepository(db),
		Order:       NewOrderRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}
