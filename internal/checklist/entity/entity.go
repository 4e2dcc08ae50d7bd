package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移检查单相关表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ChecklistDefinition{},
		&ChecklistItemTemplate{},
		&ChecklistInstance{},
		&ChecklistItemResponse{},
		&PhotoEvidence{},
		&SignatureCapture{},
		&ServiceOrder{},
		&ActivityLog{},
	)
}
