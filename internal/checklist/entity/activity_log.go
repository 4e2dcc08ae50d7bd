package entity

import "time"

// ActivityLog 检查单操作日志
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_checklist_activity_entity"` // instancia/respuesta/orden
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_checklist_activity_entity"`

	Action     string `json:"action" gorm:"size:50;not null"` // save/photo_upload/finalize/status_change
	FromStatus string `json:"from_status" gorm:"size:20"`
	ToStatus   string `json:"to_status" gorm:"size:20"`

	Content  string `json:"content" gorm:"type:text"`
	Metadata JSONB  `json:"metadata" gorm:"type:jsonb"`

	OperatorID string    `json:"operator_id" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "checklist_activity_logs"
}

// 操作类型
const (
	ActionSave         = "save"
	ActionPhotoUpload  = "photo_upload"
	ActionFinalize     = "finalize"
	ActionStatusChange = "status_change"
	ActionOrderFinish  = "order_finish"
)
