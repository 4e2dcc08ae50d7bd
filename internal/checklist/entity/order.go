package entity

import (
	"time"
)

// 服务订单状态
const (
	OrdenEstadoAsignada   = "ASIGNADA"
	OrdenEstadoEnCurso    = "EN_CURSO"
	OrdenEstadoFinalizada = "SERVICIO_FINALIZADO"
	OrdenEstadoCancelada  = "CANCELADA"
)

// ServiceOrder 服务订单（外部协作方，只取检查单需要的字段）
type ServiceOrder struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	Codigo        string `json:"codigo" gorm:"size:50;not null;uniqueIndex"`
	ProveedorID   string `json:"proveedor_id" gorm:"size:32;not null;index"`
	TipoProveedor string `json:"tipo_proveedor" gorm:"size:32"` // taller/mecanico_domicilio
	ChecklistID   string `json:"checklist_id" gorm:"size:32"`
	Estado        string `json:"estado" gorm:"size:30;not null;default:ASIGNADA"`

	// 上游按提供方类型等上下文解析好的必填覆盖：模板ID -> 是否必填
	ObligacionesEfectivas BoolMap `json:"obligaciones_efectivas" gorm:"type:jsonb"`

	FinalizadaAt *time.Time `json:"finalizada_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (ServiceOrder) TableName() string {
	return "ordenes_servicio"
}
