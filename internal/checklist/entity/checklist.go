package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 检查单实例状态
const (
	EstadoPendiente  = "PENDIENTE"
	EstadoEnProgreso = "EN_PROGRESO"
	EstadoCompletado = "COMPLETADO"
)

// ChecklistDefinition 检查单定义（一组模板）
type ChecklistDefinition struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	Nombre       string    `json:"nombre" gorm:"size:128;not null"`
	TipoServicio string    `json:"tipo_servicio" gorm:"size:64"`
	Activo       bool      `json:"activo" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ChecklistDefinition) TableName() string {
	return "checklists"
}

// ChecklistItemTemplate 检查项模板（只读）
type ChecklistItemTemplate struct {
	ID                string     `json:"id" gorm:"primaryKey;size:32"`
	ChecklistID       string     `json:"checklist_id" gorm:"size:32;not null;index"`
	OrdenVisual       int        `json:"orden_visual" gorm:"not null;default:0"`
	TipoPregunta      string     `json:"tipo_pregunta" gorm:"size:50;not null"`
	PreguntaTexto     string     `json:"pregunta_texto" gorm:"type:text;not null"`
	DescripcionAyuda  string     `json:"descripcion_ayuda,omitempty" gorm:"type:text"`
	EsObligatorio     bool       `json:"es_obligatorio" gorm:"not null;default:false"`
	OpcionesSeleccion StringList `json:"opciones_seleccion" gorm:"type:jsonb;default:'[]'"`
	ValorMinimo       *float64   `json:"valor_minimo"`
	ValorMaximo       *float64   `json:"valor_maximo"`
	MinFotos          *int       `json:"min_fotos"`
	Placeholder       string     `json:"placeholder,omitempty" gorm:"size:256"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// 由订单服务按上下文解析，不落库
	EsObligatorioEfectivo bool `json:"es_obligatorio_efectivo" gorm:"-"`
}

func (ChecklistItemTemplate) TableName() string {
	return "checklist_item_templates"
}

// ChecklistInstance 检查单实例，一个订单一个
type ChecklistInstance struct {
	ID                string     `json:"id" gorm:"primaryKey;size:32"`
	OrdenID           string     `json:"orden" gorm:"size:32;not null;uniqueIndex"`
	ChecklistID       string     `json:"checklist_id" gorm:"size:32;not null;index"`
	Estado            string     `json:"estado" gorm:"size:20;not null;default:PENDIENTE"`
	FechaInicio       *time.Time `json:"fecha_inicio"`
	FechaFinalizacion *time.Time `json:"fecha_finalizacion"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Items      []ChecklistItemTemplate           `json:"items" gorm:"-"`
	Respuestas map[string]*ChecklistItemResponse `json:"respuestas" gorm:"-"`
	Firma      *SignatureCapture                 `json:"firma,omitempty" gorm:"-"`
}

func (ChecklistInstance) TableName() string {
	return "checklist_instancias"
}

// Response 按模板ID取回答
func (i *ChecklistInstance) Response(itemID string) *ChecklistItemResponse {
	if i == nil || i.Respuestas == nil {
		return nil
	}
	return i.Respuestas[itemID]
}

// Template 按ID取模板
func (i *ChecklistInstance) Template(itemID string) (ChecklistItemTemplate, bool) {
	for _, t := range i.Items {
		if t.ID == itemID {
			return t, true
		}
	}
	return ChecklistItemTemplate{}, false
}

// Payload 一次保存的数据槽位
type Payload struct {
	RespuestaTexto     *string        `json:"respuesta_texto"`
	RespuestaNumero    *float64       `json:"respuesta_numero"`
	RespuestaBooleana  *bool          `json:"respuesta_booleana"`
	RespuestaSeleccion datatypes.JSON `json:"respuesta_seleccion"`
	RespuestaFecha     *time.Time     `json:"respuesta_fecha"`
	RespuestaUbicacion *Coordinate    `json:"respuesta_ubicacion"`
	Completado         bool           `json:"completado"`
}

// ChecklistItemResponse 检查项回答，只会被覆盖不会被删除
type ChecklistItemResponse struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:32"`
	InstanciaID        string          `json:"instancia" gorm:"size:32;not null;uniqueIndex:idx_respuesta_instancia_item"`
	ItemTemplateID     string          `json:"item_template" gorm:"size:32;not null;uniqueIndex:idx_respuesta_instancia_item"`
	RespuestaTexto     *string         `json:"respuesta_texto" gorm:"type:text"`
	RespuestaNumero    *float64        `json:"respuesta_numero"`
	RespuestaBooleana  *bool           `json:"respuesta_booleana"`
	RespuestaSeleccion datatypes.JSON  `json:"respuesta_seleccion" gorm:"type:jsonb"`
	RespuestaFecha     *time.Time      `json:"respuesta_fecha"`
	RespuestaUbicacion *Coordinate     `json:"respuesta_ubicacion" gorm:"type:jsonb"`
	Completado         bool            `json:"completado" gorm:"not null;default:false"`
	Fotos              []PhotoEvidence `json:"fotos" gorm:"foreignKey:RespuestaID"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (ChecklistItemResponse) TableName() string {
	return "checklist_respuestas"
}

// Payload 返回当前槽位
func (r *ChecklistItemResponse) Payload() Payload {
	if r == nil {
		return Payload{}
	}
	return Payload{
		RespuestaTexto:     r.RespuestaTexto,
		RespuestaNumero:    r.RespuestaNumero,
		RespuestaBooleana:  r.RespuestaBooleana,
		RespuestaSeleccion: r.RespuestaSeleccion,
		RespuestaFecha:     r.RespuestaFecha,
		RespuestaUbicacion: r.RespuestaUbicacion,
		Completado:         r.Completado,
	}
}

// Apply 用新的槽位整体覆盖旧值，未出现的槽位被清空
func (r *ChecklistItemResponse) Apply(p Payload) {
	r.RespuestaTexto = p.RespuestaTexto
	r.RespuestaNumero = p.RespuestaNumero
	r.RespuestaBooleana = p.RespuestaBooleana
	r.RespuestaSeleccion = p.RespuestaSeleccion
	if IsNullJSON(r.RespuestaSeleccion) {
		r.RespuestaSeleccion = nil
	}
	r.RespuestaFecha = p.RespuestaFecha
	r.RespuestaUbicacion = p.RespuestaUbicacion
	r.Completado = p.Completado
}

// PhotoEvidence 照片证据
type PhotoEvidence struct {
	ID               string    `json:"id,omitempty" gorm:"primaryKey;size:32"`
	RespuestaID      string    `json:"respuesta,omitempty" gorm:"size:32;not null;index"`
	URI              string    `json:"uri" gorm:"size:512"`
	URL              string    `json:"url,omitempty" gorm:"size:512"`
	Descripcion      string    `json:"descripcion" gorm:"type:text"`
	OrdenEnRespuesta int       `json:"orden_en_respuesta" gorm:"not null;default:0"`
	Sincronizada     bool      `json:"sincronizada" gorm:"not null;default:false"`
	FechaCaptura     time.Time `json:"fecha_captura"`
}

func (PhotoEvidence) TableName() string {
	return "checklist_fotos"
}

// SignatureCapture 技师+客户双签名，作为一个整体保存
type SignatureCapture struct {
	ID               string     `json:"id,omitempty" gorm:"primaryKey;size:32"`
	InstanciaID      string     `json:"instancia,omitempty" gorm:"size:32;not null;uniqueIndex"`
	FirmaTecnico     string     `json:"firma_tecnico" gorm:"type:text;not null"`
	FirmaCliente     string     `json:"firma_cliente" gorm:"type:text;not null"`
	UbicacionCaptura Coordinate `json:"ubicacion_captura" gorm:"type:jsonb"`
	FechaCaptura     time.Time  `json:"fecha_captura"`
}

func (SignatureCapture) TableName() string {
	return "checklist_firmas"
}

// Complete 两个签名都存在
func (s *SignatureCapture) Complete() bool {
	return s != nil && s.FirmaTecnico != "" && s.FirmaCliente != ""
}
