package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/service"
)

const maxBodyBytes = 1 << 20

// ChecklistHandler 检查单处理器
type ChecklistHandler struct {
	svc    *service.ChecklistService
	export *service.ExportService
}

func NewChecklistHandler(svc *service.ChecklistService, export *service.ExportService) *ChecklistHandler {
	return &ChecklistHandler{svc: svc, export: export}
}

// GetByOrder 获取订单的检查单，首次访问时创建
// GET /api/v1/orders/:orderId/checklist
func (h *ChecklistHandler) GetByOrder(c *gin.Context) {
	inst, err := h.svc.GetInstanceByOrder(withUser(c), c.Param("orderId"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, inst)
}

// Get 获取检查单实例
// GET /api/v1/checklists/:id
func (h *ChecklistHandler) Get(c *gin.Context) {
	inst, err := h.svc.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, inst)
}

// SaveResponse 保存单题回答
// PUT /api/v1/checklists/:id/items/:itemId/response
func (h *ChecklistHandler) SaveResponse(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := validateBody(responseSchema, body); err != nil {
		Fail(c, err)
		return
	}
	var p entity.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.SaveResponse(withUser(c), c.Param("id"), c.Param("itemId"), p)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, resp)
}

// UploadPhoto 上传照片证据
// POST /api/v1/responses/:id/photos  (multipart: file, uri, descripcion)
func (h *ChecklistHandler) UploadPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "没有上传文件")
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	ctype := fileHeader.Header.Get("Content-Type")
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	photo, err := h.svc.AddPhoto(withUser(c), c.Param("id"), service.PhotoUpload{
		URI:         c.PostForm("uri"),
		Descripcion: c.PostForm("descripcion"),
		FileName:    fileHeader.Filename,
		ContentType: ctype,
		Size:        fileHeader.Size,
		Body:        src,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, photo)
}

type finalizeRequest struct {
	Firma *entity.SignatureCapture `json:"firma"`
}

// Finalize 结束检查单
// POST /api/v1/checklists/:id/finalize
func (h *ChecklistHandler) Finalize(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if err := validateBody(finalizeSchema, body); err != nil {
		Fail(c, err)
		return
	}
	var req finalizeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	inst, err := h.svc.Finalize(withUser(c), c.Param("id"), req.Firma)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, inst)
}

// Progress 完成度
// GET /api/v1/checklists/:id/progress
func (h *ChecklistHandler) Progress(c *gin.Context) {
	p, err := h.svc.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, p)
}

// Activities 操作日志
// GET /api/v1/checklists/:id/activities?page=1&page_size=20
func (h *ChecklistHandler) Activities(c *gin.Context) {
	page, pageSize := GetPagination(c)
	logs, total, err := h.svc.Activities(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{
		Items: logs,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: (int(total) + pageSize - 1) / pageSize,
		},
	})
}

// Export 导出xlsx
// GET /api/v1/checklists/:id/export
func (h *ChecklistHandler) Export(c *gin.Context) {
	f, filename, err := h.export.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
}

// withUser carries the caller into the service for activity logs.
func withUser(c *gin.Context) context.Context {
	return service.WithOperator(c.Request.Context(), GetUserID(c))
}
