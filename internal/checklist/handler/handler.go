package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/service"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/sse"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/middleware"
)

// Handlers 处理器集合
type Handlers struct {
	Checklist *ChecklistHandler
	Order     *OrderHandler
	SSE       *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Checklist: NewChecklistHandler(svc.Checklist, svc.Export),
		Order:     NewOrderHandler(svc.Order, svc.Checklist),
		SSE:       NewSSEHandler(hub),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// 业务错误码，HTTP 状态取 code/100
const (
	CodeBadRequest        = 40000
	CodeValidation        = 40001
	CodeUnauthorized      = 40100
	CodeNotFound          = 40400
	CodeNoChecklist       = 40401
	CodeInstanceCompleted = 40901
	CodeGateClosed        = 40902
	CodeFinalizeBusy      = 40903
	CodeConcurrentUpdate  = 40904
	CodeOrderState        = 40905
	CodeInvalidTransition = 40906
	CodeTooLarge          = 41300
	CodeInternal          = 50000
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Code: 0, Message: "success", Data: data})
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) { respond(c, http.StatusOK, data) }

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) { respond(c, http.StatusCreated, data) }

// Error writes the envelope with HTTP status code/100.
func Error(c *gin.Context, code int, message string) {
	status := code / 100
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string)       { Error(c, CodeBadRequest, message) }
func ValidationFailed(c *gin.Context, message string) { Error(c, CodeValidation, message) }
func NotFound(c *gin.Context, message string)         { Error(c, CodeNotFound, message) }
func InternalError(c *gin.Context, message string)    { Error(c, CodeInternal, message) }

// errorCodes 按顺序匹配，第一个命中的生效
var errorCodes = []struct {
	err  error
	code int
}{
	{itemtype.ErrValidation, CodeValidation},
	{service.ErrNoChecklist, CodeNoChecklist},
	{service.ErrOrderNotFound, CodeNotFound},
	{service.ErrInstanceNotFound, CodeNotFound},
	{service.ErrResponseNotFound, CodeNotFound},
	{service.ErrItemNotFound, CodeNotFound},
	{service.ErrNotPhotoItem, CodeBadRequest},
	{service.ErrPhotoTooLarge, CodeTooLarge},
	{service.ErrInstanceCompleted, CodeInstanceCompleted},
	{lifecycle.ErrChecklistIncomplete, CodeGateClosed},
	{service.ErrFinalizeInProgress, CodeFinalizeBusy},
	{service.ErrConcurrentUpdate, CodeConcurrentUpdate},
	{service.ErrOrderState, CodeOrderState},
	{lifecycle.ErrInvalidTransition, CodeInvalidTransition},
}

// Fail maps a service error onto the envelope. Unknown errors are 50000.
func Fail(c *gin.Context, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			Error(c, ec.code, err.Error())
			return
		}
	}
	_ = c.Error(err)
	InternalError(c, err.Error())
}

// GetUserID 当前技师ID
func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.KeyUserID)
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
